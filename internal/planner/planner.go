package planner

import (
	"github.com/denismitr/ladder/internal/catalog"
	"github.com/denismitr/ladder/migration"
	"github.com/pkg/errors"
)

var ErrNoMigrationsAvailable = errors.New("there are no migrations to proceed with, create a migration first")

// Step is one version to apply or revert. Result is the version the
// database group is at once the step has been committed.
type Step struct {
	Version migration.Version
	Files   []string
	Result  migration.Version
}

type Plan struct {
	Direction migration.Direction
	From      migration.Version
	To        migration.Version
	Steps     []Step
}

func (p Plan) Empty() bool {
	return len(p.Steps) == 0
}

// Files lists every file of the plan in execution order
func (p Plan) Files() (result []string) {
	for i := range p.Steps {
		result = append(result, p.Steps[i].Files...)
	}
	return result
}

func (p Plan) Versions() (result migration.Versions) {
	for i := range p.Steps {
		result = append(result, p.Steps[i].Version)
	}
	return result
}

// Build computes the ordered steps leading from current to target.
// A nil target means the latest up version. Build does not modify
// the catalog.
func Build(current migration.Version, target *migration.Version, c *catalog.Catalog) (Plan, error) {
	to, err := resolveTarget(target, c)
	if err != nil {
		return Plan{}, err
	}

	p := Plan{Direction: migration.Up, From: current, To: to}

	switch migration.Compare(current, to) {
	case 0:
		return p, nil
	case -1:
		p.Steps = upSteps(current, to, c)
	default:
		p.Direction = migration.Down
		p.Steps = downSteps(current, to, c)
	}

	return p, nil
}

func resolveTarget(target *migration.Version, c *catalog.Catalog) (migration.Version, error) {
	if target != nil {
		return *target, nil
	}

	latest, ok := c.Latest(migration.Up)
	if !ok {
		return migration.Version{}, ErrNoMigrationsAvailable
	}

	return latest, nil
}

// upSteps selects up versions in (current, target], ascending
func upSteps(current, target migration.Version, c *catalog.Catalog) []Step {
	var steps []Step

	for _, v := range c.Versions(migration.Up) {
		if inRange(v, current, target) {
			steps = append(steps, Step{Version: v, Files: c.Files(migration.Up, v), Result: v})
		}
	}

	return steps
}

// downSteps selects down versions in (target, current], most recent first
func downSteps(current, target migration.Version, c *catalog.Catalog) []Step {
	var steps []Step

	versions := c.Versions(migration.Down)
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if inRange(v, target, current) {
			steps = append(steps, Step{
				Version: v,
				Files:   c.Files(migration.Down, v),
				Result:  previous(v, target, c),
			})
		}
	}

	return steps
}

func inRange(v, lower, upper migration.Version) bool {
	return migration.Compare(lower, v) < 0 && migration.Compare(v, upper) <= 0
}

// previous is the version a group is left at after reverting v: the closest
// lower up version, but never below the target of the plan
func previous(v, target migration.Version, c *catalog.Catalog) migration.Version {
	result := target
	for _, candidate := range c.Versions(migration.Up) {
		if !candidate.Less(v) {
			break
		}

		if target.Less(candidate) {
			result = candidate
		}
	}

	return result
}
