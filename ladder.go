package ladder

import (
	"context"
	"path/filepath"

	"github.com/denismitr/ladder/internal/applier"
	"github.com/denismitr/ladder/internal/catalog"
	"github.com/denismitr/ladder/internal/database"
	"github.com/denismitr/ladder/internal/logger"
	"github.com/denismitr/ladder/internal/planner"
	"github.com/denismitr/ladder/internal/state"
	"github.com/denismitr/ladder/migration"
	"github.com/pkg/errors"
)

const (
	DefaultMigrationsFolder = "./migrations"
	DefaultDatabaseGroup    = "default"
)

// Runner migrates one database group. Catalog and state are loaded
// afresh by every operation and belong to that operation only.
type Runner struct {
	lg        logger.Logger
	executor  database.Executor
	root      string
	statePath string
	group     string
}

// NewRunner creates a runner from option callbacks, defaults are
// the ./migrations folder, its .version state file and the "default" group.
// A database is only required by Migrate.
func NewRunner(opts ...OptionFunc) (*Runner, error) {
	r := &Runner{
		lg:    logger.NullLogger{},
		root:  DefaultMigrationsFolder,
		group: DefaultDatabaseGroup,
	}

	for _, oFunc := range opts {
		if err := oFunc(r); err != nil {
			return nil, err
		}
	}

	if r.statePath == "" {
		r.statePath = filepath.Join(r.root, state.DefaultFilename)
	}

	if err := state.NewFileStore(r.statePath).CheckWritable(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Runner) Group() string {
	return r.group
}

// Migrate moves the database group to the target version, or to the latest
// up version when no target is configured. Every version runs in its own
// transaction and the state file is rewritten after each of them, so on
// failure the returned report reflects the last committed version.
func (r *Runner) Migrate(ctx context.Context, cfs ...ActionConfigurator) (*Report, error) {
	if r.executor == nil {
		return nil, ErrExecutorNotInitialized
	}

	act := new(action)
	for _, f := range cfs {
		f(act)
	}

	target, err := act.targetVersion()
	if err != nil {
		return nil, err
	}

	store, c, err := r.load()
	if err != nil {
		r.lg.Error(err)
		return nil, err
	}

	if err := store.CheckWritable(); err != nil {
		r.lg.Error(err)
		return nil, err
	}

	current := store.Get(r.group)
	if target != nil {
		if v, ok := c.Lookup(*target); ok {
			target = &v
		}
	}

	p, err := planner.Build(current, target, c)
	if err != nil {
		r.lg.Error(err)
		return nil, err
	}

	report := &Report{
		Group:     r.group,
		Direction: p.Direction,
		From:      current,
		To:        current,
		Target:    p.To,
	}

	if p.Empty() {
		report.NothingToDo = true
		r.lg.Successf("%s", report.Message())
		return report, nil
	}

	r.lg.Debugf(
		"planned %s migration of group [%s] from version [%s] to [%s]: %v",
		p.Direction, r.group, current, p.To, p.Versions().Strings(),
	)

	applied, err := applier.New(r.executor, store, r.group, r.lg).Run(ctx, p)
	report.Applied = applied
	report.To = store.Get(r.group)

	if err != nil {
		r.lg.Error(err)
		return report, err
	}

	r.lg.Successf("%s", report.Message())

	return report, nil
}

// Status reports the current version of the group and the latest available one
func (r *Runner) Status() (*Status, error) {
	store, c, err := r.load()
	if err != nil {
		return nil, err
	}

	current := store.Get(r.group)
	latest, _ := c.Latest(migration.Up)

	var pending migration.Versions
	for _, v := range c.Versions(migration.Up) {
		if current.Less(v) {
			pending = append(pending, v)
		}
	}

	return &Status{
		Group:   r.group,
		Current: current,
		Latest:  latest,
		Pending: pending,
	}, nil
}

// Diff lists the files that a migration from current to target would
// execute, in order. An empty current means the stored version of the
// group, an empty target the latest up version.
func (r *Runner) Diff(current, target string) ([]string, error) {
	store, c, err := r.load()
	if err != nil {
		return nil, err
	}

	from := store.Get(r.group)
	if current != "" {
		if from, err = migration.Parse(current); err != nil {
			return nil, err
		}
	}

	to, err := (&action{target: target}).targetVersion()
	if err != nil {
		return nil, err
	}

	p, err := planner.Build(from, to, c)
	if err != nil {
		return nil, err
	}

	return p.Files(), nil
}

// Describe lists the up and down files of a version
func (r *Runner) Describe(version string) (*Description, error) {
	v, err := migration.Parse(version)
	if err != nil {
		return nil, err
	}

	c, err := catalog.Scan(r.root)
	if err != nil {
		return nil, err
	}

	found, ok := c.Lookup(v)
	if !ok {
		return nil, errors.Wrapf(ErrVersionNotFound, "[%s] in [%s]", version, r.root)
	}

	return &Description{
		Version: found,
		Up:      c.Files(migration.Up, found),
		Down:    c.Files(migration.Down, found),
	}, nil
}

// Versions lists every version of the catalog with its applied flag
func (r *Runner) Versions() ([]VersionInfo, error) {
	store, c, err := r.load()
	if err != nil {
		return nil, err
	}

	current := store.Get(r.group)

	var all migration.Versions
	seen := make(map[string]bool)
	for _, dir := range []migration.Direction{migration.Up, migration.Down} {
		for _, v := range c.Versions(dir) {
			if !seen[v.Key()] {
				seen[v.Key()] = true
				all = append(all, v)
			}
		}
	}

	sortVersions(all)

	result := make([]VersionInfo, 0, len(all))
	for _, v := range all {
		result = append(result, VersionInfo{
			Version: v,
			HasUp:   c.Has(migration.Up, v),
			HasDown: c.Has(migration.Down, v),
			Applied: !current.Less(v),
		})
	}

	return result, nil
}

func (r *Runner) load() (*state.FileStore, *catalog.Catalog, error) {
	store := state.NewFileStore(r.statePath)
	if err := store.Load(); err != nil {
		return nil, nil, err
	}

	c, err := catalog.Scan(r.root)
	if err != nil {
		return nil, nil, err
	}

	return store, c, nil
}
