package ladder

import (
	"fmt"
	"sort"

	"github.com/denismitr/ladder/migration"
)

// Report describes the outcome of a Migrate call
type Report struct {
	Group     string
	Direction migration.Direction
	From      migration.Version
	To        migration.Version
	Target    migration.Version
	Applied   migration.Versions

	// NothingToDo is set when the group already was at the target version
	NothingToDo bool
}

func (r *Report) Message() string {
	if r.NothingToDo {
		return "There is nothing to do!"
	}

	return fmt.Sprintf("Successfully migrated from version %s to version %s.", r.From, r.To)
}

type Status struct {
	Group   string
	Current migration.Version
	Latest  migration.Version
	Pending migration.Versions
}

func (s *Status) UpToDate() bool {
	return len(s.Pending) == 0
}

type Description struct {
	Version migration.Version
	Up      []string
	Down    []string
}

type VersionInfo struct {
	Version migration.Version
	HasUp   bool
	HasDown bool
	Applied bool
}

func sortVersions(vs migration.Versions) {
	sort.Sort(vs)
}
