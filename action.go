package ladder

import (
	"github.com/denismitr/ladder/migration"
)

type ActionConfigurator func(a *action)

type action struct {
	target string
}

// WithTarget migrates to the given version instead of the latest one.
// "0" reverts every migration of the database group.
func WithTarget(version string) ActionConfigurator {
	return func(a *action) {
		a.target = version
	}
}

func (a *action) targetVersion() (*migration.Version, error) {
	if a.target == "" {
		return nil, nil
	}

	v, err := migration.Parse(a.target)
	if err != nil {
		return nil, err
	}

	return &v, nil
}
