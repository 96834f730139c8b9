package ladder

import (
	"github.com/denismitr/ladder/internal/applier"
	"github.com/denismitr/ladder/internal/catalog"
	"github.com/denismitr/ladder/internal/planner"
	"github.com/denismitr/ladder/internal/state"
	"github.com/denismitr/ladder/migration"
	"github.com/pkg/errors"
)

var (
	ErrExecutorNotInitialized = errors.New("database executor has not been initialized")
	ErrVersionNotFound        = errors.New("migration version not found")

	ErrConfiguration         = state.ErrConfiguration
	ErrCorruptedState        = state.ErrCorruptedState
	ErrNoMigrationsAvailable = planner.ErrNoMigrationsAvailable
	ErrStatementExecution    = applier.ErrStatementExecution
	ErrMalformedLayout       = catalog.ErrMalformedLayout
	ErrDuplicateVersion      = catalog.ErrDuplicateVersion
	ErrInvalidVersion        = migration.ErrInvalidVersion
)

// StatementError carries the version, file and statement of a failed step
type StatementError = applier.StatementError
