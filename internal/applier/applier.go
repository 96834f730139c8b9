package applier

import (
	"context"
	"fmt"

	"github.com/denismitr/ladder/internal/catalog"
	"github.com/denismitr/ladder/internal/database"
	"github.com/denismitr/ladder/internal/logger"
	"github.com/denismitr/ladder/internal/planner"
	"github.com/denismitr/ladder/internal/state"
	"github.com/denismitr/ladder/migration"
	"github.com/pkg/errors"
)

var ErrStatementExecution = errors.New("migration statement failed")

// StatementError reports the statement that stopped a migration step
type StatementError struct {
	Version   migration.Version
	Direction migration.Direction
	File      string
	// Index is the 1-based position of the statement in the version batch
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf(
		"%s migration of version [%s] failed on statement #%d in [%s]: %s\nstatement: %s",
		e.Direction, e.Version, e.Index, e.File, e.Err, e.Statement,
	)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

func (e *StatementError) Is(target error) bool {
	return target == ErrStatementExecution
}

// Applier executes plan steps, one transaction per version, and persists
// the state of the database group after every committed step
type Applier struct {
	db    database.Executor
	store state.Store
	group string
	lg    logger.Logger
}

func New(db database.Executor, store state.Store, group string, lg logger.Logger) *Applier {
	if lg == nil {
		lg = logger.NullLogger{}
	}

	return &Applier{db: db, store: store, group: group, lg: lg}
}

// Run applies the steps in order and stops at the first failure.
// It returns the versions that were committed.
func (a *Applier) Run(ctx context.Context, p planner.Plan) (migration.Versions, error) {
	var applied migration.Versions

	for _, step := range p.Steps {
		if err := a.Apply(ctx, p.Direction, step); err != nil {
			a.lg.Debugf("failed: group [%s] stays at version [%s]", a.group, a.store.Get(a.group))
			return applied, err
		}

		applied = append(applied, step.Version)
	}

	a.lg.Debugf("done: group [%s] is at version [%s]", a.group, a.store.Get(a.group))

	return applied, nil
}

// Apply runs a single step inside its own transaction
func (a *Applier) Apply(ctx context.Context, dir migration.Direction, step planner.Step) error {
	batch, err := catalog.ReadBatch(step.Files)
	if err != nil {
		return err
	}

	a.lg.Debugf("applying: %s version [%s], %d statements", dir, step.Version, len(batch))

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return errors.Wrapf(err, "could not begin %s migration of version [%s]", dir, step.Version)
	}

	for i, stmt := range batch {
		a.lg.SQL(stmt.Query)

		if _, err := tx.ExecContext(ctx, stmt.Query); err != nil {
			stmtErr := &StatementError{
				Version:   step.Version,
				Direction: dir,
				File:      stmt.File,
				Index:     i + 1,
				Statement: stmt.Query,
				Err:       err,
			}

			if rbErr := tx.Rollback(); rbErr != nil {
				a.lg.Error(errors.Wrapf(rbErr, "rollback of version [%s] failed", step.Version))
			}

			a.persistUnchanged()

			return stmtErr
		}
	}

	if err := tx.Commit(); err != nil {
		a.persistUnchanged()
		return errors.Wrapf(err, "could not commit %s migration of version [%s]", dir, step.Version)
	}

	a.store.Set(a.group, step.Result)
	if err := a.store.Save(); err != nil {
		return errors.Wrapf(
			err,
			"version [%s] was committed but group [%s] could not be recorded at version [%s]",
			step.Version, a.group, step.Result,
		)
	}

	a.lg.Successf("committed: %s version [%s], group [%s] is at version [%s]", dir, step.Version, a.group, step.Result)

	return nil
}

// persistUnchanged writes the state as of the last committed step
func (a *Applier) persistUnchanged() {
	if err := a.store.Save(); err != nil {
		a.lg.Error(errors.Wrap(err, "could not persist migration state after a failed step"))
	}
}
