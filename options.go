package ladder

import (
	"github.com/denismitr/ladder/internal/database"
	"github.com/denismitr/ladder/internal/logger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type OptionFunc func(*Runner) error

// UseDB runs migrations through an sqlx database handle. The handle
// stays owned by the caller.
func UseDB(db *sqlx.DB, cfn ...database.TxConfigFunc) OptionFunc {
	return func(r *Runner) error {
		if db == nil {
			return ErrExecutorNotInitialized
		}

		r.executor = database.NewSqlxExecutor(db, cfn...)
		return nil
	}
}

func UseExecutor(e database.Executor) OptionFunc {
	return func(r *Runner) error {
		r.executor = e
		return nil
	}
}

// UseLocalFolder sets the migrations root holding the up and down folders
func UseLocalFolder(root string) OptionFunc {
	return func(r *Runner) error {
		if root == "" {
			return errors.Wrap(ErrConfiguration, "migrations folder must not be empty")
		}

		r.root = root
		return nil
	}
}

// UseStateFile overrides the default <root>/.version state file
func UseStateFile(path string) OptionFunc {
	return func(r *Runner) error {
		r.statePath = path
		return nil
	}
}

func UseDatabaseGroup(group string) OptionFunc {
	return func(r *Runner) error {
		if group == "" {
			return errors.Wrap(ErrConfiguration, "database group must not be empty")
		}

		r.group = group
		return nil
	}
}

func UseColorLogger(p logger.Printer, printSQL, printDebug bool) OptionFunc {
	return func(r *Runner) error {
		r.lg = logger.NewColorLogger(p, printSQL, printDebug)
		return nil
	}
}

func UseLogger(p logger.Printer, printSQL, printDebug bool) OptionFunc {
	return func(r *Runner) error {
		r.lg = logger.NewBWLogger(p, printSQL, printDebug)
		return nil
	}
}
