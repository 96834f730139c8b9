package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var ErrTxDeadlock = errors.New("transaction deadlock occurred")

// Tx is a single migration version transaction
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Commit() error
	Rollback() error
}

// Executor starts transactions on the migrated database
type Executor interface {
	Begin(ctx context.Context) (Tx, error)
}

// TxConfig - configures tx
type TxConfig struct {
	Iso sql.IsolationLevel
}

type TxConfigFunc func(*TxConfig)

// ISO - isolation level type
type ISO int

const (
	Default ISO = iota
	Serializable
	RepeatableRead
	ReadCommitted
)

// Isolation tx config function
func Isolation(iso ISO) TxConfigFunc {
	return func(txCfg *TxConfig) {
		switch iso {
		case Serializable:
			txCfg.Iso = sql.LevelSerializable
		case RepeatableRead:
			txCfg.Iso = sql.LevelRepeatableRead
		case ReadCommitted:
			txCfg.Iso = sql.LevelReadCommitted
		default:
			txCfg.Iso = sql.LevelDefault
		}
	}
}

type SqlxExecutor struct {
	db    *sqlx.DB
	txCfg TxConfig
}

var _ Executor = (*SqlxExecutor)(nil)

func NewSqlxExecutor(db *sqlx.DB, cfn ...TxConfigFunc) *SqlxExecutor {
	txCfg := TxConfig{Iso: sql.LevelDefault}
	for _, fn := range cfn {
		fn(&txCfg)
	}

	return &SqlxExecutor{db: db, txCfg: txCfg}
}

func (e *SqlxExecutor) DB() *sqlx.DB {
	return e.db
}

func (e *SqlxExecutor) Begin(ctx context.Context) (Tx, error) {
	txx, err := e.db.BeginTxx(ctx, &sql.TxOptions{Isolation: e.txCfg.Iso})
	if err != nil {
		return nil, errors.Wrapf(err, "could not start transaction with isolation [%s]", e.txCfg.Iso)
	}

	return &sqlxTx{tx: txx}, nil
}

type sqlxTx struct {
	tx *sqlx.Tx
}

func (t *sqlxTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}

	return result, nil
}

func (t *sqlxTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return errors.Wrap(classify(err), "could not commit transaction")
	}

	return nil
}

func (t *sqlxTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return errors.Wrap(err, "could not rollback transaction")
	}

	return nil
}

func classify(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "deadlock") {
		return errors.Wrap(ErrTxDeadlock, err.Error())
	}

	return err
}
