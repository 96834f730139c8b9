package cli

import (
	"context"

	"github.com/denismitr/ladder/internal/database"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/xo/dburl"
)

var ErrUnsupportedDriver = errors.New("database driver is not supported")

type (
	CloserFunc func() error

	// Opener opens a database handle for a dsn of its driver
	Opener func(dsn string) (*sqlx.DB, error)

	openerMap map[string]Opener
)

func openMySQL(dsn string) (*sqlx.DB, error) {
	return sqlx.Open("mysql", dsn)
}

func openSqlite(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	return db, nil
}

func defaultOpeners() openerMap {
	return openerMap{
		"mysql":   openMySQL,
		"sqlite3": openSqlite,
	}
}

// resolve parses a database url into the driver name and its dsn
func (m openerMap) resolve(databaseURL string) (string, string, Opener, error) {
	u, err := dburl.Parse(databaseURL)
	if err != nil {
		return "", "", nil, errors.Wrapf(ErrInvalidConfig, "database url could not be parsed: %s", err.Error())
	}

	opener, ok := m[u.Driver]
	if !ok {
		return "", "", nil, errors.Wrapf(ErrUnsupportedDriver, "[%s]", u.Driver)
	}

	return u.Driver, u.DSN, opener, nil
}

func (m openerMap) connect(ctx context.Context, databaseURL string, opts *database.ConnectOptions) (*sqlx.DB, CloserFunc, error) {
	driver, dsn, opener, err := m.resolve(databaseURL)
	if err != nil {
		return nil, nil, err
	}

	db, err := opener(dsn)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not open %s database", driver)
	}

	if err := database.Connect(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return db, db.Close, nil
}
