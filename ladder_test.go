package ladder

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/denismitr/ladder/internal/state"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sqliteStubs = "./stubs/sqlite"
	brokenStubs = "./stubs/broken"
)

func openSqlite(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func tables(t *testing.T, db *sqlx.DB) []string {
	t.Helper()

	var result []string
	require.NoError(t, db.Select(&result, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name"))
	return result
}

func newRunner(t *testing.T, db *sqlx.DB, root string, opts ...OptionFunc) (*Runner, string) {
	t.Helper()

	folder, err := filepath.Abs(root)
	require.NoError(t, err)

	statePath := filepath.Join(t.TempDir(), state.DefaultFilename)

	r, err := NewRunner(append([]OptionFunc{
		UseDB(db),
		UseLocalFolder(folder),
		UseStateFile(statePath),
	}, opts...)...)
	require.NoError(t, err)

	return r, statePath
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewRunner(t *testing.T) {
	t.Run("executor is required to migrate", func(t *testing.T) {
		r, err := NewRunner(UseLocalFolder(t.TempDir()))
		require.NoError(t, err)

		_, err = r.Migrate(testCtx(t))
		assert.True(t, errors.Is(err, ErrExecutorNotInitialized))

		s, err := r.Status()
		require.NoError(t, err)
		assert.True(t, s.Current.IsZero())
		assert.True(t, s.UpToDate())
	})

	t.Run("state directory must exist", func(t *testing.T) {
		r, err := NewRunner(
			UseDB(openSqlite(t)),
			UseStateFile(filepath.Join(t.TempDir(), "missing", "state.json")),
		)
		assert.Nil(t, r)
		assert.True(t, errors.Is(err, ErrConfiguration))
	})

	t.Run("empty group is rejected", func(t *testing.T) {
		_, err := NewRunner(UseDB(openSqlite(t)), UseDatabaseGroup(""))
		assert.True(t, errors.Is(err, ErrConfiguration))
	})

	t.Run("state file defaults to the migrations folder", func(t *testing.T) {
		root := t.TempDir()
		r, err := NewRunner(UseDB(openSqlite(t)), UseLocalFolder(root))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, state.DefaultFilename), r.statePath)
		assert.Equal(t, DefaultDatabaseGroup, r.Group())
	})
}

func TestRunner_Migrate(t *testing.T) {
	t.Run("migrates to the latest version and back to zero", func(t *testing.T) {
		db := openSqlite(t)
		r, statePath := newRunner(t, db, sqliteStubs)

		report, err := r.Migrate(testCtx(t))
		require.NoError(t, err)

		assert.False(t, report.NothingToDo)
		assert.Equal(t, []string{"1", "2", "3"}, report.Applied.Strings())
		assert.Equal(t, "0", report.From.String())
		assert.Equal(t, "3", report.To.String())
		assert.Equal(t, "Successfully migrated from version 0 to version 3.", report.Message())
		assert.Equal(t, []string{"comments", "posts", "tags", "users"}, tables(t, db))

		b, err := ioutil.ReadFile(statePath)
		require.NoError(t, err)
		assert.JSONEq(t, `{"default": 3}`, string(b))

		report, err = r.Migrate(testCtx(t), WithTarget("0"))
		require.NoError(t, err)

		assert.Equal(t, []string{"3", "2", "1"}, report.Applied.Strings())
		assert.Equal(t, "0", report.To.String())
		assert.Empty(t, tables(t, db))
	})

	t.Run("nothing to do at the target version", func(t *testing.T) {
		db := openSqlite(t)
		r, _ := newRunner(t, db, sqliteStubs)

		_, err := r.Migrate(testCtx(t), WithTarget("2"))
		require.NoError(t, err)

		report, err := r.Migrate(testCtx(t), WithTarget("2"))
		require.NoError(t, err)
		assert.True(t, report.NothingToDo)
		assert.Empty(t, report.Applied)
		assert.Equal(t, "There is nothing to do!", report.Message())
	})

	t.Run("partial down migration", func(t *testing.T) {
		db := openSqlite(t)
		r, _ := newRunner(t, db, sqliteStubs)

		_, err := r.Migrate(testCtx(t))
		require.NoError(t, err)

		report, err := r.Migrate(testCtx(t), WithTarget("1"))
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "2"}, report.Applied.Strings())
		assert.Equal(t, "1", report.To.String())
		assert.Equal(t, []string{"posts", "users"}, tables(t, db))
	})

	t.Run("database groups are tracked separately", func(t *testing.T) {
		db := openSqlite(t)
		r, statePath := newRunner(t, db, sqliteStubs, UseDatabaseGroup("reports"))

		require.NoError(t, ioutil.WriteFile(statePath, []byte(`{"default": 7}`), 0644))

		report, err := r.Migrate(testCtx(t), WithTarget("1"))
		require.NoError(t, err)
		assert.Equal(t, "1", report.To.String())

		b, err := ioutil.ReadFile(statePath)
		require.NoError(t, err)
		assert.JSONEq(t, `{"default": 7, "reports": 1}`, string(b))
	})

	t.Run("failing version keeps the state at the last committed one", func(t *testing.T) {
		db := openSqlite(t)
		r, statePath := newRunner(t, db, brokenStubs)

		report, err := r.Migrate(testCtx(t))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStatementExecution))

		var stmtErr *StatementError
		require.True(t, errors.As(err, &stmtErr))
		assert.Equal(t, "2", stmtErr.Version.String())
		assert.Equal(t, 2, stmtErr.Index)
		assert.Equal(t, "create_tags.sql", filepath.Base(stmtErr.File))

		require.NotNil(t, report)
		assert.Equal(t, []string{"1"}, report.Applied.Strings())
		assert.Equal(t, "1", report.To.String())
		assert.Equal(t, []string{"posts", "users"}, tables(t, db))

		b, err := ioutil.ReadFile(statePath)
		require.NoError(t, err)
		assert.JSONEq(t, `{"default": 1}`, string(b))
	})

	t.Run("corrupted state aborts before any transaction", func(t *testing.T) {
		db := openSqlite(t)
		r, statePath := newRunner(t, db, sqliteStubs)
		require.NoError(t, ioutil.WriteFile(statePath, []byte("{not json"), 0644))

		report, err := r.Migrate(testCtx(t))
		assert.Nil(t, report)
		assert.True(t, errors.Is(err, ErrCorruptedState))
		assert.Empty(t, tables(t, db))
	})

	t.Run("no migrations available", func(t *testing.T) {
		db := openSqlite(t)
		r, _ := newRunner(t, db, t.TempDir())

		_, err := r.Migrate(testCtx(t))
		assert.True(t, errors.Is(err, ErrNoMigrationsAvailable))
	})

	t.Run("invalid target", func(t *testing.T) {
		db := openSqlite(t)
		r, _ := newRunner(t, db, sqliteStubs)

		_, err := r.Migrate(testCtx(t), WithTarget("not a version"))
		assert.True(t, errors.Is(err, ErrInvalidVersion))
	})
}

func TestRunner_Information(t *testing.T) {
	folder, err := filepath.Abs(sqliteStubs)
	require.NoError(t, err)

	db := openSqlite(t)
	r, _ := newRunner(t, db, sqliteStubs)

	_, err = r.Migrate(testCtx(t), WithTarget("1"))
	require.NoError(t, err)

	t.Run("status", func(t *testing.T) {
		s, err := r.Status()
		require.NoError(t, err)

		assert.Equal(t, "default", s.Group)
		assert.Equal(t, "1", s.Current.String())
		assert.Equal(t, "3", s.Latest.String())
		assert.Equal(t, []string{"2", "3"}, s.Pending.Strings())
		assert.False(t, s.UpToDate())
	})

	t.Run("diff from the stored version to the latest", func(t *testing.T) {
		files, err := r.Diff("", "")
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(folder, "up", "2", "create_tags.sql"),
			filepath.Join(folder, "up", "3", "create_comments.sql"),
		}, files)
	})

	t.Run("diff downwards", func(t *testing.T) {
		files, err := r.Diff("3", "1")
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(folder, "down", "3", "drop_comments.sql"),
			filepath.Join(folder, "down", "2", "drop_tags.sql"),
		}, files)
	})

	t.Run("describe", func(t *testing.T) {
		d, err := r.Describe("1")
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(folder, "up", "1", "01_create_users.sql"),
			filepath.Join(folder, "up", "1", "02_create_posts.sql"),
		}, d.Up)
		assert.Equal(t, []string{
			filepath.Join(folder, "down", "1", "01_drop_posts.sql"),
			filepath.Join(folder, "down", "1", "02_drop_users.sql"),
		}, d.Down)

		_, err = r.Describe("42")
		assert.True(t, errors.Is(err, ErrVersionNotFound))
	})

	t.Run("versions", func(t *testing.T) {
		vs, err := r.Versions()
		require.NoError(t, err)
		require.Len(t, vs, 3)

		assert.Equal(t, "1", vs[0].Version.String())
		assert.True(t, vs[0].Applied)
		assert.True(t, vs[0].HasUp)
		assert.True(t, vs[0].HasDown)
		assert.False(t, vs[1].Applied)
		assert.False(t, vs[2].Applied)
	})
}
