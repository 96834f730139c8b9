package state

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/denismitr/ladder/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Load(t *testing.T) {
	t.Run("absent file is an empty state", func(t *testing.T) {
		s := NewFileStore(filepath.Join(t.TempDir(), DefaultFilename))
		require.NoError(t, s.Load())
		assert.Equal(t, migration.Zero, s.Get("default"))
	})

	t.Run("numeric and named versions are decoded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), DefaultFilename)
		require.NoError(t, ioutil.WriteFile(path, []byte(`{"default": 3, "reports": "b2"}`), 0644))

		s := NewFileStore(path)
		require.NoError(t, s.Load())

		assert.True(t, s.Get("default").Equal(migration.FromNumber(3)))
		assert.Equal(t, "b2", s.Get("reports").String())
		assert.True(t, s.Get("unknown").IsZero())
	})

	corrupted := []struct {
		name    string
		content string
	}{
		{name: "empty file", content: ""},
		{name: "not json", content: "version=3"},
		{name: "json array", content: "[3]"},
		{name: "json null", content: "null"},
		{name: "negative version", content: `{"default": -1}`},
		{name: "fractional version", content: `{"default": 1.5}`},
		{name: "invalid version string", content: `{"default": "not valid"}`},
		{name: "nested object", content: `{"default": {"version": 1}}`},
		{name: "trailing data", content: `{"default": 1} {"default": 2}`},
	}

	for _, tc := range corrupted {
		tc := tc
		t.Run("corrupted "+tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFilename)
			require.NoError(t, ioutil.WriteFile(path, []byte(tc.content), 0644))

			err := NewFileStore(path).Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptedState), err.Error())
		})
	}
}

func TestFileStore_Save(t *testing.T) {
	t.Run("state survives a round trip", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, DefaultFilename)

		s := NewFileStore(path)
		require.NoError(t, s.Load())
		s.Set("default", migration.MustParse("5"))
		s.Set("reports", migration.MustParse("a1"))
		require.NoError(t, s.Save())

		b, err := ioutil.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "{\"default\":5,\"reports\":\"a1\"}\n", string(b))

		reloaded := NewFileStore(path)
		require.NoError(t, reloaded.Load())
		assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
	})

	t.Run("save replaces the previous state and leaves no temporary files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, DefaultFilename)

		s := NewFileStore(path)
		s.Set("default", migration.FromNumber(1))
		require.NoError(t, s.Save())
		s.Set("default", migration.FromNumber(2))
		require.NoError(t, s.Save())

		items, err := ioutil.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, DefaultFilename, items[0].Name())
		assert.Equal(t, os.FileMode(0644), items[0].Mode().Perm())

		reloaded := NewFileStore(path)
		require.NoError(t, reloaded.Load())
		assert.True(t, reloaded.Get("default").Equal(migration.FromNumber(2)))
	})

	t.Run("missing directory is a configuration error", func(t *testing.T) {
		s := NewFileStore(filepath.Join(t.TempDir(), "missing", DefaultFilename))
		s.Set("default", migration.FromNumber(1))

		err := s.Save()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfiguration))
	})
}

func TestFileStore_CheckWritable(t *testing.T) {
	t.Run("writable directory", func(t *testing.T) {
		dir := t.TempDir()
		assert.NoError(t, NewFileStore(filepath.Join(dir, DefaultFilename)).CheckWritable())

		items, err := ioutil.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("missing directory", func(t *testing.T) {
		err := NewFileStore(filepath.Join(t.TempDir(), "missing", DefaultFilename)).CheckWritable()
		assert.True(t, errors.Is(err, ErrConfiguration))
	})

	t.Run("state path is a directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, DefaultFilename), 0755))

		err := NewFileStore(filepath.Join(dir, DefaultFilename)).CheckWritable()
		assert.True(t, errors.Is(err, ErrConfiguration))
	})
}
