package state

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/denismitr/ladder/migration"
	"github.com/pkg/errors"
)

var (
	ErrConfiguration  = errors.New("migration state is not configured properly")
	ErrCorruptedState = errors.New("migration state file is corrupted")
)

const DefaultFilename = ".version"

// Store keeps the currently applied version of every database group
type Store interface {
	Load() error
	Get(group string) migration.Version
	Set(group string, v migration.Version)
	Save() error
}

// FileStore persists the state as a single JSON object mapping
// database group to version. Numeric versions are stored as numbers.
// No lock is taken on the file: concurrent runs against the same
// file must be serialised by the caller.
type FileStore struct {
	path     string
	versions map[string]migration.Version
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, versions: make(map[string]migration.Version)}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load replaces the in-memory state with the file contents.
// A missing file is an empty state, an undecodable one is ErrCorruptedState.
func (s *FileStore) Load() error {
	b, err := ioutil.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.versions = make(map[string]migration.Version)
		return nil
	}
	if err != nil {
		return errors.Wrapf(ErrConfiguration, "could not read state file [%s]: %s", s.path, err.Error())
	}

	versions, err := decode(b)
	if err != nil {
		return errors.Wrapf(ErrCorruptedState, "[%s]: %s", s.path, err.Error())
	}

	s.versions = versions

	return nil
}

func (s *FileStore) Get(group string) migration.Version {
	if v, ok := s.versions[group]; ok {
		return v
	}

	return migration.Zero
}

func (s *FileStore) Set(group string, v migration.Version) {
	s.versions[group] = v
}

// Snapshot copies the in-memory state
func (s *FileStore) Snapshot() map[string]migration.Version {
	result := make(map[string]migration.Version, len(s.versions))
	for group, v := range s.versions {
		result[group] = v
	}
	return result
}

// Save rewrites the whole state file. The new contents are written to a
// temporary file in the same directory and renamed over the old one, so
// a reader never observes a partially written file.
func (s *FileStore) Save() error {
	b, err := encode(s.versions)
	if err != nil {
		return errors.Wrap(err, "could not encode migration state")
	}

	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}

	tmp, err := ioutil.TempFile(dir, "."+base+".*.tmp")
	if err != nil {
		return errors.Wrapf(ErrConfiguration, "could not create temporary state file in [%s]: %s", dir, err.Error())
	}

	if err := writeAndClose(tmp, b); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(ErrConfiguration, "could not write temporary state file [%s]: %s", tmp.Name(), err.Error())
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(ErrConfiguration, "could not replace state file [%s]: %s", s.path, err.Error())
	}

	return nil
}

// CheckWritable verifies that the state directory accepts new files
func (s *FileStore) CheckWritable() error {
	dir := filepath.Dir(s.path)

	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(ErrConfiguration, "state directory [%s] is not accessible: %s", dir, err.Error())
	}
	if !info.IsDir() {
		return errors.Wrapf(ErrConfiguration, "[%s] is not a directory", dir)
	}

	if info, err := os.Stat(s.path); err == nil && info.IsDir() {
		return errors.Wrapf(ErrConfiguration, "state file [%s] is a directory", s.path)
	}

	f, err := ioutil.TempFile(dir, ".ladder-probe-*")
	if err != nil {
		return errors.Wrapf(ErrConfiguration, "state directory [%s] must be writable: %s", dir, err.Error())
	}

	_ = f.Close()

	if err := os.Remove(f.Name()); err != nil {
		return errors.Wrapf(ErrConfiguration, "could not clean up [%s]: %s", f.Name(), err.Error())
	}

	return nil
}

func writeAndClose(f *os.File, b []byte) error {
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Chmod(0644); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

func encode(versions map[string]migration.Version) ([]byte, error) {
	raw := make(map[string]interface{}, len(versions))
	for group, v := range versions {
		if v.Numeric || v.Value == "" {
			raw[group] = v.Number
		} else {
			raw[group] = v.Value
		}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	return append(b, '\n'), nil
}

func decode(b []byte) (map[string]migration.Version, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, errors.New("state must be a JSON object")
	}

	if dec.More() {
		return nil, errors.New("unexpected data after the state object")
	}

	versions := make(map[string]migration.Version, len(raw))
	for group, value := range raw {
		v, err := decodeVersion(value)
		if err != nil {
			return nil, errors.Wrapf(err, "database group [%s]", group)
		}

		versions[group] = v
	}

	return versions, nil
}

func decodeVersion(value interface{}) (migration.Version, error) {
	switch typed := value.(type) {
	case json.Number:
		n, err := strconv.ParseUint(typed.String(), 10, 64)
		if err != nil {
			return migration.Version{}, errors.Errorf("version [%s] is not a non-negative integer", typed)
		}
		return migration.FromNumber(n), nil
	case string:
		return migration.Parse(typed)
	}

	return migration.Version{}, errors.Errorf("unexpected version value %#v", value)
}
