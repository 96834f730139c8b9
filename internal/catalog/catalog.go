package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/denismitr/ladder/migration"
	"github.com/pkg/errors"
)

var (
	ErrMalformedLayout  = errors.New("malformed migrations layout")
	ErrDuplicateVersion = errors.New("duplicate migration version")
)

type entry struct {
	version migration.Version
	files   []string
}

// Catalog indexes the migration files found under a migrations root laid out as
// root/{up,down}/<version>/<file>. It is never modified after Scan.
type Catalog struct {
	root     string
	entries  map[migration.Direction]map[string]entry
	versions map[migration.Direction]migration.Versions
}

func newCatalog(root string) *Catalog {
	return &Catalog{
		root: root,
		entries: map[migration.Direction]map[string]entry{
			migration.Up:   {},
			migration.Down: {},
		},
		versions: map[migration.Direction]migration.Versions{},
	}
}

// New builds a catalog from in-memory file sets, keyed by direction and version
func New(files map[migration.Direction]map[migration.Version][]string) (*Catalog, error) {
	c := newCatalog("")
	for dir, byVersion := range files {
		parsed, err := migration.ParseDirection(string(dir))
		if err != nil {
			return nil, err
		}

		for v, paths := range byVersion {
			if err := c.add(parsed, v, append([]string(nil), paths...)); err != nil {
				return nil, err
			}
		}
	}

	c.sort()

	return c, nil
}

// Scan reads the migrations root. A missing root or a missing direction
// folder is an empty catalog, not an error.
func Scan(root string) (*Catalog, error) {
	c := newCatalog(root)

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read migrations root [%s]", root)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(ErrMalformedLayout, "migrations root [%s] is not a directory", root)
	}

	for _, dir := range []migration.Direction{migration.Up, migration.Down} {
		if err := c.scanDirection(dir, filepath.Join(root, dir.String())); err != nil {
			return nil, err
		}
	}

	c.sort()

	return c, nil
}

func (c *Catalog) scanDirection(dir migration.Direction, folder string) error {
	info, err := os.Stat(folder)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "could not read [%s] migrations folder", folder)
	}
	if !info.IsDir() {
		return errors.Wrapf(ErrMalformedLayout, "[%s] must be a directory", folder)
	}

	items, err := os.ReadDir(folder)
	if err != nil {
		return errors.Wrapf(err, "could not read [%s] migrations folder", folder)
	}

	for _, item := range items {
		if hidden(item.Name()) {
			continue
		}

		path := filepath.Join(folder, item.Name())
		if !item.IsDir() {
			return errors.Wrapf(ErrMalformedLayout, "[%s] is not a version directory", path)
		}

		v, err := migration.Parse(item.Name())
		if err != nil {
			return errors.Wrapf(ErrMalformedLayout, "[%s]: %s", path, err.Error())
		}

		files, err := versionFiles(path)
		if err != nil {
			return err
		}

		if err := c.add(dir, v, files); err != nil {
			return errors.Wrapf(err, "[%s]", path)
		}
	}

	return nil
}

func versionFiles(folder string) ([]string, error) {
	items, err := os.ReadDir(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read version folder [%s]", folder)
	}

	var files []string
	for _, item := range items {
		if hidden(item.Name()) {
			continue
		}

		path := filepath.Join(folder, item.Name())
		if item.IsDir() {
			return nil, errors.Wrapf(ErrMalformedLayout, "nested directory [%s] in a version folder", path)
		}

		files = append(files, path)
	}

	sort.Strings(files)

	return files, nil
}

func (c *Catalog) add(dir migration.Direction, v migration.Version, files []string) error {
	if v.IsZero() {
		return errors.Wrap(ErrMalformedLayout, "version 0 is reserved for an empty database")
	}

	if existing, ok := c.entries[dir][v.Key()]; ok {
		return errors.Wrapf(ErrDuplicateVersion, "%s: [%s] and [%s]", dir, existing.version, v)
	}

	sort.Strings(files)
	c.entries[dir][v.Key()] = entry{version: v, files: files}

	return nil
}

func (c *Catalog) sort() {
	for dir, byKey := range c.entries {
		vs := make(migration.Versions, 0, len(byKey))
		for _, e := range byKey {
			vs = append(vs, e.version)
		}

		sort.Sort(vs)
		c.versions[dir] = vs
	}
}

func (c *Catalog) Root() string {
	return c.root
}

// Versions lists the versions of a direction in ascending order
func (c *Catalog) Versions(dir migration.Direction) migration.Versions {
	return append(migration.Versions(nil), c.versions[dir]...)
}

// Files returns the ordered file paths of a version, nil when it is absent
func (c *Catalog) Files(dir migration.Direction, v migration.Version) []string {
	e, ok := c.entries[dir][v.Key()]
	if !ok {
		return nil
	}

	return append([]string(nil), e.files...)
}

func (c *Catalog) Has(dir migration.Direction, v migration.Version) bool {
	_, ok := c.entries[dir][v.Key()]
	return ok
}

// Latest is the greatest version of a direction
func (c *Catalog) Latest(dir migration.Direction) (migration.Version, bool) {
	vs := c.versions[dir]
	if len(vs) == 0 {
		return migration.Zero, false
	}

	return vs[len(vs)-1], true
}

// Lookup finds the version as it is spelled in the catalog, so that
// a request for "1" resolves to a folder named "001"
func (c *Catalog) Lookup(v migration.Version) (migration.Version, bool) {
	for _, dir := range []migration.Direction{migration.Up, migration.Down} {
		if e, ok := c.entries[dir][v.Key()]; ok {
			return e.version, true
		}
	}

	return v, false
}

func (c *Catalog) Empty() bool {
	return len(c.versions[migration.Up]) == 0 && len(c.versions[migration.Down]) == 0
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
