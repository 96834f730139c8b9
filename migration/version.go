package migration

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var ErrInvalidVersion = errors.New("invalid migration version")

var versionRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Version identifies one migration step. Versions whose value is an unsigned
// integer are compared numerically, all others lexicographically, and every
// numeric version orders before any non-numeric one.
type Version struct {
	Value   string
	Number  uint64
	Numeric bool
}

// Zero is the version of a database group with nothing applied.
var Zero = Version{Value: "0", Number: 0, Numeric: true}

// Parse converts a version directory name or a user supplied target into a
// Version. "0" is accepted and yields Zero.
func Parse(s string) (Version, error) {
	if !versionRegexp.MatchString(s) {
		return Version{}, errors.Wrapf(ErrInvalidVersion, "[%s]", s)
	}

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return Version{Value: s, Number: n, Numeric: true}, nil
	}

	return Version{Value: s}, nil
}

// MustParse is like Parse but panics on an invalid version
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromNumber creates a numeric version
func FromNumber(n uint64) Version {
	return Version{Value: strconv.FormatUint(n, 10), Number: n, Numeric: true}
}

func (v Version) normalize() Version {
	if v.Value == "" {
		return Zero
	}
	return v
}

func (v Version) IsZero() bool {
	v = v.normalize()
	return v.Numeric && v.Number == 0
}

func (v Version) String() string {
	return v.normalize().Value
}

// Key is the canonical identity of the version: "01" and "1" share a key.
func (v Version) Key() string {
	v = v.normalize()
	if v.Numeric {
		return strconv.FormatUint(v.Number, 10)
	}
	return v.Value
}

// Compare returns -1, 0 or 1. It is the single ordering used for listing,
// planning and reverting.
func Compare(a, b Version) int {
	a, b = a.normalize(), b.normalize()

	switch {
	case a.Numeric && b.Numeric:
		switch {
		case a.Number < b.Number:
			return -1
		case a.Number > b.Number:
			return 1
		}
		return 0
	case a.Numeric:
		return -1
	case b.Numeric:
		return 1
	}

	switch {
	case a.Value < b.Value:
		return -1
	case a.Value > b.Value:
		return 1
	}
	return 0
}

func (v Version) Less(other Version) bool {
	return Compare(v, other) < 0
}

func (v Version) Equal(other Version) bool {
	return Compare(v, other) == 0
}

type Versions []Version

func (vs Versions) Len() int {
	return len(vs)
}

func (vs Versions) Less(i, j int) bool {
	return Compare(vs[i], vs[j]) < 0
}

func (vs Versions) Swap(i, j int) {
	vs[i], vs[j] = vs[j], vs[i]
}

func (vs Versions) Strings() (result []string) {
	for i := range vs {
		result = append(result, vs[i].String())
	}
	return result
}
