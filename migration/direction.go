package migration

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidDirection = errors.New("invalid migration direction")

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}

	return "", errors.Wrapf(ErrInvalidDirection, "[%s]", s)
}

func (d Direction) String() string {
	return string(d)
}
