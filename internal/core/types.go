// Package core defines domain models for probabilistic multi-agent path finding.
package core

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a map, agent set, trajectory or
// configuration is malformed. No search is attempted.
var ErrInvalidInput = errors.New("invalid input")

// invalidf wraps ErrInvalidInput with a formatted detail message.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Cell is a grid location. X is the row, Y the column.
type Cell struct {
	X int `yaml:"x" toml:"x"`
	Y int `yaml:"y" toml:"y"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Add returns c shifted by d.
func (c Cell) Add(d Cell) Cell {
	return Cell{X: c.X + d.X, Y: c.Y + d.Y}
}

// Adjacent reports whether o is one of the 4 neighbours of c.
func (c Cell) Adjacent(o Cell) bool {
	return Manhattan(c, o) == 1
}

// Directions lists the 4-connected moves in expansion order.
var Directions = [4]Cell{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// Manhattan returns the L1 distance between two cells.
func Manhattan(a, b Cell) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Outcome classifies the result of a planning run.
type Outcome int

const (
	Solved     Outcome = iota // Every agent has a conflict-free path
	Infeasible                // Proven that no solution exists
	Truncated                 // Deadline or node cap reached first
)

func (o Outcome) String() string {
	switch o {
	case Solved:
		return "solved"
	case Infeasible:
		return "infeasible"
	case Truncated:
		return "truncated"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
