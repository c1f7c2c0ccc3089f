// Package instance reads and writes planning instances: map files, TOML
// instance descriptions, static benchmark files and generated instances.
package instance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// MapFile is a parsed map: the static grid plus the start cells of named
// dynamic obstacles marked on it.
type MapFile struct {
	Grid    *core.GridMap
	Markers map[string]core.Cell
}

// LoadMap reads a map file from disk.
func LoadMap(path string) (*MapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mf, err := ParseMap(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mf, nil
}

// ParseMap reads a "rows cols" header followed by rows lines of cells.
// Cells are '@' (blocked), '.' (free) or a letter sequence naming a dynamic
// obstacle that starts there. Rows may be written with or without spaces
// between cells; markers longer than one letter need spaces.
func ParseMap(r io.Reader) (*MapFile, error) {
	sc := bufio.NewScanner(r)
	return parseMap(sc)
}

func parseMap(sc *bufio.Scanner) (*MapFile, error) {
	rows, cols, err := readHeader(sc)
	if err != nil {
		return nil, err
	}

	var blocked []core.Cell
	markers := make(map[string]core.Cell)
	for x := 0; x < rows; x++ {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, invalid("expected %d map rows, got %d", rows, x)
		}
		tokens := rowTokens(sc.Text())
		if len(tokens) != cols {
			return nil, invalid("row %d: expected %d columns, got %d", x, cols, len(tokens))
		}
		for y, tok := range tokens {
			c := core.Cell{X: x, Y: y}
			switch {
			case tok == "@":
				blocked = append(blocked, c)
			case tok == ".":
			case isMarker(tok):
				if _, dup := markers[tok]; dup {
					return nil, invalid("dynamic obstacle %s placed more than once", tok)
				}
				markers[tok] = c
			default:
				return nil, invalid("row %d: unknown map symbol %q", x, tok)
			}
		}
	}

	g, err := core.NewGridMap(rows, cols, blocked)
	if err != nil {
		return nil, err
	}
	return &MapFile{Grid: g, Markers: markers}, nil
}

func readHeader(sc *bufio.Scanner) (rows, cols int, err error) {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return 0, 0, invalid("map header must be \"rows cols\", got %q", line)
		}
		rows, err1 := strconv.Atoi(fields[0])
		cols, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil || rows < 1 || cols < 1 {
			return 0, 0, invalid("bad map dimensions %q", line)
		}
		return rows, cols, nil
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}
	return 0, 0, invalid("empty map file")
}

func rowTokens(line string) []string {
	line = strings.TrimSpace(line)
	if strings.ContainsAny(line, " \t") {
		return strings.Fields(line)
	}
	out := make([]string, 0, len(line))
	for _, r := range line {
		out = append(out, string(r))
	}
	return out
}

func isMarker(tok string) bool {
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return tok != ""
}

// FormatMap renders g in the map file format, one character per cell.
func FormatMap(g *core.GridMap) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d\n", g.Rows(), g.Cols())
	for x := 0; x < g.Rows(); x++ {
		for y := 0; y < g.Cols(); y++ {
			if g.IsFree(core.Cell{X: x, Y: y}) {
				b.WriteByte('.')
			} else {
				b.WriteByte('@')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
