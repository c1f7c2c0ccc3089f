package instance

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// LoadStatic reads a static benchmark file: a map followed by the agent
// count and one "sx sy gx gy" line per agent.
func LoadStatic(path string) (*core.Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	inst, err := ParseStatic(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	inst.Name = Name(path)
	return inst, nil
}

// ParseStatic parses a static benchmark instance without obstacles.
func ParseStatic(r io.Reader) (*core.Instance, error) {
	sc := bufio.NewScanner(r)
	mf, err := parseMap(sc)
	if err != nil {
		return nil, err
	}
	if len(mf.Markers) > 0 {
		return nil, invalid("static instances cannot mark dynamic obstacles")
	}

	line, err := nextLine(sc)
	if err != nil {
		return nil, invalid("missing agent count")
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 0 {
		return nil, invalid("bad agent count %q", line)
	}

	inst := &core.Instance{Map: mf.Grid}
	for i := 0; i < n; i++ {
		line, err := nextLine(sc)
		if err != nil {
			return nil, invalid("expected %d agents, got %d", n, i)
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, invalid("agent %d: expected \"sx sy gx gy\", got %q", i, line)
		}
		var v [4]int
		for k, f := range fields {
			if v[k], err = strconv.Atoi(f); err != nil {
				return nil, invalid("agent %d: bad coordinate %q", i, f)
			}
		}
		inst.Agents = append(inst.Agents, core.Agent{
			ID:    core.AgentID(i),
			Start: core.Cell{X: v[0], Y: v[1]},
			Goal:  core.Cell{X: v[2], Y: v[3]},
		})
	}
	return inst, nil
}

func nextLine(sc *bufio.Scanner) (string, error) {
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// LoadExpected reads an "instance,cost" CSV of known optimal costs.
func LoadExpected(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseExpected(f)
}

// ParseExpected parses expected costs keyed by instance path. Extra
// columns are ignored.
func ParseExpected(r io.Reader) (map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	out := make(map[string]int)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, invalid("expected results: %v", err)
		}
		if len(rec) < 2 {
			return nil, invalid("expected results line %d: need instance,cost", line)
		}
		cost, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, invalid("expected results line %d: bad cost %q", line, rec[1])
		}
		out[strings.TrimSpace(rec[0])] = cost
	}
}
