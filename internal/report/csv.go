package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSVHeader lists the columns written by WriteCSV.
var CSVHeader = []string{
	"timestamp", "run_id", "instance", "agents", "obstacles", "grid_size",
	"solver", "threshold", "outcome", "cost", "sum_of_cost", "makespan",
	"expected", "elapsed_ms", "expanded", "generated", "conflicts", "low_level_calls",
}

// WriteCSV writes results with a header row.
func WriteCSV(w io.Writer, results []*Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.CreatedAt.Format(time.RFC3339), r.RunID, r.Instance,
			strconv.Itoa(r.Agents), strconv.Itoa(r.Obstacles), r.GridSize,
			r.Solver, strconv.FormatFloat(r.Threshold, 'g', -1, 64), r.Outcome,
			strconv.Itoa(r.Cost), strconv.Itoa(r.SumOfCost), strconv.Itoa(r.Makespan),
			strconv.Itoa(r.Expected),
			fmt.Sprintf("%.3f", float64(r.Elapsed.Microseconds())/1000.0),
			strconv.Itoa(r.Expanded), strconv.Itoa(r.Generated),
			strconv.Itoa(r.Conflicts), strconv.Itoa(r.LowLevelCalls),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveCSV writes results to path, creating its directory.
func SaveCSV(path string, results []*Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
