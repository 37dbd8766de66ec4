package columnar

import (
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/bqlite/internal/models"
)

// Execute runs one statement and returns its row-major result. Engine
// and NetworkTimeMS are filled in by the caller (the local/remote
// adapter) since those are adapter-specific; Execute only fills what the
// store itself knows.
func (s *Store) Execute(sql string) (*models.ExecutionResult, error) {
	start := time.Now()
	kind := StatementKind(sql)

	var rows []models.Row
	var err error

	switch kind {
	case "SELECT", "WITH":
		var data []map[string]any
		data, err = s.Select(sql)
		if err == nil {
			rows = make([]models.Row, len(data))
			for i, r := range data {
				rows[i] = models.Row(r)
			}
		}
	case "INSERT":
		var n int64
		n, err = s.Insert(sql)
		if err == nil {
			rows = []models.Row{{"rows_inserted": n}}
		}
	case "CREATE":
		err = s.CreateTable(sql)
		if err == nil {
			rows = []models.Row{}
		}
	default:
		err = fmt.Errorf("columnar: unsupported statement kind %q", kind)
	}

	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	plan, _ := s.Explain(sql)
	execMS := float64(elapsed.Microseconds()) / 1000.0
	return &models.ExecutionResult{
		Data:        rows,
		RowCount:    int64(len(rows)),
		ExecutionMS: execMS,
		QueryPlan:   plan,
		Metrics: models.PerformanceMetrics{
			ExecutionMS:   execMS,
			MemoryUsedMB:  memoryEstimate(len(rows)),
			RowsProcessed: int64(len(rows)),
			CPUTimeMS:     execMS * 0.8,
			IOWaitMS:      execMS * 0.1,
		},
	}, nil
}

// memoryEstimate mirrors duckdb_runner.py's
// `max(0.1, row_count * 0.001)` rough memory estimate.
func memoryEstimate(rowCount int) float64 {
	est := float64(rowCount) * 0.001
	if est < 0.1 {
		return 0.1
	}
	return est
}

// Explain produces an opaque plan string. It never executes the
// statement; a parse failure here is what Validate reports as
// valid=false.
func (s *Store) Explain(sql string) (string, error) {
	kind := StatementKind(sql)
	tables := ExtractTableNames(sql)

	switch kind {
	case "SELECT", "WITH":
		if !strings.Contains(strings.ToUpper(sql), "FROM") {
			return "Projection(no scan)", nil
		}
		if len(tables) == 0 {
			return "", fmt.Errorf("columnar: no table referenced")
		}
		for _, t := range tables {
			s.mu.RLock()
			_, ok := s.tables[t]
			s.mu.RUnlock()
			if !ok {
				return "", fmt.Errorf("columnar: table %q does not exist", t)
			}
		}
		return fmt.Sprintf("Scan(%s)", strings.Join(tables, ", ")), nil
	case "INSERT":
		if len(tables) == 0 {
			return "", fmt.Errorf("columnar: INSERT with no target table")
		}
		return fmt.Sprintf("Insert(%s)", tables[0]), nil
	case "CREATE":
		return "CreateTable", nil
	default:
		return "", fmt.Errorf("columnar: cannot explain statement of kind %q", kind)
	}
}
