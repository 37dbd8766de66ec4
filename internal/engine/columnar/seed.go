package columnar

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/bobmcallan/bqlite/internal/models"
)

// Seed populates the store with sample tables, mirroring
// duckdb_runner.py's initialize() creating a sample_data table when no
// real dataset is configured. Deterministic (fixed seed) so tests that
// rely on row counts are stable.
func (s *Store) Seed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables["sample_data"]; exists {
		return
	}

	rng := rand.New(rand.NewSource(42))
	t := &Table{
		Name: "sample_data",
		Columns: []Column{
			{Name: "id", Type: "BIGINT"},
			{Name: "value", Type: "DOUBLE"},
			{Name: "category", Type: "VARCHAR"},
			{Name: "created_at", Type: "TIMESTAMP"},
		},
	}
	now := time.Now().UTC()
	for i := 0; i < 1000; i++ {
		t.Rows = append(t.Rows, models.Row{
			"id":         int64(i + 1),
			"value":      rng.Float64() * 1000,
			"category":   fmt.Sprintf("category_%d", rng.Intn(5)),
			"created_at": now.Add(-time.Duration(rng.Intn(365)) * 24 * time.Hour).Format(time.RFC3339),
		})
	}
	s.tables["sample_data"] = t
}
