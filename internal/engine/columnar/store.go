// Package columnar is the shared core behind both ExecutionEngine
// adapters (internal/engine/local, internal/engine/remote). It is a
// small, self-contained in-memory table engine — not a real DuckDB or
// ClickHouse binding, consistent with spec.md §1 treating engine
// internals as out of scope and consumed only via the ExecutionEngine
// interface. Its EXPLAIN-style validation and cost heuristics are
// grounded line-for-line on
// original_source/backend/runners/duckdb_runner.py.
package columnar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/bobmcallan/bqlite/internal/models"
)

// Column describes one column of a Table.
type Column struct {
	Name string
	Type string
}

// Table is one in-memory table: an ordered column list plus row data.
type Table struct {
	Name    string
	Columns []Column
	Rows    []models.Row
}

// Store is a mutex-guarded collection of Tables. Writers serialize on
// the store; readers may run concurrently — matching spec.md §5's
// requirement that engine adapters be safe for concurrent Execute calls.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*Table)}
}

var createTableRE = regexp.MustCompile(`(?is)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)\)\s*;?\s*$`)

// CreateTable executes a CREATE TABLE statement against the store. The
// column list is taken verbatim from the parenthesized column defs;
// type tokens are stored as-is (the translator already rendered them in
// this engine's native spelling).
func (s *Store) CreateTable(ddl string) error {
	m := createTableRE.FindStringSubmatch(ddl)
	if m == nil {
		return fmt.Errorf("columnar: cannot parse CREATE TABLE statement")
	}
	name := m[1]
	cols, err := parseColumnDefs(m[2])
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[name]; exists {
		return nil // IF NOT EXISTS semantics: creating an existing table is a no-op
	}
	s.tables[name] = &Table{Name: name, Columns: cols}
	return nil
}

// parseColumnDefs splits a top-level comma list of "name type ..." defs,
// respecting nested parens (e.g. DECIMAL(10,2)) so commas inside a type
// spec don't split the column list incorrectly.
func parseColumnDefs(body string) ([]Column, error) {
	var cols []Column
	depth := 0
	start := 0
	emit := func(part string) error {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil
		}
		fields := strings.Fields(part)
		if len(fields) < 2 {
			return fmt.Errorf("columnar: malformed column definition %q", part)
		}
		cols = append(cols, Column{Name: fields[0], Type: strings.Join(fields[1:], " ")})
		return nil
	}
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if err := emit(body[start:i]); err != nil {
					return nil, err
				}
				start = i + 1
			}
		}
	}
	if err := emit(body[start:]); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("columnar: CREATE TABLE with no columns")
	}
	return cols, nil
}

var insertRE = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)\s*VALUES\s*(.*?)\s*;?\s*$`)

// Insert executes a batched textual INSERT statement of the exact shape
// produced by internal/ingest: INSERT INTO t (c1,c2) VALUES (v1,v2),(v3,v4).
// Returns the number of rows inserted.
func (s *Store) Insert(sql string) (int64, error) {
	m := insertRE.FindStringSubmatch(sql)
	if m == nil {
		return 0, fmt.Errorf("columnar: cannot parse INSERT statement")
	}
	tableName := m[1]
	colNames := splitTopLevel(m[2])
	for i := range colNames {
		colNames[i] = strings.TrimSpace(colNames[i])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableName]
	if !ok {
		return 0, fmt.Errorf("columnar: table %q does not exist", tableName)
	}

	rowTuples, err := splitValueTuples(m[3])
	if err != nil {
		return 0, err
	}

	var inserted int64
	for _, tuple := range rowTuples {
		vals := splitTopLevel(tuple)
		if len(vals) != len(colNames) {
			return inserted, fmt.Errorf("columnar: value count %d does not match column count %d", len(vals), len(colNames))
		}
		row := make(models.Row, len(colNames))
		for i, col := range colNames {
			row[col] = parseSQLLiteral(strings.TrimSpace(vals[i]))
		}
		t.Rows = append(t.Rows, row)
		inserted++
	}
	return inserted, nil
}

// RowCount returns the current row count of a table.
func (s *Store) RowCount(table string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[table]
	if !ok {
		return 0, false
	}
	return int64(len(t.Rows)), true
}

// Describe returns every table's name, row count, and columns.
func (s *Store) Describe(engineName string) *models.SchemaInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := &models.SchemaInfo{EngineName: engineName}
	for _, t := range s.tables {
		ti := models.TableInfo{Name: t.Name, RowCount: int64(len(t.Rows))}
		for _, c := range t.Columns {
			ti.Columns = append(ti.Columns, models.ColumnInfo{Name: c.Name, Type: c.Type})
		}
		info.Tables = append(info.Tables, ti)
	}
	return info
}

// splitTopLevel splits s on top-level commas (depth-0 w.r.t. parens and
// quotes).
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	inStr := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inStr:
			inStr = true
		case c == '\'' && inStr:
			// handle doubled single-quote escape: '' stays inside the string
			if i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			inStr = false
		case !inStr && c == '(':
			depth++
		case !inStr && c == ')':
			depth--
		case !inStr && c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// splitValueTuples splits "(a,b),(c,d)" into ["a,b", "c,d"].
func splitValueTuples(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	var tuples []string
	depth := 0
	inStr := false
	start := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inStr:
			inStr = true
		case c == '\'' && inStr:
			if i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			inStr = false
		case !inStr && c == '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case !inStr && c == ')':
			depth--
			if depth == 0 {
				tuples = append(tuples, s[start:i])
				start = -1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("columnar: unbalanced parens in VALUES clause")
	}
	return tuples, nil
}

// parseSQLLiteral converts one textual SQL literal (as produced by
// internal/ingest's escaping rule) back into a Go value: NULL -> nil,
// TRUE/FALSE -> bool, quoted -> unescaped string, otherwise a number if
// parseable, else the raw token.
func parseSQLLiteral(tok string) any {
	upper := strings.ToUpper(tok)
	switch upper {
	case "NULL":
		return nil
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	if len(tok) >= 2 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
		inner := tok[1 : len(tok)-1]
		return strings.ReplaceAll(inner, "''", "'")
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	return tok
}
