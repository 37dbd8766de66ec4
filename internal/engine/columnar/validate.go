package columnar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bobmcallan/bqlite/internal/models"
)

var (
	fromJoinRE   = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	insertIntoRE = regexp.MustCompile(`(?i)\bINSERT\s+INTO\s+([A-Za-z_][A-Za-z0-9_]*)`)
	updateRE     = regexp.MustCompile(`(?i)\bUPDATE\s+([A-Za-z_][A-Za-z0-9_]*)`)
	limitRE      = regexp.MustCompile(`(?i)\bLIMIT\b`)
	whereRE      = regexp.MustCompile(`(?i)\bWHERE\b`)
	joinRE       = regexp.MustCompile(`(?i)\bJOIN\b`)

	windowFuncTokens = []string{"ROW_NUMBER", "RANK", "DENSE_RANK", "LAG", "LEAD", "SUM(", "COUNT(", "AVG(", "MIN(", "MAX("}
)

// perRowBytesHint is the default bytes-per-row estimate used when an
// engine adapter does not override it — grounded on duckdb_runner.py's
// "assume ~150 bytes per row average" (the 100-byte figure there is
// only its own except-path fallback; 150 is the primary estimate).
const perRowBytesHint = 150

// StatementKind classifies sql by its leading keyword, exactly mirroring
// duckdb_runner.py's _get_query_type.
func StatementKind(sql string) string {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(upper, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(upper, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(upper, "DELETE"):
		return "DELETE"
	case strings.HasPrefix(upper, "CREATE"):
		return "CREATE"
	case strings.HasPrefix(upper, "DROP"):
		return "DROP"
	case strings.HasPrefix(upper, "ALTER"):
		return "ALTER"
	case strings.HasPrefix(upper, "WITH"):
		return "WITH"
	default:
		return "OTHER"
	}
}

// ExtractTableNames pulls referenced table names from FROM/JOIN/
// INSERT INTO/UPDATE clauses, mirroring duckdb_runner.py's
// _extract_table_names.
func ExtractTableNames(sql string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(matches [][]string) {
		for _, m := range matches {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	add(fromJoinRE.FindAllStringSubmatch(sql, -1))
	add(insertIntoRE.FindAllStringSubmatch(sql, -1))
	add(updateRE.FindAllStringSubmatch(sql, -1))
	return out
}

// EstimateExecutionMS mirrors duckdb_runner.py's _estimate_execution_time
// formula exactly: base 10ms + rows*0.001 + joins*50 + (GROUP BY: rows*
// 0.01) + (ORDER BY: rows*0.005) + (window func present: rows*0.02) +
// subquery_count*100, floored at 10ms.
func EstimateExecutionMS(sql string, estimatedRows int64) float64 {
	base := 10.0
	if estimatedRows > 0 {
		base += float64(estimatedRows) * 0.001
	}
	upper := strings.ToUpper(sql)

	joins := len(joinRE.FindAllString(upper, -1))
	base += float64(joins) * 50

	if strings.Contains(upper, "GROUP BY") {
		base += float64(estimatedRows) * 0.01
	}
	if strings.Contains(upper, "ORDER BY") {
		base += float64(estimatedRows) * 0.005
	}
	hasWindowFunc := false
	for _, tok := range windowFuncTokens {
		if strings.Contains(upper, tok) {
			hasWindowFunc = true
			break
		}
	}
	if hasWindowFunc && strings.Contains(upper, "OVER") {
		base += float64(estimatedRows) * 0.02
	}

	subqueries := strings.Count(upper, "(SELECT")
	if subqueries > 0 {
		base += float64(subqueries) * 100
	}

	if base < 10 {
		return 10
	}
	return base
}

// FormatSuggestion renders "This query will process N {B|KB|MB|GB} when run."
// followed by " (≈R rows scanned)" when R > 0, matching duckdb_runner.py's
// unit steps.
func FormatSuggestion(estimatedBytes, estimatedRows int64) string {
	var sizePart string
	switch {
	case estimatedBytes == 0:
		sizePart = "0 B"
	case estimatedBytes < 1024:
		sizePart = fmt.Sprintf("%d B", estimatedBytes)
	case estimatedBytes < 1024*1024:
		sizePart = fmt.Sprintf("%.1f KB", float64(estimatedBytes)/1024)
	case estimatedBytes < 1024*1024*1024:
		sizePart = fmt.Sprintf("%.1f MB", float64(estimatedBytes)/(1024*1024))
	default:
		sizePart = fmt.Sprintf("%.1f GB", float64(estimatedBytes)/(1024*1024*1024))
	}

	suggestion := fmt.Sprintf("This query will process %s when run.", sizePart)
	if estimatedRows > 0 {
		suggestion += fmt.Sprintf(" (≈%d rows scanned)", estimatedRows)
	}
	return suggestion
}

// Validate never executes sql; it probes syntactic validity via Explain
// and estimates cost the same way duckdb_runner.py's validate_query does.
func (s *Store) Validate(sql string) *models.ValidationReport {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return &models.ValidationReport{
			Valid:      false,
			Error:      "empty query",
			Suggestion: "Please enter a SQL query.",
		}
	}

	kind := StatementKind(sql)
	tables := ExtractTableNames(sql)

	report := &models.ValidationReport{
		StatementKind: kind,
		Tables:        tables,
	}

	if _, err := s.Explain(sql); err != nil {
		report.Valid = false
		report.Error = err.Error()
		report.Suggestion = "Query validation failed. Please check the syntax and try again."
		return report
	}
	report.Valid = true

	var estimatedRows, estimatedBytes int64
	for _, t := range tables {
		if rc, ok := s.RowCount(t); ok {
			estimatedRows += rc
			estimatedBytes += rc * perRowBytesHint
		} else {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Could not estimate size for table: %s", t))
		}
	}

	report.EstimatedRowsScanned = estimatedRows
	report.EstimatedBytes = estimatedBytes
	report.EstimatedExecutionMS = EstimateExecutionMS(sql, estimatedRows)

	if kind == "SELECT" {
		upper := strings.ToUpper(sql)
		if strings.Contains(upper, "SELECT *") {
			report.Warnings = append(report.Warnings, "Consider specifying column names instead of SELECT * for better performance")
		}
		if !limitRE.MatchString(sql) && estimatedRows > 10000 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Query may return %d rows. Consider adding a LIMIT clause", estimatedRows))
		}
		if !whereRE.MatchString(sql) && estimatedRows > 1000 {
			report.Warnings = append(report.Warnings, "Query scans entire table. Consider adding WHERE conditions to filter results")
		}
	}

	report.Suggestion = FormatSuggestion(estimatedBytes, estimatedRows)
	return report
}
