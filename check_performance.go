package main

import (
	"fmt"
	"strings"
)

func checkPerformanceFor(env *checkEnv, table string) []Finding {
	t, ok := schemaFor(env.sources, table)
	if !ok {
		return []Finding{newFinding(checkPerformanceImpact, table, SeverityInfo,
			"skipped: no DDL or detail doc", map[string]string{"skipped": "true"})}
	}
	return performanceFindings(table, t, estimatedRows(env, table), env.cfg.Performance)
}

// estimatedRows prefers the configured estimate over the detail doc's.
func estimatedRows(env *checkEnv, table string) int64 {
	for name, n := range env.cfg.Performance.EstimatedRows {
		if strings.EqualFold(name, table) {
			return n
		}
	}
	if d, ok := env.sources.detail(table); ok {
		return d.Schema.EstimatedRows
	}
	return 0
}

func performanceFindings(table string, t *TableSchema, rows int64, pc PerformanceConfig) []Finding {
	var out []Finding
	for _, fk := range t.ForeignKeys {
		if leadingIndexed(t, fk.Columns) {
			continue
		}
		msg := fmt.Sprintf("foreign key %s columns (%s) have no covering index", fkLabel(&fk), strings.Join(fk.Columns, ", "))
		details := map[string]string{"foreign_key": fk.identity(), "columns": strings.Join(fk.Columns, ",")}
		if gaps := lookupIndexGaps(t, fk.Columns); len(gaps) > 0 {
			msg += " (" + strings.Join(gaps, "; ") + ")"
			details["unusable_indexes"] = strings.Join(gaps, "; ")
		}
		out = append(out, newFinding(checkPerformanceImpact, table, SeverityWarning, msg, details))
	}

	if pc.RowCountThreshold > 0 && rows > pc.RowCountThreshold {
		for _, name := range pc.FrequentFilterColumns {
			col, ok := t.Column(name)
			if !ok || leadingIndexed(t, []string{col.Name}) {
				continue
			}
			out = append(out, newFinding(checkPerformanceImpact, table, SeverityWarning,
				fmt.Sprintf("table has an estimated %d rows but frequently filtered column %s is not indexed", rows, col.Name),
				map[string]string{
					"columns":        col.Name,
					"estimated_rows": fmt.Sprint(rows),
					"threshold":      fmt.Sprint(pc.RowCountThreshold),
				}))
		}
	}
	return out
}
