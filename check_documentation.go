package main

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func checkYAMLFormatFor(env *checkEnv, table string) []Finding {
	doc, ok := env.sources.detail(table)
	if !ok {
		return []Finding{newFinding(checkYAMLFormatConsistency, table, SeverityInfo,
			"skipped: "+unavailableReason(env.sources, OriginDetailDoc, table), map[string]string{"skipped": "true"})}
	}
	return detailFormatFindings(table, doc, env.cfg.Thresholds)
}

// detailFormatFindings checks a detail document's structure and content volume.
func detailFormatFindings(table string, doc *DetailDocument, th ThresholdConfig) []Finding {
	file := doc.Schema.SourcePath
	var out []Finding
	warn := func(msg string, details map[string]string) {
		details["file"] = file
		out = append(out, newFinding(checkYAMLFormatConsistency, table, SeverityWarning, msg, details))
	}

	for _, section := range requiredDetailSections {
		if !doc.hasSection(section) {
			out = append(out, newFinding(checkYAMLFormatConsistency, table, SeverityError,
				fmt.Sprintf("detail doc is missing required section %s", section),
				map[string]string{"section": section, "file": file}))
		}
	}

	if doc.hasSection("overview") {
		if n := utf8.RuneCountInString(doc.Overview); n < th.OverviewMinLength {
			warn(fmt.Sprintf("overview has %d characters, minimum is %d", n, th.OverviewMinLength),
				map[string]string{"section": "overview", "actual": fmt.Sprint(n), "minimum": fmt.Sprint(th.OverviewMinLength)})
		}
	}
	if doc.hasSection("notes") && doc.NotesCount < th.NotesMinCount {
		warn(fmt.Sprintf("notes has %d entries, minimum is %d", doc.NotesCount, th.NotesMinCount),
			map[string]string{"section": "notes", "actual": fmt.Sprint(doc.NotesCount), "minimum": fmt.Sprint(th.NotesMinCount)})
	}
	if doc.hasSection("rules") && doc.RulesCount < th.RulesMinCount {
		warn(fmt.Sprintf("rules has %d entries, minimum is %d", doc.RulesCount, th.RulesMinCount),
			map[string]string{"section": "rules", "actual": fmt.Sprint(doc.RulesCount), "minimum": fmt.Sprint(th.RulesMinCount)})
	}

	for i, rev := range doc.Revisions {
		if missing := rev.missingFields(); len(missing) > 0 {
			warn(fmt.Sprintf("revision_history[%d] is missing %s", i, strings.Join(missing, ", ")),
				map[string]string{"section": "revision_history", "entry": fmt.Sprint(i), "missing": strings.Join(missing, ",")})
		}
	}

	if !doc.ColumnsDeclared {
		warn("detail doc declares no columns", map[string]string{"section": "columns"})
	}

	if !strings.EqualFold(doc.Schema.TableName, doc.FileStem) {
		warn(fmt.Sprintf("table_name %s does not match file name %s", doc.Schema.TableName, doc.FileStem),
			map[string]string{"declared_name": doc.Schema.TableName})
	}
	return out
}

func checkRequirementTraceFor(env *checkEnv, table string) []Finding {
	doc, ok := env.sources.detail(table)
	if !ok {
		return []Finding{newFinding(checkRequirementTrace, table, SeverityInfo,
			"skipped: "+unavailableReason(env.sources, OriginDetailDoc, table), map[string]string{"skipped": "true"})}
	}
	return traceabilityFindings(table, doc.Schema, env.cfg)
}

// traceabilityFindings reports every table or column whose requirement ID is
// missing or malformed, then one SUCCESS carrying the coverage counts.
func traceabilityFindings(table string, t *TableSchema, cfg *CheckConfig) []Finding {
	re := cfg.requirementIDPattern()
	var out []Finding
	valid, total := 0, 0

	check := func(element, id string, details map[string]string) {
		total++
		details["element"] = element
		switch {
		case strings.TrimSpace(id) == "":
			out = append(out, newFinding(checkRequirementTrace, table, SeverityError,
				fmt.Sprintf("%s has no requirement_id", element), details))
		case !re.MatchString(id):
			details["requirement_id"] = id
			details["pattern"] = re.String()
			out = append(out, newFinding(checkRequirementTrace, table, SeverityError,
				fmt.Sprintf("%s has malformed requirement_id %q", element, id), details))
		default:
			valid++
		}
	}

	check("table "+table, t.RequirementID, map[string]string{})
	for _, col := range t.Columns {
		check("column "+col.Name, col.RequirementID, map[string]string{"column": col.Name})
	}

	if valid > 0 {
		out = append(out, newFinding(checkRequirementTrace, table, SeveritySuccess,
			fmt.Sprintf("%d of %d elements carry a valid requirement_id", valid, total),
			map[string]string{"valid": fmt.Sprint(valid), "total": fmt.Sprint(total)}))
	}
	return out
}
