package main

import (
	"fmt"
	"regexp"
	"strings"
)

// pairedSchemas returns the DDL and detail-doc schemas of a table. When either
// is unavailable it returns an INFO finding explaining why the check was skipped.
func pairedSchemas(env *checkEnv, check, table string) (*TableSchema, *TableSchema, []Finding) {
	ddl, hasDDL := env.sources.ddl(table)
	doc, hasDoc := env.sources.detail(table)
	if hasDDL && hasDoc {
		return ddl, doc.Schema, nil
	}
	var why []string
	if !hasDDL {
		why = append(why, unavailableReason(env.sources, OriginDDL, table))
	}
	if !hasDoc {
		why = append(why, unavailableReason(env.sources, OriginDetailDoc, table))
	}
	return nil, nil, []Finding{newFinding(check, table, SeverityInfo,
		"skipped: "+strings.Join(why, ", "), map[string]string{"skipped": "true"})}
}

func unavailableReason(src *SourceSet, origin SourceOrigin, table string) string {
	if src.parseFailed(origin, table) {
		return origin.label() + " failed to parse"
	}
	return "no " + origin.label()
}

func originKey(o SourceOrigin) string {
	return strings.ToLower(string(o))
}

func checkColumnConsistencyFor(env *checkEnv, table string) []Finding {
	ddl, doc, skip := pairedSchemas(env, checkColumnConsistency, table)
	if skip != nil {
		return skip
	}
	return compareColumnSets(table, ddl, doc)
}

// compareColumnSets compares two descriptions of the same table column by
// column. It is symmetric: swapping left and right yields the same findings
// with the source labels swapped.
func compareColumnSets(table string, left, right *TableSchema) []Finding {
	var out []Finding
	for i := range left.Columns {
		lc := &left.Columns[i]
		rc, ok := right.Column(lc.Name)
		if !ok {
			out = append(out, onlyInOne(table, lc.Name, left.Origin, right.Origin))
			continue
		}
		if f, ok := compareColumn(table, lc, rc, left.Origin, right.Origin); ok {
			out = append(out, f)
		}
	}
	for i := range right.Columns {
		rc := &right.Columns[i]
		if !left.HasColumn(rc.Name) {
			out = append(out, onlyInOne(table, rc.Name, right.Origin, left.Origin))
		}
	}
	return out
}

func onlyInOne(table, column string, present, missing SourceOrigin) Finding {
	return newFinding(checkColumnConsistency, table, SeverityError,
		fmt.Sprintf("column %s exists in %s but not in %s", column, present.label(), missing.label()),
		map[string]string{
			"column":       column,
			"present_in":   string(present),
			"missing_from": string(missing),
		})
}

type columnMismatch struct {
	field       string
	left, right string
}

// compareColumn returns one ERROR citing every mismatching attribute, or false
// when the columns agree.
func compareColumn(table string, a, b *ColumnDefinition, ao, bo SourceOrigin) (Finding, bool) {
	var ms []columnMismatch
	typeDiffs := typeDifferences(a.Type, b.Type)
	if len(typeDiffs) > 0 {
		ms = append(ms, columnMismatch{"type", a.Type.String(), b.Type.String()})
	}
	if a.Nullable != b.Nullable {
		ms = append(ms, columnMismatch{"nullable", nullText(a.Nullable), nullText(b.Nullable)})
	}
	if !defaultsEqual(a.Default, b.Default) {
		ms = append(ms, columnMismatch{"default", defaultText(a.Default), defaultText(b.Default)})
	}
	if !contains(typeDiffs, "enum values") && !sameStrings(a.EnumValues, b.EnumValues) {
		ms = append(ms, columnMismatch{"enum values", strings.Join(a.EnumValues, ","), strings.Join(b.EnumValues, ",")})
	}
	if a.IsUnique != b.IsUnique {
		ms = append(ms, columnMismatch{"unique", fmt.Sprint(a.IsUnique), fmt.Sprint(b.IsUnique)})
	}
	if a.IsPrimaryKey != b.IsPrimaryKey {
		ms = append(ms, columnMismatch{"primary key", fmt.Sprint(a.IsPrimaryKey), fmt.Sprint(b.IsPrimaryKey)})
	}
	if len(ms) == 0 {
		return Finding{}, false
	}

	details := map[string]string{"column": a.Name}
	fields := make([]string, len(ms))
	parts := make([]string, len(ms))
	for i, m := range ms {
		fields[i] = m.field
		parts[i] = fmt.Sprintf("%s %s in %s vs %s in %s", m.field, m.left, ao.label(), m.right, bo.label())
		details[m.field+"."+originKey(ao)] = m.left
		details[m.field+"."+originKey(bo)] = m.right
	}
	details["mismatches"] = strings.Join(fields, ",")
	if len(typeDiffs) > 0 {
		details["type_components"] = strings.Join(typeDiffs, ",")
	}
	return newFinding(checkColumnConsistency, table, SeverityError,
		fmt.Sprintf("column %s differs: %s", a.Name, strings.Join(parts, "; ")), details), true
}

func checkDataTypeConsistencyFor(env *checkEnv, table string) []Finding {
	ddl, doc, skip := pairedSchemas(env, checkDataTypeConsistency, table)
	if skip != nil {
		return skip
	}
	return compareDataTypes(table, ddl, doc)
}

// compareDataTypes reports, per shared column, which type components differ.
// Nullability and defaults are ignored.
func compareDataTypes(table string, left, right *TableSchema) []Finding {
	var out []Finding
	for i := range left.Columns {
		lc := &left.Columns[i]
		rc, ok := right.Column(lc.Name)
		if !ok {
			continue
		}
		diffs := typeDifferences(lc.Type, rc.Type)
		if len(diffs) == 0 {
			continue
		}
		details := map[string]string{
			"column":     lc.Name,
			"components": strings.Join(diffs, ","),
		}
		details["type."+originKey(left.Origin)] = lc.Type.String()
		details["type."+originKey(right.Origin)] = rc.Type.String()
		out = append(out, newFinding(checkDataTypeConsistency, table, SeverityError,
			fmt.Sprintf("column %s: %s differ: %s in %s vs %s in %s",
				lc.Name, strings.Join(diffs, ", "),
				lc.Type.String(), left.Origin.label(), rc.Type.String(), right.Origin.label()),
			details))
	}
	return out
}

func nullText(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

func defaultText(v *string) string {
	if v == nil {
		return "(none)"
	}
	return *v
}

// defaultsEqual compares defaults loosely: quotes are ignored, TRUE/FALSE
// equal 1/0 and NOW() equals CURRENT_TIMESTAMP. Keywords and function calls
// fold case; literal text does not.
func defaultsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return canonicalDefault(*a) == canonicalDefault(*b)
}

var defaultKeywords = map[string]string{
	"true":                "1",
	"false":               "0",
	"now()":               "current_timestamp",
	"current_timestamp":   "current_timestamp",
	"current_timestamp()": "current_timestamp",
	"localtimestamp":      "current_timestamp",
	"localtimestamp()":    "current_timestamp",
	"current_date":        "current_date",
	"curdate()":           "current_date",
	"current_time":        "current_time",
	"curtime()":           "current_time",
}

var defaultFuncCallRe = regexp.MustCompile(`^\(?[A-Za-z_][A-Za-z0-9_]*\(.*\)\)?$`)

func canonicalDefault(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	lower := strings.ToLower(v)
	if k, ok := defaultKeywords[lower]; ok {
		return k
	}
	if defaultFuncCallRe.MatchString(v) {
		return lower
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
