package main

import (
	"fmt"
	"sort"
	"strings"
)

// constraintItem flattens primary keys, checks and indexes into one comparable shape.
type constraintItem struct {
	kind       ConstraintKind
	name       string
	columns    []string
	expression string
}

func (c constraintItem) label() string {
	var b strings.Builder
	b.WriteString(string(c.kind))
	if c.name != "" {
		b.WriteString(" " + c.name)
	}
	if c.kind == ConstraintCheck {
		b.WriteString(" (" + c.expression + ")")
	} else {
		b.WriteString(" (" + strings.Join(c.columns, ", ") + ")")
	}
	return b.String()
}

// shapeKey identifies an item without its name: kind plus column set, or kind
// plus expression for checks.
func (c constraintItem) shapeKey() string {
	if c.kind == ConstraintCheck {
		return string(c.kind) + ":" + strings.ToLower(c.expression)
	}
	cols := make([]string, len(c.columns))
	for i, col := range c.columns {
		cols[i] = strings.ToLower(col)
	}
	sort.Strings(cols)
	return string(c.kind) + ":" + strings.Join(cols, ",")
}

// constraintItems lists a table's constraints. Primary keys are matched by
// kind alone, so their name is dropped. Column-level UNIQUE flags without a
// backing index become unnamed UNIQUE items.
func constraintItems(t *TableSchema) []constraintItem {
	var items []constraintItem
	covered := make(map[string]bool)
	for _, c := range t.Constraints {
		switch c.Kind {
		case ConstraintPrimaryKey:
			items = append(items, constraintItem{kind: ConstraintPrimaryKey, columns: c.Columns})
		case ConstraintCheck:
			items = append(items, constraintItem{kind: ConstraintCheck, name: c.Name, expression: c.Expression})
		}
	}
	for _, idx := range t.Indexes {
		kind := ConstraintIndex
		if idx.Unique {
			kind = ConstraintUnique
			if len(idx.Columns) == 1 {
				covered[strings.ToLower(idx.Columns[0])] = true
			}
		}
		items = append(items, constraintItem{kind: kind, name: idx.Name, columns: idx.Columns})
	}
	for _, col := range t.Columns {
		if col.IsUnique && !covered[strings.ToLower(col.Name)] {
			items = append(items, constraintItem{kind: ConstraintUnique, columns: []string{col.Name}})
		}
	}
	return items
}

func checkConstraintConsistencyFor(env *checkEnv, table string) []Finding {
	ddl, doc, skip := pairedSchemas(env, checkConstraintConsistency, table)
	if skip != nil {
		return skip
	}

	var out []Finding
	for _, t := range []*TableSchema{ddl, doc} {
		for _, problem := range t.Validate() {
			out = append(out, newFinding(checkConstraintConsistency, table, SeverityError,
				fmt.Sprintf("%s: %s", t.Origin.label(), problem),
				map[string]string{"source": string(t.Origin), "file": t.SourcePath}))
		}
	}
	return append(out, compareConstraints(table, ddl, doc)...)
}

// compareConstraints pairs items by name, then by shape. Unpaired items are
// WARNINGs; paired items with different definitions are ERRORs.
func compareConstraints(table string, left, right *TableSchema) []Finding {
	as, bs := constraintItems(left), constraintItems(right)
	usedA := make([]bool, len(as))
	usedB := make([]bool, len(bs))

	var out []Finding
	pair := func(i, j int) {
		usedA[i], usedB[j] = true, true
		if f, ok := compareConstraintItem(table, as[i], left.Origin, bs[j], right.Origin); ok {
			out = append(out, f)
		}
	}

	for i := range as {
		if as[i].name == "" {
			continue
		}
		for j := range bs {
			if !usedB[j] && strings.EqualFold(as[i].name, bs[j].name) {
				pair(i, j)
				break
			}
		}
	}
	for i := range as {
		if usedA[i] {
			continue
		}
		for j := range bs {
			if !usedB[j] && as[i].shapeKey() == bs[j].shapeKey() {
				pair(i, j)
				break
			}
		}
	}

	missing := func(c constraintItem, present, absent SourceOrigin) Finding {
		return newFinding(checkConstraintConsistency, table, SeverityWarning,
			fmt.Sprintf("%s exists in %s but not in %s", c.label(), present.label(), absent.label()),
			map[string]string{
				"kind":         string(c.kind),
				"name":         c.name,
				"columns":      strings.Join(c.columns, ","),
				"expression":   c.expression,
				"present_in":   string(present),
				"missing_from": string(absent),
			})
	}
	for i, c := range as {
		if !usedA[i] {
			out = append(out, missing(c, left.Origin, right.Origin))
		}
	}
	for j, c := range bs {
		if !usedB[j] {
			out = append(out, missing(c, right.Origin, left.Origin))
		}
	}
	return out
}

func compareConstraintItem(table string, a constraintItem, ao SourceOrigin, b constraintItem, bo SourceOrigin) (Finding, bool) {
	var ms []columnMismatch
	if a.kind != b.kind {
		ms = append(ms, columnMismatch{"kind", string(a.kind), string(b.kind)})
	}
	if !sameFoldedStrings(a.columns, b.columns) {
		ms = append(ms, columnMismatch{"columns", strings.Join(a.columns, ","), strings.Join(b.columns, ",")})
	}
	if !strings.EqualFold(a.expression, b.expression) {
		ms = append(ms, columnMismatch{"expression", a.expression, b.expression})
	}
	if a.name != "" && b.name != "" && !strings.EqualFold(a.name, b.name) {
		ms = append(ms, columnMismatch{"name", a.name, b.name})
	}
	if len(ms) == 0 {
		return Finding{}, false
	}

	details := map[string]string{"kind": string(b.kind), "name": firstNonEmpty(b.name, a.name), "columns": strings.Join(b.columns, ",")}
	fields := make([]string, len(ms))
	parts := make([]string, len(ms))
	for i, m := range ms {
		fields[i] = m.field
		parts[i] = fmt.Sprintf("%s %s in %s vs %s in %s", m.field, m.left, ao.label(), m.right, bo.label())
		details[m.field+"."+originKey(ao)] = m.left
		details[m.field+"."+originKey(bo)] = m.right
	}
	details["mismatches"] = strings.Join(fields, ",")
	return newFinding(checkConstraintConsistency, table, SeverityError,
		fmt.Sprintf("%s differs: %s", a.label(), strings.Join(parts, "; ")), details), true
}
