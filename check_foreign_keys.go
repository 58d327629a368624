package main

import (
	"fmt"
	"strings"
)

// checkForeignKeyConsistencyFor compares the ER graph's and the detail doc's
// foreign keys against the DDL's.
func checkForeignKeyConsistencyFor(env *checkEnv, table string) []Finding {
	ddl, hasDDL := env.sources.ddl(table)
	if !hasDDL {
		return []Finding{newFinding(checkForeignKeyConsistency, table, SeverityInfo,
			"skipped: "+unavailableReason(env.sources, OriginDDL, table), map[string]string{"skipped": "true"})}
	}

	var out []Finding
	compared := false
	if er, ok := env.sources.ERGraph.Table(table); ok {
		compared = true
		out = append(out, compareForeignKeys(table, er.ForeignKeys, OriginERGraph, ddl.ForeignKeys, OriginDDL)...)
	}
	if doc, ok := env.sources.detail(table); ok {
		compared = true
		out = append(out, compareForeignKeys(table, doc.Schema.ForeignKeys, OriginDetailDoc, ddl.ForeignKeys, OriginDDL)...)
	}
	if !compared {
		return []Finding{newFinding(checkForeignKeyConsistency, table, SeverityInfo,
			"skipped: no ER graph entry and "+unavailableReason(env.sources, OriginDetailDoc, table),
			map[string]string{"skipped": "true"})}
	}
	return out
}

type fkPair struct {
	a, b *ForeignKeyDefinition
}

// matchForeignKeys pairs keys by name first, then unnamed or unmatched keys by
// their column list. Unpaired keys are returned per side in input order.
func matchForeignKeys(as, bs []ForeignKeyDefinition) (pairs []fkPair, onlyA, onlyB []*ForeignKeyDefinition) {
	usedA := make([]bool, len(as))
	usedB := make([]bool, len(bs))

	for i := range as {
		if as[i].Name == "" {
			continue
		}
		for j := range bs {
			if !usedB[j] && strings.EqualFold(as[i].Name, bs[j].Name) {
				pairs = append(pairs, fkPair{&as[i], &bs[j]})
				usedA[i], usedB[j] = true, true
				break
			}
		}
	}
	for i := range as {
		if usedA[i] {
			continue
		}
		for j := range bs {
			if usedB[j] {
				continue
			}
			if as[i].Name != "" && bs[j].Name != "" {
				continue
			}
			if sameFoldedStrings(as[i].Columns, bs[j].Columns) {
				pairs = append(pairs, fkPair{&as[i], &bs[j]})
				usedA[i], usedB[j] = true, true
				break
			}
		}
	}
	for i := range as {
		if !usedA[i] {
			onlyA = append(onlyA, &as[i])
		}
	}
	for j := range bs {
		if !usedB[j] {
			onlyB = append(onlyB, &bs[j])
		}
	}
	return pairs, onlyA, onlyB
}

func compareForeignKeys(table string, as []ForeignKeyDefinition, ao SourceOrigin, bs []ForeignKeyDefinition, bo SourceOrigin) []Finding {
	pairs, onlyA, onlyB := matchForeignKeys(as, bs)

	var out []Finding
	for _, p := range pairs {
		if f, ok := compareForeignKey(table, p.a, ao, p.b, bo); ok {
			out = append(out, f)
		}
	}
	for _, fk := range onlyA {
		out = append(out, fkOnlyIn(table, fk, ao, bo))
	}
	for _, fk := range onlyB {
		out = append(out, fkOnlyIn(table, fk, bo, ao))
	}
	return out
}

func fkLabel(fk *ForeignKeyDefinition) string {
	if fk.Name != "" {
		return fk.Name
	}
	return "(" + strings.Join(fk.Columns, ", ") + ")"
}

func fkOnlyIn(table string, fk *ForeignKeyDefinition, present, missing SourceOrigin) Finding {
	return newFinding(checkForeignKeyConsistency, table, SeverityWarning,
		fmt.Sprintf("foreign key %s -> %s(%s) exists in %s but not in %s",
			fkLabel(fk), fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", "), present.label(), missing.label()),
		map[string]string{
			"foreign_key":        fk.identity(),
			"name":               fk.Name,
			"columns":            strings.Join(fk.Columns, ","),
			"referenced_table":   fk.ReferencedTable,
			"referenced_columns": strings.Join(fk.ReferencedColumns, ","),
			"on_update":          fk.OnUpdate,
			"on_delete":          fk.OnDelete,
			"present_in":         string(present),
			"missing_from":       string(missing),
		})
}

// compareForeignKey returns one ERROR naming every differing attribute.
func compareForeignKey(table string, a *ForeignKeyDefinition, ao SourceOrigin, b *ForeignKeyDefinition, bo SourceOrigin) (Finding, bool) {
	var ms []columnMismatch
	if !sameFoldedStrings(a.Columns, b.Columns) {
		ms = append(ms, columnMismatch{"columns", strings.Join(a.Columns, ","), strings.Join(b.Columns, ",")})
	}
	if !strings.EqualFold(a.ReferencedTable, b.ReferencedTable) {
		ms = append(ms, columnMismatch{"referenced_table", a.ReferencedTable, b.ReferencedTable})
	}
	if !sameFoldedStrings(a.ReferencedColumns, b.ReferencedColumns) {
		ms = append(ms, columnMismatch{"referenced_columns", strings.Join(a.ReferencedColumns, ","), strings.Join(b.ReferencedColumns, ",")})
	}
	if a.OnUpdate != b.OnUpdate {
		ms = append(ms, columnMismatch{"on_update", a.OnUpdate, b.OnUpdate})
	}
	if a.OnDelete != b.OnDelete {
		ms = append(ms, columnMismatch{"on_delete", a.OnDelete, b.OnDelete})
	}
	if len(ms) == 0 {
		return Finding{}, false
	}

	name := a.Name
	if name == "" {
		name = b.Name
	}
	details := map[string]string{
		"foreign_key":        a.identity(),
		"target_foreign_key": b.identity(),
		"name":               name,
		"columns":            strings.Join(b.Columns, ","),
		"source":             string(ao),
		"target":             string(bo),
	}
	fields := make([]string, len(ms))
	parts := make([]string, len(ms))
	for i, m := range ms {
		fields[i] = m.field
		parts[i] = fmt.Sprintf("%s %s in %s vs %s in %s", strings.ReplaceAll(m.field, "_", " "), m.left, ao.label(), m.right, bo.label())
		details[m.field+"."+originKey(ao)] = m.left
		details[m.field+"."+originKey(bo)] = m.right
	}
	details["mismatches"] = strings.Join(fields, ",")
	return newFinding(checkForeignKeyConsistency, table, SeverityError,
		fmt.Sprintf("foreign key %s differs: %s", fkLabel(a), strings.Join(parts, "; ")), details), true
}
