package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// checkTableExistenceFor reports each source the table is missing from. A file
// that exists but failed to parse is not missing; its parse finding covers it.
func checkTableExistenceFor(env *checkEnv, table string) []Finding {
	src := env.sources
	var out []Finding
	missing := func(origin SourceOrigin, msg string) {
		out = append(out, newFinding(checkTableExistence, table, SeverityWarning, msg,
			map[string]string{"missing_from": string(origin)}))
	}

	if !src.Index.Has(table) {
		missing(OriginIndex, fmt.Sprintf("table %s is not listed in the table index", table))
	}
	if !src.ERGraph.Has(table) {
		missing(OriginERGraph, fmt.Sprintf("table %s is not declared in the ER graph", table))
	}
	if !src.hasDDLFile(table) {
		missing(OriginDDL, fmt.Sprintf("table %s has no DDL file", table))
	}
	if !src.hasDetailFile(table) {
		missing(OriginDetailDoc, fmt.Sprintf("table %s has no detail document", table))
	}

	if t, ok := src.ddl(table); ok && !strings.EqualFold(t.TableName, table) {
		out = append(out, newFinding(checkTableExistence, table, SeverityWarning,
			fmt.Sprintf("DDL file for %s creates table %s", table, t.TableName),
			map[string]string{"file": t.SourcePath, "declared_name": t.TableName}))
	}

	for _, dup := range src.Index.Duplicates {
		if strings.EqualFold(dup.Name, table) {
			out = append(out, newFinding(checkTableExistence, table, SeverityWarning,
				fmt.Sprintf("table %s is listed more than once in the table index (line %d)", table, dup.Line),
				map[string]string{"file": src.Index.Path, "line": fmt.Sprint(dup.Line)}))
		}
	}
	return out
}

// checkOrphanedFilesAll reports table files on disk whose table is not in the
// index. It looks at every file regardless of the target table subset.
func checkOrphanedFilesAll(env *checkEnv, _ []string) []Finding {
	src := env.sources
	var out []Finding
	report := func(files map[string]string, origin SourceOrigin) {
		stems := make([]string, 0, len(files))
		for stem := range files {
			stems = append(stems, stem)
		}
		sort.Strings(stems)
		for _, stem := range stems {
			if src.Index.Has(stem) {
				continue
			}
			path := files[stem]
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			out = append(out, newFinding(checkOrphanedFiles, name, SeverityWarning,
				fmt.Sprintf("%s %s has no entry in the table index", origin.label(), path),
				map[string]string{"file": path, "source": string(origin)}))
		}
	}
	report(src.DDLFiles, OriginDDL)
	report(src.DetailFiles, OriginDetailDoc)
	return out
}
