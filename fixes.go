package main

import (
	"fmt"
	"sort"
	"strings"
)

// SuggestedAction is the machine-readable part of a fix. SQL is set when the
// fix is a schema change; the apply step is always a separate, human-gated one.
type SuggestedAction struct {
	Kind   string            `json:"kind"`
	Source SourceOrigin      `json:"source,omitempty"`
	File   string            `json:"file,omitempty"`
	SQL    string            `json:"sql,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// FixSuggestion is one remediation derived from an ERROR or WARNING finding.
type FixSuggestion struct {
	TableName       string          `json:"table_name,omitempty"`
	Description     string          `json:"description"`
	Critical        bool            `json:"critical"`
	BackupRequired  bool            `json:"backup_required"`
	CheckName       string          `json:"check_name"`
	SuggestedAction SuggestedAction `json:"suggested_action"`

	severity Severity
}

// Suggested action kinds.
const (
	actionEditIndex     = "edit_table_index"
	actionEditERGraph   = "edit_er_graph"
	actionCreateDDL     = "create_ddl_file"
	actionCreateDetail  = "create_detail_doc"
	actionEditDetail    = "edit_detail_doc"
	actionAlterTable    = "alter_table"
	actionFixSyntax     = "fix_source_syntax"
	actionReviewFinding = "review"
)

// fixGenerator turns the findings it claims into suggestions; unclaimed
// findings fall through to the next generator.
type fixGenerator func(f Finding) ([]FixSuggestion, bool)

// generateFixes derives fix suggestions from ERROR and WARNING findings. The
// table-list and foreign-key generators run first; the general generator
// handles the rest. Results are deduplicated by (table, description) keeping
// the first, then stably ordered critical, backup-required, other.
func generateFixes(findings []Finding, src *SourceSet, cfg *CheckConfig) []FixSuggestion {
	fg := &fixContext{src: src, cfg: cfg}
	generators := []fixGenerator{fg.tableListFixes, fg.foreignKeyFixes}

	var actionable []Finding
	for _, f := range findings {
		if f.Severity >= SeverityWarning {
			actionable = append(actionable, f)
		}
	}

	var out []FixSuggestion
	claimed := make([]bool, len(actionable))
	for _, gen := range generators {
		for i, f := range actionable {
			if claimed[i] {
				continue
			}
			if fixes, ok := gen(f); ok {
				claimed[i] = true
				out = append(out, fixes...)
			}
		}
	}
	for i, f := range actionable {
		if !claimed[i] {
			out = append(out, fg.generalFixes(f)...)
		}
	}

	out = dedupeFixes(out)
	critical := stringSet(cfg.Fixes.CriticalChecks)
	backup := stringSet(cfg.Fixes.BackupChecks)
	for i := range out {
		fx := &out[i]
		if critical[fx.CheckName] && fx.severity == SeverityError {
			fx.Critical = true
		}
		if backup[fx.CheckName] && fx.SuggestedAction.SQL != "" {
			fx.BackupRequired = true
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fixTier(out[i]) < fixTier(out[j])
	})
	return out
}

func fixTier(f FixSuggestion) int {
	switch {
	case f.Critical:
		return 0
	case f.BackupRequired:
		return 1
	default:
		return 2
	}
}

func dedupeFixes(in []FixSuggestion) []FixSuggestion {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, f := range in {
		key := f.TableName + "\x00" + f.Description
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func stringSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, s := range list {
		m[s] = true
	}
	return m
}

type fixContext struct {
	src *SourceSet
	cfg *CheckConfig
}

func fix(f Finding, desc string, action SuggestedAction) FixSuggestion {
	return FixSuggestion{TableName: f.TableName, Description: desc, CheckName: f.CheckName, SuggestedAction: action, severity: f.Severity}
}

// tableListFixes handles table presence: index, ER graph and table files.
func (fc *fixContext) tableListFixes(f Finding) ([]FixSuggestion, bool) {
	switch f.CheckName {
	case checkTableExistence:
		missing := SourceOrigin(f.Details["missing_from"])
		switch missing {
		case OriginIndex:
			return []FixSuggestion{fix(f, fmt.Sprintf("add %s to the table index", f.TableName),
				SuggestedAction{Kind: actionEditIndex, Source: OriginIndex, File: fc.src.Index.Path})}, true
		case OriginERGraph:
			return []FixSuggestion{fix(f, fmt.Sprintf("declare %s in the ER graph", f.TableName),
				SuggestedAction{Kind: actionEditERGraph, Source: OriginERGraph, File: fc.src.ERGraph.Path})}, true
		case OriginDDL:
			return []FixSuggestion{fix(f, fmt.Sprintf("create a DDL file for %s", f.TableName),
				SuggestedAction{Kind: actionCreateDDL, Source: OriginDDL, File: fc.cfg.resolvePath(fc.cfg.DDLDir)})}, true
		case OriginDetailDoc:
			return []FixSuggestion{fix(f, fmt.Sprintf("create a detail document for %s", f.TableName),
				SuggestedAction{Kind: actionCreateDetail, Source: OriginDetailDoc, File: fc.cfg.resolvePath(fc.cfg.DetailsDir)})}, true
		}
		if name := f.Details["declared_name"]; name != "" {
			return []FixSuggestion{fix(f, fmt.Sprintf("rename the DDL file for %s to match table %s", f.TableName, name),
				SuggestedAction{Kind: actionReviewFinding, Source: OriginDDL, File: f.Details["file"]})}, true
		}
		return nil, false

	case checkOrphanedFiles:
		file := f.Details["file"]
		return []FixSuggestion{fix(f, fmt.Sprintf("add %s to the table index or remove %s", f.TableName, file),
			SuggestedAction{Kind: actionEditIndex, Source: OriginIndex, File: fc.src.Index.Path,
				Params: map[string]string{"orphaned_file": file}})}, true
	}
	return nil, false
}

// foreignKeyFixes aligns foreign keys. The DDL is the side that gets changed
// when the ER graph or detail doc declares something it lacks.
func (fc *fixContext) foreignKeyFixes(f Finding) ([]FixSuggestion, bool) {
	if f.CheckName != checkForeignKeyConsistency {
		return nil, false
	}
	d := f.Details
	label := firstNonEmpty(d["name"], "("+d["columns"]+")")

	if f.Severity == SeverityError {
		source := SourceOrigin(d["source"])
		fields := strings.Split(d["mismatches"], ",")
		action := SuggestedAction{Kind: actionAlterTable, Source: OriginDDL, Params: map[string]string{"mismatches": d["mismatches"]}}
		if fk, ok := fc.findForeignKey(source, f.TableName, d["foreign_key"]); ok {
			// The key to drop is the DDL's; the documented name may differ or be absent.
			existing, found := fc.findForeignKey(SourceOrigin(d["target"]), f.TableName, d["target_foreign_key"])
			if found && existing.Name != "" {
				action.SQL = alterReplaceForeignKey(f.TableName, existing.Name, fk)
			} else {
				action.SQL = alterAddForeignKey(f.TableName, fk)
			}
		}
		for _, field := range fields {
			action.Params[field] = d[field+"."+originKey(source)]
		}
		return []FixSuggestion{fix(f, fmt.Sprintf("align foreign key %s in DDL with %s (%s)",
			label, source.label(), strings.ReplaceAll(d["mismatches"], "_", " ")), action)}, true
	}

	present := SourceOrigin(d["present_in"])
	missing := SourceOrigin(d["missing_from"])
	if missing == OriginDDL {
		fk := ForeignKeyDefinition{
			Name:              d["name"],
			Columns:           splitList(d["columns"]),
			ReferencedTable:   d["referenced_table"],
			ReferencedColumns: splitList(d["referenced_columns"]),
			OnUpdate:          d["on_update"],
			OnDelete:          d["on_delete"],
		}
		return []FixSuggestion{fix(f, fmt.Sprintf("add foreign key %s to DDL", label),
			SuggestedAction{Kind: actionAlterTable, Source: OriginDDL, SQL: alterAddForeignKey(f.TableName, fk),
				Params: map[string]string{"declared_in": string(present)}})}, true
	}
	kind := actionEditDetail
	file := ""
	if missing == OriginERGraph {
		kind = actionEditERGraph
		file = fc.src.ERGraph.Path
	} else if doc, ok := fc.src.detail(f.TableName); ok {
		file = doc.Schema.SourcePath
	}
	return []FixSuggestion{fix(f, fmt.Sprintf("declare foreign key %s in %s", label, missing.label()),
		SuggestedAction{Kind: kind, Source: missing, File: file})}, true
}

func (fc *fixContext) findForeignKey(origin SourceOrigin, table, identity string) (ForeignKeyDefinition, bool) {
	var fks []ForeignKeyDefinition
	switch origin {
	case OriginERGraph:
		if t, ok := fc.src.ERGraph.Table(table); ok {
			fks = t.ForeignKeys
		}
	case OriginDetailDoc:
		if d, ok := fc.src.detail(table); ok {
			fks = d.Schema.ForeignKeys
		}
	case OriginDDL:
		if t, ok := fc.src.ddl(table); ok {
			fks = t.ForeignKeys
		}
	}
	for _, fk := range fks {
		if fk.identity() == identity {
			return fk, true
		}
	}
	return ForeignKeyDefinition{}, false
}

// generalFixes templates a suggestion from the finding's details.
func (fc *fixContext) generalFixes(f Finding) []FixSuggestion {
	d := f.Details
	detailFile := ""
	if doc, ok := fc.src.detail(f.TableName); ok {
		detailFile = doc.Schema.SourcePath
	}
	editDoc := func(desc string) []FixSuggestion {
		return []FixSuggestion{fix(f, desc, SuggestedAction{Kind: actionEditDetail, Source: OriginDetailDoc, File: detailFile})}
	}

	switch f.CheckName {
	case checkParse:
		return []FixSuggestion{fix(f, fmt.Sprintf("fix %s so it parses", firstNonEmpty(d["file"], "source")),
			SuggestedAction{Kind: actionFixSyntax, Source: SourceOrigin(d["source"]), File: d["file"],
				Params: map[string]string{"error": f.Message}})}

	case checkColumnConsistency, checkDataTypeConsistency:
		col := d["column"]
		if d["missing_from"] == string(OriginDDL) {
			action := SuggestedAction{Kind: actionAlterTable, Source: OriginDDL}
			if c, ok := fc.detailColumn(f.TableName, col); ok {
				action.SQL = alterAddColumn(f.TableName, c)
			}
			return []FixSuggestion{fix(f, fmt.Sprintf("add column %s to DDL", col), action)}
		}
		if d["missing_from"] == string(OriginDetailDoc) {
			return editDoc(fmt.Sprintf("document column %s in the detail doc", col))
		}
		action := SuggestedAction{Kind: actionAlterTable, Source: OriginDDL,
			Params: map[string]string{"mismatches": firstNonEmpty(d["mismatches"], d["components"])}}
		if c, ok := fc.detailColumn(f.TableName, col); ok {
			action.SQL = alterModifyColumn(f.TableName, c)
		}
		return []FixSuggestion{fix(f, fmt.Sprintf("align column %s between DDL and detail doc", col), action)}

	case checkConstraintConsistency:
		return fc.constraintFixes(f, editDoc)

	case checkYAMLFormatConsistency:
		section := d["section"]
		switch {
		case d["declared_name"] != "":
			return editDoc(fmt.Sprintf("set table_name to %s in the detail doc", f.TableName))
		case d["entry"] != "":
			return editDoc(fmt.Sprintf("complete revision_history[%s] (%s)", d["entry"], d["missing"]))
		case f.Severity == SeverityError:
			return editDoc(fmt.Sprintf("add section %s to the detail doc", section))
		case section == "columns":
			return editDoc("declare the table's columns in the detail doc")
		default:
			return editDoc(fmt.Sprintf("expand section %s to at least %s", section, d["minimum"]))
		}

	case checkMultitenantCompliance:
		return fc.tenantFixes(f)

	case checkRequirementTrace:
		if id := d["requirement_id"]; id != "" {
			return editDoc(fmt.Sprintf("correct requirement_id %q of %s", id, d["element"]))
		}
		return editDoc(fmt.Sprintf("assign a requirement_id to %s", d["element"]))

	case checkPerformanceImpact:
		cols := splitList(d["columns"])
		idx := IndexDefinition{Name: indexName(f.TableName, cols), Columns: cols}
		return []FixSuggestion{fix(f, fmt.Sprintf("add index on (%s)", strings.Join(cols, ", ")),
			SuggestedAction{Kind: actionAlterTable, Source: OriginDDL, SQL: alterAddIndex(f.TableName, idx)})}
	}

	return []FixSuggestion{fix(f, "review: "+f.Message, SuggestedAction{Kind: actionReviewFinding})}
}

func (fc *fixContext) constraintFixes(f Finding, editDoc func(string) []FixSuggestion) []FixSuggestion {
	d := f.Details
	if d["mismatches"] == "" && d["missing_from"] == "" {
		return []FixSuggestion{fix(f, "fix invalid definition: "+f.Message,
			SuggestedAction{Kind: actionReviewFinding, Source: SourceOrigin(d["source"]), File: d["file"]})}
	}

	kind := ConstraintKind(d["kind"])
	what := strings.ToLower(string(kind))
	if d["name"] != "" {
		what += " " + d["name"]
	} else if d["columns"] != "" {
		what += " (" + strings.ReplaceAll(d["columns"], ",", ", ") + ")"
	}

	switch d["missing_from"] {
	case string(OriginDetailDoc):
		return editDoc(fmt.Sprintf("document %s in the detail doc", what))
	case string(OriginDDL):
		action := SuggestedAction{Kind: actionAlterTable, Source: OriginDDL}
		switch kind {
		case ConstraintIndex, ConstraintUnique:
			cols := splitList(d["columns"])
			name := firstNonEmpty(d["name"], indexName(f.TableName, cols))
			action.SQL = alterAddIndex(f.TableName, IndexDefinition{Name: name, Columns: cols, Unique: kind == ConstraintUnique})
		case ConstraintCheck:
			action.SQL = fmt.Sprintf("ALTER TABLE %s ADD %s;", mysqlIdent(f.TableName),
				renderCheck(ConstraintDefinition{Name: d["name"], Kind: ConstraintCheck, Expression: d["expression"]}))
		case ConstraintPrimaryKey:
			action.SQL = fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s);", mysqlIdent(f.TableName), quotedColumnList(splitList(d["columns"])))
		}
		return []FixSuggestion{fix(f, fmt.Sprintf("add %s to DDL", what), action)}
	}
	return []FixSuggestion{fix(f, fmt.Sprintf("align %s between DDL and detail doc", what),
		SuggestedAction{Kind: actionReviewFinding, Params: map[string]string{"mismatches": d["mismatches"]}})}
}

func (fc *fixContext) tenantFixes(f Finding) []FixSuggestion {
	tenant := fc.cfg.Multitenant.TenantColumn
	t, _ := schemaFor(fc.src, f.TableName)
	switch f.Details["rule"] {
	case ruleTenantIndex:
		idx := IndexDefinition{Name: indexName(f.TableName, []string{tenant}), Columns: []string{tenant}}
		return []FixSuggestion{fix(f, fmt.Sprintf("add an index leading with %s", tenant),
			SuggestedAction{Kind: actionAlterTable, Source: OriginDDL, SQL: alterAddIndex(f.TableName, idx)})}
	case ruleTenantNullable:
		action := SuggestedAction{Kind: actionAlterTable, Source: OriginDDL}
		if t != nil {
			if c, ok := t.Column(tenant); ok {
				notNull := *c
				notNull.Nullable = false
				action.SQL = alterModifyColumn(f.TableName, notNull)
			}
		}
		return []FixSuggestion{fix(f, fmt.Sprintf("make %s NOT NULL", tenant), action)}
	default:
		col := ColumnDefinition{Name: tenant, Type: fc.tenantColumnType()}
		return []FixSuggestion{fix(f, fmt.Sprintf("add column %s", tenant),
			SuggestedAction{Kind: actionAlterTable, Source: OriginDDL, SQL: alterAddColumn(f.TableName, col)})}
	}
}

// tenantColumnType borrows the tenant column type from any table that has one.
func (fc *fixContext) tenantColumnType() DataType {
	tenant := fc.cfg.Multitenant.TenantColumn
	stems := make([]string, 0, len(fc.src.DDL))
	for stem := range fc.src.DDL {
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	for _, stem := range stems {
		if c, ok := fc.src.DDL[stem].Column(tenant); ok {
			return c.Type
		}
	}
	dt, _ := parseDataType("bigint unsigned")
	return dt
}

// detailColumn returns the documented column, unless its type is unknown.
func (fc *fixContext) detailColumn(table, column string) (ColumnDefinition, bool) {
	doc, ok := fc.src.detail(table)
	if !ok {
		return ColumnDefinition{}, false
	}
	c, ok := doc.Schema.Column(column)
	if !ok || c.Type.Base == "" {
		return ColumnDefinition{}, false
	}
	return *c, true
}

func indexName(table string, cols []string) string {
	return "idx_" + strings.ToLower(table) + "_" + strings.ToLower(strings.Join(cols, "_"))
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
