package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Detail-document sections checked by yaml_format_consistency.
var requiredDetailSections = []string{"revision_history", "overview", "notes", "rules"}

// Revision is one revision_history entry.
type Revision struct {
	Version string
	Date    string
	Author  string
	Changes string
}

// DetailDocument is a normalized per-table detail document: the schema it
// describes plus the documentation sections around it.
type DetailDocument struct {
	Schema          *TableSchema
	FileStem        string
	Sections        map[string]bool
	Overview        string
	NotesCount      int
	RulesCount      int
	Revisions       []Revision
	ColumnsDeclared bool
}

func (d *DetailDocument) hasSection(name string) bool {
	return d.Sections[name]
}

// rawDetailDocument mirrors every field name the document format has used.
type rawDetailDocument struct {
	TableName     string          `yaml:"table_name"`
	Table         string          `yaml:"table"`
	LogicalName   string          `yaml:"logical_name"`
	RequirementID string          `yaml:"requirement_id"`
	Comment       string          `yaml:"comment"`
	EstimatedRows int64           `yaml:"estimated_rows"`
	Columns       []rawColumn     `yaml:"columns"`
	Indexes       []rawIndex      `yaml:"indexes"`
	ForeignKeys   []rawForeignKey `yaml:"foreign_keys"`
	Constraints   []rawConstraint `yaml:"constraints"`
	PrimaryKey    yaml.Node       `yaml:"primary_key"`
	Overview      yaml.Node       `yaml:"overview"`
	Notes         yaml.Node       `yaml:"notes"`
	Rules         yaml.Node       `yaml:"rules"`
	Revisions     []rawRevision   `yaml:"revision_history"`
}

type rawRevision struct {
	Version yaml.Node `yaml:"version"`
	Date    yaml.Node `yaml:"date"`
	Author  yaml.Node `yaml:"author"`
	Changes yaml.Node `yaml:"changes"`
}

type rawColumn struct {
	Name          string    `yaml:"name"`
	LogicalName   string    `yaml:"logical_name"`
	DataType      string    `yaml:"data_type"`
	Type          string    `yaml:"type"`
	Length        *int      `yaml:"length"`
	Precision     *int      `yaml:"precision"`
	Scale         *int      `yaml:"scale"`
	Unsigned      *bool     `yaml:"unsigned"`
	Nullable      *bool     `yaml:"nullable"`
	Null          *bool     `yaml:"null"`
	NotNull       *bool     `yaml:"not_null"`
	PrimaryKey    *bool     `yaml:"primary_key"`
	PK            *bool     `yaml:"pk"`
	IsPrimaryKey  *bool     `yaml:"is_primary_key"`
	Unique        *bool     `yaml:"unique"`
	AutoIncrement *bool     `yaml:"auto_increment"`
	Default       yaml.Node `yaml:"default"`
	DefaultValue  yaml.Node `yaml:"default_value"`
	EnumValues    yaml.Node `yaml:"enum_values"`
	Enum          yaml.Node `yaml:"enum"`
	Values        yaml.Node `yaml:"values"`
	Comment       string    `yaml:"comment"`
	Description   string    `yaml:"description"`
	OnUpdate      string    `yaml:"on_update"`
	RequirementID string    `yaml:"requirement_id"`
}

type rawIndex struct {
	Name    string    `yaml:"name"`
	Columns yaml.Node `yaml:"columns"`
	Column  string    `yaml:"column"`
	Unique  bool      `yaml:"unique"`
	Type    string    `yaml:"type"`
	Comment string    `yaml:"comment"`
}

type rawConstraint struct {
	Name       string    `yaml:"name"`
	Type       string    `yaml:"type"`
	Columns    yaml.Node `yaml:"columns"`
	Column     string    `yaml:"column"`
	Expression string    `yaml:"expression"`
	Condition  string    `yaml:"condition"`
}

type rawReferences struct {
	Table   string    `yaml:"table"`
	Columns yaml.Node `yaml:"columns"`
	Column  string    `yaml:"column"`
}

// rawForeignKey covers both the current shape (columns + references.{table,columns})
// and the legacy singular / flat shapes.
type rawForeignKey struct {
	Name             string         `yaml:"name"`
	Columns          yaml.Node      `yaml:"columns"`
	Column           string         `yaml:"column"`
	References       *rawReferences `yaml:"references"`
	ReferenceTable   string         `yaml:"reference_table"`
	ReferenceColumns yaml.Node      `yaml:"reference_columns"`
	ReferenceColumn  string         `yaml:"reference_column"`
	OnUpdate         string         `yaml:"on_update"`
	OnDelete         string         `yaml:"on_delete"`
	Comment          string         `yaml:"comment"`
}

// parseDetailDocument loads one detail document. Missing sections default to
// empty; only undecodable YAML is a ParseFailure.
func parseDetailDocument(path string, data []byte) (*DetailDocument, error) {
	fail := func(format string, args ...any) error {
		return &ParseFailure{Path: path, Origin: OriginDetailDoc, Reason: fmt.Sprintf(format, args...)}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fail("%v", err)
	}
	doc := &DetailDocument{
		FileStem: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Sections: make(map[string]bool),
	}

	var raw rawDetailDocument
	if len(root.Content) > 0 {
		top := root.Content[0]
		if top.Kind != yaml.MappingNode {
			return nil, fail("top level must be a mapping, got %s", nodeKindName(top.Kind))
		}
		for i := 0; i+1 < len(top.Content); i += 2 {
			doc.Sections[top.Content[i].Value] = true
		}
		if err := top.Decode(&raw); err != nil {
			return nil, fail("%v", err)
		}
	}

	name := raw.TableName
	if name == "" {
		name = raw.Table
	}
	if name == "" {
		name = doc.FileStem
	}

	t := newTableSchema(name, OriginDetailDoc, path)
	t.LogicalName = raw.LogicalName
	t.RequirementID = raw.RequirementID
	t.Comment = raw.Comment
	t.EstimatedRows = raw.EstimatedRows

	// Malformed elements are defaulted or dropped and recorded as problems;
	// only undecodable YAML fails the document.
	doc.ColumnsDeclared = len(raw.Columns) > 0
	for i, rc := range raw.Columns {
		col, err := normalizeColumn(rc)
		if err != nil {
			t.problems = append(t.problems, fmt.Sprintf("columns[%d]: %v", i, err))
			if col.Name == "" {
				continue
			}
		}
		t.addColumn(col)
	}

	if pk := nodeStrings(&raw.PrimaryKey); len(pk) > 0 {
		t.Constraints = append(t.Constraints, ConstraintDefinition{Kind: ConstraintPrimaryKey, Columns: pk})
	}

	for i, ri := range raw.Indexes {
		cols := nodeStrings(&ri.Columns)
		if len(cols) == 0 && ri.Column != "" {
			cols = []string{ri.Column}
		}
		if len(cols) == 0 {
			t.problems = append(t.problems, fmt.Sprintf("indexes[%d] (%s): no columns", i, ri.Name))
			continue
		}
		t.Indexes = append(t.Indexes, IndexDefinition{
			Name:    ri.Name,
			Columns: cols,
			Unique:  ri.Unique,
			Comment: ri.Comment,
			Type:    strings.ToUpper(strings.TrimSpace(ri.Type)),
		})
	}

	for i, rc := range raw.Constraints {
		c, idx, err := normalizeConstraint(rc)
		if err != nil {
			t.problems = append(t.problems, fmt.Sprintf("constraints[%d]: %v", i, err))
			continue
		}
		if idx != nil {
			t.Indexes = append(t.Indexes, *idx)
		} else {
			t.Constraints = append(t.Constraints, c)
		}
	}

	for i, rf := range raw.ForeignKeys {
		fk, err := normalizeForeignKey(rf)
		if err != nil {
			t.problems = append(t.problems, fmt.Sprintf("foreign_keys[%d]: %v", i, err))
			if fk.ReferencedTable == "" {
				continue
			}
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}

	t.finalize()
	doc.Schema = t

	doc.Overview = strings.TrimSpace(nodeText(&raw.Overview))
	doc.NotesCount = nodeItemCount(&raw.Notes)
	doc.RulesCount = nodeItemCount(&raw.Rules)
	for _, rr := range raw.Revisions {
		rev := Revision{
			Version: nodeText(&rr.Version),
			Date:    nodeText(&rr.Date),
			Author:  nodeText(&rr.Author),
			Changes: nodeText(&rr.Changes),
		}
		doc.Revisions = append(doc.Revisions, rev)
	}
	return doc, nil
}

// missingFields lists the required revision fields that are empty.
func (r Revision) missingFields() []string {
	var missing []string
	if strings.TrimSpace(r.Version) == "" {
		missing = append(missing, "version")
	}
	if strings.TrimSpace(r.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(r.Author) == "" {
		missing = append(missing, "author")
	}
	if strings.TrimSpace(r.Changes) == "" {
		missing = append(missing, "changes")
	}
	return missing
}

// normalizeColumn returns the column even when its type is missing or
// unparseable; the type is then left empty and the error describes why. Only a
// missing name yields no column.
func normalizeColumn(rc rawColumn) (ColumnDefinition, error) {
	if strings.TrimSpace(rc.Name) == "" {
		return ColumnDefinition{}, fmt.Errorf("column without a name")
	}
	col := ColumnDefinition{
		Name:          rc.Name,
		Nullable:      true,
		Comment:       firstNonEmpty(rc.Comment, rc.Description),
		OnUpdate:      strings.ToUpper(strings.TrimSpace(rc.OnUpdate)),
		RequirementID: rc.RequirementID,
	}

	var typeErr error
	var dt DataType
	rawType := firstNonEmpty(rc.DataType, rc.Type)
	if rawType == "" {
		typeErr = fmt.Errorf("column %q has no data_type", rc.Name)
	} else if dt, typeErr = parseDataType(rawType); typeErr != nil {
		dt = DataType{}
		typeErr = fmt.Errorf("column %q: %w", rc.Name, typeErr)
	}
	if rc.Length != nil {
		dt.Length = *rc.Length
	}
	if rc.Precision != nil {
		dt.Precision = *rc.Precision
	}
	if rc.Scale != nil {
		dt.Scale = *rc.Scale
	}
	if rc.Unsigned != nil {
		dt.Unsigned = *rc.Unsigned
	}
	for _, n := range []*yaml.Node{&rc.EnumValues, &rc.Enum, &rc.Values} {
		if vals := nodeStrings(n); len(vals) > 0 {
			dt.Values = vals
			break
		}
	}
	col.Type = dt

	switch {
	case rc.Nullable != nil:
		col.Nullable = *rc.Nullable
	case rc.Null != nil:
		col.Nullable = *rc.Null
	case rc.NotNull != nil:
		col.Nullable = !*rc.NotNull
	}
	for _, pk := range []*bool{rc.PrimaryKey, rc.PK, rc.IsPrimaryKey} {
		if pk != nil {
			col.IsPrimaryKey = *pk
			break
		}
	}
	if rc.Unique != nil {
		col.IsUnique = *rc.Unique
	}
	if rc.AutoIncrement != nil {
		col.AutoIncrement = *rc.AutoIncrement
	}

	def := &rc.Default
	if def.Kind == 0 {
		def = &rc.DefaultValue
	}
	col.Default = nodeDefault(def)
	return col, typeErr
}

func normalizeConstraint(rc rawConstraint) (ConstraintDefinition, *IndexDefinition, error) {
	cols := nodeStrings(&rc.Columns)
	if len(cols) == 0 && rc.Column != "" {
		cols = []string{rc.Column}
	}
	switch strings.ToUpper(strings.TrimSpace(rc.Type)) {
	case "CHECK":
		expr := firstNonEmpty(rc.Expression, rc.Condition)
		if expr == "" {
			return ConstraintDefinition{}, nil, fmt.Errorf("CHECK constraint %q has no expression", rc.Name)
		}
		return ConstraintDefinition{Name: rc.Name, Kind: ConstraintCheck, Expression: normalizeExpression(expr)}, nil, nil
	case "PRIMARY KEY", "PRIMARY", "PK":
		return ConstraintDefinition{Name: rc.Name, Kind: ConstraintPrimaryKey, Columns: cols}, nil, nil
	case "UNIQUE", "UNIQUE KEY":
		if len(cols) == 0 {
			return ConstraintDefinition{}, nil, fmt.Errorf("UNIQUE constraint %q has no columns", rc.Name)
		}
		return ConstraintDefinition{}, &IndexDefinition{Name: rc.Name, Columns: cols, Unique: true}, nil
	default:
		return ConstraintDefinition{}, nil, fmt.Errorf("unsupported constraint type %q", rc.Type)
	}
}

// normalizeForeignKey applies the legacy-shape rules in order, first match wins:
// singular column -> columns; flat reference_table/reference_columns -> references;
// singular references.column / reference_column -> references.columns.
func normalizeForeignKey(rf rawForeignKey) (ForeignKeyDefinition, error) {
	fk := ForeignKeyDefinition{Name: rf.Name, Comment: rf.Comment}

	fk.Columns = nodeStrings(&rf.Columns)
	if len(fk.Columns) == 0 && rf.Column != "" {
		fk.Columns = []string{rf.Column}
	}

	refs := rf.References
	if refs == nil && (rf.ReferenceTable != "" || rf.ReferenceColumns.Kind != 0 || rf.ReferenceColumn != "") {
		refs = &rawReferences{Table: rf.ReferenceTable, Columns: rf.ReferenceColumns, Column: rf.ReferenceColumn}
	}
	if refs == nil {
		return fk, fmt.Errorf("foreign key %q has no references", rf.Name)
	}
	fk.ReferencedTable = refs.Table
	fk.ReferencedColumns = nodeStrings(&refs.Columns)
	if len(fk.ReferencedColumns) == 0 {
		switch {
		case refs.Column != "":
			fk.ReferencedColumns = []string{refs.Column}
		case rf.ReferenceColumn != "":
			fk.ReferencedColumns = []string{rf.ReferenceColumn}
		}
	}
	if fk.ReferencedTable == "" {
		return fk, fmt.Errorf("foreign key %q has no referenced table", rf.Name)
	}

	// An unsupported action is kept verbatim so the comparison still shows it.
	var errs []string
	for _, a := range []struct {
		key string
		raw string
		dst *string
	}{
		{"on_update", rf.OnUpdate, &fk.OnUpdate},
		{"on_delete", rf.OnDelete, &fk.OnDelete},
	} {
		v, err := normalizeAction(a.raw)
		if err != nil {
			v = strings.ToUpper(strings.Join(strings.Fields(a.raw), " "))
			errs = append(errs, fmt.Sprintf("%s: %v", a.key, err))
		}
		*a.dst = v
	}
	if len(errs) > 0 {
		return fk, fmt.Errorf("foreign key %q: %s", rf.Name, strings.Join(errs, "; "))
	}
	return fk, nil
}

// nodeStrings reads a sequence of scalars, or a single comma-separated scalar.
func nodeStrings(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind == yaml.ScalarNode && c.Value != "" {
				out = append(out, c.Value)
			}
		}
		return out
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return parseEnumList(n.Value)
	}
	return nil
}

// nodeText flattens a scalar, or the scalars of a collection, into text.
func nodeText(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return ""
		}
		return n.Value
	case yaml.SequenceNode, yaml.MappingNode:
		var parts []string
		for i, c := range n.Content {
			if n.Kind == yaml.MappingNode && i%2 == 0 {
				continue
			}
			if s := nodeText(c); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// nodeItemCount counts notes/rules entries: sequence items, mapping entries,
// or non-empty lines of a scalar.
func nodeItemCount(n *yaml.Node) int {
	switch n.Kind {
	case yaml.SequenceNode:
		return len(n.Content)
	case yaml.MappingNode:
		return len(n.Content) / 2
	case yaml.ScalarNode:
		count := 0
		for _, line := range strings.Split(n.Value, "\n") {
			if strings.TrimSpace(line) != "" {
				count++
			}
		}
		return count
	}
	return 0
}

// nodeDefault converts a YAML default into the DDL parser's representation.
func nodeDefault(n *yaml.Node) *string {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return nil
	}
	v := n.Value
	if n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) == 0 && strings.EqualFold(v, "null") {
		return nil
	}
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	if n.Tag == "!!bool" {
		if b, err := strconv.ParseBool(v); err == nil {
			if b {
				v = "1"
			} else {
				v = "0"
			}
		}
	}
	return &v
}

func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
