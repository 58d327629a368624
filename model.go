package main

import (
	"fmt"
	"strings"
)

// SourceOrigin identifies which artifact a TableSchema was built from.
type SourceOrigin string

const (
	OriginDDL       SourceOrigin = "DDL"
	OriginDetailDoc SourceOrigin = "DETAIL_DOC"
	OriginERGraph   SourceOrigin = "ER_GRAPH"
	OriginIndex     SourceOrigin = "TABLE_INDEX"
)

// label returns the human-facing name used in finding messages.
func (o SourceOrigin) label() string {
	switch o {
	case OriginDDL:
		return "DDL"
	case OriginDetailDoc:
		return "detail doc"
	case OriginERGraph:
		return "ER graph"
	case OriginIndex:
		return "table index"
	default:
		return string(o)
	}
}

// ColumnDefinition is one column of a table, independent of the artifact it came from.
type ColumnDefinition struct {
	Name          string
	Type          DataType
	Nullable      bool
	IsPrimaryKey  bool
	IsUnique      bool
	AutoIncrement bool
	Default       *string // nil when no default (DEFAULT NULL is folded to nil)
	EnumValues    []string
	Comment       string
	OnUpdate      string // e.g. "CURRENT_TIMESTAMP"
	RequirementID string
}

// IndexDefinition is a (possibly unique) secondary index.
type IndexDefinition struct {
	Name    string
	Columns []string
	Unique  bool
	Comment string

	Type          string // "", BTREE, HASH, FULLTEXT or SPATIAL
	HasPrefix     bool   // some key part is col(len)
	HasExpression bool   // some key part is an (expression); it is not listed in Columns
}

// Referential actions accepted for ON UPDATE / ON DELETE.
const (
	ActionRestrict = "RESTRICT"
	ActionCascade  = "CASCADE"
	ActionSetNull  = "SET NULL"
	ActionNoAction = "NO ACTION"
)

// ForeignKeyDefinition is a declared reference to another table.
type ForeignKeyDefinition struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnUpdate          string
	OnDelete          string
	Comment           string
}

// identity returns the key foreign keys are matched on across sources:
// the lowercased name, or the column list for unnamed keys.
func (fk ForeignKeyDefinition) identity() string {
	if fk.Name != "" {
		return strings.ToLower(fk.Name)
	}
	return "(" + strings.ToLower(strings.Join(fk.Columns, ",")) + ")"
}

// ConstraintKind classifies table-level constraints.
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "PRIMARY KEY"
	ConstraintUnique     ConstraintKind = "UNIQUE"
	ConstraintCheck      ConstraintKind = "CHECK"
	ConstraintIndex      ConstraintKind = "INDEX"
)

// ConstraintDefinition holds PRIMARY KEY and CHECK constraints. UNIQUE and plain
// indexes live in TableSchema.Indexes.
type ConstraintDefinition struct {
	Name       string
	Kind       ConstraintKind
	Columns    []string
	Expression string
}

// TableSchema is a read-only snapshot of one table as described by one source.
type TableSchema struct {
	TableName     string
	LogicalName   string
	Comment       string
	RequirementID string
	EstimatedRows int64
	Columns       []ColumnDefinition
	Indexes       []IndexDefinition
	ForeignKeys   []ForeignKeyDefinition
	Constraints   []ConstraintDefinition
	Origin        SourceOrigin
	SourcePath    string

	columnIndex map[string]int
	problems    []string
}

func newTableSchema(name string, origin SourceOrigin, path string) *TableSchema {
	return &TableSchema{
		TableName:   name,
		Origin:      origin,
		SourcePath:  path,
		columnIndex: make(map[string]int),
	}
}

// addColumn appends a column, keeping the first definition when a name repeats.
// Duplicates are recorded as problems rather than rejected.
func (t *TableSchema) addColumn(col ColumnDefinition) {
	key := strings.ToLower(col.Name)
	if _, dup := t.columnIndex[key]; dup {
		t.problems = append(t.problems, fmt.Sprintf("duplicate column %q", col.Name))
		return
	}
	t.columnIndex[key] = len(t.Columns)
	t.Columns = append(t.Columns, col)
}

// Column looks a column up by name, case-insensitively.
func (t *TableSchema) Column(name string) (*ColumnDefinition, bool) {
	i, ok := t.columnIndex[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return &t.Columns[i], true
}

func (t *TableSchema) HasColumn(name string) bool {
	_, ok := t.columnIndex[strings.ToLower(name)]
	return ok
}

// PrimaryKey returns the primary key columns, or nil.
func (t *TableSchema) PrimaryKey() []string {
	for _, c := range t.Constraints {
		if c.Kind == ConstraintPrimaryKey {
			return c.Columns
		}
	}
	return nil
}

// finalize reconciles column-level flags with table-level constraints so both
// sources express primary keys and single-column uniqueness the same way.
func (t *TableSchema) finalize() {
	pk := t.PrimaryKey()
	if pk == nil {
		var flagged []string
		for _, c := range t.Columns {
			if c.IsPrimaryKey {
				flagged = append(flagged, c.Name)
			}
		}
		if len(flagged) > 0 {
			t.Constraints = append([]ConstraintDefinition{{Kind: ConstraintPrimaryKey, Columns: flagged}}, t.Constraints...)
		}
	} else {
		for _, name := range pk {
			if c, ok := t.Column(name); ok {
				c.IsPrimaryKey = true
			}
		}
	}

	for _, idx := range t.Indexes {
		if idx.Unique && len(idx.Columns) == 1 {
			if c, ok := t.Column(idx.Columns[0]); ok {
				c.IsUnique = true
			}
		}
	}

	for i := range t.Columns {
		c := &t.Columns[i]
		if c.IsPrimaryKey {
			c.Nullable = false
		}
		if len(c.EnumValues) == 0 && len(c.Type.Values) > 0 {
			c.EnumValues = c.Type.Values
		}
	}
}

// Validate reports invariant violations. They surface as findings, never as
// parse failures.
func (t *TableSchema) Validate() []string {
	problems := append([]string(nil), t.problems...)

	autoInc := 0
	for _, c := range t.Columns {
		if c.AutoIncrement && c.IsPrimaryKey {
			autoInc++
		}
	}
	if autoInc > 1 {
		problems = append(problems, fmt.Sprintf("%d auto-increment primary key columns (at most one allowed)", autoInc))
	}

	for _, idx := range t.Indexes {
		if len(idx.Columns) == 0 {
			problems = append(problems, fmt.Sprintf("index %q has no columns", idx.Name))
		}
		for _, col := range idx.Columns {
			if !t.HasColumn(col) {
				problems = append(problems, fmt.Sprintf("index %q references unknown column %q", idx.Name, col))
			}
		}
	}
	for _, c := range t.Constraints {
		for _, col := range c.Columns {
			if !t.HasColumn(col) {
				problems = append(problems, fmt.Sprintf("%s constraint references unknown column %q", c.Kind, col))
			}
		}
	}
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 0 {
			problems = append(problems, fmt.Sprintf("foreign key %q has no columns", fk.Name))
		}
		if len(fk.Columns) != len(fk.ReferencedColumns) {
			problems = append(problems, fmt.Sprintf(
				"foreign key %q has %d column(s) but references %d",
				fk.Name, len(fk.Columns), len(fk.ReferencedColumns),
			))
		}
		for _, col := range fk.Columns {
			if !t.HasColumn(col) {
				problems = append(problems, fmt.Sprintf("foreign key %q references unknown column %q", fk.Name, col))
			}
		}
	}
	return problems
}

// normalizeAction canonicalizes a referential action. An empty action means the
// MySQL default, RESTRICT.
func normalizeAction(a string) (string, error) {
	a = strings.ToUpper(strings.Join(strings.Fields(a), " "))
	switch a {
	case "":
		return ActionRestrict, nil
	case ActionRestrict, ActionCascade, ActionSetNull, ActionNoAction:
		return a, nil
	default:
		return "", fmt.Errorf("unsupported referential action %q", a)
	}
}
