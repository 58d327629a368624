package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// generateCreateTable renders a TableSchema back into a MySQL CREATE TABLE statement.
func generateCreateTable(t *TableSchema) string {
	var lines []string
	for _, col := range t.Columns {
		lines = append(lines, "  "+renderColumnDefinition(col))
	}
	if pk := t.PrimaryKey(); len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", quotedColumnList(pk)))
	}
	for _, idx := range t.Indexes {
		lines = append(lines, "  "+renderIndex(idx))
	}
	for _, c := range t.Constraints {
		if c.Kind == ConstraintCheck {
			lines = append(lines, "  "+renderCheck(c))
		}
	}
	for _, fk := range t.ForeignKeys {
		lines = append(lines, "  "+renderForeignKey(fk))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", mysqlIdent(t.TableName))
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	if t.Comment != "" {
		fmt.Fprintf(&b, " COMMENT=%s", quoteLiteral(t.Comment))
	}
	b.WriteString(";")
	return b.String()
}

// renderColumnDefinition renders one column in the order parseColumnItem reads it.
func renderColumnDefinition(col ColumnDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", mysqlIdent(col.Name), typeSQL(col.Type))
	if col.Nullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		fmt.Fprintf(&b, " DEFAULT %s", renderDefault(*col.Default))
	}
	if col.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	if col.OnUpdate != "" {
		fmt.Fprintf(&b, " ON UPDATE %s", col.OnUpdate)
	}
	if col.Comment != "" {
		fmt.Fprintf(&b, " COMMENT %s", quoteLiteral(col.Comment))
	}
	return b.String()
}

// typeSQL uppercases the base type only; ENUM literals keep their case.
func typeSQL(dt DataType) string {
	s := dt.String()
	return strings.ToUpper(dt.Base) + s[len(dt.Base):]
}

var keywordDefaultRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*(\(.*\))?$`)

func renderDefault(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	if strings.HasPrefix(v, "(") || keywordDefaultRe.MatchString(v) || isTypedLiteral(v) {
		return v
	}
	return quoteLiteral(v)
}

func renderIndex(idx IndexDefinition) string {
	kind := "KEY"
	switch {
	case idx.Unique:
		kind = "UNIQUE KEY"
	case idx.Type == "FULLTEXT" || idx.Type == "SPATIAL":
		kind = idx.Type + " KEY"
	}
	s := kind
	if idx.Name != "" {
		s += " " + mysqlIdent(idx.Name)
	}
	s += fmt.Sprintf(" (%s)", quotedColumnList(idx.Columns))
	if idx.Comment != "" {
		s += " COMMENT " + quoteLiteral(idx.Comment)
	}
	return s
}

func renderCheck(c ConstraintDefinition) string {
	if c.Name != "" {
		return fmt.Sprintf("CONSTRAINT %s CHECK (%s)", mysqlIdent(c.Name), c.Expression)
	}
	return fmt.Sprintf("CHECK (%s)", c.Expression)
}

func renderForeignKey(fk ForeignKeyDefinition) string {
	var b strings.Builder
	if fk.Name != "" {
		fmt.Fprintf(&b, "CONSTRAINT %s ", mysqlIdent(fk.Name))
	}
	fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s (%s)",
		quotedColumnList(fk.Columns), mysqlIdent(fk.ReferencedTable), quotedColumnList(fk.ReferencedColumns))
	if fk.OnDelete != "" {
		fmt.Fprintf(&b, " ON DELETE %s", fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		fmt.Fprintf(&b, " ON UPDATE %s", fk.OnUpdate)
	}
	return b.String()
}

// ALTER statements used as suggested actions by the fix generator.

func alterAddColumn(table string, col ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", mysqlIdent(table), renderColumnDefinition(col))
}

func alterModifyColumn(table string, col ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s;", mysqlIdent(table), renderColumnDefinition(col))
}

func alterAddIndex(table string, idx IndexDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", mysqlIdent(table), renderIndex(idx))
}

// alterReplaceForeignKey drops the existing key by its DDL name and adds fk,
// which may be named differently.
func alterReplaceForeignKey(table, dropName string, fk ForeignKeyDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s, ADD %s;",
		mysqlIdent(table), mysqlIdent(dropName), renderForeignKey(fk))
}

func alterAddForeignKey(table string, fk ForeignKeyDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", mysqlIdent(table), renderForeignKey(fk))
}

// quotedColumnList joins column names with proper quoting.
func quotedColumnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = mysqlIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", "''") + "'"
}
