package main

import (
	"errors"
	"strings"
	"testing"
)

const usersDDL = "-- users table\n" +
	"CREATE TABLE IF NOT EXISTS `app`.`users` (\n" +
	"  `id` BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,\n" +
	"  `tenant_id` BIGINT UNSIGNED NOT NULL COMMENT 'owner, tenant',\n" +
	"  `email` VARCHAR(255) NOT NULL,\n" +
	"  `status` ENUM('active','disabled') NOT NULL DEFAULT 'active',\n" +
	"  `tags` VARCHAR(64) DEFAULT (concat('a', ',', 'b')),\n" +
	"  `created_at` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE current_timestamp,\n" +
	"  `deleted_at` DATETIME NULL DEFAULT NULL,\n" +
	"  PRIMARY KEY (`id`),\n" +
	"  UNIQUE KEY `uq_users_email` (`email`),\n" +
	"  KEY `idx_users_tenant` (`tenant_id`, `created_at`),\n" +
	"  CONSTRAINT `fk_users_tenant` FOREIGN KEY (`tenant_id`) REFERENCES `tenants` (`id`) ON DELETE CASCADE,\n" +
	"  CONSTRAINT `chk_email` CHECK (email <> '')\n" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='Application users';\n"

func TestParseDDL(t *testing.T) {
	table, err := parseDDL("ddl/users.sql", usersDDL)
	if err != nil {
		t.Fatalf("parseDDL() error: %v", err)
	}

	if table.TableName != "users" {
		t.Errorf("TableName = %q, want users", table.TableName)
	}
	if table.Comment != "Application users" {
		t.Errorf("Comment = %q", table.Comment)
	}
	if table.Origin != OriginDDL || table.SourcePath != "ddl/users.sql" {
		t.Errorf("Origin/SourcePath = %s/%s", table.Origin, table.SourcePath)
	}
	if len(table.Columns) != 7 {
		t.Fatalf("got %d columns, want 7", len(table.Columns))
	}

	id, _ := table.Column("ID")
	if id.Type.Base != "bigint" || !id.Type.Unsigned || !id.AutoIncrement || !id.IsPrimaryKey || id.Nullable {
		t.Errorf("id parsed as %+v", *id)
	}

	tenant, _ := table.Column("tenant_id")
	if tenant.Comment != "owner, tenant" {
		t.Errorf("tenant_id comment = %q", tenant.Comment)
	}

	email, _ := table.Column("email")
	if email.Type.String() != "varchar(255)" || email.Nullable || !email.IsUnique {
		t.Errorf("email parsed as %+v", *email)
	}

	status, _ := table.Column("status")
	if strings.Join(status.EnumValues, ",") != "active,disabled" {
		t.Errorf("status enum values = %v", status.EnumValues)
	}
	if status.Default == nil || *status.Default != "active" {
		t.Errorf("status default = %v", status.Default)
	}

	tags, _ := table.Column("tags")
	if tags.Default == nil || *tags.Default != "(concat('a', ',', 'b'))" {
		t.Errorf("tags default = %v", tags.Default)
	}
	if !tags.Nullable {
		t.Error("tags should be nullable")
	}

	created, _ := table.Column("created_at")
	if created.Default == nil || *created.Default != "CURRENT_TIMESTAMP" || created.OnUpdate != "CURRENT_TIMESTAMP" {
		t.Errorf("created_at parsed as %+v", *created)
	}

	deleted, _ := table.Column("deleted_at")
	if deleted.Default != nil || !deleted.Nullable {
		t.Errorf("deleted_at parsed as %+v", *deleted)
	}

	if pk := table.PrimaryKey(); len(pk) != 1 || pk[0] != "id" {
		t.Errorf("PrimaryKey() = %v", pk)
	}
	if len(table.Indexes) != 2 || !table.Indexes[0].Unique || table.Indexes[1].Name != "idx_users_tenant" {
		t.Errorf("Indexes = %+v", table.Indexes)
	}

	if len(table.ForeignKeys) != 1 {
		t.Fatalf("got %d foreign keys, want 1", len(table.ForeignKeys))
	}
	fk := table.ForeignKeys[0]
	if fk.Name != "fk_users_tenant" || fk.ReferencedTable != "tenants" ||
		fk.OnDelete != ActionCascade || fk.OnUpdate != ActionRestrict {
		t.Errorf("foreign key parsed as %+v", fk)
	}

	var check *ConstraintDefinition
	for i := range table.Constraints {
		if table.Constraints[i].Kind == ConstraintCheck {
			check = &table.Constraints[i]
		}
	}
	if check == nil || check.Name != "chk_email" || check.Expression != "email <> ''" {
		t.Errorf("check constraint = %+v", check)
	}

	if problems := table.Validate(); len(problems) != 0 {
		t.Errorf("Validate() = %v", problems)
	}
}

func TestParseDDL_InlineReferences(t *testing.T) {
	table := mustParseDDL(t, "posts.sql",
		"CREATE TABLE posts (id INT PRIMARY KEY, user_id INT NOT NULL REFERENCES `app`.`users` (`id`) ON DELETE SET NULL, "+
			"email VARCHAR(10) UNIQUE)")

	if pk := table.PrimaryKey(); len(pk) != 1 || pk[0] != "id" {
		t.Errorf("PrimaryKey() = %v", pk)
	}
	if len(table.ForeignKeys) != 1 {
		t.Fatalf("got %d foreign keys, want 1", len(table.ForeignKeys))
	}
	fk := table.ForeignKeys[0]
	if fk.ReferencedTable != "users" || fk.OnDelete != ActionSetNull || fk.OnUpdate != ActionRestrict {
		t.Errorf("foreign key parsed as %+v", fk)
	}
	if fk.Columns[0] != "user_id" || fk.ReferencedColumns[0] != "id" {
		t.Errorf("foreign key columns = %v -> %v", fk.Columns, fk.ReferencedColumns)
	}

	email, _ := table.Column("email")
	if !email.IsUnique {
		t.Error("inline UNIQUE should mark the column unique")
	}
	if len(table.Indexes) != 0 {
		t.Errorf("inline UNIQUE should not create an index, got %+v", table.Indexes)
	}
}

func TestParseDDL_Failures(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"empty file", "", "no CREATE TABLE"},
		{"no create", "INSERT INTO t VALUES (1);", "no CREATE TABLE"},
		{"two creates", "CREATE TABLE a (id INT); CREATE TABLE b (id INT);", "found 2 CREATE TABLE"},
		{"unbalanced", "CREATE TABLE t (id INT", "unbalanced"},
		{"unterminated string", "CREATE TABLE t (id INT COMMENT 'x)", "unterminated"},
		{"empty column list", "CREATE TABLE t ()", "empty column list"},
		{"bad action", "CREATE TABLE t (a INT, FOREIGN KEY (a) REFERENCES u (id) ON DELETE EXPLODE)", "referential action"},
		{"missing type", "CREATE TABLE t (a)", "no data type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDDL("ddl/t.sql", tt.sql)
			if err == nil {
				t.Fatal("expected error")
			}
			var pf *ParseFailure
			if !errors.As(err, &pf) {
				t.Fatalf("error %T is not a *ParseFailure", err)
			}
			if pf.Path != "ddl/t.sql" || pf.Origin != OriginDDL {
				t.Errorf("ParseFailure = %+v", pf)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestParseDDL_DuplicateColumnIsAProblemNotAFailure(t *testing.T) {
	table := mustParseDDL(t, "t.sql", "CREATE TABLE t (a INT, A VARCHAR(5))")
	if len(table.Columns) != 1 {
		t.Fatalf("got %d columns, want 1", len(table.Columns))
	}
	problems := table.Validate()
	if len(problems) != 1 || !strings.Contains(problems[0], "duplicate column") {
		t.Fatalf("Validate() = %v", problems)
	}
}

func TestParseDDL_TypedLiteralDefaults(t *testing.T) {
	tests := []struct {
		name   string
		column string
		want   string
	}{
		{"bit", "flag BIT(1) NOT NULL DEFAULT b'0'", "b'0'"},
		{"bit upper", "flag BIT(4) NOT NULL DEFAULT B'1010'", "b'1010'"},
		{"hex", "mask BINARY(1) DEFAULT X'FF'", "x'FF'"},
		{"national", "code CHAR(2) DEFAULT N'de'", "n'de'"},
		{"charset introducer", "label VARCHAR(10) DEFAULT _utf8mb4'Abc' COMMENT 'shown'", "_utf8mb4'Abc'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := mustParseDDL(t, "t.sql", "CREATE TABLE t (id INT NOT NULL, "+tt.column+")")
			col := table.Columns[1]
			if col.Default == nil || *col.Default != tt.want {
				t.Fatalf("default = %v, want %s", col.Default, tt.want)
			}

			again, err := parseDDL("t.sql", generateCreateTable(table))
			if err != nil {
				t.Fatalf("re-parse: %v", err)
			}
			got := again.Columns[1]
			if got.Default == nil || *got.Default != tt.want {
				t.Errorf("round trip default = %v, want %s", got.Default, tt.want)
			}
			if got.Comment != col.Comment {
				t.Errorf("round trip comment = %q, want %q", got.Comment, col.Comment)
			}
		})
	}
}

func TestParseDDL_AttributesAfterInlineReferences(t *testing.T) {
	table := mustParseDDL(t, "posts.sql",
		"CREATE TABLE posts (id INT PRIMARY KEY, "+
			"user_id INT NOT NULL REFERENCES users (id) ON DELETE CASCADE COMMENT 'owner', "+
			"editor_id INT REFERENCES users (id) DEFAULT NULL COMMENT 'last editor', "+
			"updated_at TIMESTAMP REFERENCES audits (at) ON UPDATE CURRENT_TIMESTAMP)")

	if len(table.ForeignKeys) != 3 {
		t.Fatalf("got %d foreign keys, want 3", len(table.ForeignKeys))
	}
	if fk := table.ForeignKeys[0]; fk.OnDelete != ActionCascade || fk.OnUpdate != ActionRestrict {
		t.Errorf("user_id foreign key = %+v", fk)
	}

	user, _ := table.Column("user_id")
	if user.Comment != "owner" || user.Nullable {
		t.Errorf("user_id parsed as %+v", *user)
	}
	editor, _ := table.Column("editor_id")
	if editor.Comment != "last editor" || editor.Default != nil {
		t.Errorf("editor_id parsed as %+v", *editor)
	}
	updated, _ := table.Column("updated_at")
	if updated.OnUpdate != "CURRENT_TIMESTAMP" {
		t.Errorf("updated_at ON UPDATE = %q", updated.OnUpdate)
	}
	if fk := table.ForeignKeys[2]; fk.OnUpdate != ActionRestrict {
		t.Errorf("column ON UPDATE leaked into the foreign key: %+v", fk)
	}
}

func TestGenerateCreateTable_RoundTrip(t *testing.T) {
	orig := mustParseDDL(t, "users.sql", usersDDL)
	ddl := generateCreateTable(orig)

	again, err := parseDDL("users.sql", ddl)
	if err != nil {
		t.Fatalf("re-parse of generated DDL failed: %v\n%s", err, ddl)
	}
	if len(again.Columns) != len(orig.Columns) {
		t.Fatalf("round trip changed column count: %d -> %d", len(orig.Columns), len(again.Columns))
	}
	for i, want := range orig.Columns {
		got := again.Columns[i]
		if got.Name != want.Name || got.Type.String() != want.Type.String() || got.Nullable != want.Nullable ||
			defaultText(got.Default) != defaultText(want.Default) || got.OnUpdate != want.OnUpdate ||
			got.Comment != want.Comment || got.AutoIncrement != want.AutoIncrement ||
			got.IsPrimaryKey != want.IsPrimaryKey || got.IsUnique != want.IsUnique {
			t.Errorf("column %d round trip:\n  got  %+v\n  want %+v", i, got, want)
		}
	}
	if len(again.ForeignKeys) != 1 || again.ForeignKeys[0].OnDelete != ActionCascade {
		t.Errorf("foreign keys round trip = %+v", again.ForeignKeys)
	}
	if len(again.Indexes) != len(orig.Indexes) || len(again.Constraints) != len(orig.Constraints) {
		t.Errorf("indexes/constraints round trip = %+v / %+v", again.Indexes, again.Constraints)
	}
	if again.Comment != orig.Comment {
		t.Errorf("table comment round trip = %q", again.Comment)
	}
}

func TestGenerateCreateTable_ReservedWords(t *testing.T) {
	table := newTableSchema("order", OriginDetailDoc, "")
	table.addColumn(ColumnDefinition{Name: "key", Type: DataType{Base: "int"}})
	table.addColumn(ColumnDefinition{Name: "status", Type: DataType{Base: "varchar", Length: 20}, Nullable: true})
	table.Indexes = append(table.Indexes, IndexDefinition{Name: "idx_key", Columns: []string{"key"}})

	ddl := generateCreateTable(table)
	for _, want := range []string{
		"CREATE TABLE `order` (",
		"`key` INT NOT NULL",
		"status VARCHAR(20) NULL",
		"KEY idx_key (`key`)",
	} {
		if !strings.Contains(ddl, want) {
			t.Errorf("DDL should contain %q, got:\n%s", want, ddl)
		}
	}
}

func TestAlterStatements(t *testing.T) {
	col := ColumnDefinition{Name: "nickname", Type: DataType{Base: "varchar", Length: 50}, Nullable: true}
	if got, want := alterAddColumn("users", col), "ALTER TABLE users ADD COLUMN nickname VARCHAR(50) NULL;"; got != want {
		t.Errorf("alterAddColumn() = %q, want %q", got, want)
	}

	def := "it's"
	col.Default = &def
	col.Nullable = false
	if got, want := alterModifyColumn("users", col), "ALTER TABLE users MODIFY COLUMN nickname VARCHAR(50) NOT NULL DEFAULT 'it''s';"; got != want {
		t.Errorf("alterModifyColumn() = %q, want %q", got, want)
	}

	fk := ForeignKeyDefinition{
		Name: "fk_posts_user", Columns: []string{"user_id"}, ReferencedTable: "users",
		ReferencedColumns: []string{"id"}, OnDelete: ActionCascade, OnUpdate: ActionRestrict,
	}
	want := "ALTER TABLE posts DROP FOREIGN KEY fk_posts_user, ADD CONSTRAINT fk_posts_user " +
		"FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE ON UPDATE RESTRICT;"
	if got := alterReplaceForeignKey("posts", "fk_posts_user", fk); got != want {
		t.Errorf("alterReplaceForeignKey() =\n  %q\nwant\n  %q", got, want)
	}

	idx := IndexDefinition{Name: "idx_posts_tenant_id", Columns: []string{"tenant_id"}}
	if got, want := alterAddIndex("posts", idx), "ALTER TABLE posts ADD KEY idx_posts_tenant_id (tenant_id);"; got != want {
		t.Errorf("alterAddIndex() = %q, want %q", got, want)
	}
}

func TestRenderDefault(t *testing.T) {
	tests := []struct{ in, want string }{
		{"0", "0"},
		{"1.5", "1.5"},
		{"CURRENT_TIMESTAMP", "CURRENT_TIMESTAMP"},
		{"NOW()", "NOW()"},
		{"(uuid())", "(uuid())"},
		{"b'0'", "b'0'"},
		{"_utf8mb4'x'", "_utf8mb4'x'"},
		{"active", "'active'"},
		{"", "''"},
	}
	for _, tt := range tests {
		if got := renderDefault(tt.in); got != tt.want {
			t.Errorf("renderDefault(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
