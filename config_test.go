package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "schemacheck.toml")
	if err := os.WriteFile(cfgFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgFile
}

func TestLoadConfig(t *testing.T) {
	cfgFile := writeConfig(t, `
root = "docs/db"
table_index = "tables.md"
er_graph = "er.yaml"
ddl_dir = "sql"
details_dir = "tables"
workers = 3
checks = ["column_consistency", " foreign_key_consistency ", ""]
tables = ["users"]

[thresholds]
overview_min_length = 20
notes_min_count = 1
rules_min_count = 0

[multitenant]
tenant_column = "org_id"
system_tables = ["orgs"]
system_table_prefixes = []

[traceability]
requirement_id_pattern = '^REQ-\d+$'

[performance]
row_count_threshold = 5000
frequent_filter_columns = ["state"]

[performance.estimated_rows]
orders = 90000

[fixes]
critical_checks = ["column_consistency"]
backup_checks = []
`)

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}

	if cfg.Root != "docs/db" || cfg.TableIndex != "tables.md" || cfg.ERGraph != "er.yaml" {
		t.Errorf("paths = %q %q %q", cfg.Root, cfg.TableIndex, cfg.ERGraph)
	}
	if cfg.DDLDir != "sql" || cfg.DetailsDir != "tables" {
		t.Errorf("dirs = %q %q", cfg.DDLDir, cfg.DetailsDir)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if strings.Join(cfg.Checks, ",") != "column_consistency,foreign_key_consistency" {
		t.Errorf("Checks = %q", cfg.Checks)
	}
	if cfg.Thresholds.OverviewMinLength != 20 || cfg.Thresholds.NotesMinCount != 1 || cfg.Thresholds.RulesMinCount != 0 {
		t.Errorf("Thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Multitenant.TenantColumn != "org_id" || !cfg.isSystemTable("ORGS") || cfg.isSystemTable("sys_log") {
		t.Errorf("Multitenant = %+v", cfg.Multitenant)
	}
	if re := cfg.requirementIDPattern(); !re.MatchString("REQ-12") || re.MatchString("USR.1-DOC.2") {
		t.Errorf("requirement pattern = %s", re)
	}
	if cfg.Performance.RowCountThreshold != 5000 || cfg.Performance.EstimatedRows["orders"] != 90000 {
		t.Errorf("Performance = %+v", cfg.Performance)
	}
	if len(cfg.Fixes.CriticalChecks) != 1 || len(cfg.Fixes.BackupChecks) != 0 {
		t.Errorf("Fixes = %+v", cfg.Fixes)
	}

	dir := filepath.Dir(cfgFile)
	if cfg.configDir != dir {
		t.Errorf("configDir = %q, want %q", cfg.configDir, dir)
	}
	if got, want := cfg.resolvePath(cfg.DDLDir), filepath.Join(dir, "docs/db", "sql"); got != want {
		t.Errorf("resolvePath(ddl_dir) = %q, want %q", got, want)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, "# all defaults\n"))
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}

	if cfg.Root != "." || cfg.TableIndex != "table_index.md" || cfg.ERGraph != "er_graph.yaml" {
		t.Errorf("default paths = %q %q %q", cfg.Root, cfg.TableIndex, cfg.ERGraph)
	}
	if cfg.DDLDir != "ddl" || cfg.DetailsDir != "details" {
		t.Errorf("default dirs = %q %q", cfg.DDLDir, cfg.DetailsDir)
	}
	if cfg.Workers != defaultWorkers() {
		t.Errorf("Workers = %d, want %d", cfg.Workers, defaultWorkers())
	}
	if cfg.Thresholds != (ThresholdConfig{OverviewMinLength: 50, NotesMinCount: 3, RulesMinCount: 3}) {
		t.Errorf("Thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Multitenant.TenantColumn != "tenant_id" {
		t.Errorf("TenantColumn = %q", cfg.Multitenant.TenantColumn)
	}
	for _, name := range []string{"tenants", "schema_migrations", "sys_jobs", "system_flags"} {
		if !cfg.isSystemTable(name) {
			t.Errorf("isSystemTable(%q) = false, want true", name)
		}
	}
	if cfg.isSystemTable("users") {
		t.Error("users should not be a system table")
	}
	if !cfg.requirementIDPattern().MatchString("USR.1-DOC.2") {
		t.Error("default requirement pattern should accept USR.1-DOC.2")
	}
	if cfg.Performance.RowCountThreshold != 100000 {
		t.Errorf("RowCountThreshold = %d", cfg.Performance.RowCountThreshold)
	}
	if len(cfg.Checks) != 0 || len(cfg.Tables) != 0 {
		t.Errorf("Checks/Tables = %v / %v, want empty", cfg.Checks, cfg.Tables)
	}
}

func TestLoadConfig_WorkersNonPositiveUsesDefault(t *testing.T) {
	for _, w := range []string{"0", "-2"} {
		cfg, err := loadConfig(writeConfig(t, "workers = "+w+"\n"))
		if err != nil {
			t.Fatalf("loadConfig(workers=%s) error: %v", w, err)
		}
		if cfg.Workers != defaultWorkers() {
			t.Errorf("workers=%s: Workers = %d, want %d", w, cfg.Workers, defaultWorkers())
		}
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "colour = \"red\"\n", "unknown config keys: colour"},
		{"unknown nested key", "[thresholds]\noverview_min = 3\n", "thresholds.overview_min"},
		{"blank ddl dir", "ddl_dir = \"  \"\n", "ddl_dir is required"},
		{"negative threshold", "[thresholds]\nnotes_min_count = -1\n", "must not be negative"},
		{"blank tenant column", "[multitenant]\ntenant_column = \"\"\n", "tenant_column is required"},
		{"bad pattern", "[traceability]\nrequirement_id_pattern = \"([A-Z\"\n", "requirement_id_pattern"},
		{"negative row threshold", "[performance]\nrow_count_threshold = -5\n", "row_count_threshold"},
		{"invalid toml", "workers = \n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("loadConfig(missing) error = %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	cfg := &CheckConfig{Root: ".", configDir: "/home/user/schema"}

	got := cfg.resolvePath("ddl")
	want := "/home/user/schema/ddl"
	if got != want {
		t.Errorf("resolvePath(relative) = %q, want %q", got, want)
	}

	got = cfg.resolvePath("/absolute/er.yaml")
	want = "/absolute/er.yaml"
	if got != want {
		t.Errorf("resolvePath(absolute) = %q, want %q", got, want)
	}

	cfg.Root = "/srv/docs"
	got = cfg.resolvePath("details")
	want = "/srv/docs/details"
	if got != want {
		t.Errorf("resolvePath(absolute root) = %q, want %q", got, want)
	}
}

func TestDefaultWorkers(t *testing.T) {
	got := defaultWorkers()
	if got < 1 || got > 8 {
		t.Fatalf("defaultWorkers() out of bounds: %d", got)
	}

	want := runtime.NumCPU()
	if want < 1 {
		want = 1
	}
	if want > 8 {
		want = 8
	}
	if got != want {
		t.Fatalf("defaultWorkers() = %d, want %d", got, want)
	}
}
