package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// CheckConfig holds the full TOML-driven configuration of a consistency run.
type CheckConfig struct {
	Root         string             `toml:"root"`
	TableIndex   string             `toml:"table_index"`
	ERGraph      string             `toml:"er_graph"`
	DDLDir       string             `toml:"ddl_dir"`
	DetailsDir   string             `toml:"details_dir"`
	Workers      int                `toml:"workers"`
	Checks       []string           `toml:"checks"` // empty = every registered check
	Tables       []string           `toml:"tables"` // empty = every table in the index
	Thresholds   ThresholdConfig    `toml:"thresholds"`
	Multitenant  MultitenantConfig  `toml:"multitenant"`
	Traceability TraceabilityConfig `toml:"traceability"`
	Performance  PerformanceConfig  `toml:"performance"`
	Fixes        FixPolicyConfig    `toml:"fixes"`

	// configDir is the directory containing the TOML file, used to resolve relative paths.
	configDir string
	reqIDRe   *regexp.Regexp
}

// ThresholdConfig sets the minimum documentation content per detail document.
type ThresholdConfig struct {
	OverviewMinLength int `toml:"overview_min_length"`
	NotesMinCount     int `toml:"notes_min_count"`
	RulesMinCount     int `toml:"rules_min_count"`
}

type MultitenantConfig struct {
	TenantColumn        string   `toml:"tenant_column"`
	SystemTables        []string `toml:"system_tables"`
	SystemTablePrefixes []string `toml:"system_table_prefixes"`
}

type TraceabilityConfig struct {
	RequirementIDPattern string `toml:"requirement_id_pattern"`
}

// PerformanceConfig drives the index heuristics. EstimatedRows overrides or
// supplements the estimated_rows field of detail documents.
type PerformanceConfig struct {
	RowCountThreshold     int64            `toml:"row_count_threshold"`
	FrequentFilterColumns []string         `toml:"frequent_filter_columns"`
	EstimatedRows         map[string]int64 `toml:"estimated_rows"`
}

// FixPolicyConfig decides which fix suggestions are critical and which need a
// backup step, by the check that produced the finding.
type FixPolicyConfig struct {
	CriticalChecks []string `toml:"critical_checks"`
	BackupChecks   []string `toml:"backup_checks"`
}

const defaultRequirementIDPattern = `^[A-Z]{3,}\.\d+-[A-Z]{3,}\.\d+$`

func defaultCheckConfig() CheckConfig {
	return CheckConfig{
		Root:       ".",
		TableIndex: "table_index.md",
		ERGraph:    "er_graph.yaml",
		DDLDir:     "ddl",
		DetailsDir: "details",
		Thresholds: ThresholdConfig{
			OverviewMinLength: 50,
			NotesMinCount:     3,
			RulesMinCount:     3,
		},
		Multitenant: MultitenantConfig{
			TenantColumn:        "tenant_id",
			SystemTables:        []string{"tenants", "schema_migrations"},
			SystemTablePrefixes: []string{"sys_", "system_"},
		},
		Traceability: TraceabilityConfig{RequirementIDPattern: defaultRequirementIDPattern},
		Performance: PerformanceConfig{
			RowCountThreshold:     100000,
			FrequentFilterColumns: []string{"status", "created_at"},
		},
		Fixes: FixPolicyConfig{
			CriticalChecks: []string{checkColumnConsistency, checkDataTypeConsistency, checkForeignKeyConsistency, checkMultitenantCompliance},
			BackupChecks:   []string{checkColumnConsistency, checkDataTypeConsistency, checkForeignKeyConsistency, checkConstraintConsistency},
		},
	}
}

// loadConfig reads a TOML config file and returns a CheckConfig with defaults applied.
func loadConfig(path string) (*CheckConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultCheckConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate normalizes and checks a config. Check names are validated later
// against the registry, which owns them.
func (c *CheckConfig) validate() error {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers()
	}
	if strings.TrimSpace(c.Root) == "" {
		c.Root = "."
	}

	for _, p := range []struct {
		key string
		v   *string
	}{
		{"table_index", &c.TableIndex},
		{"er_graph", &c.ERGraph},
		{"ddl_dir", &c.DDLDir},
		{"details_dir", &c.DetailsDir},
	} {
		*p.v = strings.TrimSpace(*p.v)
		if *p.v == "" {
			return fmt.Errorf("%s is required", p.key)
		}
	}

	c.Checks = trimNonEmpty(c.Checks)
	c.Tables = trimNonEmpty(c.Tables)

	if c.Thresholds.OverviewMinLength < 0 || c.Thresholds.NotesMinCount < 0 || c.Thresholds.RulesMinCount < 0 {
		return fmt.Errorf("thresholds must not be negative")
	}

	c.Multitenant.TenantColumn = strings.TrimSpace(c.Multitenant.TenantColumn)
	if c.Multitenant.TenantColumn == "" {
		return fmt.Errorf("multitenant.tenant_column is required")
	}

	if strings.TrimSpace(c.Traceability.RequirementIDPattern) == "" {
		c.Traceability.RequirementIDPattern = defaultRequirementIDPattern
	}
	re, err := regexp.Compile(c.Traceability.RequirementIDPattern)
	if err != nil {
		return fmt.Errorf("traceability.requirement_id_pattern: %w", err)
	}
	c.reqIDRe = re

	if c.Performance.RowCountThreshold < 0 {
		return fmt.Errorf("performance.row_count_threshold must not be negative")
	}
	return nil
}

// requirementIDPattern returns the compiled requirement-ID pattern.
func (c *CheckConfig) requirementIDPattern() *regexp.Regexp {
	if c.reqIDRe == nil {
		c.reqIDRe = regexp.MustCompile(c.Traceability.RequirementIDPattern)
	}
	return c.reqIDRe
}

// resolvePath resolves a source path relative to root, and root relative to
// the config file directory.
func (c *CheckConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	root := c.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(c.configDir, root)
	}
	return filepath.Join(root, p)
}

// isSystemTable reports whether a table is exempt from tenant rules.
func (c *CheckConfig) isSystemTable(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range c.Multitenant.SystemTables {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	for _, p := range c.Multitenant.SystemTablePrefixes {
		if p != "" && strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func trimNonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}
