package main

import (
	"fmt"
	"sort"
	"strings"
)

// Registered check names.
const (
	checkTableExistence        = "table_existence"
	checkOrphanedFiles         = "orphaned_files"
	checkColumnConsistency     = "column_consistency"
	checkForeignKeyConsistency = "foreign_key_consistency"
	checkDataTypeConsistency   = "data_type_consistency"
	checkConstraintConsistency = "constraint_consistency"
	checkYAMLFormatConsistency = "yaml_format_consistency"
	checkMultitenantCompliance = "multitenant_compliance"
	checkRequirementTrace      = "requirement_traceability"
	checkPerformanceImpact     = "performance_impact"
	checkFixSuggestions        = "fix_suggestions"
)

type checkScope int

const (
	// scopeTable checks run once per target table.
	scopeTable checkScope = iota
	// scopeGlobal checks run once over the whole target set.
	scopeGlobal
	// scopeDerived checks consume the findings of the others.
	scopeDerived
)

// checkEnv is the read-only input every check receives.
type checkEnv struct {
	sources *SourceSet
	cfg     *CheckConfig
}

// CheckFunc inspects a set of tables and returns fresh findings.
type CheckFunc func(env *checkEnv, tables []string) []Finding

// tableCheckFunc inspects a single table.
type tableCheckFunc func(env *checkEnv, table string) []Finding

// Check is one registered check module.
type Check struct {
	Name        string
	Description string
	scope       checkScope
	run         CheckFunc
}

// perTable adapts a single-table check. A table with no findings gets one
// SUCCESS finding so clean tables are visible in the report.
func perTable(name string, fn tableCheckFunc) CheckFunc {
	return func(env *checkEnv, tables []string) []Finding {
		var out []Finding
		for _, table := range tables {
			fs := fn(env, table)
			if len(fs) == 0 {
				fs = []Finding{newFinding(name, table, SeveritySuccess, "no issues found", nil)}
			}
			out = append(out, fs...)
		}
		return out
	}
}

// Registry is an explicitly constructed, immutable set of checks.
type Registry struct {
	checks []Check
	byName map[string]int
}

// ConfigurationError reports a caller mistake detected before any source is read.
type ConfigurationError struct {
	Unknown []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Unknown) > 0 {
		return fmt.Sprintf("configuration error: %s: %s", e.Reason, strings.Join(e.Unknown, ", "))
	}
	return "configuration error: " + e.Reason
}

func newRegistry(checks ...Check) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(checks))}
	for _, c := range checks {
		if c.Name == "" {
			return nil, fmt.Errorf("check without a name")
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("check %q registered twice", c.Name)
		}
		if c.run == nil && c.scope != scopeDerived {
			return nil, fmt.Errorf("check %q has no implementation", c.Name)
		}
		r.byName[c.Name] = len(r.checks)
		r.checks = append(r.checks, c)
	}
	return r, nil
}

// defaultRegistry returns the built-in checks in their run order.
func defaultRegistry() *Registry {
	r, err := newRegistry(
		Check{Name: checkTableExistence, Description: "table is present in index, ER graph, DDL and detail docs", scope: scopeTable, run: perTable(checkTableExistence, checkTableExistenceFor)},
		Check{Name: checkOrphanedFiles, Description: "DDL and detail-doc files for tables missing from the index", scope: scopeGlobal, run: checkOrphanedFilesAll},
		Check{Name: checkColumnConsistency, Description: "DDL columns match detail-doc columns", scope: scopeTable, run: perTable(checkColumnConsistency, checkColumnConsistencyFor)},
		Check{Name: checkForeignKeyConsistency, Description: "ER graph and detail-doc foreign keys match DDL", scope: scopeTable, run: perTable(checkForeignKeyConsistency, checkForeignKeyConsistencyFor)},
		Check{Name: checkDataTypeConsistency, Description: "column types match component by component", scope: scopeTable, run: perTable(checkDataTypeConsistency, checkDataTypeConsistencyFor)},
		Check{Name: checkConstraintConsistency, Description: "primary key, unique, check and index sets match", scope: scopeTable, run: perTable(checkConstraintConsistency, checkConstraintConsistencyFor)},
		Check{Name: checkYAMLFormatConsistency, Description: "detail docs carry the required sections and content", scope: scopeTable, run: perTable(checkYAMLFormatConsistency, checkYAMLFormatFor)},
		Check{Name: checkMultitenantCompliance, Description: "tenant column, tenant index and tenant-safe foreign keys", scope: scopeTable, run: perTable(checkMultitenantCompliance, checkMultitenantFor)},
		Check{Name: checkRequirementTrace, Description: "tables and columns carry valid requirement IDs", scope: scopeTable, run: perTable(checkRequirementTrace, checkRequirementTraceFor)},
		Check{Name: checkPerformanceImpact, Description: "foreign keys and hot filter columns are indexed", scope: scopeTable, run: perTable(checkPerformanceImpact, checkPerformanceFor)},
		Check{Name: checkFixSuggestions, Description: "derive fix suggestions from ERROR and WARNING findings", scope: scopeDerived},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Names returns registered check names in run order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.checks))
	for i, c := range r.checks {
		names[i] = c.Name
	}
	return names
}

func (r *Registry) Checks() []Check {
	return append([]Check(nil), r.checks...)
}

func (r *Registry) Lookup(name string) (Check, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Check{}, false
	}
	return r.checks[i], true
}

// resolve validates names and returns the matching checks in registry order.
// An empty list selects every check.
func (r *Registry) resolve(names []string) ([]Check, error) {
	if len(names) == 0 {
		return r.Checks(), nil
	}
	want := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, ok := r.byName[n]; !ok {
			unknown = append(unknown, n)
			continue
		}
		want[n] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &ConfigurationError{Unknown: unknown, Reason: "unknown check name(s)"}
	}
	var out []Check
	for _, c := range r.checks {
		if want[c.Name] {
			out = append(out, c)
		}
	}
	return out, nil
}
