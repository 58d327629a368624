package main

import (
	"fmt"
	"strings"
)

// schemaFor returns the best available description of a table, DDL first.
func schemaFor(src *SourceSet, table string) (*TableSchema, bool) {
	if t, ok := src.ddl(table); ok {
		return t, true
	}
	if d, ok := src.detail(table); ok {
		return d.Schema, true
	}
	return nil, false
}

// leadingIndexed reports whether the primary key, or an index usable for
// lookups, starts with cols in order.
func leadingIndexed(t *TableSchema, cols []string) bool {
	if len(cols) == 0 {
		return false
	}
	if startsWithColumns(t.PrimaryKey(), cols) {
		return true
	}
	for _, idx := range t.Indexes {
		if _, unusable := indexLookupGap(idx); unusable {
			continue
		}
		if startsWithColumns(idx.Columns, cols) {
			return true
		}
	}
	return false
}

func startsWithColumns(idx, cols []string) bool {
	if len(cols) == 0 || len(idx) < len(cols) {
		return false
	}
	for i, c := range cols {
		if !strings.EqualFold(idx[i], c) {
			return false
		}
	}
	return true
}

// Values of the "rule" detail on multitenant findings.
const (
	ruleTenantColumn     = "tenant_column"
	ruleTenantNullable   = "tenant_nullable"
	ruleTenantIndex      = "tenant_index"
	ruleTenantForeignKey = "tenant_foreign_key"
)

func checkMultitenantFor(env *checkEnv, table string) []Finding {
	cfg := env.cfg
	if cfg.isSystemTable(table) {
		return []Finding{newFinding(checkMultitenantCompliance, table, SeverityInfo,
			"system table, exempt from tenant rules", map[string]string{"exempt": "true"})}
	}
	t, ok := schemaFor(env.sources, table)
	if !ok {
		return []Finding{newFinding(checkMultitenantCompliance, table, SeverityInfo,
			"skipped: no DDL or detail doc", map[string]string{"skipped": "true"})}
	}
	return tenantFindings(env.sources, cfg, table, t)
}

func tenantFindings(src *SourceSet, cfg *CheckConfig, table string, t *TableSchema) []Finding {
	tenant := cfg.Multitenant.TenantColumn
	col, ok := t.Column(tenant)
	if !ok {
		return []Finding{newFinding(checkMultitenantCompliance, table, SeverityError,
			fmt.Sprintf("table %s has no %s column", table, tenant),
			map[string]string{"column": tenant, "source": string(t.Origin), "rule": ruleTenantColumn})}
	}

	var out []Finding
	if col.Nullable {
		out = append(out, newFinding(checkMultitenantCompliance, table, SeverityWarning,
			fmt.Sprintf("%s column is nullable", tenant),
			map[string]string{"column": tenant, "source": string(t.Origin), "rule": ruleTenantNullable}))
	}
	if !leadingIndexed(t, []string{tenant}) {
		out = append(out, newFinding(checkMultitenantCompliance, table, SeverityWarning,
			fmt.Sprintf("no index starts with %s", tenant),
			map[string]string{"column": tenant, "source": string(t.Origin), "rule": ruleTenantIndex}))
	}

	for _, fk := range t.ForeignKeys {
		if cfg.isSystemTable(fk.ReferencedTable) || strings.EqualFold(fk.ReferencedTable, table) {
			continue
		}
		ref, ok := schemaFor(src, fk.ReferencedTable)
		if !ok || !ref.HasColumn(tenant) {
			continue
		}
		if !containsFold(fk.Columns, tenant) {
			out = append(out, newFinding(checkMultitenantCompliance, table, SeverityInfo,
				fmt.Sprintf("foreign key %s references tenant-scoped table %s without %s", fkLabel(&fk), fk.ReferencedTable, tenant),
				map[string]string{"foreign_key": fk.identity(), "referenced_table": fk.ReferencedTable, "column": tenant, "rule": ruleTenantForeignKey}))
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
