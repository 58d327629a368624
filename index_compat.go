package main

import "fmt"

// indexLookupGap reports why an index cannot serve equality lookups on its
// leading columns, such as the lookups behind a foreign key or a tenant filter.
func indexLookupGap(idx IndexDefinition) (string, bool) {
	if idx.HasExpression {
		return "expression key parts cannot serve column lookups", true
	}
	if idx.HasPrefix {
		return "prefix key parts only index a leading substring", true
	}
	switch idx.Type {
	case "", "BTREE", "HASH":
	default:
		return fmt.Sprintf("%s indexes cannot serve equality lookups", idx.Type), true
	}
	if len(idx.Columns) == 0 {
		return "index has no plain column key parts", true
	}
	return "", false
}

// lookupIndexGaps lists, for indexes that start with cols but cannot serve
// lookups, the reason each one is unusable.
func lookupIndexGaps(t *TableSchema, cols []string) []string {
	var gaps []string
	for _, idx := range t.Indexes {
		if !startsWithColumns(idx.Columns, cols) {
			continue
		}
		if reason, unusable := indexLookupGap(idx); unusable {
			gaps = append(gaps, fmt.Sprintf("%s: %s", firstNonEmpty(idx.Name, "(unnamed)"), reason))
		}
	}
	return gaps
}
