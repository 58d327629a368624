package main

import (
	"strings"
	"testing"
)

func TestIndexLookupGap(t *testing.T) {
	tests := []struct {
		name string
		idx  IndexDefinition
		gap  bool
	}{
		{"plain", IndexDefinition{Name: "idx_a", Columns: []string{"a"}}, false},
		{"btree", IndexDefinition{Name: "idx_b", Type: "BTREE", Columns: []string{"a"}}, false},
		{"prefix index", IndexDefinition{Name: "idx_p", Columns: []string{"a"}, HasPrefix: true}, true},
		{"expression index", IndexDefinition{Name: "idx_e", HasExpression: true}, true},
		{"fulltext", IndexDefinition{Name: "idx_f", Type: "FULLTEXT", Columns: []string{"body"}}, true},
		{"no columns", IndexDefinition{Name: "idx_n"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, gap := indexLookupGap(tt.idx)
			if gap != tt.gap {
				t.Fatalf("indexLookupGap() gap=%t, want %t", gap, tt.gap)
			}
		})
	}
}

func TestLeadingIndexedIgnoresUnusableIndexes(t *testing.T) {
	table := mustParseDDL(t, "posts.sql", `CREATE TABLE posts (
  id INT NOT NULL,
  author_id INT NOT NULL,
  body TEXT,
  slug VARCHAR(200) NOT NULL,
  PRIMARY KEY (id),
  FULLTEXT KEY ft_body (body),
  KEY idx_slug (slug(20))
)`)

	if !leadingIndexed(table, []string{"id"}) {
		t.Error("primary key should cover id")
	}
	if leadingIndexed(table, []string{"body"}) {
		t.Error("fulltext index should not cover body lookups")
	}
	if leadingIndexed(table, []string{"slug"}) {
		t.Error("prefix index should not cover slug lookups")
	}
	if leadingIndexed(table, []string{"author_id"}) {
		t.Error("author_id has no index")
	}

	gaps := lookupIndexGaps(table, []string{"slug"})
	if len(gaps) != 1 || !strings.HasPrefix(gaps[0], "idx_slug:") {
		t.Fatalf("lookupIndexGaps(slug) = %v", gaps)
	}
}
