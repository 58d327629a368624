package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParseDDL(t *testing.T, path, sql string) *TableSchema {
	t.Helper()
	table, err := parseDDL(path, sql)
	if err != nil {
		t.Fatalf("parseDDL(%s) error: %v", path, err)
	}
	return table
}

func mustParseDetail(t *testing.T, path, doc string) *DetailDocument {
	t.Helper()
	d, err := parseDetailDocument(path, []byte(doc))
	if err != nil {
		t.Fatalf("parseDetailDocument(%s) error: %v", path, err)
	}
	return d
}

// sourceFixture builds an in-memory SourceSet for check tests.
type sourceFixture struct {
	t   *testing.T
	src *SourceSet
	cfg *CheckConfig
}

func newSourceFixture(t *testing.T) *sourceFixture {
	t.Helper()
	cfg := defaultCheckConfig()
	require.NoError(t, cfg.validate())
	return &sourceFixture{
		t:   t,
		cfg: &cfg,
		src: &SourceSet{
			Index:       newTableIndex("table_index.md"),
			ERGraph:     &ERGraph{Path: "er_graph.yaml", Problems: map[string]string{}, byName: map[string]*ERTable{}},
			DDL:         map[string]*TableSchema{},
			Details:     map[string]*DetailDocument{},
			DDLFiles:    map[string]string{},
			DetailFiles: map[string]string{},
			failedFiles: map[SourceOrigin]map[string]bool{OriginDDL: {}, OriginDetailDoc: {}},
		},
	}
}

func (f *sourceFixture) index(names ...string) *sourceFixture {
	for i, n := range names {
		f.src.Index.add(TableIndexEntry{Name: n, Line: i + 1})
	}
	return f
}

func (f *sourceFixture) er(doc string) *sourceFixture {
	f.t.Helper()
	g, err := parseERGraph("er_graph.yaml", []byte(doc))
	require.NoError(f.t, err)
	f.src.ERGraph = g
	return f
}

func (f *sourceFixture) ddl(stem, sql string) *sourceFixture {
	f.t.Helper()
	path := filepath.Join("ddl", stem+".sql")
	f.src.DDL[strings.ToLower(stem)] = mustParseDDL(f.t, path, sql)
	f.src.DDLFiles[strings.ToLower(stem)] = path
	return f
}

func (f *sourceFixture) detail(stem, doc string) *sourceFixture {
	f.t.Helper()
	path := filepath.Join("details", stem+".yaml")
	f.src.Details[strings.ToLower(stem)] = mustParseDetail(f.t, path, doc)
	f.src.DetailFiles[strings.ToLower(stem)] = path
	return f
}

func (f *sourceFixture) env() *checkEnv {
	return &checkEnv{sources: f.src, cfg: f.cfg}
}

// writeTree writes files relative to dir, creating parent directories.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func findingsOf(fs []Finding, check string, sev Severity) []Finding {
	var out []Finding
	for _, f := range fs {
		if f.CheckName == check && f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}
