package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// checkParse is the check name carried by findings produced while loading sources.
const checkParse = "parse"

// SourceSet is the read-only snapshot of all four sources for one run.
type SourceSet struct {
	Index   *TableIndex
	ERGraph *ERGraph

	// DDL and Details are keyed by lowercased file stem.
	DDL     map[string]*TableSchema
	Details map[string]*DetailDocument

	// DDLFiles and DetailFiles record every table file found on disk, parsed or
	// not, keyed by lowercased file stem.
	DDLFiles    map[string]string
	DetailFiles map[string]string

	// Failures holds one ERROR finding per source that could not be loaded.
	Failures []Finding

	// failedFiles marks stems whose file exists but failed to parse, per origin.
	failedFiles map[SourceOrigin]map[string]bool
}

func (s *SourceSet) ddl(table string) (*TableSchema, bool) {
	t, ok := s.DDL[strings.ToLower(table)]
	return t, ok
}

func (s *SourceSet) detail(table string) (*DetailDocument, bool) {
	d, ok := s.Details[strings.ToLower(table)]
	return d, ok
}

func (s *SourceSet) hasDDLFile(table string) bool {
	_, ok := s.DDLFiles[strings.ToLower(table)]
	return ok
}

func (s *SourceSet) hasDetailFile(table string) bool {
	_, ok := s.DetailFiles[strings.ToLower(table)]
	return ok
}

// parseFailed reports whether the table's file for origin exists but could not be parsed.
func (s *SourceSet) parseFailed(origin SourceOrigin, table string) bool {
	return s.failedFiles[origin][strings.ToLower(table)]
}

// allTableNames returns every table name seen in any source, sorted.
func (s *SourceSet) allTableNames() []string {
	seen := make(map[string]string)
	add := func(name string) {
		if _, ok := seen[strings.ToLower(name)]; !ok {
			seen[strings.ToLower(name)] = name
		}
	}
	for _, n := range s.Index.Names() {
		add(n)
	}
	if s.ERGraph != nil {
		for _, t := range s.ERGraph.Tables {
			add(t.Name)
		}
	}
	for stem := range s.DDLFiles {
		add(stem)
	}
	for stem := range s.DetailFiles {
		add(stem)
	}
	names := make([]string, 0, len(seen))
	for _, n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// knows reports whether any source mentions the table.
func (s *SourceSet) knows(table string) bool {
	return s.Index.Has(table) || s.ERGraph.Has(table) || s.hasDDLFile(table) || s.hasDetailFile(table)
}

type sourceFile struct {
	origin SourceOrigin
	stem   string
	path   string
}

// loadResult is written by exactly one loader goroutine.
type loadResult struct {
	ddl     *TableSchema
	detail  *DetailDocument
	failure *Finding
}

// loadSources reads and parses every source under cfg. Parse failures become
// findings; only I/O problems on the directories themselves and cancellation
// are returned as errors.
func loadSources(ctx context.Context, cfg *CheckConfig) (*SourceSet, error) {
	set := &SourceSet{
		DDL:         make(map[string]*TableSchema),
		Details:     make(map[string]*DetailDocument),
		DDLFiles:    make(map[string]string),
		DetailFiles: make(map[string]string),
		failedFiles: map[SourceOrigin]map[string]bool{
			OriginDDL:       {},
			OriginDetailDoc: {},
		},
	}

	ddlFiles, dupDDL, err := listTableFiles(cfg.resolvePath(cfg.DDLDir), OriginDDL, ".sql")
	if err != nil {
		return nil, err
	}
	detailFiles, dupDetail, err := listTableFiles(cfg.resolvePath(cfg.DetailsDir), OriginDetailDoc, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	set.Failures = append(set.Failures, dupDDL...)
	set.Failures = append(set.Failures, dupDetail...)

	files := append(ddlFiles, detailFiles...)
	results := make([]loadResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	var indexFailure, erFailure *Finding
	g.Go(func() error {
		set.Index, indexFailure = loadTableIndex(cfg.resolvePath(cfg.TableIndex))
		return gctx.Err()
	})
	g.Go(func() error {
		set.ERGraph, erFailure = loadERGraph(cfg.resolvePath(cfg.ERGraph))
		return gctx.Err()
	})

	for i, sf := range files {
		i, sf := i, sf
		switch sf.origin {
		case OriginDDL:
			set.DDLFiles[strings.ToLower(sf.stem)] = sf.path
		case OriginDetailDoc:
			set.DetailFiles[strings.ToLower(sf.stem)] = sf.path
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = loadTableFile(sf)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if indexFailure != nil {
		set.Failures = append(set.Failures, *indexFailure)
	}
	if erFailure != nil {
		set.Failures = append(set.Failures, *erFailure)
	}
	for name, problem := range set.ERGraph.Problems {
		set.Failures = append(set.Failures, parseFailureFinding(name, &ParseFailure{
			Path: set.ERGraph.Path, Origin: OriginERGraph, Reason: problem,
		}))
	}

	for i, r := range results {
		sf := files[i]
		key := strings.ToLower(sf.stem)
		switch {
		case r.failure != nil:
			set.Failures = append(set.Failures, *r.failure)
			set.failedFiles[sf.origin][key] = true
		case r.ddl != nil:
			set.DDL[key] = r.ddl
		case r.detail != nil:
			set.Details[key] = r.detail
		}
	}

	sortFindings(set.Failures)
	return set, nil
}

// listTableFiles lists table files in dir by extension. A missing directory
// yields no files. Two files with the same stem are reported; the first wins.
func listTableFiles(dir string, origin SourceOrigin, exts ...string) ([]sourceFile, []Finding, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, []Finding{newFinding(checkParse, "", SeverityError,
				fmt.Sprintf("%s directory %s does not exist", origin.label(), dir),
				map[string]string{"file": dir, "source": string(origin)})}, nil
		}
		return nil, nil, fmt.Errorf("read %s directory: %w", origin.label(), err)
	}

	var files []sourceFile
	var dups []Finding
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !hasExt(ext, exts) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		path := filepath.Join(dir, e.Name())
		if first, ok := seen[strings.ToLower(stem)]; ok {
			dups = append(dups, newFinding(checkParse, stem, SeverityError,
				fmt.Sprintf("duplicate %s for table %s: %s ignored, using %s", origin.label(), stem, path, first),
				map[string]string{"file": path, "source": string(origin)}))
			continue
		}
		seen[strings.ToLower(stem)] = path
		files = append(files, sourceFile{origin: origin, stem: stem, path: path})
	}
	return files, dups, nil
}

func hasExt(ext string, exts []string) bool {
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func loadTableFile(sf sourceFile) loadResult {
	data, err := os.ReadFile(sf.path)
	if err != nil {
		f := parseFailureFinding(sf.stem, &ParseFailure{Path: sf.path, Origin: sf.origin, Reason: err.Error()})
		return loadResult{failure: &f}
	}
	switch sf.origin {
	case OriginDDL:
		t, err := parseDDL(sf.path, string(data))
		if err != nil {
			f := parseFailureFinding(sf.stem, err)
			return loadResult{failure: &f}
		}
		return loadResult{ddl: t}
	default:
		d, err := parseDetailDocument(sf.path, data)
		if err != nil {
			f := parseFailureFinding(sf.stem, err)
			return loadResult{failure: &f}
		}
		return loadResult{detail: d}
	}
}

// loadTableIndex never fails the run: an unreadable index is a finding and an
// empty index.
func loadTableIndex(path string) (*TableIndex, *Finding) {
	data, err := os.ReadFile(path)
	if err != nil {
		f := parseFailureFinding("", &ParseFailure{Path: path, Origin: OriginIndex, Reason: err.Error()})
		return newTableIndex(path), &f
	}
	ix, err := parseTableIndex(path, string(data))
	if err != nil {
		f := parseFailureFinding("", err)
		return newTableIndex(path), &f
	}
	return ix, nil
}

func loadERGraph(path string) (*ERGraph, *Finding) {
	empty := &ERGraph{Path: path, Problems: map[string]string{}, byName: map[string]*ERTable{}}
	data, err := os.ReadFile(path)
	if err != nil {
		f := parseFailureFinding("", &ParseFailure{Path: path, Origin: OriginERGraph, Reason: err.Error()})
		return empty, &f
	}
	g, err := parseERGraph(path, data)
	if err != nil {
		f := parseFailureFinding("", err)
		return empty, &f
	}
	return g, nil
}

// parseFailureFinding turns a load error into the single ERROR finding for that file.
func parseFailureFinding(table string, err error) Finding {
	details := map[string]string{}
	var pf *ParseFailure
	if errors.As(err, &pf) {
		details["file"] = pf.Path
		details["source"] = string(pf.Origin)
	}
	return newFinding(checkParse, table, SeverityError, err.Error(), details)
}
