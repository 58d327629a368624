package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// runPhase is the orchestrator's state.
type runPhase int

const (
	phaseIdle runPhase = iota
	phaseLoadingSources
	phaseRunningChecks
	phaseBuildingReport
	phaseDone
)

func (p runPhase) String() string {
	switch p {
	case phaseIdle:
		return "IDLE"
	case phaseLoadingSources:
		return "LOADING_SOURCES"
	case phaseRunningChecks:
		return "RUNNING_CHECKS"
	case phaseBuildingReport:
		return "BUILDING_REPORT"
	case phaseDone:
		return "DONE"
	default:
		return fmt.Sprintf("runPhase(%d)", int(p))
	}
}

type sourceLoader func(ctx context.Context, cfg *CheckConfig) (*SourceSet, error)

// Orchestrator resolves checks, loads sources, fans check units out to workers
// and assembles the report. It is not safe for concurrent use; each unit it
// runs only reads shared state.
type Orchestrator struct {
	cfg      *CheckConfig
	registry *Registry

	// onProgress, when set, is called after every finished unit. It may be
	// called from several goroutines at once.
	onProgress func(done, total int)

	load    sourceLoader
	logf    func(format string, args ...any)
	now     func() time.Time
	sources *SourceSet
	phase   runPhase
}

func newOrchestrator(cfg *CheckConfig, reg *Registry) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		load:     loadSources,
		logf:     log.Printf,
		now:      time.Now,
	}
}

func (o *Orchestrator) Phase() runPhase {
	return o.phase
}

// RunAll runs every registered check against freshly loaded sources.
func (o *Orchestrator) RunAll(ctx context.Context) (*ConsistencyReport, error) {
	checks, err := o.registry.resolve(nil)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, checks, true)
}

// RunSpecificChecks runs the named checks. Unknown names fail with a
// *ConfigurationError before any source is read. Sources loaded by an earlier
// run of this orchestrator are reused.
func (o *Orchestrator) RunSpecificChecks(ctx context.Context, names []string) (*ConsistencyReport, error) {
	if len(names) == 0 {
		return nil, &ConfigurationError{Reason: "no checks requested"}
	}
	checks, err := o.registry.resolve(names)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, checks, false)
}

// checkUnit is one (check, table subset) pair.
type checkUnit struct {
	check  Check
	tables []string
}

func (o *Orchestrator) run(ctx context.Context, checks []Check, reload bool) (*ConsistencyReport, error) {
	o.phase = phaseIdle

	if reload || o.sources == nil {
		o.phase = phaseLoadingSources
		o.logf("loading sources...")
		src, err := o.load(ctx, o.cfg)
		if err != nil {
			o.phase = phaseIdle
			return nil, fmt.Errorf("load sources: %w", err)
		}
		o.sources = src
		o.logf("  %d index entries, %d ER graph tables, %d DDL files, %d detail docs, %d load failures",
			len(src.Index.Entries), len(src.ERGraph.Tables), len(src.DDLFiles), len(src.DetailFiles), len(src.Failures))
	} else {
		o.logf("reusing loaded sources")
	}

	tables, err := o.targetTables()
	if err != nil {
		o.phase = phaseIdle
		return nil, err
	}

	env := &checkEnv{sources: o.sources, cfg: o.cfg}
	var units []checkUnit
	var names []string
	runFixes := false
	for _, c := range checks {
		names = append(names, c.Name)
		switch c.scope {
		case scopeTable:
			for _, t := range tables {
				units = append(units, checkUnit{check: c, tables: []string{t}})
			}
		case scopeGlobal:
			units = append(units, checkUnit{check: c, tables: tables})
		case scopeDerived:
			runFixes = true
		}
	}

	o.phase = phaseRunningChecks
	o.logf("running %d check(s) over %d table(s): %d units with %d workers", len(checks), len(tables), len(units), o.cfg.Workers)
	results, err := o.runUnits(ctx, env, units)
	if err != nil {
		o.phase = phaseIdle
		return nil, err
	}

	o.phase = phaseBuildingReport
	findings := append([]Finding(nil), o.sources.Failures...)
	for _, r := range results {
		findings = append(findings, r...)
	}
	sortFindings(findings)

	var fixes []FixSuggestion
	if runFixes {
		fixes = generateFixes(findings, o.sources, o.cfg)
		o.logf("  %d fix suggestion(s)", len(fixes))
	}

	report := buildReport(reportInput{
		runID:       uuid.NewString(),
		checkDate:   o.now(),
		tables:      tables,
		checks:      names,
		totalChecks: len(units),
		findings:    findings,
		fixes:       fixes,
	})
	o.phase = phaseDone
	return report, nil
}

// runUnits executes units on a bounded worker pool. Each unit writes only its
// own result slot; on cancellation the partial results are discarded.
func (o *Orchestrator) runUnits(ctx context.Context, env *checkEnv, units []checkUnit) ([][]Finding, error) {
	results := make([][]Finding, len(units))
	var done atomic.Int64
	total := len(units)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = u.check.run(env, u.tables)
			n := done.Add(1)
			if o.onProgress != nil {
				o.onProgress(int(n), total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// targetTables returns the configured table subset, or every indexed table.
// A requested table that no source mentions is a configuration error.
func (o *Orchestrator) targetTables() ([]string, error) {
	if len(o.cfg.Tables) == 0 {
		return o.sources.Index.Names(), nil
	}
	var out, unknown []string
	seen := make(map[string]bool)
	for _, t := range o.cfg.Tables {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		if !o.sources.knows(t) {
			unknown = append(unknown, t)
			continue
		}
		out = append(out, t)
	}
	if len(unknown) > 0 {
		return nil, &ConfigurationError{Unknown: unknown, Reason: "table(s) not found in any source"}
	}
	return out, nil
}
