package main

import (
	"strings"
	"time"
)

// ConsistencyReport is the result of one run. buildReport is its only producer
// and nothing modifies it afterwards.
type ConsistencyReport struct {
	RunID       string           `json:"run_id"`
	CheckDate   time.Time        `json:"check_date"`
	TotalTables int              `json:"total_tables"`
	TotalChecks int              `json:"total_checks"`
	Checks      []string         `json:"checks"`
	Tables      []string         `json:"tables"`
	Findings    []Finding        `json:"findings"`
	Fixes       []FixSuggestion  `json:"fixes"`
	Summary     map[Severity]int `json:"summary"`
}

type reportInput struct {
	runID       string
	checkDate   time.Time
	tables      []string
	checks      []string
	totalChecks int
	findings    []Finding
	fixes       []FixSuggestion
}

func buildReport(in reportInput) *ConsistencyReport {
	r := &ConsistencyReport{
		RunID:       in.runID,
		CheckDate:   in.checkDate,
		TotalTables: len(in.tables),
		TotalChecks: in.totalChecks,
		Checks:      append([]string(nil), in.checks...),
		Tables:      append([]string(nil), in.tables...),
		Findings:    append([]Finding(nil), in.findings...),
		Fixes:       append([]FixSuggestion(nil), in.fixes...),
		Summary:     make(map[Severity]int, len(allSeverities)),
	}
	if r.Findings == nil {
		r.Findings = []Finding{}
	}
	if r.Fixes == nil {
		r.Fixes = []FixSuggestion{}
	}
	for _, s := range allSeverities {
		r.Summary[s] = 0
	}
	for _, f := range r.Findings {
		r.Summary[f.Severity]++
	}
	return r
}

// FindingsFor returns the findings of one table; "" selects global findings.
func (r *ConsistencyReport) FindingsFor(table string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if strings.EqualFold(f.TableName, table) {
			out = append(out, f)
		}
	}
	return out
}

// TableStatus is the worst severity among a table's findings.
func (r *ConsistencyReport) TableStatus(table string) Severity {
	return worstSeverity(r.FindingsFor(table))
}

func (r *ConsistencyReport) HasErrors() bool {
	return r.Summary[SeverityError] > 0
}

// AtLeast reports whether any finding is at least as severe as s.
func (r *ConsistencyReport) AtLeast(s Severity) bool {
	for sev, n := range r.Summary {
		if sev >= s && n > 0 {
			return true
		}
	}
	return false
}
