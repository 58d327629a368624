package main

import (
	"fmt"
	"sort"
	"strings"
)

// Severity ranks findings. The zero value is SUCCESS; ERROR is most severe.
type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

var severityNames = [...]string{"SUCCESS", "INFO", "WARNING", "ERROR"}

// allSeverities lists severities from most to least severe.
var allSeverities = []Severity{SeverityError, SeverityWarning, SeverityInfo, SeveritySuccess}

func (s Severity) String() string {
	if s < SeveritySuccess || s > SeverityError {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	v, err := parseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func parseSeverity(s string) (Severity, error) {
	for i, name := range severityNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Severity(i), nil
		}
	}
	return SeveritySuccess, fmt.Errorf("unknown severity %q (must be one of: success, info, warning, error)", s)
}

// Finding is one observation reported by a check. TableName is empty for
// global findings.
type Finding struct {
	CheckName string            `json:"check_name"`
	TableName string            `json:"table_name,omitempty"`
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}

func newFinding(check, table string, sev Severity, msg string, details map[string]string) Finding {
	return Finding{CheckName: check, TableName: table, Severity: sev, Message: msg, Details: details}
}

// sortFindings puts findings in canonical order: table name, then check name.
// Global findings sort first. Within a (table, check) pair the emission order of
// the check is kept, which is deterministic because checks are sequential per unit.
func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.TableName != b.TableName {
			return a.TableName < b.TableName
		}
		return a.CheckName < b.CheckName
	})
}

// worstSeverity returns the most severe severity among fs, SUCCESS when empty.
func worstSeverity(fs []Finding) Severity {
	worst := SeveritySuccess
	for _, f := range fs {
		if f.Severity > worst {
			worst = f.Severity
		}
	}
	return worst
}
