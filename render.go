package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// renderJSON writes the report as indented JSON.
func renderJSON(w io.Writer, r *ConsistencyReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func severityColor(s Severity) func(a ...interface{}) string {
	switch s {
	case SeverityError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case SeverityWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case SeverityInfo:
		return color.New(color.FgCyan).SprintFunc()
	default:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	}
}

// renderText writes a human-readable report grouped by table. SUCCESS and INFO
// findings are only listed when verbose is set; they are always counted.
func renderText(w io.Writer, r *ConsistencyReport, verbose bool) error {
	bold := color.New(color.Bold).SprintFunc()
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s (run %s)\n", bold("schemacheck report"), r.CheckDate.Format("2006-01-02 15:04:05"), r.RunID)
	fmt.Fprintf(&b, "tables: %d  checks: %d  units: %d\n", r.TotalTables, len(r.Checks), r.TotalChecks)
	parts := make([]string, 0, len(allSeverities))
	for _, s := range allSeverities {
		parts = append(parts, severityColor(s)(s.String())+" "+fmt.Sprint(r.Summary[s]))
	}
	fmt.Fprintf(&b, "summary: %s\n", strings.Join(parts, "  "))

	current := "\x00"
	for _, f := range r.Findings {
		if !verbose && f.Severity < SeverityWarning {
			continue
		}
		if f.TableName != current {
			current = f.TableName
			name := f.TableName
			if name == "" {
				name = "(global)"
			}
			status := r.TableStatus(f.TableName)
			fmt.Fprintf(&b, "\n%s [%s]\n", bold(name), severityColor(status)(status.String()))
		}
		fmt.Fprintf(&b, "  %-7s %-26s %s\n", severityColor(f.Severity)(f.Severity.String()), f.CheckName, f.Message)
	}

	if len(r.Fixes) > 0 {
		fmt.Fprintf(&b, "\n%s\n", bold(fmt.Sprintf("fix suggestions (%d)", len(r.Fixes))))
		for i, fx := range r.Fixes {
			var tags []string
			if fx.Critical {
				tags = append(tags, severityColor(SeverityError)("critical"))
			}
			if fx.BackupRequired {
				tags = append(tags, severityColor(SeverityWarning)("backup"))
			}
			tag := ""
			if len(tags) > 0 {
				tag = "[" + strings.Join(tags, ",") + "] "
			}
			target := fx.TableName
			if target == "" {
				target = "(global)"
			}
			fmt.Fprintf(&b, "%3d. %s%s: %s\n", i+1, tag, target, fx.Description)
			if fx.SuggestedAction.SQL != "" {
				fmt.Fprintf(&b, "       %s\n", fx.SuggestedAction.SQL)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
