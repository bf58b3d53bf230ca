// Package report renders engine state as a text report or a JSON export.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kiranshivaraju/noisegate/internal/engine"
	"github.com/kiranshivaraju/noisegate/pkg/models"
)

const (
	DefaultTopPatterns = 10
	patternWidth       = 60
	maxSourcesShown    = 3
)

// Options selects which groups a report includes. Zero values use the
// group store defaults.
type Options struct {
	ActivityWindow     time.Duration
	ActionableMinCount int
	TopPatterns        int
	Now                func() time.Time
}

// Report is an exportable snapshot of one engine.
type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Summary     models.Summary      `json:"summary"`
	Active      []models.EventGroup `json:"active_groups"`
	Actionable  []models.EventGroup `json:"actionable_groups"`
}

// Build snapshots e. The engine keeps processing while the report is built,
// so the summary and group lists may differ by a few in-flight events.
func Build(e *engine.Engine, opts Options) Report {
	now := time.Now().UTC()
	if opts.Now != nil {
		now = opts.Now()
	}
	return Report{
		GeneratedAt: now,
		Summary:     e.Summary(),
		Active:      e.Active(opts.ActivityWindow),
		Actionable:  e.Actionable(opts.ActionableMinCount),
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteText renders the summary block, the active groups and the top
// actionable patterns.
func WriteText(w io.Writer, r Report, top int) error {
	if top <= 0 {
		top = DefaultTopPatterns
	}
	s := r.Summary

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NOISEGATE REPORT\t%s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(tw, strings.Repeat("=", 60))
	fmt.Fprintf(tw, "Total entries:\t%d\n", s.TotalEntries)
	fmt.Fprintf(tw, "Noise filtered:\t%d (%.1f%%)\n", s.NoiseCount, s.NoiseReductionPct)
	fmt.Fprintf(tw, "Rejected:\t%d\n", s.RejectedCount)
	fmt.Fprintf(tw, "Processed:\t%d\n", s.TotalProcessed)
	fmt.Fprintf(tw, "Unique signatures:\t%d\n", s.UniqueSignatures)
	fmt.Fprintf(tw, "Suppressed:\t%d (%.1f%%)\n", s.SuppressedCount, s.SuppressionRatePct)
	fmt.Fprintf(tw, "Active groups:\t%d\n", s.ActiveGroupCount)
	fmt.Fprintf(tw, "Actionable groups:\t%d\n", s.ActionableCount)
	if s.EvictedCount > 0 {
		fmt.Fprintf(tw, "Evicted groups:\t%d\n", s.EvictedCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Active) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ACTIVE GROUPS")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SEVERITY\tKIND\tCOUNT\tLAST SEEN\tSOURCES\tPATTERN")
		for _, g := range r.Active {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
				g.Severity, g.Kind, g.Count, g.LastSeen.Format(time.RFC3339),
				formatSources(g.Sources), truncate(g.Pattern, patternWidth))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(r.Actionable) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "TOP PATTERNS")
		for i, g := range r.Actionable {
			if i == top {
				break
			}
			fmt.Fprintf(w, "  [%4dx] %s\n", g.Count, truncate(g.Pattern, patternWidth))
		}
		fmt.Fprintf(w, "\n%d unique patterns need attention\n", len(r.Actionable))
	}

	if s.TotalProcessed > 0 {
		fmt.Fprintf(w, "\nReduced %d events to %d groups\n", s.TotalProcessed, s.UniqueSignatures)
	}
	return nil
}

func formatSources(sources []string) string {
	if len(sources) == 0 {
		return "-"
	}
	if len(sources) <= maxSourcesShown {
		return strings.Join(sources, ",")
	}
	return fmt.Sprintf("%s,+%d", strings.Join(sources[:maxSourcesShown], ","), len(sources)-maxSourcesShown)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
