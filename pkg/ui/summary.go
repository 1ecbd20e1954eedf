package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	errs "postscraper/pkg/errors"
	"postscraper/pkg/models"
)

// RenderSummary writes the run summary as tables.
func RenderSummary(w io.Writer, s *models.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run " + s.RunID)
	t.AppendRows([]table.Row{
		{"Duration", s.Duration().Round(1e6).String()},
		{"Targets planned", s.TargetsPlanned},
		{"Targets attempted", s.TargetsAttempted},
		{"Targets partial", s.TargetsPartial},
		{"Targets skipped", s.TargetsSkipped},
		{"Inputs dropped", s.TargetsDropped},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Units seen", s.UnitsSeen},
		{"Records collected", s.RecordsCollected},
		{"Records deduped", s.RecordsDeduped},
		{"Records dropped", s.RecordsDropped},
		{"Enrichment failures", s.EnrichmentFailures},
	})
	if s.Aborted {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Aborted", text.FgRed.Sprint("yes")})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(s.Failures) > 0 {
		f := table.NewWriter()
		f.SetOutputMirror(w)
		f.AppendHeader(table.Row{"Failure", "Count"})
		for _, k := range errs.Kinds {
			if n := s.Failures[k]; n > 0 {
				f.AppendRow(table.Row{string(k), n})
			}
		}
		f.SetStyle(table.StyleRounded)
		f.Render()
	}

	if len(s.Targets) > 0 {
		RenderTargets(w, s.Targets)
	}

	for _, out := range s.Outputs {
		fmt.Fprintf(w, "%s %s\n", Green("→"), out)
	}
}

// RenderTargets writes per-target outcomes.
func RenderTargets(w io.Writer, results []models.TargetResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Target", "Worker", "State", "Units", "Records", "Time", "Error"})
	for _, r := range results {
		state := r.State
		if r.Partial {
			state = text.FgYellow.Sprint(state + " (partial)")
		}
		t.AppendRow(table.Row{
			r.Target.ID,
			r.WorkerID,
			state,
			r.Units,
			r.Records,
			formatDuration(r.Duration),
			shorten(r.Error, 60),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// RenderPlan writes the targets a dry run would scrape.
func RenderPlan(w io.Writer, targets []models.Target) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "ID", "Mode", "Query", "URL"})
	for i, tg := range targets {
		t.AppendRow(table.Row{i + 1, tg.ID, string(tg.Mode), tg.Query, tg.URL})
	}
	t.AppendFooter(table.Row{"", "", "", "Targets", len(targets)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
