package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	"github.com/Haole1945/drl-platform-sub001/internal/grading"
	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
)

const ungraded = "Chưa xếp loại"

type bucket struct {
	Label string
	Count int
}

// distribution counts totals per grade band, highest band first, with the
// ungraded bucket last.
func distribution(totals []evaluation.Total) []bucket {
	scale := grading.Scale()
	counts := make(map[grading.Level]int, len(scale))
	var none int
	for _, t := range totals {
		g, ok := grading.Classify(t.Score)
		if !ok {
			none++
			continue
		}
		counts[g.Level]++
	}
	out := make([]bucket, 0, len(scale)+1)
	for _, g := range scale {
		out = append(out, bucket{Label: g.Label, Count: counts[g.Level]})
	}
	return append(out, bucket{Label: ungraded, Count: none})
}

func renderReport(w io.Writer, semester string, totals []evaluation.Total) {
	color.New(color.FgCyan).Fprintf(w, "\n=== Training point report %s ===\n", semester)
	if len(totals) == 0 {
		color.New(color.FgYellow).Fprintln(w, "No evaluations found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Student", "Status", "Score", "Grade"})
	for _, t := range totals {
		label := ungraded
		if g, ok := grading.Classify(t.Score); ok {
			label = g.Label
		}
		table.Append([]string{t.StudentCode, string(t.Status), formatScore(t.Score), label})
	}
	table.Render()

	color.New(color.FgYellow).Fprintln(w, "\nGrade Distribution")
	dist := tablewriter.NewWriter(w)
	dist.SetHeader([]string{"Grade", "Students"})
	for _, b := range distribution(totals) {
		dist.Append([]string{b.Label, strconv.Itoa(b.Count)})
	}
	dist.Render()
}

func renderSubCriteria(w io.Writer, description string, maxPoints float64) {
	subs := rubric.ExtractSubCriteria(description)
	if len(subs) == 0 {
		color.New(color.FgYellow).Fprintln(w, "No sub-criteria found.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Max", "Penalty", "Note"})
	for _, s := range subs {
		penalty := ""
		if s.Penalty {
			penalty = "yes"
		}
		table.Append([]string{s.ID, s.Label, formatScore(s.MaxPoints), penalty, s.Description})
	}
	table.Render()

	if maxPoints <= 0 {
		return
	}
	if m := rubric.CheckCaps(rubric.Criterion{MaxPoints: maxPoints}, subs); m != nil {
		color.New(color.FgRed).Fprintf(w, "Sub-criteria add up to %s, above the cap of %s\n", formatScore(m.SubTotal), formatScore(m.MaxPoints))
		return
	}
	color.New(color.FgGreen).Fprintln(w, "Sub-criteria fit within the cap.")
}

func formatScore(v float64) string {
	return fmt.Sprintf("%g", v)
}
