package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ppiankov/ugp/internal/model"
)

// Mode controls the table format
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// summaryOrder lists the well-known keys first; anything else follows alphabetically
var summaryOrder = []string{
	model.SummaryPMean,
	model.SummaryPStd,
	model.SummaryPCILow,
	model.SummaryPCIHigh,
	model.SummaryTMean,
	model.SummaryTStd,
	model.SummaryTCILow,
	model.SummaryTCIHigh,
	model.SummaryIterations,
	model.SummaryConfidence,
	model.SummaryPoints,
	model.SummaryStatus,
}

// RenderSummary writes the summary and diagnostics of ens as a two-column table
func RenderSummary(w io.Writer, ens model.PTEnsemble, mode Mode) error {
	tw := table.NewWriter()
	if mode == ASCII {
		tw.SetStyle(table.StyleLight)
	}
	tw.AppendHeader(table.Row{"Key", "Value"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	for _, k := range orderedKeys(ens.Summary) {
		tw.AppendRow(table.Row{k, formatValue(ens.Summary[k])})
	}
	if len(ens.Diagnostics) > 0 {
		tw.AppendSeparator()
		for _, k := range orderedKeys(ens.Diagnostics) {
			tw.AppendRow(table.Row{k, formatValue(ens.Diagnostics[k])})
		}
	}
	tw.AppendFooter(table.Row{"results", len(ens.Results)})

	var out string
	switch mode {
	case Markdown:
		out = tw.RenderMarkdown()
	default:
		out = tw.Render()
	}

	if _, err := fmt.Fprintln(w, out); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}

func orderedKeys(m map[string]any) []string {
	known := make(map[string]bool, len(summaryOrder))
	keys := make([]string, 0, len(m))
	for _, k := range summaryOrder {
		known[k] = true
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}

	var rest []string
	for k := range m {
		if !known[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.4g", x)
	case float32:
		return fmt.Sprintf("%.4g", x)
	default:
		return fmt.Sprint(v)
	}
}
