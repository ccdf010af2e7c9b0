package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TFMV/sqlgate/cmd/sqlgate/config"
	"github.com/TFMV/sqlgate/pkg/models"
)

// renderer writes command results in the configured output format.
type renderer struct {
	w      io.Writer
	format string
}

func newRenderer(w io.Writer, format string) (*renderer, error) {
	switch format {
	case config.OutputText, config.OutputJSON, config.OutputYAML:
		return &renderer{w: w, format: format}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Analysis renders a classification without execution.
func (r *renderer) Analysis(a *models.Analysis) error {
	if r.format != config.OutputText {
		return r.encode(a)
	}
	tw := r.table()
	writeAnalysis(tw, a)
	return tw.Flush()
}

// Outcome renders an analysis together with its execution result.
func (r *renderer) Outcome(o *models.QueryOutcome) error {
	if r.format != config.OutputText {
		return r.encode(o)
	}

	tw := r.table()
	if o.Analysis != nil {
		writeAnalysis(tw, o.Analysis)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if o.Result == nil {
		return nil
	}

	res := o.Result
	fmt.Fprintln(r.w)
	if len(res.Columns) == 0 {
		fmt.Fprintf(r.w, "%s\n", plural(res.RowsAffected, "row affected", "rows affected"))
		return nil
	}

	tw = r.table()
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	dashes := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		dashes[i] = strings.Repeat("-", len(c))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	summary := fmt.Sprintf("%s in %s", plural(int64(len(res.Rows)), "row", "rows"), res.ExecutionTime.Round(time.Microsecond))
	if res.Truncated {
		summary += ", truncated"
	}
	fmt.Fprintf(r.w, "\n(%s)\n", summary)
	return nil
}

// History renders history entries, most recent first.
func (r *renderer) History(entries []models.HistoryEntry) error {
	if r.format != config.OutputText {
		if entries == nil {
			entries = []models.HistoryEntry{}
		}
		return r.encode(entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(r.w, "no history")
		return err
	}

	tw := r.table()
	fmt.Fprintln(tw, "TIME\tSTATUS\tTYPE\tDATABASE\tFEATURES\tQUERY")
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.UTC().Format(time.RFC3339),
			status,
			e.Type.HandlerName(),
			e.Database,
			historyFeatureList(e.Features),
			oneLine(e.Query))
	}
	return tw.Flush()
}

// Examples renders example statements.
func (r *renderer) Examples(examples []string) error {
	if r.format != config.OutputText {
		if examples == nil {
			examples = []string{}
		}
		return r.encode(examples)
	}
	if len(examples) == 0 {
		_, err := fmt.Fprintln(r.w, "no examples available for the granted permissions")
		return err
	}
	for _, ex := range examples {
		if _, err := fmt.Fprintln(r.w, ex); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) encode(v interface{}) error {
	switch r.format {
	case config.OutputJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", r.format)
	}
}

func (r *renderer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
}

func writeAnalysis(w io.Writer, a *models.Analysis) {
	fmt.Fprintf(w, "kind:\t%s (%s handler)\n", a.Kind, a.Kind.HandlerName())
	fmt.Fprintf(w, "complexity:\t%s (score %d)\n", a.Complexity, a.Score)
	fmt.Fprintf(w, "features:\t%s\n", featureList(a.Features))
	if len(a.Features.OrderByFields) > 0 {
		fmt.Fprintf(w, "order by:\t%s\n", strings.Join(a.Features.OrderByFields, ", "))
	}
	for _, f := range a.Findings {
		fmt.Fprintf(w, "warning:\tliteral %q resembles SQL injection (%s)\n", f.Literal, f.Fingerprint)
	}
}

func featureList(f models.FeatureSet) string {
	flags := []struct {
		on   bool
		name string
	}{
		{f.HasAggregation, "aggregation"},
		{f.HasGroupBy, "group_by"},
		{f.HasHaving, "having"},
		{f.HasJoin, "join"},
		{f.HasUnion, "union"},
		{f.HasDistinct, "distinct"},
		{f.HasSubquery, "subquery"},
		{f.HasWindow, "window"},
		{f.HasOrderBy, "order_by"},
		{f.HasComplexWhere, "complex_where"},
	}
	var names []string
	for _, flag := range flags {
		if flag.on {
			names = append(names, flag.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func historyFeatureList(f models.HistoryFeatures) string {
	var names []string
	if f.OrderBy {
		names = append(names, "order_by")
	}
	if f.Distinct {
		names = append(names, "distinct")
	}
	if f.GroupBy {
		names = append(names, "group_by")
	}
	if f.Having {
		names = append(names, "having")
	}
	if f.Join {
		names = append(names, "join")
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return oneLine(fmt.Sprint(t))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
