package dataset

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/montanaflynn/stats"
)

// GroupSummary holds descriptive statistics of one numeric column for the
// rows sharing a category value.
type GroupSummary struct {
	Group  string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// Summarize computes per-group statistics of the value column, grouped by the
// group column. Groups are returned in ascending name order.
func Summarize(t *Table, value, group string) ([]GroupSummary, error) {
	if err := t.Require(value, group); err != nil {
		return nil, err
	}
	values, err := t.Floats(value)
	if err != nil {
		return nil, err
	}
	groups, err := t.Strings(group)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[string][]float64)
	for i, g := range groups {
		byGroup[g] = append(byGroup[g], values[i])
	}
	names := make([]string, 0, len(byGroup))
	for g := range byGroup {
		names = append(names, g)
	}
	sort.Strings(names)

	out := make([]GroupSummary, 0, len(names))
	for _, g := range names {
		s, err := describe(byGroup[g])
		if err != nil {
			return nil, fmt.Errorf("summarize %s=%s: %w", group, g, err)
		}
		s.Group = g
		out = append(out, s)
	}
	return out, nil
}

func describe(data stats.Float64Data) (GroupSummary, error) {
	s := GroupSummary{Count: data.Len()}

	var err error
	if s.Mean, err = data.Mean(); err != nil {
		return s, err
	}
	if s.Min, err = data.Min(); err != nil {
		return s, err
	}
	if s.Max, err = data.Max(); err != nil {
		return s, err
	}
	if s.Median, err = data.Median(); err != nil {
		return s, err
	}
	if data.Len() > 1 {
		if s.Std, err = data.StandardDeviationSample(); err != nil {
			return s, err
		}
	}
	if data.Len() >= 2 {
		q, err := stats.Quartile(data)
		if err != nil {
			return s, err
		}
		s.Q1, s.Q3 = q.Q1, q.Q3
	} else {
		s.Q1, s.Q3 = s.Median, s.Median
	}
	return s, nil
}

// FprintSummaries writes summaries as an aligned text table.
func FprintSummaries(w io.Writer, summaries []GroupSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tcount\tmean\tstd\tmin\t25%\t50%\t75%\tmax\t")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			s.Group, s.Count, s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max)
	}
	return tw.Flush()
}
