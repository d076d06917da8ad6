package analytics

import (
	"fmt"
	"sort"

	"patrimonio/internal/core"
)

// WindowStats holds the rolling columns of one window size for one row.
type WindowStats struct {
	Window         int  `json:"window"`
	MeanDelta      Null `json:"mean_delta"`
	EvolutionTotal Null `json:"evolution_total"`
	// EvolutionRelative is (last - first) - 1 over the window. The formula
	// subtracts one from an absolute difference, not from a ratio; it is kept
	// as the ledger reports have always computed it.
	EvolutionRelative Null `json:"evolution_relative"`
}

// Row is one date of the statistics table.
type Row struct {
	Date          core.Date     `json:"date"`
	Total         float64       `json:"total"`
	Delta         Null          `json:"delta"`
	RelativeDelta Null          `json:"relative_delta"`
	Windows       []WindowStats `json:"windows"`
}

// Window returns the rolling columns for window size k.
func (r Row) Window(k int) (WindowStats, bool) {
	for _, w := range r.Windows {
		if w.Window == k {
			return w, true
		}
	}
	return WindowStats{}, false
}

// Table is the statistics table, one row per series point in date order.
type Table struct {
	Rows []Row `json:"rows"`
}

// ComputeStatistics derives deltas and rolling windows from the series.
// Every window is positional: size k covers the k most recent entries no
// matter how far apart their dates are.
func ComputeStatistics(series Series) Table {
	values := series.Values()
	rows := make([]Row, len(values))

	deltaWindows := make([]*ring, len(Windows))
	valueWindows := make([]*ring, len(Windows))
	for j, k := range Windows {
		deltaWindows[j] = newRing(k)
		valueWindows[j] = newRing(k)
	}

	for i, v := range values {
		row := Row{Date: series[i].Date, Total: v, Windows: make([]WindowStats, len(Windows))}
		if i > 0 {
			lag := values[i-1]
			row.Delta = Some(v - lag)
			row.RelativeDelta = Some(v/lag - 1)
		}

		for j, k := range Windows {
			deltaWindows[j].push(row.Delta)
			valueWindows[j].push(Some(v))

			ws := WindowStats{Window: k, MeanDelta: deltaWindows[j].mean()}
			ws.EvolutionTotal = valueWindows[j].span(v)
			if ws.EvolutionTotal.Valid {
				ws.EvolutionRelative = Some(ws.EvolutionTotal.Float64 - 1)
			}
			row.Windows[j] = ws
		}
		rows[i] = row
	}

	return Table{Rows: rows}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// LastAtOrBefore returns the most recent row dated on or before d.
func (t Table) LastAtOrBefore(d core.Date) (Row, bool) {
	idx := sort.Search(len(t.Rows), func(i int) bool {
		return t.Rows[i].Date.After(d)
	})
	if idx == 0 {
		return Row{}, false
	}
	return t.Rows[idx-1], true
}

// LastByMonth indexes the table by YYYY-MM, keeping the latest row of each month.
func (t Table) LastByMonth() map[string]Row {
	out := make(map[string]Row, len(t.Rows))
	for _, r := range t.Rows {
		out[r.Date.MonthKey()] = r
	}
	return out
}

// Column names of the tabular export, in order.
const (
	ColumnTotal         = "total"
	ColumnDelta         = "delta"
	ColumnRelativeDelta = "relative_delta"
)

// MeanDeltaColumn names the rolling mean of the delta for window k.
func MeanDeltaColumn(k int) string { return fmt.Sprintf("mean_delta_%d", k) }

// EvolutionTotalColumn names the rolling total evolution for window k.
func EvolutionTotalColumn(k int) string { return fmt.Sprintf("evolution_total_%d", k) }

// EvolutionRelativeColumn names the rolling relative evolution for window k.
func EvolutionRelativeColumn(k int) string { return fmt.Sprintf("evolution_relative_%d", k) }

// Columns returns the value columns of the table in export order.
func Columns() []string {
	cols := []string{ColumnTotal, ColumnDelta}
	for _, k := range Windows {
		cols = append(cols, MeanDeltaColumn(k))
	}
	cols = append(cols, ColumnRelativeDelta)
	for _, k := range Windows {
		cols = append(cols, EvolutionTotalColumn(k))
	}
	for _, k := range Windows {
		cols = append(cols, EvolutionRelativeColumn(k))
	}
	return cols
}

// Values returns the row's cells in Columns order.
func (r Row) Values() []Null {
	vals := []Null{Some(r.Total), r.Delta}
	for _, w := range r.Windows {
		vals = append(vals, w.MeanDelta)
	}
	vals = append(vals, r.RelativeDelta)
	for _, w := range r.Windows {
		vals = append(vals, w.EvolutionTotal)
	}
	for _, w := range r.Windows {
		vals = append(vals, w.EvolutionRelative)
	}
	return vals
}

// AbsoluteColumns groups the delta and its rolling means for charting.
func AbsoluteColumns() []string {
	cols := []string{ColumnDelta}
	for _, k := range Windows {
		cols = append(cols, MeanDeltaColumn(k))
	}
	return cols
}

// RelativeColumns groups the relative delta and relative evolutions for charting.
func RelativeColumns() []string {
	cols := []string{ColumnRelativeDelta}
	for _, k := range Windows {
		cols = append(cols, EvolutionRelativeColumn(k))
	}
	return cols
}
