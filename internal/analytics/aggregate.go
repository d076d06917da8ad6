// Package analytics derives the per-date series, the rolling statistics
// table and the per-institution pivot from a balance ledger.
package analytics

import (
	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
)

// Point is the total balance across institutions on one date.
type Point struct {
	Date  core.Date       `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// Series holds one point per distinct ledger date, strictly ascending.
type Series []Point

// Aggregate collapses the ledger into one total per date. Records sharing a
// date are summed across institutions.
func Aggregate(ledger core.Ledger) (Series, error) {
	ordered := core.NewLedger(ledger)

	series := make(Series, 0, len(ordered))
	for i, r := range ordered {
		if err := r.Date.Validate(); err != nil {
			return nil, &core.MalformedInputError{Line: i + 1, Field: "date", Value: r.Date.String(), Err: err}
		}
		if n := len(series); n > 0 && series[n-1].Date.Equal(r.Date) {
			series[n-1].Total = series[n-1].Total.Add(r.Amount)
			continue
		}
		series = append(series, Point{Date: r.Date, Total: r.Amount})
	}
	return series, nil
}

// Values returns the totals as float64 in series order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Total.InexactFloat64()
	}
	return out
}
