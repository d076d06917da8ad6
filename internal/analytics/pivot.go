package analytics

import (
	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
)

// InstitutionRow holds one date of the pivot, with a cell per institution.
type InstitutionRow struct {
	Date   core.Date `json:"date"`
	Values []Null    `json:"values"`
}

// InstitutionTable is the ledger pivoted to dates × institutions.
type InstitutionTable struct {
	Institutions []string         `json:"institutions"`
	Rows         []InstitutionRow `json:"rows"`
}

// InstitutionShare is one institution's balance on a date and its share of
// that date's total.
type InstitutionShare struct {
	Institution string  `json:"institution"`
	Amount      float64 `json:"amount"`
	Share       Null    `json:"share"`
}

// Pivot lays the ledger out with one row per date and one column per
// institution. Duplicate (date, institution) records are averaged, and
// institutions without a record on a date get an undefined cell.
func Pivot(ledger core.Ledger) InstitutionTable {
	ordered := core.NewLedger(ledger)
	names := ordered.Institutions()
	col := make(map[string]int, len(names))
	for i, n := range names {
		col[n] = i
	}

	type acc struct {
		sum   decimal.Decimal
		count int64
	}

	var (
		rows  []InstitutionRow
		cells []acc
	)
	flush := func() {
		if len(rows) == 0 {
			return
		}
		last := &rows[len(rows)-1]
		for i, c := range cells {
			if c.count == 0 {
				continue
			}
			last.Values[i] = Some(c.sum.Div(decimal.NewFromInt(c.count)).InexactFloat64())
		}
	}

	for _, r := range ordered {
		if len(rows) == 0 || !rows[len(rows)-1].Date.Equal(r.Date) {
			flush()
			rows = append(rows, InstitutionRow{Date: r.Date, Values: make([]Null, len(names))})
			cells = make([]acc, len(names))
		}
		c := &cells[col[r.Institution]]
		c.sum = c.sum.Add(r.Amount)
		c.count++
	}
	flush()

	return InstitutionTable{Institutions: names, Rows: rows}
}

// Share returns the per-institution distribution on date d. Institutions
// without a value on that date are omitted.
func (t InstitutionTable) Share(d core.Date) ([]InstitutionShare, bool) {
	for _, row := range t.Rows {
		if !row.Date.Equal(d) {
			continue
		}
		var total float64
		for _, v := range row.Values {
			if v.Valid {
				total += v.Float64
			}
		}
		var out []InstitutionShare
		for i, v := range row.Values {
			if !v.Valid {
				continue
			}
			s := InstitutionShare{Institution: t.Institutions[i], Amount: v.Float64}
			if total != 0 {
				s.Share = Some(v.Float64 / total)
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
