package goal

import (
	"patrimonio/internal/analytics"
	"patrimonio/internal/core"
)

// ProjectionRow is one month of the goal projection.
type ProjectionRow struct {
	Offset int `json:"offset"`
	// ReferenceMonth is the YYYY-MM key the ledger is matched on.
	ReferenceMonth        string         `json:"reference_month"`
	CumulativeMonthlyGoal float64        `json:"cumulative_monthly_goal"`
	ActualBalance         analytics.Null `json:"actual_balance"`
	Attainment            analytics.Null `json:"attainment"`
	YearAttainment        analytics.Null `json:"year_attainment"`
	ExpectedAttainment    analytics.Null `json:"expected_attainment"`
}

// Projection holds the twelve months after the goal start.
type Projection []ProjectionRow

// Project builds the month-by-month table. Each month is matched against the
// latest ledger total dated in the same calendar month; months without a
// ledger entry keep an undefined balance and undefined attainment ratios.
func Project(start core.Date, declared, finalWealth float64, table analytics.Table) Projection {
	byMonth := table.LastByMonth()

	rows := make(Projection, ProjectionMonths)
	for i := 1; i <= ProjectionMonths; i++ {
		ref := start.AddMonths(i).MonthKey()
		cumulative := declared * float64(i)

		row := ProjectionRow{
			Offset:                i,
			ReferenceMonth:        ref,
			CumulativeMonthlyGoal: cumulative,
			ExpectedAttainment:    analytics.Some(cumulative / finalWealth),
		}
		if actual, ok := byMonth[ref]; ok {
			row.ActualBalance = analytics.Some(actual.Total)
			row.Attainment = analytics.Some(actual.Total / cumulative)
			row.YearAttainment = analytics.Some(actual.Total / finalWealth)
		}
		rows[i-1] = row
	}
	return rows
}

// Reached returns the rows whose actual balance met the cumulative goal.
func (p Projection) Reached() []ProjectionRow {
	var out []ProjectionRow
	for _, r := range p {
		if r.ActualBalance.Valid && r.ActualBalance.Float64 >= r.CumulativeMonthlyGoal {
			out = append(out, r)
		}
	}
	return out
}
