// Package goal projects a monthly savings target over the twelve months
// following a start date and measures attainment against the ledger.
package goal

import (
	"fmt"
	"math"

	"patrimonio/internal/analytics"
	"patrimonio/internal/core"
)

// ProjectionMonths is the number of months covered by a projection.
const ProjectionMonths = 12

// Config holds the user inputs of a goal. AnnualRatePercent must already be
// resolved (from the rate provider or a user override). A nil
// DeclaredMonthlyGoal means the computed monthly potential is used.
type Config struct {
	StartDate           core.Date `json:"start_date"`
	FixedCosts          float64   `json:"fixed_costs"`
	GrossSalary         float64   `json:"gross_salary"`
	NetSalary           float64   `json:"net_salary"`
	AnnualRatePercent   float64   `json:"annual_rate_percent"`
	DeclaredMonthlyGoal *float64  `json:"declared_monthly_goal,omitempty"`
}

// Result is the outcome of a goal computation.
type Result struct {
	Config              Config     `json:"config"`
	StartValueDate      core.Date  `json:"start_value_date"`
	StartValue          float64    `json:"start_value"`
	AnnualRate          float64    `json:"annual_rate"`
	MonthlyRate         float64    `json:"monthly_rate"`
	MonthlyIncomeReturn float64    `json:"monthly_income_return"`
	AnnualIncomeReturn  float64    `json:"annual_income_return"`
	MonthlyPotential    float64    `json:"monthly_potential"`
	AnnualPotential     float64    `json:"annual_potential"`
	DeclaredGoal        float64    `json:"declared_goal"`
	FinalWealthEstimate float64    `json:"final_wealth_estimate"`
	Projection          Projection `json:"projection"`
}

// Validate rejects inputs the goal form would never accept.
func (c Config) Validate() error {
	if err := c.StartDate.Validate(); err != nil {
		return fmt.Errorf("%w: start date: %v", core.ErrInvalidGoalConfig, err)
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"fixed_costs", c.FixedCosts},
		{"gross_salary", c.GrossSalary},
		{"net_salary", c.NetSalary},
		{"annual_rate_percent", c.AnnualRatePercent},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", core.ErrInvalidGoalConfig, f.name, f.value)
		}
	}
	if g := c.DeclaredMonthlyGoal; g != nil && (math.IsNaN(*g) || math.IsInf(*g, 0)) {
		return fmt.Errorf("%w: declared_monthly_goal must be finite", core.ErrInvalidGoalConfig)
	}
	return nil
}

// MonthlyRate converts an annual fractional rate into its compounded monthly
// equivalent: (1 + annual)^(1/12) - 1.
func MonthlyRate(annual float64) float64 {
	return math.Pow(1+annual, 1.0/12) - 1
}

// Compute derives the savings potential, the declared goal and the twelve
// month projection from cfg and the statistics table.
func Compute(cfg Config, table analytics.Table) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	start, ok := table.LastAtOrBefore(cfg.StartDate)
	if !ok {
		e := &core.NoDataBeforeGoalStartError{Start: cfg.StartDate}
		if table.Len() > 0 {
			e.Earliest = table.Rows[0].Date
		}
		return Result{}, e
	}

	annual := cfg.AnnualRatePercent / 100
	monthly := MonthlyRate(annual)
	net := cfg.NetSalary - cfg.FixedCosts

	res := Result{
		Config:              cfg,
		StartValueDate:      start.Date,
		StartValue:          start.Total,
		AnnualRate:          annual,
		MonthlyRate:         monthly,
		MonthlyIncomeReturn: start.Total * monthly,
		AnnualIncomeReturn:  start.Total * annual,
	}
	res.MonthlyPotential = net + res.MonthlyIncomeReturn
	res.AnnualPotential = 12*net + res.AnnualIncomeReturn

	res.DeclaredGoal = res.MonthlyPotential
	if cfg.DeclaredMonthlyGoal != nil {
		res.DeclaredGoal = *cfg.DeclaredMonthlyGoal
	}
	res.FinalWealthEstimate = res.DeclaredGoal + res.StartValue

	res.Projection = Project(cfg.StartDate, res.DeclaredGoal, res.FinalWealthEstimate, table)
	return res, nil
}
