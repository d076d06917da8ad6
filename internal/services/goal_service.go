package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"patrimonio/internal/analytics"
	"patrimonio/internal/core"
	"patrimonio/internal/goal"
	"patrimonio/internal/ledger"
	"patrimonio/internal/log"
	"patrimonio/internal/rates"
)

// GoalRequest is a goal configuration whose rate may be left to the rate
// provider. A nil AnnualRatePercent means "rate in force on the start date".
type GoalRequest struct {
	StartDate           core.Date `json:"start_date"`
	FixedCosts          float64   `json:"fixed_costs"`
	GrossSalary         float64   `json:"gross_salary"`
	NetSalary           float64   `json:"net_salary"`
	AnnualRatePercent   *float64  `json:"annual_rate_percent,omitempty"`
	DeclaredMonthlyGoal *float64  `json:"declared_monthly_goal,omitempty"`
}

// GoalResponse is the goal result plus where its rate came from.
type GoalResponse struct {
	goal.Result
	RateSource string                `json:"rate_source"`
	Reached    []goal.ProjectionRow `json:"reached_months"`
}

// Rate sources reported in GoalResponse.
const (
	RateSourceProvider = "provider"
	RateSourceOverride = "override"
)

// GoalService resolves the rate and runs the goal engine.
type GoalService struct {
	reader ledger.Reader
	rates  rates.Provider
	log    *log.Logger
	events *log.StructuredLogger
}

func NewGoalService(reader ledger.Reader, provider rates.Provider, logger *log.Logger) *GoalService {
	if logger == nil {
		logger = log.Discard()
	}
	return &GoalService{
		reader: reader,
		rates:  provider,
		log:    logger.WithComponent(log.ComponentGoal),
		events: log.NewStructuredLogger(logger),
	}
}

// Compute loads the ledger and, unless overridden, the rate timeline
// concurrently; either failure aborts the computation.
func (s *GoalService) Compute(ctx context.Context, req GoalRequest) (GoalResponse, error) {
	var (
		table    analytics.Table
		timeline rates.Timeline
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l, err := s.reader.LoadLedger(gctx)
		if err != nil {
			return err
		}
		series, err := analytics.Aggregate(l)
		if err != nil {
			return err
		}
		table = analytics.ComputeStatistics(series)
		return nil
	})
	if req.AnnualRatePercent == nil {
		g.Go(func() error {
			var err error
			timeline, err = s.rates.Timeline(gctx)
			if err != nil {
				return fmt.Errorf("load rate timeline: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GoalResponse{}, err
	}

	cfg := goal.Config{
		StartDate:           req.StartDate,
		FixedCosts:          req.FixedCosts,
		GrossSalary:         req.GrossSalary,
		NetSalary:           req.NetSalary,
		DeclaredMonthlyGoal: req.DeclaredMonthlyGoal,
	}
	source := RateSourceOverride
	if req.AnnualRatePercent != nil {
		cfg.AnnualRatePercent = *req.AnnualRatePercent
	} else {
		if err := req.StartDate.Validate(); err != nil {
			return GoalResponse{}, fmt.Errorf("%w: start date: %v", core.ErrInvalidGoalConfig, err)
		}
		rate, err := timeline.RateAt(req.StartDate)
		if err != nil {
			return GoalResponse{}, err
		}
		cfg.AnnualRatePercent = rate
		source = RateSourceProvider
	}

	res, err := goal.Compute(cfg, table)
	if err != nil {
		return GoalResponse{}, err
	}
	s.events.LogGoalComputed(ctx, cfg.StartDate.String(), cfg.AnnualRatePercent, res.DeclaredGoal)

	reached := res.Projection.Reached()
	if reached == nil {
		reached = []goal.ProjectionRow{}
	}
	return GoalResponse{Result: res, RateSource: source, Reached: reached}, nil
}
