package services

import (
	"context"
	"errors"
	"fmt"

	"patrimonio/internal/analytics"
	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
	"patrimonio/internal/log"
)

// ErrDateNotInLedger is returned for a distribution query on a date with no records.
var ErrDateNotInLedger = errors.New("date not in ledger")

// AnalyticsService derives the series, statistics and pivot from the current ledger.
type AnalyticsService struct {
	reader ledger.Reader
	log    *log.Logger
}

func NewAnalyticsService(reader ledger.Reader, logger *log.Logger) *AnalyticsService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AnalyticsService{reader: reader, log: logger.WithComponent(log.ComponentAnalytics)}
}

func (s *AnalyticsService) Series(ctx context.Context) (analytics.Series, error) {
	l, err := s.reader.LoadLedger(ctx)
	if err != nil {
		return nil, err
	}
	series, err := analytics.Aggregate(l)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}
	return series, nil
}

func (s *AnalyticsService) Statistics(ctx context.Context) (analytics.Table, error) {
	series, err := s.Series(ctx)
	if err != nil {
		return analytics.Table{}, err
	}
	table := analytics.ComputeStatistics(series)
	s.log.DebugContext(ctx, "Statistics computed", log.FieldRows, table.Len(), log.FieldOperation, log.OpCompute)
	return table, nil
}

func (s *AnalyticsService) Institutions(ctx context.Context) (analytics.InstitutionTable, error) {
	l, err := s.reader.LoadLedger(ctx)
	if err != nil {
		return analytics.InstitutionTable{}, err
	}
	return analytics.Pivot(l), nil
}

// Share returns each institution's part of the total on d.
func (s *AnalyticsService) Share(ctx context.Context, d core.Date) ([]analytics.InstitutionShare, error) {
	table, err := s.Institutions(ctx)
	if err != nil {
		return nil, err
	}
	shares, ok := table.Share(d)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDateNotInLedger, d)
	}
	return shares, nil
}
