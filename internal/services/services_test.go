package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
	"patrimonio/internal/ledger/memory"
	"patrimonio/internal/rates"
)

type fakePublisher struct {
	calls []int64
	err   error
}

func (p *fakePublisher) PublishLedgerImported(_ context.Context, importID int64, _ int, _ string) error {
	p.calls = append(p.calls, importID)
	return p.err
}

type failingProvider struct{ calls int }

func (p *failingProvider) Timeline(context.Context) (rates.Timeline, error) {
	p.calls++
	return rates.Timeline{}, errors.New("central bank unreachable")
}

func record(y, m, d int, inst string, amount int64) core.BalanceRecord {
	return core.BalanceRecord{Date: core.NewDate(y, m, d), Institution: inst, Amount: decimal.NewFromInt(amount)}
}

func sampleStore() *memory.Store {
	return memory.NewFromLedger("sample.csv", core.Ledger{
		record(2024, 1, 1, "Banco A", 600),
		record(2024, 1, 1, "Corretora B", 400),
		record(2024, 2, 1, "Banco A", 700),
		record(2024, 2, 1, "Corretora B", 500),
	})
}

func TestLedgerServiceImport(t *testing.T) {
	const csvData = "Data,Instituição,Valor\n01/01/2024,Banco A,100.50\n01/02/2024,Banco A,200\n"

	tests := []struct {
		name        string
		input       string
		publisher   *fakePublisher
		wantErr     bool
		wantLine    int
		wantPublish int
	}{
		{name: "valid with publisher", input: csvData, publisher: &fakePublisher{}, wantPublish: 1},
		{name: "publish failure is not fatal", input: csvData, publisher: &fakePublisher{err: errors.New("broker down")}, wantPublish: 1},
		{name: "valid without publisher", input: csvData},
		{name: "header only", input: "Data,Instituição,Valor\n", wantErr: true, wantLine: 2},
		{name: "bad amount", input: "Data,Instituição,Valor\n01/01/2024,Banco A,abc\n", wantErr: true, wantLine: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			var pub Publisher
			if tt.publisher != nil {
				pub = tt.publisher
			}
			svc := NewLedgerService(store, pub, nil)

			imp, err := svc.Import(context.Background(), "upload.csv", strings.NewReader(tt.input))
			if tt.wantErr {
				var mErr *core.MalformedInputError
				if !errors.As(err, &mErr) {
					t.Fatalf("Import() error = %v, want MalformedInputError", err)
				}
				if mErr.Line != tt.wantLine {
					t.Errorf("error line = %d, want %d", mErr.Line, tt.wantLine)
				}
				if _, err := svc.LatestImport(context.Background()); !IsNotFound(err) {
					t.Error("rejected upload must not create an import")
				}
				return
			}
			if err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			if imp.Records != 2 || imp.Source != "upload.csv" {
				t.Errorf("unexpected import %+v", imp)
			}
			if tt.publisher != nil && len(tt.publisher.calls) != tt.wantPublish {
				t.Errorf("publish calls = %d, want %d", len(tt.publisher.calls), tt.wantPublish)
			}

			l, err := svc.Ledger(context.Background())
			if err != nil || len(l) != 2 {
				t.Fatalf("Ledger() = %v, %v", l, err)
			}
		})
	}
}

func TestLedgerServiceNotFound(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil)
	ctx := context.Background()

	if _, err := svc.Ledger(ctx); !IsNotFound(err) {
		t.Errorf("Ledger() on empty store = %v", err)
	}
	if _, err := svc.LatestSnapshot(ctx); !IsNotFound(err) {
		t.Errorf("LatestSnapshot() on empty store = %v", err)
	}
	if IsNotFound(errors.New("disk full")) {
		t.Error("unrelated errors are not not-found")
	}
}

func TestAnalyticsService(t *testing.T) {
	ctx := context.Background()
	svc := NewAnalyticsService(sampleStore(), nil)

	series, err := svc.Series(ctx)
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if len(series) != 2 || series[0].Total.IntPart() != 1000 || series[1].Total.IntPart() != 1200 {
		t.Errorf("unexpected series %+v", series)
	}

	table, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if table.Len() != 2 || table.Rows[1].Delta.Float64 != 200 {
		t.Errorf("unexpected table %+v", table.Rows)
	}

	inst, err := svc.Institutions(ctx)
	if err != nil {
		t.Fatalf("Institutions() error = %v", err)
	}
	if len(inst.Institutions) != 2 || len(inst.Rows) != 2 {
		t.Errorf("unexpected pivot %+v", inst)
	}

	shares, err := svc.Share(ctx, core.NewDate(2024, 1, 1))
	if err != nil {
		t.Fatalf("Share() error = %v", err)
	}
	if len(shares) != 2 || math.Abs(shares[0].Share.Float64-0.6) > 1e-9 {
		t.Errorf("unexpected shares %+v", shares)
	}

	if _, err := svc.Share(ctx, core.NewDate(2024, 1, 2)); !errors.Is(err, ErrDateNotInLedger) {
		t.Errorf("Share() on missing date = %v", err)
	}

	empty := NewAnalyticsService(memory.New(), nil)
	if _, err := empty.Statistics(ctx); !IsNotFound(err) {
		t.Errorf("Statistics() on empty ledger = %v", err)
	}
}

func TestGoalServiceCompute(t *testing.T) {
	provider := rates.Static{
		Intervals: []rates.Interval{
			{Start: core.NewDate(2023, 8, 2), End: core.NewDate(2024, 1, 10), RatePercent: 12.25},
			{Start: core.NewDate(2024, 1, 10), RatePercent: 10},
		},
		Now: func() core.Date { return core.NewDate(2024, 12, 31) },
	}
	override := 8.0
	declared := 500.0

	tests := []struct {
		name       string
		req        GoalRequest
		wantRate   float64
		wantSource string
		wantErr    func(error) bool
	}{
		{
			name:       "rate from provider",
			req:        GoalRequest{StartDate: core.NewDate(2024, 1, 15), NetSalary: 3000, FixedCosts: 2000},
			wantRate:   0.10,
			wantSource: RateSourceProvider,
		},
		{
			name:       "earlier interval",
			req:        GoalRequest{StartDate: core.NewDate(2024, 1, 5), NetSalary: 3000, FixedCosts: 2000},
			wantRate:   0.1225,
			wantSource: RateSourceProvider,
		},
		{
			name:       "override",
			req:        GoalRequest{StartDate: core.NewDate(2024, 1, 15), AnnualRatePercent: &override, DeclaredMonthlyGoal: &declared},
			wantRate:   0.08,
			wantSource: RateSourceOverride,
		},
		{
			name: "date on interval boundary",
			req:  GoalRequest{StartDate: core.NewDate(2024, 1, 10)},
			wantErr: func(err error) bool {
				var e *core.NoApplicableRateError
				return errors.As(err, &e)
			},
		},
		{
			name: "goal before ledger",
			req:  GoalRequest{StartDate: core.NewDate(2023, 12, 1), AnnualRatePercent: &override},
			wantErr: func(err error) bool {
				var e *core.NoDataBeforeGoalStartError
				return errors.As(err, &e)
			},
		},
		{
			name: "negative salary",
			req:  GoalRequest{StartDate: core.NewDate(2024, 1, 15), NetSalary: -1, AnnualRatePercent: &override},
			wantErr: func(err error) bool {
				return errors.Is(err, core.ErrInvalidGoalConfig)
			},
		},
		{
			name: "missing start date",
			req:  GoalRequest{},
			wantErr: func(err error) bool {
				return errors.Is(err, core.ErrInvalidGoalConfig)
			},
		},
	}

	svc := NewGoalService(sampleStore(), provider, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Compute(context.Background(), tt.req)
			if tt.wantErr != nil {
				if err == nil || !tt.wantErr(err) {
					t.Fatalf("Compute() error = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			if math.Abs(resp.AnnualRate-tt.wantRate) > 1e-12 {
				t.Errorf("annual rate = %v, want %v", resp.AnnualRate, tt.wantRate)
			}
			if resp.RateSource != tt.wantSource {
				t.Errorf("rate source = %q, want %q", resp.RateSource, tt.wantSource)
			}
			if len(resp.Projection) != 12 {
				t.Errorf("projection rows = %d, want 12", len(resp.Projection))
			}
			if resp.Reached == nil {
				t.Error("reached months must never be nil")
			}
			if resp.StartValue != 1000 {
				t.Errorf("start value = %v, want 1000", resp.StartValue)
			}
		})
	}
}

func TestGoalServiceOverrideSkipsProvider(t *testing.T) {
	provider := &failingProvider{}
	svc := NewGoalService(sampleStore(), provider, nil)
	rate := 10.0

	if _, err := svc.Compute(context.Background(), GoalRequest{StartDate: core.NewDate(2024, 1, 15), AnnualRatePercent: &rate}); err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times with an override", provider.calls)
	}

	if _, err := svc.Compute(context.Background(), GoalRequest{StartDate: core.NewDate(2024, 1, 15)}); err == nil {
		t.Fatal("provider failure should be returned")
	}
}
