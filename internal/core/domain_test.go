package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseLedgerDate(t *testing.T) {
	d, err := ParseLedgerDate(" 05/03/2024 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(NewDate(2024, 3, 5)) {
		t.Fatalf("got %s, want 2024-03-05", d)
	}

	for _, bad := range []string{"2024-03-05", "32/01/2024", "", "05/13/2024"} {
		if _, err := ParseLedgerDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q: expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateAddMonthsClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name  string
		start Date
		n     int
		want  Date
	}{
		{"plain", NewDate(2024, 1, 15), 1, NewDate(2024, 2, 15)},
		{"leap february", NewDate(2024, 1, 31), 1, NewDate(2024, 2, 29)},
		{"non-leap february", NewDate(2023, 1, 31), 1, NewDate(2023, 2, 28)},
		{"year rollover", NewDate(2024, 11, 30), 3, NewDate(2025, 2, 28)},
		{"twelve months", NewDate(2024, 3, 31), 12, NewDate(2025, 3, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start.AddMonths(tt.n)
			if !got.Equal(tt.want) {
				t.Errorf("AddMonths(%d) = %s, want %s", tt.n, got, tt.want)
			}
		})
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 6, 1))
	if err != nil || string(b) != `"2024-06-01"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2024-06-01"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.MonthKey() != "2024-06" {
		t.Fatalf("month key = %s", d.MonthKey())
	}
}

func TestNewLedgerSortsStably(t *testing.T) {
	in := []BalanceRecord{
		{Date: NewDate(2024, 2, 1), Institution: "B", Amount: decimal.NewFromInt(2)},
		{Date: NewDate(2024, 1, 1), Institution: "A", Amount: decimal.NewFromInt(1)},
		{Date: NewDate(2024, 2, 1), Institution: "A", Amount: decimal.NewFromInt(3)},
	}
	l := NewLedger(in)

	if l[0].Institution != "A" || !l[0].Date.Equal(NewDate(2024, 1, 1)) {
		t.Fatalf("unexpected first record: %+v", l[0])
	}
	if l[1].Institution != "B" || l[2].Institution != "A" {
		t.Fatalf("same-date records lost input order: %v, %v", l[1].Institution, l[2].Institution)
	}
	if in[0].Institution != "B" {
		t.Fatalf("input slice was mutated")
	}

	names := l.Institutions()
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Fatalf("institutions = %v", names)
	}
}

func TestBalanceRecordValidate(t *testing.T) {
	good := BalanceRecord{Date: NewDate(2024, 1, 1), Institution: "Nubank", Amount: decimal.NewFromInt(10)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (BalanceRecord{Institution: "x"}).Validate(); err == nil {
		t.Fatalf("expected error for zero date")
	}
	if err := (BalanceRecord{Date: NewDate(2024, 1, 1), Institution: " "}).Validate(); !errors.Is(err, ErrEmptyInstitution) {
		t.Fatalf("expected ErrEmptyInstitution, got %v", err)
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	var err error = &MalformedInputError{Line: 3, Field: "Valor", Value: "abc", Err: ErrInvalidAmount}
	if !errors.Is(err, ErrMalformedInput) || !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("malformed input error does not match its sentinels: %v", err)
	}
	if got := err.Error(); got != `malformed input at line 3, field "Valor", value "abc": invalid amount` {
		t.Fatalf("unexpected message: %s", got)
	}

	if !errors.Is(&NoApplicableRateError{Date: NewDate(2024, 3, 1)}, ErrNoApplicableRate) {
		t.Fatalf("rate error does not match sentinel")
	}
	if !errors.Is(&NoDataBeforeGoalStartError{Start: NewDate(2020, 1, 1)}, ErrNoDataBeforeGoalStart) {
		t.Fatalf("goal start error does not match sentinel")
	}
}
