package core

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// LedgerDateLayout is the dd/mm/yyyy layout used by ledger exports.
	LedgerDateLayout = "02/01/2006"
	// ISODateLayout is the layout used on the API surface.
	ISODateLayout = "2006-01-02"
	// MonthKeyLayout identifies a calendar month (YYYY-MM).
	MonthKeyLayout = "2006-01"
)

type (
	Date struct {
		time.Time
	}

	// BalanceRecord is one institution's balance snapshot on a given date.
	BalanceRecord struct {
		Date        Date            `json:"date"`
		Institution string          `json:"institution"`
		Amount      decimal.Decimal `json:"amount"`
	}

	// Ledger holds balance records ordered ascending by date. Records sharing
	// a date keep their input order.
	Ledger []BalanceRecord
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyInstitution = errors.New("empty institution")
	ErrEmptyLedger      = errors.New("ledger has no records")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseLedgerDate parses a dd/mm/yyyy date.
func ParseLedgerDate(s string) (Date, error) {
	t, err := time.Parse(LedgerDateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// ParseISODate parses a YYYY-MM-DD date.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(ISODateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Equal reports whether both dates denote the same day.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

// MonthKey returns the YYYY-MM key of the date's month.
func (d Date) MonthKey() string {
	return d.Format(MonthKeyLayout)
}

// AddMonths moves the date by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(ISODateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseISODate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (r BalanceRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Institution) == "" {
		return ErrEmptyInstitution
	}
	return nil
}

// NewLedger copies records and sorts them ascending by date.
func NewLedger(records []BalanceRecord) Ledger {
	out := make(Ledger, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Institutions returns the distinct institution names in first-seen order.
func (l Ledger) Institutions() []string {
	seen := map[string]struct{}{}
	var names []string
	for _, r := range l {
		if _, ok := seen[r.Institution]; ok {
			continue
		}
		seen[r.Institution] = struct{}{}
		names = append(names, r.Institution)
	}
	return names
}

// Span returns the first and last dates of the ledger.
func (l Ledger) Span() (first, last Date, ok bool) {
	if len(l) == 0 {
		return Date{}, Date{}, false
	}
	return l[0].Date, l[len(l)-1].Date, true
}
