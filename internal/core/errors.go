package core

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedInput        = errors.New("malformed input")
	ErrNoApplicableRate      = errors.New("no applicable rate")
	ErrNoDataBeforeGoalStart = errors.New("no ledger data before goal start")
	ErrInvalidGoalConfig     = errors.New("invalid goal configuration")
)

// MalformedInputError reports a ledger record that could not be ingested.
// Line is 1-based and counts the header row; zero means the position is unknown.
type MalformedInputError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *MalformedInputError) Error() string {
	msg := "malformed input"
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(", field %q", e.Field)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(", value %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

// NoApplicableRateError reports a date that falls outside every known rate interval.
type NoApplicableRateError struct {
	Date Date
}

func (e *NoApplicableRateError) Error() string {
	return fmt.Sprintf("no rate interval strictly contains %s", e.Date)
}

func (e *NoApplicableRateError) Is(target error) bool { return target == ErrNoApplicableRate }

// NoDataBeforeGoalStartError reports a goal start date that precedes the whole ledger.
type NoDataBeforeGoalStartError struct {
	Start    Date
	Earliest Date
}

func (e *NoDataBeforeGoalStartError) Error() string {
	if e.Earliest.IsZero() {
		return fmt.Sprintf("goal starts on %s but the ledger is empty", e.Start)
	}
	return fmt.Sprintf("goal starts on %s, before the first ledger date %s", e.Start, e.Earliest)
}

func (e *NoDataBeforeGoalStartError) Is(target error) bool {
	return target == ErrNoDataBeforeGoalStart
}
