package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
	"patrimonio/internal/services"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"malformed", &core.MalformedInputError{Line: 3, Field: "Valor", Value: "x"}, http.StatusUnprocessableEntity, codeMalformedInput},
		{"wrapped malformed", fmt.Errorf("import: %w", &core.MalformedInputError{Line: 2}), http.StatusUnprocessableEntity, codeMalformedInput},
		{"invalid goal", fmt.Errorf("%w: fixed_costs", core.ErrInvalidGoalConfig), http.StatusUnprocessableEntity, codeInvalidGoal},
		{"no rate", &core.NoApplicableRateError{Date: core.NewDate(2024, 3, 1)}, http.StatusNotFound, codeNoApplicableRate},
		{"no data", &core.NoDataBeforeGoalStartError{Start: core.NewDate(2020, 1, 1)}, http.StatusNotFound, codeNoDataBeforeGoal},
		{"empty ledger", core.ErrEmptyLedger, http.StatusNotFound, codeNotFound},
		{"no snapshot", ledger.ErrNoSnapshot, http.StatusNotFound, codeNotFound},
		{"date not in ledger", services.ErrDateNotInLedger, http.StatusNotFound, codeNotFound},
		{"bad request", badRequest("nope"), http.StatusBadRequest, codeBadRequest},
		{"too large", fmt.Errorf("read csv: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge, codeTooLarge},
		{"other", errors.New("disk I/O error"), http.StatusInternalServerError, codeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorResponse(tt.err)
			if status != tt.wantStatus || body.Code != tt.wantCode {
				t.Errorf("errorResponse() = %d %q, want %d %q", status, body.Code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestErrorResponseDetails(t *testing.T) {
	_, body := errorResponse(&core.MalformedInputError{Line: 3, Field: "Valor", Value: "x"})
	if body.Line != 3 || body.Field != "Valor" || body.Value != "x" {
		t.Errorf("malformed details lost: %+v", body)
	}

	_, body = errorResponse(&core.NoDataBeforeGoalStartError{Start: core.NewDate(2020, 1, 1), Earliest: core.NewDate(2021, 5, 1)})
	if body.Date != "2020-01-01" || body.Earliest != "2021-05-01" {
		t.Errorf("goal start details lost: %+v", body)
	}

	_, body = errorResponse(errors.New("secret path /var/db"))
	if body.Error != "internal error" {
		t.Errorf("internal error details must not leak: %q", body.Error)
	}
}
