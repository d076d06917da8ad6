package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/services"
)

// Error codes carried in every error body.
const (
	codeMalformedInput   = "malformed_input"
	codeInvalidGoal      = "invalid_goal_config"
	codeNoApplicableRate = "no_applicable_rate"
	codeNoDataBeforeGoal = "no_data_before_goal_start"
	codeNotFound         = "not_found"
	codeBadRequest       = "bad_request"
	codeTooLarge         = "payload_too_large"
	codeRateLimited      = "rate_limited"
	codeInternal         = "internal"
)

// errorBody is the JSON shape of every error response. Only the fields that
// apply to the error are set.
type errorBody struct {
	Code     string `json:"code"`
	Error    string `json:"error"`
	Line     int    `json:"line,omitempty"`
	Field    string `json:"field,omitempty"`
	Value    string `json:"value,omitempty"`
	Date     string `json:"date,omitempty"`
	Earliest string `json:"earliest,omitempty"`
}

// badRequestError marks request-shape problems (bad query, bad JSON).
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// errorResponse maps an error to its status code and body.
func errorResponse(err error) (int, errorBody) {
	var (
		malformed *core.MalformedInputError
		noRate    *core.NoApplicableRateError
		noData    *core.NoDataBeforeGoalStartError
		bad       *badRequestError
		tooLarge  *http.MaxBytesError
	)

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, errorBody{Code: codeTooLarge, Error: err.Error()}
	case errors.As(err, &bad):
		return http.StatusBadRequest, errorBody{Code: codeBadRequest, Error: bad.msg}
	case errors.As(err, &malformed):
		return http.StatusUnprocessableEntity, errorBody{
			Code:  codeMalformedInput,
			Error: malformed.Error(),
			Line:  malformed.Line,
			Field: malformed.Field,
			Value: malformed.Value,
		}
	case errors.Is(err, core.ErrInvalidGoalConfig):
		return http.StatusUnprocessableEntity, errorBody{Code: codeInvalidGoal, Error: err.Error()}
	case errors.As(err, &noRate):
		return http.StatusNotFound, errorBody{Code: codeNoApplicableRate, Error: noRate.Error(), Date: noRate.Date.String()}
	case errors.As(err, &noData):
		body := errorBody{Code: codeNoDataBeforeGoal, Error: noData.Error(), Date: noData.Start.String()}
		if !noData.Earliest.IsZero() {
			body.Earliest = noData.Earliest.String()
		}
		return http.StatusNotFound, body
	case services.IsNotFound(err):
		return http.StatusNotFound, errorBody{Code: codeNotFound, Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Code: codeInternal, Error: "internal error"}
	}
}

// writeError maps err to a response. Server errors are logged with the
// request logger; their details are not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op, log.FieldError, err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
