package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"patrimonio/internal/core"
	"patrimonio/internal/services"
)

// uploadField is the multipart form field holding the ledger file.
const uploadField = "file"

// parseDateQuery reads a required YYYY-MM-DD query parameter.
func parseDateQuery(r *http.Request, name string) (core.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return core.Date{}, badRequest(fmt.Sprintf("missing %q query parameter", name))
	}
	d, err := core.ParseISODate(raw)
	if err != nil {
		return core.Date{}, badRequest(fmt.Sprintf("invalid %q query parameter %q: expected YYYY-MM-DD", name, raw))
	}
	return d, nil
}

// ledgerUpload is the CSV stream of an upload request and its display name.
type ledgerUpload struct {
	Source string
	Body   io.Reader
}

// readLedgerUpload accepts either a multipart form with a "file" part or a
// raw CSV body. The body must already be wrapped by http.MaxBytesReader.
func readLedgerUpload(r *http.Request) (ledgerUpload, error) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "multipart/form-data":
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return ledgerUpload{}, badRequest(fmt.Sprintf("multipart form has no %q field", uploadField))
			}
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					return ledgerUpload{}, err
				}
				return ledgerUpload{}, badRequest("invalid multipart body: " + err.Error())
			}
			if part.FormName() != uploadField {
				continue
			}
			source := part.FileName()
			if source == "" {
				source = uploadField
			}
			return ledgerUpload{Source: source, Body: part}, nil
		}

	case "", "text/csv", "application/csv", "text/plain", "application/octet-stream":
		source := strings.TrimSpace(r.URL.Query().Get("source"))
		if source == "" {
			source = "upload.csv"
		}
		return ledgerUpload{Source: source, Body: r.Body}, nil

	default:
		return ledgerUpload{}, badRequest(fmt.Sprintf("unsupported content type %q", mediaType))
	}
}

// decodeGoalRequest decodes a goal configuration, rejecting unknown fields.
func decodeGoalRequest(r *http.Request) (services.GoalRequest, error) {
	var req services.GoalRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.GoalRequest{}, err
		}
		return services.GoalRequest{}, badRequest("invalid goal request: " + err.Error())
	}
	if dec.More() {
		return services.GoalRequest{}, badRequest("invalid goal request: trailing data")
	}
	return req, nil
}
