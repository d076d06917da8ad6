package http

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"patrimonio/internal/analytics"
	"patrimonio/internal/core"
	"patrimonio/internal/goal"
	"patrimonio/internal/ledger"
	"patrimonio/internal/log"
	"patrimonio/internal/rates"
)

type importResponse struct {
	ImportID  int64     `json:"import_id,omitempty"`
	Source    string    `json:"source"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

func newImportResponse(imp ledger.Import) importResponse {
	return importResponse{ImportID: imp.ID, Source: imp.Source, Records: imp.Records, CreatedAt: imp.CreatedAt}
}

func (s *Server) handleUploadLedger(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	upload, err := readLedgerUpload(r)
	if err != nil {
		s.writeError(w, r, log.OpImport, err)
		return
	}

	imp, err := s.deps.Ledger.Import(r.Context(), upload.Source, upload.Body)
	if err != nil {
		s.writeError(w, r, log.OpImport, err)
		return
	}
	writeJSON(w, http.StatusCreated, newImportResponse(imp))
}

type ledgerResponse struct {
	Import       *importResponse `json:"import,omitempty"`
	FirstDate    core.Date       `json:"first_date"`
	LastDate     core.Date       `json:"last_date"`
	Institutions []string        `json:"institutions"`
	Records      core.Ledger     `json:"records"`
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Ledger.Ledger(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	resp := ledgerResponse{Records: records, Institutions: records.Institutions()}
	resp.FirstDate, resp.LastDate, _ = records.Span()
	// The sheets backend may hold a ledger that was never imported through the API.
	if imp, err := s.deps.Ledger.LatestImport(r.Context()); err == nil {
		ir := newImportResponse(imp)
		resp.Import = &ir
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.deps.Analytics.Series(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpCompute, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": series})
}

func (s *Server) handleInstitutions(w http.ResponseWriter, r *http.Request) {
	table, err := s.deps.Analytics.Institutions(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpCompute, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	d, err := parseDateQuery(r, "date")
	if err != nil {
		s.writeError(w, r, log.OpCompute, err)
		return
	}
	shares, err := s.deps.Analytics.Share(r.Context(), d)
	if err != nil {
		s.writeError(w, r, log.OpCompute, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": d, "shares": shares})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	table, err := s.deps.Analytics.Statistics(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpCompute, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, table)
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="statistics.csv"`)
		if err := writeStatisticsCSV(w, table); err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to write statistics CSV", log.FieldError, err)
		}
	default:
		s.writeError(w, r, log.OpCompute, badRequest("unsupported format "+format))
	}
}

// writeStatisticsCSV writes one line per table row; undefined cells are empty.
func writeStatisticsCSV(w io.Writer, table analytics.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"date"}, analytics.Columns()...)); err != nil {
		return err
	}
	for _, row := range table.Rows {
		vals := row.Values()
		line := make([]string, 0, len(vals)+1)
		line = append(line, row.Date.String())
		for _, v := range vals {
			line = append(line, v.String())
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func handleStatisticsColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"all":      analytics.Columns(),
		"absolute": analytics.AbsoluteColumns(),
		"relative": analytics.RelativeColumns(),
	})
}

type snapshotResponse struct {
	ID         int64           `json:"id"`
	ImportID   int64           `json:"import_id"`
	ComputedAt time.Time       `json:"computed_at"`
	Rows       int             `json:"rows"`
	Statistics json.RawMessage `json:"statistics"`
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Ledger.LatestSnapshot(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpSnapshot, err)
		return
	}
	payload := json.RawMessage(snap.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, snapshotResponse{
		ID:         snap.ID,
		ImportID:   snap.ImportID,
		ComputedAt: snap.ComputedAt,
		Rows:       snap.Rows,
		Statistics: payload,
	})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	timeline, err := s.deps.Rates.Timeline(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpFetch, err)
		return
	}
	writeJSON(w, http.StatusOK, rates.Timeline{Intervals: timeline.Resolved(), Today: timeline.Today})
}

type rateAtResponse struct {
	Date              core.Date `json:"date"`
	AnnualRatePercent float64   `json:"annual_rate_percent"`
	MonthlyRate       float64   `json:"monthly_rate"`
}

func (s *Server) handleRateAt(w http.ResponseWriter, r *http.Request) {
	d, err := parseDateQuery(r, "date")
	if err != nil {
		s.writeError(w, r, log.OpFetch, err)
		return
	}
	timeline, err := s.deps.Rates.Timeline(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpFetch, err)
		return
	}
	rate, err := timeline.RateAt(d)
	if err != nil {
		s.writeError(w, r, log.OpLookup, err)
		return
	}
	writeJSON(w, http.StatusOK, rateAtResponse{
		Date:              d,
		AnnualRatePercent: rate,
		MonthlyRate:       goal.MonthlyRate(rate / 100),
	})
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxGoalBodyBytes)

	req, err := decodeGoalRequest(r)
	if err != nil {
		s.writeError(w, r, log.OpCompute, err)
		return
	}
	resp, err := s.deps.Goals.Compute(r.Context(), req)
	if err != nil {
		s.writeError(w, r, log.OpCompute, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
