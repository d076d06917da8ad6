// Package sheets reads and writes the ledger on a Google Sheets tab.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
	"patrimonio/internal/log"
)

// Config selects the spreadsheet and the service-account credentials.
// CredentialsJSON takes precedence over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	log           *log.Logger
}

var (
	_ ledger.Reader = (*Client)(nil)
	_ ledger.Writer = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Patrimonio"
	}
	if logger == nil {
		logger = log.Discard()
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger = logger.WithComponent(log.ComponentSheets)
	logger.Info("Google Sheets client ready", "spreadsheet_id", cfg.SpreadsheetID, "sheet", cfg.SheetName)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: cfg.SheetName, log: logger}, nil
}

// LoadLedger reads every row of the ledger tab.
func (c *Client) LoadLedger(ctx context.Context) (core.Ledger, error) {
	rng := fmt.Sprintf("%s!A:Z", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	l, err := parseValues(resp.Values)
	if err != nil {
		return nil, err
	}
	c.log.DebugContext(ctx, "Ledger read from sheet", log.FieldRecords, len(l))
	return l, nil
}

// ReplaceLedger clears the ledger tab and writes records with the canonical
// headers. Values are written raw so they read back unchanged.
func (c *Client) ReplaceLedger(ctx context.Context, source string, records core.Ledger) (ledger.Import, error) {
	clearRng := fmt.Sprintf("%s!A:C", c.sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return ledger.Import{}, fmt.Errorf("clear %s: %w", clearRng, err)
	}

	vr := &gsheet.ValueRange{Values: toValues(records)}
	rng := fmt.Sprintf("%s!A1", c.sheet)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return ledger.Import{}, fmt.Errorf("write %s: %w", rng, err)
	}

	c.log.InfoContext(ctx, "Ledger written to sheet", log.FieldSource, source, log.FieldRecords, len(records))
	return ledger.Import{Source: source, Records: len(records)}, nil
}

func parseValues(values [][]interface{}) (core.Ledger, error) {
	if len(values) == 0 {
		return nil, core.ErrEmptyLedger
	}
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = toStrings(v)
	}
	return ledger.ParseRows(rows)
}

func toValues(records core.Ledger) [][]interface{} {
	out := make([][]interface{}, 0, len(records)+1)
	out = append(out, []interface{}{ledger.ColumnDate, ledger.ColumnInstitution, ledger.ColumnAmount})
	for _, r := range core.NewLedger(records) {
		out = append(out, []interface{}{r.Date.Format(core.LedgerDateLayout), r.Institution, r.Amount.String()})
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
