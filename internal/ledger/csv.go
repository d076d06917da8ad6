package ledger

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"patrimonio/internal/core"
)

// Column headers of a ledger file.
const (
	ColumnDate        = "Data"
	ColumnInstitution = "Instituição"
	ColumnAmount      = "Valor"
)

var (
	errMissingColumn = errors.New("missing column")
	errEmptyFile     = errors.New("file has no header row")
)

// Header aliases accepted besides the canonical names.
var headerAliases = map[string]string{
	"data":        ColumnDate,
	"date":        ColumnDate,
	"instituição": ColumnInstitution,
	"instituicao": ColumnInstitution,
	"institution": ColumnInstitution,
	"valor":       ColumnAmount,
	"value":       ColumnAmount,
	"amount":      ColumnAmount,
}

// columns maps each required header to its index in a row.
type columns map[string]int

// resolveColumns locates the required headers. Order is free and extra
// columns are ignored.
func resolveColumns(header []string) (columns, error) {
	cols := columns{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if canon, ok := headerAliases[strings.ToLower(h)]; ok {
			if _, dup := cols[canon]; !dup {
				cols[canon] = i
			}
		}
	}
	for _, name := range []string{ColumnDate, ColumnInstitution, ColumnAmount} {
		if _, ok := cols[name]; !ok {
			return nil, &core.MalformedInputError{Line: 1, Field: name, Err: errMissingColumn}
		}
	}
	return cols, nil
}

// parseRecord turns one row into a balance record. line is reported in errors.
func parseRecord(cols columns, row []string, line int) (core.BalanceRecord, error) {
	get := func(name string) string {
		if i := cols[name]; i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	rawDate := get(ColumnDate)
	date, err := core.ParseLedgerDate(rawDate)
	if err != nil {
		return core.BalanceRecord{}, &core.MalformedInputError{Line: line, Field: ColumnDate, Value: rawDate, Err: err}
	}

	institution := get(ColumnInstitution)
	if institution == "" {
		return core.BalanceRecord{}, &core.MalformedInputError{Line: line, Field: ColumnInstitution, Err: core.ErrEmptyInstitution}
	}

	rawAmount := get(ColumnAmount)
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return core.BalanceRecord{}, &core.MalformedInputError{Line: line, Field: ColumnAmount, Value: rawAmount, Err: err}
	}

	return core.BalanceRecord{Date: date, Institution: institution, Amount: amount}, nil
}

// ParseCSV reads a ledger file. The delimiter is detected from the header
// line (comma or semicolon). The first bad row aborts the whole parse with a
// *core.MalformedInputError; the returned ledger is sorted by date.
func ParseCSV(r io.Reader) (core.Ledger, error) {
	br := bufio.NewReader(r)

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &core.MalformedInputError{Line: 1, Err: errEmptyFile}
	}
	if err != nil {
		return nil, csvError(err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var records []core.BalanceRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		if blank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rec, err := parseRecord(cols, row, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return core.NewLedger(records), nil
}

// sniffDelimiter peeks at the first line and picks ';' when it has more
// semicolons than commas.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(br.Size())
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	if bytes.Count(peek, []byte{';'}) > bytes.Count(peek, []byte{','}) {
		return ';'
	}
	return ','
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &core.MalformedInputError{Line: pe.Line, Err: pe.Err}
	}
	return fmt.Errorf("read csv: %w", err)
}

// WriteCSV writes the ledger with the canonical headers, dates as dd/mm/yyyy
// and dot decimal amounts. ParseCSV reads it back unchanged.
func WriteCSV(w io.Writer, l core.Ledger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnDate, ColumnInstitution, ColumnAmount}); err != nil {
		return err
	}
	for _, r := range l {
		if err := cw.Write([]string{r.Date.Format(core.LedgerDateLayout), r.Institution, r.Amount.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseRows parses a value matrix whose first row is the header, as returned
// by spreadsheet APIs. Line numbers in errors are 1-based row indexes.
func ParseRows(rows [][]string) (core.Ledger, error) {
	if len(rows) == 0 {
		return nil, &core.MalformedInputError{Line: 1, Err: errEmptyFile}
	}
	cols, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}
	records := make([]core.BalanceRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec, err := parseRecord(cols, row, i+2)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return core.NewLedger(records), nil
}
