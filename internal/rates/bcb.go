package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

// DefaultBCBURL serves the Selic target history of Banco Central do Brasil.
const DefaultBCBURL = "https://www.bcb.gov.br/api/servico/sitebcb/historicotaxasjuros"

// BCBClient fetches the Selic target history.
type BCBClient struct {
	url    string
	client *http.Client
	now    func() time.Time
	log    *log.Logger
}

// NewBCBClient initializes a new client against url with the given timeout.
func NewBCBClient(url string, timeout time.Duration, logger *log.Logger) *BCBClient {
	if url == "" {
		url = DefaultBCBURL
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &BCBClient{
		url:    url,
		client: newHTTPClient(timeout),
		now:    time.Now,
		log:    logger.WithComponent(log.ComponentRates),
	}
}

// newHTTPClient returns a client with a bounded keep-alive pool; the rate
// history is fetched rarely, so few idle connections are kept.
func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

type bcbResponse struct {
	Conteudo []bcbEntry `json:"conteudo"`
}

type bcbEntry struct {
	DataInicioVigencia string   `json:"DataInicioVigencia"`
	DataFimVigencia    *string  `json:"DataFimVigencia"`
	MetaSelic          *float64 `json:"MetaSelic"`
}

// Timeline retrieves the full rate history. Open-ended intervals resolve to
// the current day.
func (c *BCBClient) Timeline(ctx context.Context) (Timeline, error) {
	body, err := c.sendRequest(ctx)
	if err != nil {
		return Timeline{}, err
	}

	intervals, err := parseBCBResponse(body)
	if err != nil {
		return Timeline{}, err
	}

	c.log.InfoContext(ctx, "Retrieved rate history", log.FieldRecords, len(intervals))
	return NewTimeline(intervals, core.DateOf(c.now())), nil
}

func (c *BCBClient) sendRequest(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.log.DebugContext(ctx, "Rate history response", "bytes", len(body))
	return body, nil
}

func parseBCBResponse(body []byte) ([]Interval, error) {
	var payload bcbResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode rate history: %w", err)
	}

	intervals := make([]Interval, 0, len(payload.Conteudo))
	for i, e := range payload.Conteudo {
		if e.MetaSelic == nil {
			continue
		}
		start, err := parseBCBDate(e.DataInicioVigencia)
		if err != nil {
			return nil, fmt.Errorf("entry %d: start date %q: %w", i, e.DataInicioVigencia, err)
		}
		iv := Interval{Start: start, RatePercent: *e.MetaSelic}
		if e.DataFimVigencia != nil && strings.TrimSpace(*e.DataFimVigencia) != "" {
			end, err := parseBCBDate(*e.DataFimVigencia)
			if err != nil {
				return nil, fmt.Errorf("entry %d: end date %q: %w", i, *e.DataFimVigencia, err)
			}
			iv.End = end
		}
		intervals = append(intervals, iv)
	}
	if len(intervals) == 0 {
		return nil, fmt.Errorf("no rate data found in response")
	}
	return intervals, nil
}

var bcbDateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	core.ISODateLayout,
	core.LedgerDateLayout,
}

func parseBCBDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range bcbDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, core.ErrInvalidDate
}
