package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"IndexPulse/internal/domain/models"
	xhttp "IndexPulse/pkg/http"
	applogger "IndexPulse/pkg/logger"
)

// TwelveDataClient implements the raw API against the TwelveData REST
// endpoints. It classifies every failure into the retry taxonomy; callers
// never see an untagged transport error.
type TwelveDataClient struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
	logger  *applogger.Logger
}

// NewTwelveDataClient creates a TwelveData REST client.
func NewTwelveDataClient(baseURL, apiKey string, timeout time.Duration, l *applogger.Logger) *TwelveDataClient {
	if baseURL == "" {
		baseURL = "https://api.twelvedata.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TwelveDataClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		logger:  l,
	}
}

type tdBar struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

type tdSeries struct {
	Meta struct {
		Symbol string `json:"symbol"`
	} `json:"meta"`
	Values []tdBar `json:"values"`
	tdStatus
}

type tdQuote struct {
	Symbol        string `json:"symbol"`
	Close         string `json:"close"`
	Change        string `json:"change"`
	PercentChange string `json:"percent_change"`
	Volume        string `json:"volume"`
	Timestamp     int64  `json:"timestamp"`
	tdStatus
}

type tdRate struct {
	Symbol    string  `json:"symbol"`
	Rate      float64 `json:"rate"`
	Timestamp int64   `json:"timestamp"`
	tdStatus
}

// tdStatus is the embedded error envelope TwelveData returns with HTTP 200.
type tdStatus struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s tdStatus) embeddedError() error {
	if s.Status != "error" {
		return nil
	}
	switch {
	case s.Code == http.StatusTooManyRequests:
		return &RateLimitError{Err: fmt.Errorf("%s", s.Message)}
	case s.Code >= 500:
		return &ServerError{Status: s.Code, Err: fmt.Errorf("%s", s.Message)}
	default:
		return &ClientError{Status: s.Code, Err: fmt.Errorf("%s", s.Message)}
	}
}

// TimeSeries fetches daily bars for up to the provider's per-call symbol
// limit. Bars come back ascending by date. Symbols the provider rejects
// individually are absent from the result.
func (c *TwelveDataClient) TimeSeries(ctx context.Context, symbols []string, start, end time.Time, interval string) (map[string]models.PriceSeries, error) {
	if interval == "" {
		interval = IntervalDay
	}
	params := map[string][]string{
		"symbol":     {strings.Join(symbols, ",")},
		"interval":   {interval},
		"start_date": {start.Format("2006-01-02")},
		"apikey":     {c.apiKey},
		"outputsize": {"5000"},
	}
	if !end.IsZero() {
		params["end_date"] = []string{end.Format("2006-01-02")}
	}

	raw, err := c.get(ctx, "/time_series", params)
	if err != nil {
		return nil, err
	}

	payloads, err := splitBatch(raw, symbols, "values")
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.PriceSeries, len(symbols))
	for sym, body := range payloads {
		var ts tdSeries
		if err := json.Unmarshal(body, &ts); err != nil {
			return nil, &ServerError{Err: fmt.Errorf("decode series %s: %w", sym, err)}
		}
		if err := ts.embeddedError(); err != nil {
			if len(payloads) == 1 {
				return nil, err
			}
			if c.logger != nil {
				c.logger.Warn("symbol rejected by provider",
					applogger.String("symbol", sym), applogger.Error(err))
			}
			continue
		}
		series, err := ts.toSeries(sym)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("unparseable series", applogger.String("symbol", sym), applogger.Error(err))
			}
			continue
		}
		out[sym] = series
	}
	return out, nil
}

// Quotes fetches near-real-time quotes for the given symbols.
func (c *TwelveDataClient) Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	params := map[string][]string{
		"symbol": {strings.Join(symbols, ",")},
		"apikey": {c.apiKey},
	}
	raw, err := c.get(ctx, "/quote", params)
	if err != nil {
		return nil, err
	}

	payloads, err := splitBatch(raw, symbols, "symbol")
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.Quote, len(symbols))
	for sym, body := range payloads {
		var q tdQuote
		if err := json.Unmarshal(body, &q); err != nil {
			return nil, &ServerError{Err: fmt.Errorf("decode quote %s: %w", sym, err)}
		}
		if err := q.embeddedError(); err != nil {
			if len(payloads) == 1 {
				return nil, err
			}
			continue
		}
		price := parseFloat(q.Close)
		if price <= 0 {
			continue
		}
		out[sym] = models.Quote{
			Symbol:        sym,
			Price:         price,
			Change:        parseFloat(q.Change),
			PercentChange: parseFloat(q.PercentChange),
			Volume:        parseFloat(q.Volume),
			Timestamp:     time.Unix(q.Timestamp, 0).UTC(),
		}
	}
	return out, nil
}

// ExchangeRate fetches the conversion rate for a currency pair.
func (c *TwelveDataClient) ExchangeRate(ctx context.Context, from, to string) (models.ExchangeRate, error) {
	params := map[string][]string{
		"symbol": {fmt.Sprintf("%s/%s", from, to)},
		"apikey": {c.apiKey},
	}
	raw, err := c.get(ctx, "/exchange_rate", params)
	if err != nil {
		return models.ExchangeRate{}, err
	}

	var r tdRate
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.ExchangeRate{}, &ServerError{Err: fmt.Errorf("decode rate: %w", err)}
	}
	if err := r.embeddedError(); err != nil {
		return models.ExchangeRate{}, err
	}
	return models.ExchangeRate{
		From:      from,
		To:        to,
		Rate:      r.Rate,
		Timestamp: time.Unix(r.Timestamp, 0).UTC(),
	}, nil
}

// get issues the request and classifies HTTP-level failures.
func (c *TwelveDataClient) get(ctx context.Context, path string, params map[string][]string) (json.RawMessage, error) {
	resp, err := c.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	})
	if err != nil {
		return nil, &ServerError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServerError{Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			Hint: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:  fmt.Errorf("http 429: %s", truncate(body)),
		}
	case resp.StatusCode >= 500:
		return nil, &ServerError{Status: resp.StatusCode, Err: fmt.Errorf("%s", truncate(body))}
	case resp.StatusCode >= 400:
		return nil, &ClientError{Status: resp.StatusCode, Err: fmt.Errorf("%s", truncate(body))}
	}

	return body, nil
}

func (ts *tdSeries) toSeries(symbol string) (models.PriceSeries, error) {
	points := make([]models.PricePoint, 0, len(ts.Values))
	for _, bar := range ts.Values {
		date, err := parseBarDate(bar.Datetime)
		if err != nil {
			return models.PriceSeries{}, err
		}
		points = append(points, models.PricePoint{
			Symbol: symbol,
			Date:   date,
			Close:  parseFloat(bar.Close),
			Open:   parseFloat(bar.Open),
			High:   parseFloat(bar.High),
			Low:    parseFloat(bar.Low),
			Volume: parseFloat(bar.Volume),
		})
	}
	// TwelveData returns bars newest-first.
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return models.PriceSeries{Symbol: symbol, Points: points}, nil
}

// splitBatch handles the provider's two response shapes: a single object
// for one symbol, a symbol-keyed map for several. markerKey identifies the
// single-object shape.
func splitBatch(raw json.RawMessage, symbols []string, markerKey string) (map[string]json.RawMessage, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &ServerError{Err: fmt.Errorf("decode response: %w", err)}
	}

	// Embedded top-level error envelope.
	if statusRaw, ok := probe["status"]; ok {
		var st tdStatus
		st.Status = strings.Trim(string(statusRaw), `"`)
		if st.Status == "error" {
			var full tdStatus
			_ = json.Unmarshal(raw, &full)
			return nil, full.embeddedError()
		}
	}

	if _, single := probe[markerKey]; single || len(symbols) == 1 {
		sym := ""
		if len(symbols) > 0 {
			sym = symbols[0]
		}
		return map[string]json.RawMessage{sym: raw}, nil
	}

	out := make(map[string]json.RawMessage, len(probe))
	for sym, body := range probe {
		out[sym] = body
	}
	return out, nil
}

func parseBarDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse bar date %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
