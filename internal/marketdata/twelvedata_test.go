package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *TwelveDataClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewTwelveDataClient(srv.URL, "test-key", 5*time.Second, nil)
}

func TestTimeSeriesSingleSymbolSortedAscending(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("unexpected symbol param %q", got)
		}
		w.Write([]byte(`{
			"meta": {"symbol": "AAPL"},
			"values": [
				{"datetime": "2025-01-08", "open": "101", "high": "103", "low": "100", "close": "102.5", "volume": "1000"},
				{"datetime": "2025-01-07", "open": "100", "high": "102", "low": "99", "close": "101.0", "volume": "900"},
				{"datetime": "2025-01-06", "open": "99", "high": "101", "low": "98", "close": "100.0", "volume": "800"}
			],
			"status": "ok"
		}`))
	})

	got, err := client.TimeSeries(context.Background(), []string{"AAPL"}, time.Now().AddDate(0, -1, 0), time.Time{}, IntervalDay)
	if err != nil {
		t.Fatalf("time series: %v", err)
	}
	series := got["AAPL"]
	if len(series.Points) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(series.Points))
	}
	for i := 1; i < len(series.Points); i++ {
		if !series.Points[i-1].Date.Before(series.Points[i].Date) {
			t.Fatalf("bars not ascending: %v then %v", series.Points[i-1].Date, series.Points[i].Date)
		}
	}
	if series.Points[2].Close != 102.5 {
		t.Fatalf("expected newest close last, got %v", series.Points[2].Close)
	}
}

func TestTimeSeriesBatchSkipsRejectedSymbol(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"AAPL": {
				"meta": {"symbol": "AAPL"},
				"values": [{"datetime": "2025-01-06", "open": "99", "high": "101", "low": "98", "close": "100.0", "volume": "800"}],
				"status": "ok"
			},
			"NOPE": {"status": "error", "code": 404, "message": "symbol not found"}
		}`))
	})

	got, err := client.TimeSeries(context.Background(), []string{"AAPL", "NOPE"}, time.Now().AddDate(0, -1, 0), time.Time{}, IntervalDay)
	if err != nil {
		t.Fatalf("time series: %v", err)
	}
	if _, ok := got["AAPL"]; !ok {
		t.Fatal("valid symbol missing from batch result")
	}
	if _, ok := got["NOPE"]; ok {
		t.Fatal("rejected symbol must be absent, not fatal")
	}
}

func TestGetClassifiesRateLimitWithRetryAfter(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message": "quota exceeded"}`))
	})

	_, err := client.Quotes(context.Background(), []string{"AAPL"})
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	after, ok := rle.RetryAfter()
	if !ok || after != 42*time.Second {
		t.Fatalf("expected retry-after 42s, got %v ok=%v", after, ok)
	}
}

func TestGetClassifiesServerError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Quotes(context.Background(), []string{"AAPL"})
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if se.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 status, got %d", se.Status)
	}
}

func TestEmbeddedErrorEnvelopeWithHTTP200(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "code": 429, "message": "API credits exhausted"}`))
	})

	_, err := client.Quotes(context.Background(), []string{"AAPL"})
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError from envelope, got %v", err)
	}
}

func TestQuotesSkipsNonPositivePrice(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"AAPL": {"symbol": "AAPL", "close": "190.5", "change": "1.2", "percent_change": "0.63", "volume": "1000", "timestamp": 1736100000},
			"ZERO": {"symbol": "ZERO", "close": "0", "change": "0", "percent_change": "0", "volume": "0", "timestamp": 1736100000}
		}`))
	})

	got, err := client.Quotes(context.Background(), []string{"AAPL", "ZERO"})
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if q, ok := got["AAPL"]; !ok || q.Price != 190.5 {
		t.Fatalf("unexpected AAPL quote: %+v", got["AAPL"])
	}
	if _, ok := got["ZERO"]; ok {
		t.Fatal("zero-price quote must be dropped")
	}
}

func TestExchangeRate(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "EUR/USD" {
			t.Errorf("unexpected pair %q", got)
		}
		w.Write([]byte(`{"symbol": "EUR/USD", "rate": 1.0842, "timestamp": 1736100000}`))
	})

	got, err := client.ExchangeRate(context.Background(), "EUR", "USD")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if got.Rate != 1.0842 {
		t.Fatalf("expected 1.0842, got %v", got.Rate)
	}
}
