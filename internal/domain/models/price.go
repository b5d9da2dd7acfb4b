package models

import "time"

// PricePoint is one validated daily price observation for an instrument.
// Close is always > 0; a point is unique per (Symbol, Date).
type PricePoint struct {
	Symbol string
	Date   time.Time
	Close  float64
	Open   float64
	High   float64
	Low    float64
	Volume float64
}

// PriceSeries is an ordered-by-date sequence of points for one instrument.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Closes returns the close column of the series.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Quote is a near-real-time snapshot for a symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percent_change"`
	Volume        float64   `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// ExchangeRate is a currency-pair conversion rate.
type ExchangeRate struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rate      float64   `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceMatrix is a date-indexed, symbol-columned matrix of close prices.
// Dates are ascending; Closes[symbol][i] aligns with Dates[i]. A missing
// observation is carried as NaN by the builder and dropped by the engine.
type PriceMatrix struct {
	Dates  []time.Time
	Closes map[string][]float64
}

// Symbols returns the column names of the matrix in unspecified order.
func (m PriceMatrix) Symbols() []string {
	out := make([]string, 0, len(m.Closes))
	for s := range m.Closes {
		out = append(out, s)
	}
	return out
}
