package models

// Requests for the index HTTP endpoints. Defined in domain for consistency and reuse.

type IndexSeriesRequest struct {
	From string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
}

type AllocationsRequest struct {
	Date string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type QuotesRequest struct {
	Symbols string `query:"symbols" json:"symbols" validate:"required,max=512"`
}
