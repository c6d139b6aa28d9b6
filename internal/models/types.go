package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one daily bar as returned by a history provider.
// A missing upstream value is kept as an invalid NullDecimal rather than zero.
type PricePoint struct {
	Date  time.Time           `json:"date"`
	Open  decimal.NullDecimal `json:"open"`
	High  decimal.NullDecimal `json:"high"`
	Low   decimal.NullDecimal `json:"low"`
	Close decimal.NullDecimal `json:"close"`

	// RawClose holds a close that was present but not a number.
	RawClose json.RawMessage `json:"-"`
}

// UnmarshalJSON reads close leniently: a value that is not a number leaves Close invalid
// and is kept in RawClose instead of failing the whole document.
func (p *PricePoint) UnmarshalJSON(data []byte) error {
	type plain PricePoint
	aux := struct {
		*plain
		Close json.RawMessage `json:"close"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.Close = decimal.NullDecimal{}
	p.RawClose = nil
	if len(aux.Close) == 0 || string(aux.Close) == "null" {
		return nil
	}
	if err := p.Close.UnmarshalJSON(aux.Close); err != nil {
		p.Close = decimal.NullDecimal{}
		p.RawClose = append(json.RawMessage(nil), aux.Close...)
	}
	return nil
}

// History is an ordered (ascending by date) price history for one symbol.
type History struct {
	Symbol       string          `json:"symbol"`
	LongName     string          `json:"longName,omitempty"`
	Currency     string          `json:"currency,omitempty"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Points       []PricePoint    `json:"points"`
	Source       string          `json:"source"` // "yahoo" or "alphavantage"
	FetchedAt    time.Time       `json:"fetchedAt"`
}

// Trend is the direction of a forecast.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// ForecastPoint is a projected closing price for Day days after the last known close.
type ForecastPoint struct {
	Day   int             `json:"day"`
	Price decimal.Decimal `json:"price"`
}

// Forecast is the engine output.
type Forecast struct {
	Points []ForecastPoint `json:"points"`
	Trend  Trend           `json:"trend"`
}

// Suggestion is a search hit offered to the user.
type Suggestion struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Article is a news item related to a symbol.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// StockSummary describes the latest trading day of a symbol.
type StockSummary struct {
	Symbol       string              `json:"symbol"`
	LongName     string              `json:"longName"`
	Currency     string              `json:"currency,omitempty"`
	CurrentPrice decimal.Decimal     `json:"currentPrice"`
	Open         decimal.NullDecimal `json:"open"`
	High         decimal.NullDecimal `json:"high"`
	Low          decimal.NullDecimal `json:"low"`
	Close        decimal.NullDecimal `json:"close"`
}

// Analysis is the response of the analyze endpoint.
type Analysis struct {
	Summary     StockSummary `json:"summary"`
	History     []PricePoint `json:"history"`
	Forecast    Forecast     `json:"forecast"`
	Source      string       `json:"source"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// TickerData represents a current quote snapshot for a ticker
type TickerData struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Source        string    `json:"source"` // "alphavantage" or "yahoo"
}

// ForecastRequest is the body of POST /v1/forecast. Exactly one of Closes or Points is used;
// Points wins when both are set.
type ForecastRequest struct {
	Closes []float64    `json:"closes,omitempty"`
	Points []PricePoint `json:"points,omitempty"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
