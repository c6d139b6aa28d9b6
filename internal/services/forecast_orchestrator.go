package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stock-analyzer-api/internal/config"
	"stock-analyzer-api/internal/forecast"
	"stock-analyzer-api/internal/models"
)

// ForecastOrchestrator coordinates history lookup and the forecast engine.
// It holds no per-request state; the engine runs fresh on every call.
type ForecastOrchestrator struct {
	config     *config.Config
	marketData *MarketDataService
}

func NewForecastOrchestrator(cfg *config.Config, marketData *MarketDataService) *ForecastOrchestrator {
	return &ForecastOrchestrator{
		config:     cfg,
		marketData: marketData,
	}
}

// Analyze fetches history for symbol and returns it with a summary of the latest day and
// the projected prices.
func (o *ForecastOrchestrator) Analyze(ctx context.Context, symbol string) (*models.Analysis, error) {
	h, err := o.marketData.History(ctx, symbol)
	if err != nil {
		return nil, err
	}

	f, err := forecast.FromPoints(h.Points)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", h.Symbol, err)
	}

	return &models.Analysis{
		Summary:     summarize(h),
		History:     h.Points,
		Forecast:    *f,
		Source:      h.Source,
		GeneratedAt: time.Now(),
	}, nil
}

func round(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(forecast.PricePlaces))
}

// summarize describes the latest point of h. h.Points must be non-empty.
func summarize(h *models.History) models.StockSummary {
	last := h.Points[len(h.Points)-1]

	current := h.CurrentPrice
	if current.IsZero() && last.Close.Valid {
		current = last.Close.Decimal
	}
	name := h.LongName
	if name == "" {
		name = h.Symbol
	}

	return models.StockSummary{
		Symbol:       h.Symbol,
		LongName:     name,
		Currency:     h.Currency,
		CurrentPrice: current.Round(forecast.PricePlaces),
		Open:         round(last.Open),
		High:         round(last.High),
		Low:          round(last.Low),
		Close:        round(last.Close),
	}
}

// History returns the raw price history for symbol.
func (o *ForecastOrchestrator) History(ctx context.Context, symbol string) (*models.History, error) {
	return o.marketData.History(ctx, symbol)
}

// ForecastRequest runs the engine over caller-supplied data. Points win over Closes.
func (o *ForecastOrchestrator) ForecastRequest(req models.ForecastRequest) (*models.Forecast, error) {
	if len(req.Points) > 0 {
		return forecast.FromPoints(req.Points)
	}
	return forecast.Forecast(req.Closes)
}

// GetTickerData retrieves the current quote for a single ticker
func (o *ForecastOrchestrator) GetTickerData(ctx context.Context, symbol string) (*models.TickerData, error) {
	return o.marketData.Quote(ctx, symbol)
}

func (o *ForecastOrchestrator) Suggestions(ctx context.Context, query string) ([]models.Suggestion, error) {
	return o.marketData.Suggestions(ctx, query)
}

func (o *ForecastOrchestrator) News(ctx context.Context, symbol string) ([]models.Article, error) {
	return o.marketData.News(ctx, symbol)
}

// Warm loads history for symbols into the cache and returns how many succeeded.
func (o *ForecastOrchestrator) Warm(ctx context.Context, symbols []string) (int, error) {
	if len(symbols) == 0 {
		return 0, nil
	}
	res, err := o.marketData.FetchBatch(ctx, symbols)
	if err != nil {
		return 0, err
	}
	return len(res), nil
}

// RefreshCache clears all caches
func (o *ForecastOrchestrator) RefreshCache(ctx context.Context) error {
	return o.marketData.cache.Clear(ctx)
}

// Ready checks the remote cache tier.
func (o *ForecastOrchestrator) Ready(ctx context.Context) error {
	return o.marketData.cache.Ping(ctx)
}

// CacheBackend names the active remote cache tier.
func (o *ForecastOrchestrator) CacheBackend() string {
	return o.marketData.cache.Backend()
}
