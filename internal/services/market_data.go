package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"stock-analyzer-api/internal/config"
	"stock-analyzer-api/internal/models"
	"stock-analyzer-api/pkg/alphavantage"
	"stock-analyzer-api/pkg/yahoo"
)

var (
	ErrNotFound      = errors.New("symbol not found")
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrUpstream      = errors.New("upstream data source failed")
)

// HistoryFetcher returns the configured window of daily history for a symbol.
type HistoryFetcher interface {
	Name() string
	FetchHistory(ctx context.Context, symbol string) (*models.History, error)
}

type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (*models.TickerData, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, newsCount int) (*yahoo.SearchResult, error)
}

// Sources are the upstreams used by MarketDataService. Earlier entries are preferred only
// in the sense that all are queried at once and the first success wins.
type Sources struct {
	History []HistoryFetcher
	Quotes  []QuoteFetcher
	Search  Searcher
}

type yahooHistory struct {
	client   *yahoo.Client
	rng      string
	interval string
}

func (y yahooHistory) Name() string { return "yahoo" }

func (y yahooHistory) FetchHistory(ctx context.Context, symbol string) (*models.History, error) {
	return y.client.GetHistory(ctx, symbol, y.rng, y.interval)
}

type alphaHistory struct {
	client *alphavantage.Client
	rng    string
}

func (a alphaHistory) Name() string { return "alphavantage" }

func (a alphaHistory) FetchHistory(ctx context.Context, symbol string) (*models.History, error) {
	return a.client.GetDailyHistory(ctx, symbol, RangeStart(a.rng, time.Now()))
}

// RangeStart converts a Yahoo range string into the earliest date it covers.
// Unknown ranges are treated as one month.
func RangeStart(rng string, now time.Time) time.Time {
	switch rng {
	case "1d":
		return now.AddDate(0, 0, -1)
	case "5d":
		return now.AddDate(0, 0, -5)
	case "3mo":
		return now.AddDate(0, -3, 0)
	case "6mo":
		return now.AddDate(0, -6, 0)
	case "1y":
		return now.AddDate(-1, 0, 0)
	case "2y":
		return now.AddDate(-2, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// MarketDataService handles concurrent market data fetching
type MarketDataService struct {
	config     *config.Config
	cache      *CacheService
	sources    Sources
	workerPool chan struct{} // Semaphore for bounded concurrency
}

// NewMarketDataService wires Yahoo and, when a key is configured, Alpha Vantage.
func NewMarketDataService(cfg *config.Config, cache *CacheService) *MarketDataService {
	opts := []yahoo.Option{yahoo.WithProxy(cfg.Proxy)}
	if cfg.Yahoo.BaseURL != "" {
		opts = append(opts, yahoo.WithBaseURL(cfg.Yahoo.BaseURL))
	}
	if cfg.Yahoo.UserAgent != "" {
		opts = append(opts, yahoo.WithUserAgent(cfg.Yahoo.UserAgent))
	}
	yc := yahoo.NewClient(opts...)

	src := Sources{
		History: []HistoryFetcher{yahooHistory{client: yc, rng: cfg.Yahoo.Range, interval: cfg.Yahoo.Interval}},
		Quotes:  []QuoteFetcher{yc},
		Search:  yc,
	}
	if av := alphavantage.NewClient(cfg.AlphaVantageKey); av.Enabled() {
		src.History = append(src.History, alphaHistory{client: av, rng: cfg.Yahoo.Range})
		src.Quotes = append(src.Quotes, av)
	} else {
		log.Println("[WARN] ALPHA_VANTAGE_KEY not set, using Yahoo Finance only")
	}
	return NewMarketDataServiceWithSources(cfg, cache, src)
}

func NewMarketDataServiceWithSources(cfg *config.Config, cache *CacheService, src Sources) *MarketDataService {
	return &MarketDataService{
		config:     cfg,
		cache:      cache,
		sources:    src,
		workerPool: make(chan struct{}, cfg.MaxConcurrentFetches),
	}
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.^=\-]{1,20}$`)

// NormalizeSymbol trims and upper-cases symbol and rejects anything that is not a ticker.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return s, nil
}

func (s *MarketDataService) acquire(ctx context.Context) error {
	select {
	case s.workerPool <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MarketDataService) release() { <-s.workerPool }

func isNoData(err error) bool {
	return errors.Is(err, yahoo.ErrNoData) || errors.Is(err, alphavantage.ErrNoData)
}

// firstSuccess runs every fetch concurrently and returns the first successful result.
// Losers are cancelled. When all fail the result wraps ErrNotFound if every source
// reported missing data, ErrUpstream otherwise.
func firstSuccess[T any](ctx context.Context, what string, fetches []func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(fetches) == 0 {
		return zero, fmt.Errorf("%w: no source configured for %s", ErrUpstream, what)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, len(fetches))
	for _, fetch := range fetches {
		go func(fetch func(context.Context) (T, error)) {
			v, err := fetch(ctx)
			ch <- result{v, err}
		}(fetch)
	}

	var errs []error
	allNoData := true
	for range fetches {
		select {
		case res := <-ch:
			if res.err == nil {
				return res.val, nil
			}
			errs = append(errs, res.err)
			if !isNoData(res.err) {
				allNoData = false
			}
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	if allNoData {
		return zero, fmt.Errorf("%w: %s: %v", ErrNotFound, what, errors.Join(errs...))
	}
	return zero, fmt.Errorf("%w: all sources failed for %s: %v", ErrUpstream, what, errors.Join(errs...))
}

// History returns the recent daily price history of symbol, cache first.
func (s *MarketDataService) History(ctx context.Context, symbol string) (*models.History, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	key := historyKey(symbol, s.config.Yahoo.Range, s.config.Yahoo.Interval)
	if cached, found := s.cache.GetHistory(ctx, key); found {
		return cached, nil
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	fetches := make([]func(context.Context) (*models.History, error), len(s.sources.History))
	for i, src := range s.sources.History {
		src := src
		fetches[i] = func(ctx context.Context) (*models.History, error) {
			h, err := src.FetchHistory(ctx, symbol)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", src.Name(), err)
			}
			return h, nil
		}
	}

	h, err := firstSuccess(ctx, symbol, fetches)
	if err != nil {
		return nil, err
	}
	h.Symbol = symbol

	if err := s.cache.SetHistory(ctx, key, h); err != nil {
		log.Printf("[WARN] cache history %s: %v", symbol, err)
	}
	return h, nil
}

// FetchBatch fetches history for multiple symbols concurrently using worker pool pattern.
// It fails only when every symbol failed.
func (s *MarketDataService) FetchBatch(ctx context.Context, symbols []string) (map[string]*models.History, error) {
	results := make(map[string]*models.History)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var errs []error

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			h, err := s.History(fetchCtx, symbol)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to fetch %s: %w", symbol, err))
				return
			}
			results[h.Symbol] = h
		}(symbol)
	}
	wg.Wait()

	if len(errs) > 0 && len(results) == 0 {
		return nil, fmt.Errorf("all fetches failed: %w", errs[0])
	}
	return results, nil
}

// Quote returns the current quote snapshot of symbol.
func (s *MarketDataService) Quote(ctx context.Context, symbol string) (*models.TickerData, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	fetches := make([]func(context.Context) (*models.TickerData, error), len(s.sources.Quotes))
	for i, src := range s.sources.Quotes {
		src := src
		fetches[i] = func(ctx context.Context) (*models.TickerData, error) {
			return src.GetQuote(ctx, symbol)
		}
	}
	return firstSuccess(ctx, symbol, fetches)
}

var (
	optionSymbol   = regexp.MustCompile(`(\d+)[CP]\d+`)
	leveragedName  = regexp.MustCompile(`ETF|Bull|Bear|\d+x`)
	pairOrRatioSym = regexp.MustCompile(`[=/]`)
)

// FilterSuggestions keeps plain listed equities: it drops hits without a symbol or long
// name, option contracts, ETF or leveraged products and currency pairs or ratios.
func FilterSuggestions(quotes []yahoo.SearchQuote) []models.Suggestion {
	out := make([]models.Suggestion, 0, len(quotes))
	for _, q := range quotes {
		if q.Symbol == "" || q.LongName == "" {
			continue
		}
		if optionSymbol.MatchString(q.Symbol) || leveragedName.MatchString(q.LongName) || pairOrRatioSym.MatchString(q.Symbol) {
			continue
		}
		out = append(out, models.Suggestion{Symbol: q.Symbol, Name: q.LongName})
	}
	return out
}

// Suggestions looks up tickers matching query. A blank query yields no suggestions
// without calling upstream.
func (s *MarketDataService) Suggestions(ctx context.Context, query string) ([]models.Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Suggestion{}, nil
	}

	key := strings.ToLower(query)
	if cached, found := s.cache.GetSuggestions(ctx, key); found {
		return cached, nil
	}

	res, err := s.sources.Search.Search(ctx, query, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", ErrUpstream, query, err)
	}

	out := FilterSuggestions(res.Quotes)
	if err := s.cache.SetSuggestions(ctx, key, out); err != nil {
		log.Printf("[WARN] cache suggestions %q: %v", query, err)
	}
	return out, nil
}

// ShapeNews keeps items with a thumbnail and orders them newest first.
func ShapeNews(items []yahoo.NewsItem) []models.Article {
	out := make([]models.Article, 0, len(items))
	for _, n := range items {
		if n.Thumbnail == nil {
			continue
		}
		a := models.Article{
			Title:       n.Title,
			Description: n.Summary,
			URL:         n.Link,
			Publisher:   n.Publisher,
			PublishedAt: n.PublishedAt(),
		}
		if len(n.Thumbnail.Resolutions) > 0 {
			a.ImageURL = n.Thumbnail.Resolutions[0].URL
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out
}

// News returns recent articles about symbol.
func (s *MarketDataService) News(ctx context.Context, symbol string) ([]models.Article, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	if cached, found := s.cache.GetNews(ctx, symbol); found {
		return cached, nil
	}

	res, err := s.sources.Search.Search(ctx, symbol, s.config.Yahoo.NewsCount)
	if err != nil {
		return nil, fmt.Errorf("%w: news for %s: %v", ErrUpstream, symbol, err)
	}

	out := ShapeNews(res.News)
	if err := s.cache.SetNews(ctx, symbol, out); err != nil {
		log.Printf("[WARN] cache news %s: %v", symbol, err)
	}
	return out, nil
}
