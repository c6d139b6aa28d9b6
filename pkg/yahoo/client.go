package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-analyzer-api/internal/models"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0"
)

// ErrNoData is returned when Yahoo answers but has nothing for the symbol.
var ErrNoData = errors.New("yahoo: no data returned")

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithProxy routes requests through proxyURL. Invalid URLs are ignored.
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		if proxyURL == "" {
			return
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			return
		}
		c.httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chartResponse mirrors /v8/finance/chart. Quote values are pointers because Yahoo
// emits null for bars it has no data for.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol              string  `json:"symbol"`
				Currency            string  `json:"currency"`
				LongName            string  `json:"longName"`
				ShortName           string  `json:"shortName"`
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				PreviousClose       float64 `json:"previousClose"`
				ChartPreviousClose  float64 `json:"chartPreviousClose"`
				RegularMarketVolume int64   `json:"regularMarketVolume"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) get(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yahoo read body: %w", err)
	}

	// The chart endpoint reports unknown symbols as 404 with an error object in the body.
	if resp.StatusCode == http.StatusNotFound {
		return ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo finance returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

func (c *Client) chart(ctx context.Context, symbol, rng, interval string) (*chartResponse, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(interval), url.QueryEscape(rng))

	var chart chartResponse
	if err := c.get(ctx, u, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w for symbol %s", ErrNoData, symbol)
	}
	return &chart, nil
}

func nullable(v []*float64, i int) decimal.NullDecimal {
	if i >= len(v) || v[i] == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v[i]))
}

// GetHistory returns the bars of symbol over rng (e.g. "1mo") at interval (e.g. "1d"),
// oldest first. Null quote values are kept as invalid NullDecimals.
func (c *Client) GetHistory(ctx context.Context, symbol, rng, interval string) (*models.History, error) {
	chart, err := c.chart(ctx, symbol, rng, interval)
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w for symbol %s", ErrNoData, symbol)
	}
	quote := result.Indicators.Quote[0]

	points := make([]models.PricePoint, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		points[i] = models.PricePoint{
			Date:  time.Unix(ts, 0).UTC(),
			Open:  nullable(quote.Open, i),
			High:  nullable(quote.High, i),
			Low:   nullable(quote.Low, i),
			Close: nullable(quote.Close, i),
		}
	}

	name := result.Meta.LongName
	if name == "" {
		name = result.Meta.ShortName
	}

	return &models.History{
		Symbol:       symbol,
		LongName:     name,
		Currency:     result.Meta.Currency,
		CurrentPrice: decimal.NewFromFloat(result.Meta.RegularMarketPrice),
		Points:       points,
		Source:       "yahoo",
		FetchedAt:    time.Now(),
	}, nil
}

// GetQuote returns the current price snapshot of symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.TickerData, error) {
	chart, err := c.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	price := result.Meta.RegularMarketPrice
	previousClose := result.Meta.PreviousClose
	if previousClose == 0 {
		previousClose = result.Meta.ChartPreviousClose
	}
	change := price - previousClose
	changePercent := 0.0
	if previousClose > 0 {
		changePercent = (change / previousClose) * 100
	}

	return &models.TickerData{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        result.Meta.RegularMarketVolume,
		LastUpdated:   time.Now(),
		Source:        "yahoo",
	}, nil
}
