package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-analyzer-api/internal/models"
)

const DefaultBaseURL = "https://www.alphavantage.co/query"

var ErrNoData = errors.New("alphavantage: no data returned")

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithBaseURL returns c pointed at another endpoint.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type GlobalQuoteResponse struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Price            string `json:"05. price"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
	} `json:"Global Quote"`
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type DailySeriesResponse struct {
	Meta struct {
		Symbol string `json:"2. Symbol"`
	} `json:"Meta Data"`
	Series       map[string]dailyBar `json:"Time Series (Daily)"`
	Note         string              `json:"Note"`
	Information  string              `json:"Information"`
	ErrorMessage string              `json:"Error Message"`
}

func (c *Client) query(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("apikey", c.apiKey)
	u := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.TickerData, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	var quoteResp GlobalQuoteResponse
	if err := c.query(ctx, params, &quoteResp); err != nil {
		return nil, err
	}

	if quoteResp.GlobalQuote.Symbol == "" {
		return nil, fmt.Errorf("%w for symbol %s", ErrNoData, symbol)
	}

	price, _ := strconv.ParseFloat(quoteResp.GlobalQuote.Price, 64)
	change, _ := strconv.ParseFloat(quoteResp.GlobalQuote.Change, 64)
	volume, _ := strconv.ParseInt(quoteResp.GlobalQuote.Volume, 10, 64)

	changePercent := 0.0
	if price > 0 {
		changePercent = (change / (price - change)) * 100
	}

	return &models.TickerData{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        volume,
		LastUpdated:   time.Now(),
		Source:        "alphavantage",
	}, nil
}

func parsePrice(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// GetDailyHistory returns daily bars of symbol dated on or after since, oldest first.
// Unparseable prices are kept as invalid NullDecimals.
func (c *Client) GetDailyHistory(ctx context.Context, symbol string, since time.Time) (*models.History, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", "compact")

	var series DailySeriesResponse
	if err := c.query(ctx, params, &series); err != nil {
		return nil, err
	}

	switch {
	case series.ErrorMessage != "":
		return nil, fmt.Errorf("%w for symbol %s: %s", ErrNoData, symbol, series.ErrorMessage)
	case series.Note != "":
		return nil, fmt.Errorf("alpha vantage: %s", series.Note)
	case series.Information != "":
		return nil, fmt.Errorf("alpha vantage: %s", series.Information)
	}

	points := make([]models.PricePoint, 0, len(series.Series))
	for day, bar := range series.Series {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("alpha vantage: bad date %q: %w", day, err)
		}
		if date.Before(since) {
			continue
		}
		points = append(points, models.PricePoint{
			Date:  date,
			Open:  parsePrice(bar.Open),
			High:  parsePrice(bar.High),
			Low:   parsePrice(bar.Low),
			Close: parsePrice(bar.Close),
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w for symbol %s", ErrNoData, symbol)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	current := decimal.Zero
	if last := points[len(points)-1]; last.Close.Valid {
		current = last.Close.Decimal
	}

	return &models.History{
		Symbol:       symbol,
		CurrentPrice: current,
		Points:       points,
		Source:       "alphavantage",
		FetchedAt:    time.Now(),
	}, nil
}
