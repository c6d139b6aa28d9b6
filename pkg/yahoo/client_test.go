package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const chartBody = `{"chart":{"result":[{
	"meta":{"symbol":"AAPL","currency":"USD","longName":"Apple Inc.","regularMarketPrice":191.5,"previousClose":190.0,"regularMarketVolume":1000},
	"timestamp":[1704153600,1704240000,1704326400],
	"indicators":{"quote":[{
		"open":[187.15,184.22,182.15],
		"high":[188.44,185.88,183.09],
		"low":[183.89,183.43,180.88],
		"close":[185.64,184.25,null]
	}]}
}],"error":null}}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestGetHistory(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/AAPL" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("range"); got != "1mo" {
			t.Errorf("range = %q", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("interval = %q", got)
		}
		w.Write([]byte(chartBody))
	})

	h, err := c.GetHistory(context.Background(), "AAPL", "1mo", "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.LongName != "Apple Inc." || h.Currency != "USD" || h.Source != "yahoo" {
		t.Errorf("unexpected meta: %+v", h)
	}
	if h.CurrentPrice.StringFixed(2) != "191.50" {
		t.Errorf("current price = %s", h.CurrentPrice)
	}
	if len(h.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(h.Points))
	}
	if !h.Points[0].Date.Before(h.Points[1].Date) {
		t.Error("points not ascending")
	}
	if h.Points[0].Close.Decimal.StringFixed(2) != "185.64" {
		t.Errorf("close[0] = %s", h.Points[0].Close.Decimal)
	}
	if h.Points[2].Close.Valid {
		t.Error("null close should stay invalid")
	}
	if !h.Points[2].Open.Valid {
		t.Error("open[2] should be valid")
	}
}

func TestGetHistory_NotFound(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})

	_, err := c.GetHistory(context.Background(), "NOPE", "1mo", "1d")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestGetHistory_APIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid input"}}}`))
	})

	_, err := c.GetHistory(context.Background(), "AAPL", "bogus", "1d")
	if err == nil || errors.Is(err, ErrNoData) {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestGetHistory_ServerError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := c.GetHistory(context.Background(), "AAPL", "1mo", "1d"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestGetQuote(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartBody))
	})

	q, err := c.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 191.5 || q.Change != 1.5 {
		t.Errorf("unexpected quote: %+v", q)
	}
	if q.Volume != 1000 {
		t.Errorf("volume = %d", q.Volume)
	}
}

func TestSearch(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/finance/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "app le" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("newsCount"); got != "8" {
			t.Errorf("newsCount = %q", got)
		}
		w.Write([]byte(`{
			"quotes":[{"symbol":"AAPL","longname":"Apple Inc.","quoteType":"EQUITY"}],
			"news":[{"title":"t","link":"https://x","providerPublishTime":1704153600,
				"thumbnail":{"resolutions":[{"url":"https://img","width":140,"height":140,"tag":"140x140"}]}}]
		}`))
	})

	res, err := c.Search(context.Background(), "app le", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Quotes) != 1 || res.Quotes[0].LongName != "Apple Inc." {
		t.Errorf("unexpected quotes: %+v", res.Quotes)
	}
	if len(res.News) != 1 || res.News[0].Thumbnail == nil {
		t.Fatalf("unexpected news: %+v", res.News)
	}
	if res.News[0].PublishedAt().Unix() != 1704153600 {
		t.Errorf("published = %v", res.News[0].PublishedAt())
	}
}
