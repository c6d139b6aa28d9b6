package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// SearchQuote is a raw quote hit of /v1/finance/search.
type SearchQuote struct {
	Symbol    string `json:"symbol"`
	LongName  string `json:"longname"`
	ShortName string `json:"shortname"`
	QuoteType string `json:"quoteType"`
	Exchange  string `json:"exchange"`
}

type Resolution struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Tag    string `json:"tag"`
}

type Thumbnail struct {
	Resolutions []Resolution `json:"resolutions"`
}

// NewsItem is a raw news hit of /v1/finance/search.
type NewsItem struct {
	UUID                string     `json:"uuid"`
	Title               string     `json:"title"`
	Summary             string     `json:"summary"`
	Publisher           string     `json:"publisher"`
	Link                string     `json:"link"`
	ProviderPublishTime int64      `json:"providerPublishTime"`
	Thumbnail           *Thumbnail `json:"thumbnail"`
}

// PublishedAt returns the provider publish time, zero when unknown.
func (n NewsItem) PublishedAt() time.Time {
	if n.ProviderPublishTime == 0 {
		return time.Time{}
	}
	return time.Unix(n.ProviderPublishTime, 0).UTC()
}

type SearchResult struct {
	Quotes []SearchQuote `json:"quotes"`
	News   []NewsItem    `json:"news"`
}

// Search queries the symbol lookup endpoint, which returns both matching quotes and news.
func (c *Client) Search(ctx context.Context, query string, newsCount int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	if newsCount > 0 {
		params.Set("newsCount", fmt.Sprintf("%d", newsCount))
	}
	u := fmt.Sprintf("%s/v1/finance/search?%s", c.baseURL, params.Encode())

	var res SearchResult
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
