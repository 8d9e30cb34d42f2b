// Package pageviews queries the Wikimedia REST pageview statistics API.
package pageviews

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/fetcher"
	"github.com/IshaanNene/wikicat/internal/types"
)

// Endpoint is the logical endpoint name used for logging and metrics.
const Endpoint = "pageviews"

// timestampLayout is the hourly timestamp form the API expects; monthly
// queries always use hour 00.
const timestampLayout = "2006010215"

// Item is one point of a per-article series.
type Item struct {
	Timestamp string `json:"timestamp"`
	Views     int64  `json:"views"`
}

type seriesResponse struct {
	Items []Item `json:"items"`
}

// Client fetches per-article monthly view series.
type Client struct {
	fetcher  fetcher.Fetcher
	endpoint string
	project  string
	access   string
	agent    string
	logger   *slog.Logger
}

// NewClient creates a client for cfg.PageviewsEndpoint.
func NewClient(f fetcher.Fetcher, cfg *config.APIConfig, logger *slog.Logger) *Client {
	return &Client{
		fetcher:  f,
		endpoint: strings.TrimRight(cfg.PageviewsEndpoint, "/"),
		project:  cfg.Project,
		access:   cfg.Access,
		agent:    cfg.Agent,
		logger:   logger.With("component", "pageviews"),
	}
}

// Window returns the trailing window of days ending yesterday, relative to now.
func Window(now time.Time, days int) (start, end time.Time) {
	y, m, d := now.UTC().Date()
	end = time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	start = end.AddDate(0, 0, -days)
	return start, end
}

// MonthlyViews returns the monthly series of title between start and end. An
// article the API has no data for yields ErrNoViewData.
func (c *Client) MonthlyViews(ctx context.Context, title string, start, end time.Time) ([]Item, error) {
	article := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	rawURL := fmt.Sprintf("%s/per-article/%s/%s/%s/%s/monthly/%s/%s",
		c.endpoint, c.project, c.access, c.agent, article,
		start.Format(timestampLayout), end.Format(timestampLayout),
	)

	req, err := types.NewRequest(rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Endpoint = Endpoint

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%q: %w", title, types.ErrNoViewData)
	}
	if !resp.IsSuccess() {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var body seriesResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// Mean returns the arithmetic mean of the series views. It reports false for
// an empty series.
func Mean(items []Item) (float64, bool) {
	if len(items) == 0 {
		return 0, false
	}
	var sum int64
	for _, it := range items {
		sum += it.Views
	}
	return float64(sum) / float64(len(items)), true
}
