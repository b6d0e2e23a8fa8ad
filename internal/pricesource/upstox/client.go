// Package upstox fetches NSE ETF quotes from the public Upstox market-quote
// API, pages sorted by worst one-day change first.
package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpillai/etfsentinel/internal/logger"
	"github.com/rpillai/etfsentinel/internal/models"
)

const maxPages = 20 // safety cap on pagination

// Config tunes the HTTP client behavior.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	PageSize       int
}

// Client provides access to the Upstox quote endpoint. It serves ETFs only;
// stock requests return an empty batch so a fallback source can take over.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	pageSize       int
}

type quotePage struct {
	Data []quoteItem `json:"data"`
}

type quoteItem struct {
	Name         string   `json:"name"`
	LastPrice    *float64 `json:"lastPrice"`
	OneDayChange *float64 `json:"oneDayChange"`
}

// NewClient creates an Upstox client.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		pageSize:       cfg.PageSize,
	}
}

// Name implements pricesource.Source.
func (c *Client) Name() string {
	return "upstox"
}

// Fetch implements pricesource.Source. Items missing a price or change are
// skipped; a short page ends pagination.
func (c *Client) Fetch(ctx context.Context, category models.Category) ([]models.Snapshot, error) {
	if category != models.CategoryETF {
		return []models.Snapshot{}, nil
	}

	now := time.Now()
	var snaps []models.Snapshot
	for page := 1; page <= maxPages; page++ {
		items, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}
		for _, item := range items {
			if item.Name == "" || item.LastPrice == nil || item.OneDayChange == nil {
				logger.Debug("Skipping unpriceable ETF %q", item.Name)
				continue
			}
			snaps = append(snaps, models.NewSnapshot(
				item.Name,
				models.CategoryETF,
				decimal.NewFromFloat(*item.LastPrice),
				decimal.NewFromFloat(*item.OneDayChange),
				now,
			))
		}
		if len(items) < c.pageSize {
			break
		}
	}
	return snaps, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]quoteItem, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("exchange", "NSE")
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("sortBy", "oneDayChange")
	q.Set("sortOrder", "asc") // worst performers first
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body quotePage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode quote page: %w", err)
	}
	return body.Data, nil
}

// doRequest performs an HTTP GET with linear-backoff retry on transport
// errors and 5xx responses.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
