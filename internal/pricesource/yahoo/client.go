// Package yahoo fetches quotes per symbol from the Yahoo Finance chart API
// and derives intraday change versus previous close.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rpillai/etfsentinel/internal/logger"
	"github.com/rpillai/etfsentinel/internal/models"
)

// Config tunes the HTTP client behavior and the tracked symbol universe.
// Symbols are bare NSE symbols; the ".NS" suffix is appended on request.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	MaxConcurrency int
	ETFSymbols     []string
	StockSymbols   []string
}

// Client fans out one chart request per symbol with bounded concurrency.
// Symbols that cannot be priced are skipped, not errors; the caller gets
// whatever subset priced successfully.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	maxConcurrency int
	etfSymbols     []string
	stockSymbols   []string
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// NewClient creates a Yahoo Finance client.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		maxConcurrency: cfg.MaxConcurrency,
		etfSymbols:     cfg.ETFSymbols,
		stockSymbols:   cfg.StockSymbols,
	}
}

// Name implements pricesource.Source.
func (c *Client) Name() string {
	return "yahoo"
}

// Fetch implements pricesource.Source. Fan-out is confined here; the caller
// receives a completed batch in deterministic (symbol) order.
func (c *Client) Fetch(ctx context.Context, category models.Category) ([]models.Snapshot, error) {
	symbols := c.etfSymbols
	if category == models.CategoryStock {
		symbols = c.stockSymbols
	}
	if len(symbols) == 0 {
		return []models.Snapshot{}, nil
	}

	now := time.Now()
	var mu sync.Mutex
	snaps := make([]models.Snapshot, 0, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			snap, err := c.fetchSymbol(ctx, symbol, category, now)
			if err != nil {
				// Unpriceable instruments are skipped, unless the whole
				// run is being torn down.
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Debug("Skipping %s %s: %v", category, symbol, err)
				return nil
			}
			mu.Lock()
			snaps = append(snaps, snap)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Symbol < snaps[j].Symbol })
	return snaps, nil
}

func (c *Client) fetchSymbol(ctx context.Context, symbol string, category models.Category, at time.Time) (models.Snapshot, error) {
	urlStr := fmt.Sprintf("%s/v8/finance/chart/%s.NS?range=2d&interval=1d", c.baseURL, symbol)
	resp, err := c.doRequest(ctx, urlStr)
	if err != nil {
		return models.Snapshot{}, err
	}
	defer resp.Body.Close()

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to decode chart: %w", err)
	}
	if body.Chart.Error != nil {
		return models.Snapshot{}, fmt.Errorf("chart error: %s", body.Chart.Error.Code)
	}
	if len(body.Chart.Result) == 0 {
		return models.Snapshot{}, fmt.Errorf("empty chart result")
	}
	meta := body.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil || meta.ChartPreviousClose == nil || *meta.ChartPreviousClose == 0 {
		return models.Snapshot{}, fmt.Errorf("insufficient price history")
	}

	price := decimal.NewFromFloat(*meta.RegularMarketPrice)
	prevClose := decimal.NewFromFloat(*meta.ChartPreviousClose)
	change := price.Sub(prevClose).Div(prevClose).Mul(decimal.NewFromInt(100))

	return models.NewSnapshot(symbol, category, price, change, at), nil
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
