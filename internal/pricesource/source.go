// Package pricesource defines the price source contract and the fallback
// chain over interchangeable providers.
package pricesource

import (
	"context"
	"fmt"

	"github.com/rpillai/etfsentinel/internal/logger"
	"github.com/rpillai/etfsentinel/internal/models"
)

// Source produces current price snapshots for a category. A source may
// silently skip instruments it cannot price; partial results are expected
// and an empty list is a valid "no data this cycle" result, not an error.
type Source interface {
	Name() string
	Fetch(ctx context.Context, category models.Category) ([]models.Snapshot, error)
}

// Chain tries sources in order, falling through to the next on error or on
// an empty result.
type Chain struct {
	sources []Source
}

// NewChain builds a fallback chain; the first source is the primary.
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

// Name implements Source.
func (c *Chain) Name() string {
	return "chain"
}

// Fetch implements Source. It returns the first non-empty batch. When every
// source errors the last error is returned; when sources merely return
// nothing the result is an empty batch.
func (c *Chain) Fetch(ctx context.Context, category models.Category) ([]models.Snapshot, error) {
	if len(c.sources) == 0 {
		return nil, fmt.Errorf("price source chain is empty")
	}
	var lastErr error
	errored := 0
	for _, src := range c.sources {
		snaps, err := src.Fetch(ctx, category)
		if err != nil {
			logger.Warn("Price source %s failed for %s: %v", src.Name(), category, err)
			lastErr = err
			errored++
			continue
		}
		if len(snaps) == 0 {
			logger.Debug("Price source %s returned no %s data, trying next", src.Name(), category)
			continue
		}
		return snaps, nil
	}
	if errored == len(c.sources) {
		return nil, fmt.Errorf("all price sources failed for %s: %w", category, lastErr)
	}
	return []models.Snapshot{}, nil
}
