// Package models defines the core domain entities: instruments, price
// snapshots, day-scoped alert state, and summaries.
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category distinguishes the two tracked instrument classes. Each class has
// its own slab table.
type Category string

const (
	CategoryETF   Category = "ETF"
	CategoryStock Category = "STOCK"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryETF || c == CategoryStock
}

// Instrument is one tracked symbol within a category.
type Instrument struct {
	Symbol   string
	Category Category
}

// ID returns the stable instrument identifier, e.g. "ETF:NIFTYBEES".
// Identifiers carry the category as prefix so they are never ambiguous
// across categories.
func (i Instrument) ID() string {
	return string(i.Category) + ":" + i.Symbol
}

// CategoryOf derives the category from an instrument identifier prefix.
func CategoryOf(id string) (Category, bool) {
	prefix, _, found := strings.Cut(id, ":")
	if !found {
		return "", false
	}
	c := Category(prefix)
	return c, c.Valid()
}

// Snapshot is one instrument's price and change-percent at poll time.
// Snapshots are produced fresh every poll and never persisted individually;
// only their evaluation outcome is.
type Snapshot struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Category      Category        `json:"category"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

// NewSnapshot builds a snapshot for an instrument with the identifier
// derived from symbol and category.
func NewSnapshot(symbol string, category Category, price, changePercent decimal.Decimal, at time.Time) Snapshot {
	return Snapshot{
		ID:            Instrument{Symbol: symbol, Category: category}.ID(),
		Symbol:        symbol,
		Category:      category,
		Price:         price,
		ChangePercent: changePercent,
		FetchedAt:     at,
	}
}

// Validate checks snapshot field constraints.
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return errors.New("snapshot ID must not be empty")
	}
	if s.Symbol == "" {
		return errors.New("snapshot symbol must not be empty")
	}
	if !s.Category.Valid() {
		return errors.New("snapshot category must be ETF or STOCK")
	}
	if !strings.HasPrefix(s.ID, string(s.Category)+":") {
		return errors.New("snapshot ID prefix must match category")
	}
	if s.Price.IsNegative() {
		return errors.New("snapshot price must not be negative")
	}
	return nil
}
