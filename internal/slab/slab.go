// Package slab defines the per-category alert threshold tables. A slab is a
// negative percentage-change boundary; the deepest slab a change satisfies
// determines alert severity.
package slab

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rpillai/etfsentinel/internal/models"
)

// Table is an ordered set of negative thresholds, shallowest (least
// negative) first. Tables are static configuration and never mutated at
// runtime.
type Table struct {
	thresholds []decimal.Decimal
}

// NewTable validates and sorts thresholds into a Table. Thresholds must be
// strictly negative and unique.
func NewTable(thresholds []decimal.Decimal) (Table, error) {
	if len(thresholds) == 0 {
		return Table{}, errors.New("slab table must contain at least one threshold")
	}
	seen := make(map[string]bool, len(thresholds))
	sorted := make([]decimal.Decimal, 0, len(thresholds))
	for _, t := range thresholds {
		if !t.IsNegative() {
			return Table{}, fmt.Errorf("slab threshold %s must be negative", t)
		}
		key := t.String()
		if seen[key] {
			return Table{}, fmt.Errorf("duplicate slab threshold %s", t)
		}
		seen[key] = true
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].GreaterThan(sorted[j])
	})
	return Table{thresholds: sorted}, nil
}

// MustTable is NewTable for static defaults; panics on invalid input.
func MustTable(thresholds []decimal.Decimal) Table {
	t, err := NewTable(thresholds)
	if err != nil {
		panic(err)
	}
	return t
}

// Thresholds returns the ordered thresholds, shallowest first.
func (t Table) Thresholds() []decimal.Decimal {
	out := make([]decimal.Decimal, len(t.thresholds))
	copy(out, t.thresholds)
	return out
}

// Crossed returns the deepest (most negative) threshold satisfied by
// change, i.e. the last t with change <= t. Boundary equality counts as
// crossed. ok is false when the change is not negative enough for any slab.
func (t Table) Crossed(change decimal.Decimal) (decimal.Decimal, bool) {
	var crossed decimal.Decimal
	ok := false
	for _, th := range t.thresholds {
		if change.LessThanOrEqual(th) {
			crossed = th
			ok = true
		}
	}
	return crossed, ok
}

// Tables holds the two category tables.
type Tables struct {
	ETF   Table
	Stock Table
}

// For returns the table for a category.
func (ts Tables) For(c models.Category) Table {
	if c == models.CategoryStock {
		return ts.Stock
	}
	return ts.ETF
}

// Defaults returns the stock tables shipped when config omits them:
// ETFs {-2.5, -3.5, -5, -8, -10}, stocks {-5, -8, -10}.
func Defaults() Tables {
	return Tables{
		ETF: MustTable([]decimal.Decimal{
			decimal.NewFromFloat(-2.5),
			decimal.NewFromFloat(-3.5),
			decimal.NewFromFloat(-5.0),
			decimal.NewFromFloat(-8.0),
			decimal.NewFromFloat(-10.0),
		}),
		Stock: MustTable([]decimal.Decimal{
			decimal.NewFromFloat(-5.0),
			decimal.NewFromFloat(-8.0),
			decimal.NewFromFloat(-10.0),
		}),
	}
}
