package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date key format for day-scoped state.
const DateLayout = "2006-01-02"

// DayState is the durable, date-scoped alerting memory. Alerted maps
// instrument ID to the deepest slab already alerted today; re-running the
// poll within the same date must not re-alert at the same or a shallower
// slab. A new date starts from an empty state.
type DayState struct {
	Date          string
	Alerted       map[string]decimal.Decimal
	SummarySent   bool
	ETFsTracked   int
	StocksTracked int
	UpdatedAt     time.Time
}

// NewDayState returns an empty state stamped with the given date key.
func NewDayState(date string) *DayState {
	return &DayState{
		Date:    date,
		Alerted: make(map[string]decimal.Decimal),
	}
}

// AlertedSlab returns the deepest slab already alerted for id today.
func (s *DayState) AlertedSlab(id string) (decimal.Decimal, bool) {
	slab, ok := s.Alerted[id]
	return slab, ok
}

// RecordAlert marks id as alerted at slab. Slabs only ever deepen within a
// date; callers decide deepening, this just records it.
func (s *DayState) RecordAlert(id string, slab decimal.Decimal) {
	s.Alerted[id] = slab
}

// AlertRecord captures one emitted alert for auditing. Rows are append-only;
// the dedup decision itself lives in DayState, not here.
type AlertRecord struct {
	ID            string
	InstrumentID  string
	Category      Category
	Price         decimal.Decimal
	ChangePercent decimal.Decimal
	Slab          decimal.Decimal
	Date          string
	DetectedAt    time.Time
	Notified      bool
}

// SlabGroup is one slab tier of the daily summary with the snapshots that
// reached it, shallowest tier first in DailySummary.ETFBySlab.
type SlabGroup struct {
	Slab  decimal.Decimal
	Items []SummaryItem
}

// SummaryItem is one alerted instrument inside a summary group.
type SummaryItem struct {
	InstrumentID string
	Slab         decimal.Decimal
}

// DailySummary is the end-of-day digest rebuilt from DayState at cutoff
// time.
type DailySummary struct {
	Date          string
	ETFBySlab     []SlabGroup
	StockAlerts   []SummaryItem
	ETFsTracked   int
	StocksTracked int
}

// Clean reports whether no instrument crossed any slab today.
func (d *DailySummary) Clean() bool {
	for _, g := range d.ETFBySlab {
		if len(g.Items) > 0 {
			return false
		}
	}
	return len(d.StockAlerts) == 0
}
