package monitor

import (
	"sort"

	"github.com/rpillai/etfsentinel/internal/models"
	"github.com/rpillai/etfsentinel/internal/slab"
)

// BuildSummary regroups the day's persisted alert state into the end-of-day
// digest. The summary is rebuilt from DayState rather than accumulated in
// memory, since each scheduled invocation is a separate short-lived process.
//
// ETFs are grouped per slab in table order (shallowest tier first); stocks
// are a single flat list. Instrument IDs within a group are sorted so the
// output is deterministic. An instrument appears exactly once, under the
// deepest slab it reached.
func BuildSummary(state *models.DayState, tables slab.Tables) *models.DailySummary {
	sum := &models.DailySummary{
		Date:          state.Date,
		ETFsTracked:   state.ETFsTracked,
		StocksTracked: state.StocksTracked,
	}

	etfBySlab := make(map[string][]models.SummaryItem)
	for id, slabVal := range state.Alerted {
		category, ok := models.CategoryOf(id)
		if !ok {
			continue
		}
		item := models.SummaryItem{InstrumentID: id, Slab: slabVal}
		switch category {
		case models.CategoryStock:
			sum.StockAlerts = append(sum.StockAlerts, item)
		default:
			etfBySlab[slabVal.String()] = append(etfBySlab[slabVal.String()], item)
		}
	}

	for _, th := range tables.ETF.Thresholds() {
		items := etfBySlab[th.String()]
		if len(items) == 0 {
			continue
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].InstrumentID < items[j].InstrumentID
		})
		sum.ETFBySlab = append(sum.ETFBySlab, models.SlabGroup{Slab: th, Items: items})
	}

	sort.Slice(sum.StockAlerts, func(i, j int) bool {
		return sum.StockAlerts[i].InstrumentID < sum.StockAlerts[j].InstrumentID
	})

	return sum
}
