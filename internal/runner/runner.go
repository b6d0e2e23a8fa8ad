// Package runner orchestrates one poll cycle: market-hours check, price
// fetch, threshold evaluation, notification, persistence, and the
// end-of-day summary.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rpillai/etfsentinel/internal/logger"
	"github.com/rpillai/etfsentinel/internal/market"
	"github.com/rpillai/etfsentinel/internal/models"
	"github.com/rpillai/etfsentinel/internal/monitor"
	"github.com/rpillai/etfsentinel/internal/pricesource"
	"github.com/rpillai/etfsentinel/internal/slab"
)

// Notifier delivers formatted messages to the alert channel.
type Notifier interface {
	SendAlert(monitor.Decision) error
	SendSummary(*models.DailySummary) error
	SendError(error) error
}

// Store is the persistence surface the runner needs.
type Store interface {
	LoadDay(date string) (*models.DayState, error)
	SaveDay(state *models.DayState) error
	AddAlert(a *models.AlertRecord) error
	PruneBefore(date string) error
}

// Runner owns the day state for the duration of one cycle: loaded once,
// mutated through the evaluator, saved once. Invocations are short-lived
// and externally scheduled; no two run concurrently against the same date.
type Runner struct {
	store         Store
	source        pricesource.Source
	tables        slab.Tables
	calendar      *market.Calendar
	notifier      Notifier
	retentionDays int
	now           func() time.Time
}

// New creates a runner. notifier may be nil when notifications are
// disabled; evaluation and persistence still run so the dedup memory stays
// accurate.
func New(store Store, source pricesource.Source, tables slab.Tables, cal *market.Calendar, notifier Notifier, retentionDays int) *Runner {
	return &Runner{
		store:         store,
		source:        source,
		tables:        tables,
		calendar:      cal,
		notifier:      notifier,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// WithClock overrides the runner's clock.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// RunCycle executes one invocation. In manual mode every crossed slab is
// reported regardless of prior state and nothing is persisted, so
// verification runs never pollute the day's dedup memory.
func (r *Runner) RunCycle(ctx context.Context, manual bool) error {
	start := r.now()
	date := r.calendar.DateKey(start)

	state, err := r.store.LoadDay(date)
	if err != nil {
		// Guessing at state would re-trigger every alert of the day;
		// surface and abort instead.
		err = fmt.Errorf("failed to load state for %s: %w", date, err)
		r.reportError(err)
		return err
	}

	eval := monitor.New(r.tables, manual)

	if r.calendar.IsOpen(start) {
		r.pollCategory(ctx, eval, state, models.CategoryETF, manual)
		r.pollCategory(ctx, eval, state, models.CategoryStock, manual)
	} else {
		logger.Info("Market closed at %s, skipping price check", start.In(r.calendar.Location()).Format("15:04"))
	}

	if !manual {
		if err := r.store.SaveDay(state); err != nil {
			err = fmt.Errorf("failed to persist state for %s: %w", date, err)
			r.reportError(err)
			return err
		}
	}

	// The summary depends only on the clock and the sent flag, not on
	// whether the market was open this cycle.
	if !manual && r.calendar.SummaryDue(start) && !state.SummarySent {
		r.sendSummary(state)
	}

	if !manual && r.retentionDays > 0 {
		cutoff := r.calendar.DateKey(start.AddDate(0, 0, -r.retentionDays))
		if err := r.store.PruneBefore(cutoff); err != nil {
			logger.Warn("Failed to prune old state: %v", err)
		}
	}

	logger.Info("Cycle completed in %v", time.Since(start))
	return nil
}

// pollCategory fetches one category and runs each snapshot through the
// evaluator. Source failures yield an empty batch and the cycle continues;
// a notifier failure for one instrument never aborts the rest, and the
// evaluator's state commit stands either way (at-most-once alerting).
func (r *Runner) pollCategory(ctx context.Context, eval *monitor.Evaluator, state *models.DayState, category models.Category, manual bool) {
	snaps, err := r.source.Fetch(ctx, category)
	if err != nil {
		logger.Error("Failed to fetch %s prices: %v", category, err)
		return
	}
	logger.Info("Fetched %d %s snapshots", len(snaps), category)

	switch category {
	case models.CategoryETF:
		state.ETFsTracked = len(snaps)
	case models.CategoryStock:
		state.StocksTracked = len(snaps)
	}

	for _, snap := range snaps {
		if err := snap.Validate(); err != nil {
			logger.Warn("Skipping invalid snapshot %s: %v", snap.ID, err)
			continue
		}
		d, alert := eval.Evaluate(snap, state)
		if !alert {
			continue
		}
		logger.Info("Alert: %s at %s%% (slab %s%%)", d.Snapshot.ID, d.Snapshot.ChangePercent.StringFixed(2), d.Slab)

		notified := false
		if r.notifier != nil {
			if err := r.notifier.SendAlert(d); err != nil {
				logger.Error("Failed to notify for %s: %v", d.Snapshot.ID, err)
			} else {
				notified = true
			}
		}
		if manual {
			continue
		}
		record := &models.AlertRecord{
			InstrumentID:  d.Snapshot.ID,
			Category:      d.Snapshot.Category,
			Price:         d.Snapshot.Price,
			ChangePercent: d.Snapshot.ChangePercent,
			Slab:          d.Slab,
			Date:          state.Date,
			DetectedAt:    d.Snapshot.FetchedAt,
			Notified:      notified,
		}
		if err := r.store.AddAlert(record); err != nil {
			logger.Warn("Failed to record alert for %s: %v", d.Snapshot.ID, err)
		}
	}
}

// sendSummary builds the digest from persisted state, delivers it, and
// flips the sent flag only after a successful send so it fires at most once
// per date across separate invocations.
func (r *Runner) sendSummary(state *models.DayState) {
	sum := monitor.BuildSummary(state, r.tables)
	if r.notifier == nil {
		logger.Debug("Summary due but notifications disabled")
		return
	}
	if err := r.notifier.SendSummary(sum); err != nil {
		logger.Error("Failed to send daily summary: %v", err)
		return
	}
	state.SummarySent = true
	if err := r.store.SaveDay(state); err != nil {
		logger.Error("Failed to persist summary flag: %v", err)
	}
	logger.Info("Daily summary sent for %s", state.Date)
}

func (r *Runner) reportError(err error) {
	logger.Error("%v", err)
	if r.notifier == nil {
		return
	}
	if sendErr := r.notifier.SendError(err); sendErr != nil {
		logger.Warn("Failed to escalate error to notifier: %v", sendErr)
	}
}
