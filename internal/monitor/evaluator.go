// Package monitor contains the threshold-crossing decision logic and the
// daily summary builder. The evaluator is the only stateful part of the
// system: it decides, exactly once per newly reached slab per instrument
// per day, whether an alert goes out.
package monitor

import (
	"github.com/shopspring/decimal"

	"github.com/rpillai/etfsentinel/internal/models"
	"github.com/rpillai/etfsentinel/internal/slab"
)

// Decision is one positive evaluation outcome: snapshot plus the slab it
// newly reached.
type Decision struct {
	Snapshot models.Snapshot
	Slab     decimal.Decimal
}

// Evaluator applies the slab tables to snapshots against day-scoped state.
//
// In bypass mode (manual/verification runs) every crossed slab reports and
// state is left untouched, so verification runs never pollute the day's
// dedup memory.
type Evaluator struct {
	tables slab.Tables
	bypass bool
}

// New creates an evaluator over the given tables.
func New(tables slab.Tables, bypass bool) *Evaluator {
	return &Evaluator{tables: tables, bypass: bypass}
}

// Evaluate decides whether snap warrants an alert given what has already
// been alerted today, and records the new slab in state when it does.
//
// The decision is deterministic: alert iff a slab is crossed and either the
// instrument has not alerted today or the crossed slab is strictly deeper
// (more negative) than the previously alerted one. Recovery to a shallower
// slab never alerts and never rewinds the recorded slab, so per instrument
// the recorded slab sequence within a date is strictly decreasing.
func (e *Evaluator) Evaluate(snap models.Snapshot, state *models.DayState) (Decision, bool) {
	crossed, ok := e.tables.For(snap.Category).Crossed(snap.ChangePercent)
	if !ok {
		return Decision{}, false
	}
	if e.bypass {
		return Decision{Snapshot: snap, Slab: crossed}, true
	}
	if prev, seen := state.AlertedSlab(snap.ID); seen && !crossed.LessThan(prev) {
		// Already alerted at this severity or worse today.
		return Decision{}, false
	}
	state.RecordAlert(snap.ID, crossed)
	return Decision{Snapshot: snap, Slab: crossed}, true
}

// Tables returns the evaluator's slab tables.
func (e *Evaluator) Tables() slab.Tables {
	return e.tables
}
