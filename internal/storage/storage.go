// Package storage provides SQLite-backed persistence for day-scoped alert
// state and the alert audit log.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rpillai/etfsentinel/internal/models"
)

// Store wraps a SQLite database for all persistence operations. State is
// read once at the start of a cycle and written once at the end; the
// external scheduling contract guarantees no two invocations run against
// the same date concurrently, so a single writer suffices.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at dbPath. An empty dbPath
// defaults to $TMPDIR/etfsentinel/state.db.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "etfsentinel", "state.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS day_state (
			date           TEXT PRIMARY KEY,
			summary_sent   INTEGER NOT NULL DEFAULT 0,
			etfs_tracked   INTEGER NOT NULL DEFAULT 0,
			stocks_tracked INTEGER NOT NULL DEFAULT 0,
			updated_at     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerted_slabs (
			date          TEXT NOT NULL REFERENCES day_state(date) ON DELETE CASCADE,
			instrument_id TEXT NOT NULL,
			slab          TEXT NOT NULL,
			PRIMARY KEY (date, instrument_id)
		)`,
		`CREATE TABLE IF NOT EXISTS alert_log (
			id             TEXT PRIMARY KEY,
			date           TEXT NOT NULL,
			instrument_id  TEXT NOT NULL,
			category       TEXT NOT NULL,
			price          TEXT NOT NULL,
			change_percent TEXT NOT NULL,
			slab           TEXT NOT NULL,
			detected_at    INTEGER NOT NULL,
			notified       INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_log_date ON alert_log(date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadDay returns the persisted state for date, or a freshly initialized
// empty state stamped with date when no row exists. A missing date is a
// valid empty case, never an error; errors indicate unreadable or corrupt
// persisted data.
func (s *Store) LoadDay(date string) (*models.DayState, error) {
	state := models.NewDayState(date)

	var summarySent int
	var updatedAtNano int64
	err := s.db.QueryRow(`
		SELECT summary_sent, etfs_tracked, stocks_tracked, updated_at
		FROM day_state WHERE date = ?`, date).
		Scan(&summarySent, &state.ETFsTracked, &state.StocksTracked, &updatedAtNano)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load day state: %w", err)
	}
	state.SummarySent = summarySent != 0
	state.UpdatedAt = time.Unix(0, updatedAtNano)

	rows, err := s.db.Query(`SELECT instrument_id, slab FROM alerted_slabs WHERE date = ?`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerted slabs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, slabStr string
		if err := rows.Scan(&id, &slabStr); err != nil {
			return nil, fmt.Errorf("failed to scan alerted slab: %w", err)
		}
		slab, err := decimal.NewFromString(slabStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt slab value %q for %s: %w", slabStr, id, err)
		}
		state.Alerted[id] = slab
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerted slabs: %w", err)
	}
	return state, nil
}

// SaveDay persists state under its date key, fully overwriting prior
// content for that date. The transaction commits atomically, so a crash
// mid-write never leaves a partially written day.
func (s *Store) SaveDay(state *models.DayState) error {
	if state.Date == "" {
		return fmt.Errorf("day state date must not be empty")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO day_state
			(date, summary_sent, etfs_tracked, stocks_tracked, updated_at)
		VALUES (?,?,?,?,?)`,
		state.Date, boolToInt(state.SummarySent),
		state.ETFsTracked, state.StocksTracked,
		time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to upsert day state: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM alerted_slabs WHERE date = ?`, state.Date); err != nil {
		return fmt.Errorf("failed to clear alerted slabs: %w", err)
	}
	for id, slab := range state.Alerted {
		if _, err := tx.Exec(`
			INSERT INTO alerted_slabs (date, instrument_id, slab) VALUES (?,?,?)`,
			state.Date, id, slab.String(),
		); err != nil {
			return fmt.Errorf("failed to insert alerted slab for %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// AddAlert appends an alert to the audit log. A zero ID gets a fresh UUID.
func (s *Store) AddAlert(a *models.AlertRecord) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := s.db.Exec(`
		INSERT INTO alert_log
			(id, date, instrument_id, category, price, change_percent, slab, detected_at, notified)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Date, a.InstrumentID, string(a.Category),
		a.Price.String(), a.ChangePercent.String(), a.Slab.String(),
		a.DetectedAt.UnixNano(), boolToInt(a.Notified),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// AlertsForDate returns the audit log rows for date in detection order.
func (s *Store) AlertsForDate(date string) ([]models.AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, date, instrument_id, category, price, change_percent, slab, detected_at, notified
		FROM alert_log WHERE date = ? ORDER BY detected_at`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.AlertRecord
	for rows.Next() {
		var a models.AlertRecord
		var category, price, change, slabStr string
		var detectedAtNano int64
		var notified int
		if err := rows.Scan(&a.ID, &a.Date, &a.InstrumentID, &category,
			&price, &change, &slabStr, &detectedAtNano, &notified); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Category = models.Category(category)
		if a.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("corrupt alert price %q: %w", price, err)
		}
		if a.ChangePercent, err = decimal.NewFromString(change); err != nil {
			return nil, fmt.Errorf("corrupt alert change %q: %w", change, err)
		}
		if a.Slab, err = decimal.NewFromString(slabStr); err != nil {
			return nil, fmt.Errorf("corrupt alert slab %q: %w", slabStr, err)
		}
		a.DetectedAt = time.Unix(0, detectedAtNano)
		a.Notified = notified != 0
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// PruneBefore drops day state and audit rows older than date. Alerted slabs
// follow their day row through the cascade.
func (s *Store) PruneBefore(date string) error {
	if _, err := s.db.Exec(`DELETE FROM day_state WHERE date < ?`, date); err != nil {
		return fmt.Errorf("failed to prune day state: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM alert_log WHERE date < ?`, date); err != nil {
		return fmt.Errorf("failed to prune alert log: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
