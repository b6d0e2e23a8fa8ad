package storage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpillai/etfsentinel/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestLoadDay_MissingDateIsEmpty(t *testing.T) {
	s := newTestStore(t)

	state, err := s.LoadDay("2025-06-02")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if state.Date != "2025-06-02" {
		t.Errorf("date = %q, want stamped date", state.Date)
	}
	if len(state.Alerted) != 0 || state.SummarySent {
		t.Errorf("missing date must load empty, got %+v", state)
	}
}

func TestSaveLoadDay_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	state := models.NewDayState("2025-06-02")
	state.RecordAlert("ETF:NIFTYBEES", dec(-2.5))
	state.RecordAlert("STOCK:SBIN", dec(-8))
	state.SummarySent = true
	state.ETFsTracked = 30
	state.StocksTracked = 5

	if err := s.SaveDay(state); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	got, err := s.LoadDay("2025-06-02")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if !got.SummarySent {
		t.Error("summary_sent not persisted")
	}
	if got.ETFsTracked != 30 || got.StocksTracked != 5 {
		t.Errorf("tracked counts = %d/%d, want 30/5", got.ETFsTracked, got.StocksTracked)
	}
	if len(got.Alerted) != 2 {
		t.Fatalf("got %d alerted entries, want 2", len(got.Alerted))
	}
	if !got.Alerted["ETF:NIFTYBEES"].Equal(dec(-2.5)) {
		t.Errorf("NIFTYBEES slab = %s, want -2.5", got.Alerted["ETF:NIFTYBEES"])
	}
	if !got.Alerted["STOCK:SBIN"].Equal(dec(-8)) {
		t.Errorf("SBIN slab = %s, want -8", got.Alerted["STOCK:SBIN"])
	}
}

func TestSaveDay_OverwritesPriorContent(t *testing.T) {
	s := newTestStore(t)

	state := models.NewDayState("2025-06-02")
	state.RecordAlert("ETF:NIFTYBEES", dec(-2.5))
	state.RecordAlert("ETF:GOLDBEES", dec(-3.5))
	if err := s.SaveDay(state); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	// Deepen one entry and drop the other from the in-memory state; the
	// save must fully replace the date's rows.
	state = models.NewDayState("2025-06-02")
	state.RecordAlert("ETF:NIFTYBEES", dec(-5))
	if err := s.SaveDay(state); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	got, err := s.LoadDay("2025-06-02")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(got.Alerted) != 1 {
		t.Fatalf("got %d entries after overwrite, want 1", len(got.Alerted))
	}
	if !got.Alerted["ETF:NIFTYBEES"].Equal(dec(-5)) {
		t.Errorf("slab = %s, want -5", got.Alerted["ETF:NIFTYBEES"])
	}
}

func TestSaveDay_DatesAreIndependent(t *testing.T) {
	s := newTestStore(t)

	monday := models.NewDayState("2025-06-02")
	monday.RecordAlert("STOCK:SBIN", dec(-5))
	if err := s.SaveDay(monday); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	tuesday, err := s.LoadDay("2025-06-03")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(tuesday.Alerted) != 0 {
		t.Errorf("new date inherited prior state: %v", tuesday.Alerted)
	}
}

func TestSaveDay_EmptyDateRejected(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveDay(&models.DayState{}); err == nil {
		t.Error("expected error for empty date")
	}
}

func TestAlertLog(t *testing.T) {
	s := newTestStore(t)

	rec := &models.AlertRecord{
		InstrumentID:  "ETF:NIFTYBEES",
		Category:      models.CategoryETF,
		Price:         dec(254.10),
		ChangePercent: dec(-2.61),
		Slab:          dec(-2.5),
		Date:          "2025-06-02",
		DetectedAt:    time.Now(),
		Notified:      true,
	}
	if err := s.AddAlert(rec); err != nil {
		t.Fatalf("AddAlert: %v", err)
	}
	if rec.ID == "" {
		t.Error("AddAlert did not assign an ID")
	}

	alerts, err := s.AlertsForDate("2025-06-02")
	if err != nil {
		t.Fatalf("AlertsForDate: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	got := alerts[0]
	if got.InstrumentID != "ETF:NIFTYBEES" || !got.Notified {
		t.Errorf("unexpected alert row: %+v", got)
	}
	if !got.Slab.Equal(dec(-2.5)) || !got.ChangePercent.Equal(dec(-2.61)) {
		t.Errorf("decimal fields did not round-trip: %+v", got)
	}

	other, err := s.AlertsForDate("2025-06-03")
	if err != nil {
		t.Fatalf("AlertsForDate: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("got %d alerts for other date, want 0", len(other))
	}
}

func TestPruneBefore(t *testing.T) {
	s := newTestStore(t)

	for _, date := range []string{"2025-05-01", "2025-05-15", "2025-06-02"} {
		state := models.NewDayState(date)
		state.RecordAlert("STOCK:SBIN", dec(-5))
		if err := s.SaveDay(state); err != nil {
			t.Fatalf("SaveDay(%s): %v", date, err)
		}
		if err := s.AddAlert(&models.AlertRecord{
			InstrumentID: "STOCK:SBIN", Category: models.CategoryStock,
			Price: dec(100), ChangePercent: dec(-5), Slab: dec(-5),
			Date: date, DetectedAt: time.Now(),
		}); err != nil {
			t.Fatalf("AddAlert(%s): %v", date, err)
		}
	}

	if err := s.PruneBefore("2025-05-20"); err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}

	old, err := s.LoadDay("2025-05-01")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(old.Alerted) != 0 {
		t.Error("pruned day still has alerted slabs")
	}
	kept, err := s.LoadDay("2025-06-02")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(kept.Alerted) != 1 {
		t.Error("retained day lost its alerted slabs")
	}
	oldAlerts, err := s.AlertsForDate("2025-05-01")
	if err != nil {
		t.Fatalf("AlertsForDate: %v", err)
	}
	if len(oldAlerts) != 0 {
		t.Error("pruned day still has audit rows")
	}
}
