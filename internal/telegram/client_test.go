package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpillai/etfsentinel/internal/models"
	"github.com/rpillai/etfsentinel/internal/monitor"
)

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"ETF:NIFTYBEES", "ETF:NIFTYBEES"},
		{"-2.5%", "\\-2\\.5%"},
		{"Price: ₹254.10", "Price: ₹254\\.10"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatAlert(t *testing.T) {
	at := time.Date(2025, 6, 2, 11, 5, 0, 0, time.UTC)
	d := monitor.Decision{
		Snapshot: models.NewSnapshot("NIFTYBEES", models.CategoryETF, dec(254.10), dec(-2.61), at),
		Slab:     dec(-2.5),
	}

	msg := FormatAlert(d, at)
	for _, want := range []string{
		"🚨 *ETF Alert*",
		"ETF:NIFTYBEES",
		"\\-2\\.61%",
		"₹254\\.10",
		"\\-2\\.5%",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatAlert_StockHeader(t *testing.T) {
	d := monitor.Decision{
		Snapshot: models.NewSnapshot("SBIN", models.CategoryStock, dec(812.40), dec(-5.2), time.Now()),
		Slab:     dec(-5),
	}
	msg := FormatAlert(d, time.Now())
	if !strings.Contains(msg, "📉 *Stock Alert*") {
		t.Errorf("stock alert uses wrong header:\n%s", msg)
	}
}

func TestFormatSummary_Grouped(t *testing.T) {
	sum := &models.DailySummary{
		Date: "2025-06-02",
		ETFBySlab: []models.SlabGroup{
			{Slab: dec(-2.5), Items: []models.SummaryItem{
				{InstrumentID: "ETF:GOLDBEES", Slab: dec(-2.5)},
				{InstrumentID: "ETF:NIFTYBEES", Slab: dec(-2.5)},
			}},
			{Slab: dec(-5), Items: []models.SummaryItem{
				{InstrumentID: "ETF:ITBEES", Slab: dec(-5)},
			}},
		},
		StockAlerts:   []models.SummaryItem{{InstrumentID: "STOCK:SBIN", Slab: dec(-5)}},
		ETFsTracked:   30,
		StocksTracked: 5,
	}

	msg := FormatSummary(sum, time.Date(2025, 6, 2, 15, 35, 0, 0, time.UTC))
	for _, want := range []string{
		"📊 *Daily Summary*",
		"ETF:GOLDBEES",
		"ETF:ITBEES",
		"STOCK:SBIN",
		"ETFs tracked: 30",
		"Stocks tracked: 5",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("summary missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "No ETF or stock crossed") {
		t.Error("non-clean summary carries the clean-day line")
	}
}

func TestFormatSummary_CleanDay(t *testing.T) {
	sum := &models.DailySummary{Date: "2025-06-02", ETFsTracked: 30, StocksTracked: 5}
	msg := FormatSummary(sum, time.Now())
	if !strings.Contains(msg, "No ETF or stock crossed a slab today") {
		t.Errorf("clean day not stated explicitly:\n%s", msg)
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// The bot token validation happens first (network call), so an empty
	// token fails before chat ID parsing; either way an error must surface.
	if _, err := NewClient("", "not-a-number", nil, 3, time.Second); err == nil {
		t.Error("expected error for invalid credentials, got nil")
	}
}
