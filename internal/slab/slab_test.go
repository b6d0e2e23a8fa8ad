package slab

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rpillai/etfsentinel/internal/models"
)

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestNewTable_SortsShallowestFirst(t *testing.T) {
	table, err := NewTable([]decimal.Decimal{dec(-8), dec(-2.5), dec(-5)})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	got := table.Thresholds()
	want := []float64{-2.5, -5, -8}
	if len(got) != len(want) {
		t.Fatalf("got %d thresholds, want %d", len(got), len(want))
	}
	for i, w := range want {
		if !got[i].Equal(dec(w)) {
			t.Errorf("threshold[%d] = %s, want %v", i, got[i], w)
		}
	}
}

func TestNewTable_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		thresholds []decimal.Decimal
	}{
		{"empty", nil},
		{"positive threshold", []decimal.Decimal{dec(-5), dec(2)}},
		{"zero threshold", []decimal.Decimal{dec(0)}},
		{"duplicate", []decimal.Decimal{dec(-5), dec(-5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.thresholds); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestCrossed(t *testing.T) {
	table := MustTable([]decimal.Decimal{dec(-5), dec(-8), dec(-10)})

	tests := []struct {
		name    string
		change  float64
		want    float64
		crossed bool
	}{
		{"positive change", 1.2, 0, false},
		{"small drop", -4.99, 0, false},
		{"exact boundary counts", -5.0, -5, true},
		{"between slabs", -6.0, -5, true},
		{"second slab boundary", -8.0, -8, true},
		{"deepest slab", -12.3, -10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.Crossed(dec(tt.change))
			if ok != tt.crossed {
				t.Fatalf("Crossed(%v) ok = %v, want %v", tt.change, ok, tt.crossed)
			}
			if ok && !got.Equal(dec(tt.want)) {
				t.Errorf("Crossed(%v) = %s, want %v", tt.change, got, tt.want)
			}
		})
	}
}

func TestTablesFor(t *testing.T) {
	tables := Defaults()
	if got := len(tables.For(models.CategoryETF).Thresholds()); got != 5 {
		t.Errorf("ETF table has %d thresholds, want 5", got)
	}
	if got := len(tables.For(models.CategoryStock).Thresholds()); got != 3 {
		t.Errorf("stock table has %d thresholds, want 3", got)
	}
	shallowest := tables.For(models.CategoryETF).Thresholds()[0]
	if !shallowest.Equal(dec(-2.5)) {
		t.Errorf("shallowest ETF slab = %s, want -2.5", shallowest)
	}
}
