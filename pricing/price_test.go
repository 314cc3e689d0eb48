package pricing

import (
	"testing"

	"mco/tables"
)

func priceInfo() tables.GHSPriceInfo {
	return tables.GHSPriceInfo{
		GHS:          4005,
		GHSCents:     200000,
		EXBThreshold: 3,
		EXBCents:     15000,
		EXHThreshold: 12,
		EXHCents:     8000,
	}
}

func TestPriceGhsBoundaries(t *testing.T) {
	info := priceInfo()

	tests := []struct {
		duration   int
		wantCents  int
		wantExbExh int
	}{
		{0, 200000 - 3*15000, -3},
		{2, 200000 - 15000, -1}, // one night short of the EXB threshold
		{3, 200000, 0},          // exactly at it
		{11, 200000, 0},         // one night short of the EXH threshold
		{12, 200000 + 8000, 1},  // exactly at it
		{14, 200000 + 3*8000, 3},
	}
	for _, tt := range tests {
		cents, exbExh := PriceGhs(info, tt.duration, false)
		if cents != tt.wantCents || exbExh != tt.wantExbExh {
			t.Errorf("duration %d: got (%d, %d), want (%d, %d)",
				tt.duration, cents, exbExh, tt.wantCents, tt.wantExbExh)
		}
	}
}

func TestPriceGhsEXBOnce(t *testing.T) {
	info := priceInfo()
	info.EXBOnce = true

	cents, exbExh := PriceGhs(info, 0, false)
	if cents != 200000-15000 || exbExh != -3 {
		t.Errorf("got (%d, %d), want (185000, -3)", cents, exbExh)
	}
}

func TestPriceGhsFloorsAtZero(t *testing.T) {
	info := priceInfo()
	info.GHSCents = 20000

	cents, _ := PriceGhs(info, 0, false)
	if cents != 0 {
		t.Errorf("got %d, want 0", cents)
	}
}

func TestPriceGhsDeath(t *testing.T) {
	info := priceInfo()

	// a zero-night death still bills the full tariff
	cents, exbExh := PriceGhs(info, 0, true)
	if cents != 200000 || exbExh != 0 {
		t.Errorf("got (%d, %d), want (200000, 0)", cents, exbExh)
	}

	// long stays keep their EXH bonus
	cents, exbExh = PriceGhs(info, 12, true)
	if cents != 208000 || exbExh != 1 {
		t.Errorf("long death: got (%d, %d), want (208000, 1)", cents, exbExh)
	}
}

func TestApplyCoefficient(t *testing.T) {
	if got := ApplyCoefficient(200000, 10000); got != 200000 {
		t.Errorf("neutral: got %d", got)
	}
	if got := ApplyCoefficient(200000, 9874); got != 197480 {
		t.Errorf("discount: got %d, want 197480", got)
	}
	// rounding is toward zero
	if got := ApplyCoefficient(333, 5000); got != 166 {
		t.Errorf("rounding: got %d, want 166", got)
	}
}

func TestPriceSupplements(t *testing.T) {
	ts := tables.NewTableSet()
	b := tables.NewIndexBuilder(
		tables.Date{Year: 2020, Month: 1, Day: 1},
		tables.Date{Year: 2030, Month: 1, Day: 1},
	)
	b.WithSupplement(tables.SectorPublic, tables.SupplementREA, 100000)
	b.WithSupplement(tables.SectorPublic, tables.SupplementSRC, 30000)
	idx, err := b.Finish(ts)
	if err != nil {
		t.Fatalf("building index: %v", err)
	}

	var days tables.SupplementCounters[int16]
	days[tables.SupplementREA] = 2
	days[tables.SupplementSRC] = 1

	cents, total := PriceSupplements(idx, tables.SectorPublic, days)
	if cents[tables.SupplementREA] != 200000 || cents[tables.SupplementSRC] != 30000 {
		t.Errorf("got %v", cents)
	}
	if total != 230000 {
		t.Errorf("got total %d, want 230000", total)
	}
}
