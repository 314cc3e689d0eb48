package pricing

import (
	"testing"

	"mco/codes"
	"mco/tables"
)

func TestDispenseConservation(t *testing.T) {
	// a price that does not divide evenly across the weights
	cluster := ClusterPricing{GHSCents: 100001, PriceCents: 100001}
	monos := []MonoPricing{
		{Unit: codes.Unit(101), Duration: 2, GHSCents: 60000, PriceCents: 60000},
		{Unit: codes.Unit(202), Duration: 2, GHSCents: 30000, PriceCents: 30000},
		{Unit: codes.Unit(303), Duration: 1, GHSCents: 10000, PriceCents: 10000},
	}

	for mode := DispenseE; mode < dispenseModeCount; mode++ {
		d := NewDispenser(mode)
		d.Dispense(cluster, monos)
		dues := d.Finish()

		var total int64
		for _, due := range dues {
			total += due.PriceCents
		}
		if total != int64(cluster.PriceCents) {
			t.Errorf("mode %s: dues sum to %d, want %d", mode, total, cluster.PriceCents)
		}
	}
}

func TestDispenseExJRatio(t *testing.T) {
	cluster := ClusterPricing{GHSCents: 300000, PriceCents: 300000}
	monos := []MonoPricing{
		{Unit: codes.Unit(101), Duration: 2, GHSCents: 200000, PriceCents: 200000},
		{Unit: codes.Unit(202), Duration: 2, GHSCents: 100000, PriceCents: 100000},
	}

	d := NewDispenser(DispenseExJ)
	d.Dispense(cluster, monos)
	dues := d.Finish()

	if len(dues) != 2 {
		t.Fatalf("got %d dues", len(dues))
	}
	// weights 2×200000 : 2×100000 = 2 : 1
	if dues[0].Unit != codes.Unit(101) || dues[0].PriceCents != 200000 {
		t.Errorf("unit 101: got %d cents", dues[0].PriceCents)
	}
	if dues[1].Unit != codes.Unit(202) || dues[1].PriceCents != 100000 {
		t.Errorf("unit 202: got %d cents", dues[1].PriceCents)
	}
}

func TestDispenseRemainderGoesToLastUnit(t *testing.T) {
	cluster := ClusterPricing{GHSCents: 100, PriceCents: 100}
	monos := []MonoPricing{
		{Unit: codes.Unit(101), Duration: 1},
		{Unit: codes.Unit(202), Duration: 1},
		{Unit: codes.Unit(303), Duration: 1},
	}

	// all weights zero in mode E: falls back to J, equal thirds
	d := NewDispenser(DispenseE)
	d.Dispense(cluster, monos)
	dues := d.Finish()

	if len(dues) != 3 {
		t.Fatalf("got %d dues", len(dues))
	}
	want := map[codes.Unit]int64{101: 33, 202: 33, 303: 34}
	for _, due := range dues {
		if due.PriceCents != want[due.Unit] {
			t.Errorf("unit %s: got %d cents, want %d", due.Unit, due.PriceCents, want[due.Unit])
		}
	}
}

func TestDispenseEx2SwitchesOnEXB(t *testing.T) {
	monos := []MonoPricing{
		{Unit: codes.Unit(101), GHSCents: 100, PriceCents: 300},
		{Unit: codes.Unit(202), GHSCents: 100, PriceCents: 100},
	}

	// EXB cluster: price weights (300:100)
	d := NewDispenser(DispenseEx2)
	d.Dispense(ClusterPricing{GHSCents: 400, PriceCents: 400, ExbExh: -2}, monos)
	dues := d.Finish()
	if dues[0].PriceCents != 300 || dues[1].PriceCents != 100 {
		t.Errorf("EXB: got %d/%d, want 300/100", dues[0].PriceCents, dues[1].PriceCents)
	}

	// no EXB: GHS weights (100:100)
	d = NewDispenser(DispenseEx2)
	d.Dispense(ClusterPricing{GHSCents: 400, PriceCents: 400, ExbExh: 0}, monos)
	dues = d.Finish()
	if dues[0].PriceCents != 200 || dues[1].PriceCents != 200 {
		t.Errorf("no EXB: got %d/%d, want 200/200", dues[0].PriceCents, dues[1].PriceCents)
	}
}

func TestDispenseSupplementsCreditedDirectly(t *testing.T) {
	var days tables.SupplementCounters[int16]
	var cents tables.SupplementCounters[int32]
	days[tables.SupplementREA] = 2
	cents[tables.SupplementREA] = 200000

	cluster := ClusterPricing{GHSCents: 100000, PriceCents: 100000}
	monos := []MonoPricing{
		{Unit: codes.Unit(101), Duration: 2, GHSCents: 100000, PriceCents: 100000,
			SupplementDays: days, SupplementCents: cents, TotalCents: 300000},
		{Unit: codes.Unit(202), Duration: 2},
	}

	d := NewDispenser(DispenseJ)
	d.Dispense(cluster, monos)
	dues := d.Finish()

	// unit 101 keeps its own supplements on top of its share
	if dues[0].SupplementCents[tables.SupplementREA] != 200000 {
		t.Errorf("got supplement cents %d", dues[0].SupplementCents[tables.SupplementREA])
	}
	if dues[1].SupplementCents[tables.SupplementREA] != 0 {
		t.Errorf("unit 202 should carry no supplements")
	}
	if dues[0].TotalCents != 50000+200000 {
		t.Errorf("got total %d, want 250000", dues[0].TotalCents)
	}
}

func TestParseDispenseMode(t *testing.T) {
	for mode := DispenseE; mode < dispenseModeCount; mode++ {
		parsed, err := ParseDispenseMode(mode.String())
		if err != nil || parsed != mode {
			t.Errorf("round trip %s: got %v, %v", mode, parsed, err)
		}
	}
	if _, err := ParseDispenseMode("bogus"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
