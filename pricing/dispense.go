package pricing

import (
	"fmt"
	"sort"

	"mco/codes"
	"mco/tables"
)

// DispenseMode selects the weight given to each RUM when a cluster's
// price is redistributed to its care units.
type DispenseMode int

const (
	DispenseE    DispenseMode = iota // mono GHS cents
	DispenseEx                       // mono price cents
	DispenseEx2                      // price when EXB applies, else GHS
	DispenseJ                        // duration in days, at least one
	DispenseExJ                      // duration × price
	DispenseExJ2                     // duration × (price when EXB, else GHS)
	dispenseModeCount
)

var dispenseModeNames = [dispenseModeCount]string{"e", "ex", "ex2", "j", "exj", "exj2"}

func (m DispenseMode) String() string {
	if m < 0 || m >= dispenseModeCount {
		return "?"
	}
	return dispenseModeNames[m]
}

// ParseDispenseMode parses a mode name as written on the command line.
func ParseDispenseMode(s string) (DispenseMode, error) {
	for i, name := range dispenseModeNames {
		if s == name {
			return DispenseMode(i), nil
		}
	}
	return 0, fmt.Errorf("pricing: unknown dispensation mode %q", s)
}

// ClusterPricing is the priced cluster being redistributed.
type ClusterPricing struct {
	GHSCents   int
	PriceCents int
	ExbExh     int
}

// MonoPricing is one RUM priced as its own one-stay cluster, the unit of
// redistribution.
type MonoPricing struct {
	Unit            codes.Unit
	Duration        int
	GHSCents        int
	PriceCents      int
	SupplementDays  tables.SupplementCounters[int16]
	SupplementCents tables.SupplementCounters[int32]
	TotalCents      int64
}

// Due is what one care unit ends up owed across every dispensed cluster.
type Due struct {
	Unit            codes.Unit
	GHSCents        int64
	PriceCents      int64
	SupplementDays  tables.SupplementCounters[int32]
	SupplementCents tables.SupplementCounters[int64]
	TotalCents      int64
}

// Dispenser accumulates per-unit dues over a run. Weights and shares are
// integer arithmetic throughout; each cluster's rounding remainder goes
// to the last RUM's unit so that the dues always sum to the cluster price
// exactly.
type Dispenser struct {
	mode   DispenseMode
	dues   []Due
	byUnit map[codes.Unit]int
}

// NewDispenser returns a Dispenser for the given mode.
func NewDispenser(mode DispenseMode) *Dispenser {
	return &Dispenser{mode: mode, byUnit: make(map[codes.Unit]int)}
}

func weight(mode DispenseMode, cluster ClusterPricing, mono MonoPricing) int64 {
	days := int64(mono.Duration)
	if days < 1 {
		days = 1
	}

	switch mode {
	case DispenseE:
		return int64(mono.GHSCents)
	case DispenseEx:
		return int64(mono.PriceCents)
	case DispenseEx2:
		if cluster.ExbExh < 0 {
			return int64(mono.PriceCents)
		}
		return int64(mono.GHSCents)
	case DispenseJ:
		return days
	case DispenseExJ:
		return days * int64(mono.PriceCents)
	case DispenseExJ2:
		if cluster.ExbExh < 0 {
			return days * int64(mono.PriceCents)
		}
		return days * int64(mono.GHSCents)
	}
	return 0
}

func computeWeights(mode DispenseMode, cluster ClusterPricing, monos []MonoPricing, out []int64) int64 {
	var total int64
	for i, mono := range monos {
		out[i] = weight(mode, cluster, mono)
		total += out[i]
	}
	return total
}

// Dispense redistributes one priced cluster across its RUMs' units.
// monos must hold one entry per stay of the cluster, in stay order.
func (d *Dispenser) Dispense(cluster ClusterPricing, monos []MonoPricing) {
	if len(monos) == 0 {
		return
	}

	weights := make([]int64, len(monos))
	total := computeWeights(d.mode, cluster, monos, weights)
	if total == 0 {
		// everything weightless: fall back to day counts, which cannot
		// all be zero
		total = computeWeights(DispenseJ, cluster, monos, weights)
	}

	var lastDue *Due
	var ghsGiven, priceGiven int64
	for i, mono := range monos {
		ghsShare := int64(cluster.GHSCents) * weights[i] / total
		priceShare := int64(cluster.PriceCents) * weights[i] / total

		due := d.dueFor(mono.Unit)
		due.GHSCents += ghsShare
		due.PriceCents += priceShare
		for cat := range mono.SupplementDays {
			due.SupplementDays[cat] += int32(mono.SupplementDays[cat])
			due.SupplementCents[cat] += int64(mono.SupplementCents[cat])
		}
		due.TotalCents += priceShare + (mono.TotalCents - int64(mono.PriceCents))

		ghsGiven += ghsShare
		priceGiven += priceShare
		lastDue = due
	}

	// rounding remainders go to the last unit
	lastDue.GHSCents += int64(cluster.GHSCents) - ghsGiven
	lastDue.PriceCents += int64(cluster.PriceCents) - priceGiven
	lastDue.TotalCents += int64(cluster.PriceCents) - priceGiven
}

func (d *Dispenser) dueFor(unit codes.Unit) *Due {
	if i, ok := d.byUnit[unit]; ok {
		return &d.dues[i]
	}
	d.byUnit[unit] = len(d.dues)
	d.dues = append(d.dues, Due{Unit: unit})
	return &d.dues[len(d.dues)-1]
}

// Finish returns the accumulated dues ordered by unit number.
func (d *Dispenser) Finish() []Due {
	sort.Slice(d.dues, func(i, j int) bool {
		return d.dues[i].Unit < d.dues[j].Unit
	})
	out := d.dues
	d.dues = nil
	d.byUnit = make(map[codes.Unit]int)
	return out
}
