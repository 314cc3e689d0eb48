// Package pricing turns a resolved GHS into euro cents: the base tariff,
// the EXB/EXH duration adjustments, the per-day supplements and the
// optional sector coefficient. All arithmetic is integer cents; nothing
// on this path touches floating point.
package pricing

import (
	"mco/codes"
	"mco/tables"
)

// PriceGhs computes the duration-adjusted price for one GHS. Death exits
// never take the EXB low-duration penalty; the EXH high-duration bonus
// still applies to them. The returned exbExh is
// negative for low-duration stays (missing nights) and positive for
// high-duration ones (extra nights).
func PriceGhs(info tables.GHSPriceInfo, duration int, death bool) (cents int, exbExh int) {
	if death {
		// a death always bills as a full stay
		if info.EXHThreshold > 0 && duration >= info.EXHThreshold {
			exbExh = duration - info.EXHThreshold + 1
			return info.GHSCents + exbExh*info.EXHCents, exbExh
		}
		return info.GHSCents, 0
	}

	if info.EXBThreshold > 0 && duration < info.EXBThreshold {
		exbExh = duration - info.EXBThreshold
		penalty := info.EXBCents
		if !info.EXBOnce {
			penalty = -exbExh * info.EXBCents
		}
		cents = info.GHSCents - penalty
		if cents < 0 {
			cents = 0
		}
		return cents, exbExh
	}

	if info.EXHThreshold > 0 && duration >= info.EXHThreshold {
		exbExh = duration - info.EXHThreshold + 1
		return info.GHSCents + exbExh*info.EXHCents, exbExh
	}

	return info.GHSCents, 0
}

// ApplyCoefficient scales cents by a fixed-point ×10000 sector
// coefficient, rounding down.
func ApplyCoefficient(cents, coeffE4 int) int {
	return int(int64(cents) * int64(coeffE4) / 10000)
}

// PriceSupplements prices counted supplement days against the index's
// per-sector day tariffs, returning per-category cents and their sum.
func PriceSupplements(idx *tables.TableIndex, sector tables.Sector,
	days tables.SupplementCounters[int16]) (tables.SupplementCounters[int32], int64) {
	var cents tables.SupplementCounters[int32]
	var total int64
	for cat := range days {
		c := int32(days[cat]) * int32(idx.Supplements[sector][cat])
		cents[cat] = c
		total += int64(c)
	}
	return cents, total
}

// ResolvePrice looks up the pricing row for ghs in idx, for one sector.
func ResolvePrice(idx *tables.TableIndex, sector tables.Sector, ghs codes.GHS) (tables.GHSPriceInfo, bool) {
	if !ghs.IsValid() {
		return tables.GHSPriceInfo{}, false
	}
	return idx.GHSPrice(sector, ghs)
}
