package ghs

import (
	"mco/auth"
	"mco/cluster"
	"mco/codes"
	"mco/stays"
	"mco/tables"
)

// CountSupplements walks the cluster day by day and increments one
// supplement category per day, picked by authorization. Days with no
// matching authorization simply count nothing.
func CountSupplements(agg *cluster.Aggregate, auths *auth.Set,
	counters *tables.SupplementCounters[int16]) {
	entry := agg.Stay.Entry.Date
	exit := agg.Stay.Exit.Date

	for d := entry; d.Before(exit); d = d.AddDays(1) {
		s := activeStayOn(agg.Stays, d)
		if s == nil {
			continue
		}
		if cat, ok := dayCategory(s, auths, d); ok {
			counters[cat]++
		}
	}
}

// activeStayOn finds the stay covering day d within the cluster; when a
// stay ends and the next begins the same day, the later one wins.
func activeStayOn(all []stays.Stay, d tables.Date) *stays.Stay {
	var active *stays.Stay
	for i := range all {
		s := &all[i]
		if !d.Before(s.Entry.Date) && (d.Before(s.Exit.Date) || s.Entry.Date.Equal(s.Exit.Date)) {
			active = s
		}
	}
	return active
}

// dayCategory resolves the supplement category for one day: the unit's
// own authorization and the stay's bed authorization are both candidates,
// the facility-wide entry only when neither exists, and the
// highest-priority category wins.
func dayCategory(s *stays.Stay, auths *auth.Set, d tables.Date) (tables.SupplementCategory, bool) {
	found := false
	var best tables.SupplementCategory

	consider := func(function uint8, fromBed bool) {
		cat, ok := categoryFor(function, fromBed)
		if !ok {
			return
		}
		if !found || cat < best {
			found, best = true, cat
		}
	}

	unitAuth, haveUnit := auths.FindUnit(s.Unit, d)
	if haveUnit {
		consider(unitAuth.Type, false)
	}
	if s.BedAuth != 0 {
		consider(s.BedAuth, true)
	}
	if !haveUnit && s.BedAuth == 0 {
		if a, ok := auths.FindUnit(codes.UnitFacility, d); ok {
			consider(a.Type, false)
		}
	}

	return best, found
}

// categoryFor maps an authorization function onto a supplement category.
// A réa authorization reached through the bed (réa bed outside a réa
// unit) bills as the intermediate REASI category.
func categoryFor(function uint8, fromBed bool) (tables.SupplementCategory, bool) {
	switch function {
	case auth.FunctionREA:
		if fromBed {
			return tables.SupplementREASI, true
		}
		return tables.SupplementREA, true
	case auth.FunctionSI:
		return tables.SupplementSI, true
	case auth.FunctionSRC:
		return tables.SupplementSRC, true
	case auth.FunctionNN1:
		return tables.SupplementNN1, true
	case auth.FunctionNN2:
		return tables.SupplementNN2, true
	case auth.FunctionNN3:
		return tables.SupplementNN3, true
	case auth.FunctionREP:
		return tables.SupplementREP, true
	default:
		return 0, false
	}
}
