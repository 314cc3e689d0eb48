package classify

import (
	"mco/cluster"
	"mco/codes"
	"mco/tables"
)

// Post-leaf adjustments, applied in a fixed order; the first rule that
// fires wins and the rest are skipped. The order is deliberately kept in
// one place: if a reference run disagrees, this list is the only thing to
// reorder.
type adjustment func(agg *cluster.Aggregate, flags cluster.Flags, root *tables.GHMRootInfo,
	ghm codes.GHM, errs *cluster.ErrorSet) (codes.GHM, bool)

var adjustments = []adjustment{
	adjustConfirmation,
	adjustChildbirthConsistency,
	adjustAgeSeverity,
	adjustSeverityDuration,
	adjustShortStay,
}

func applyAdjustments(agg *cluster.Aggregate, flags cluster.Flags, ghm codes.GHM, errs *cluster.ErrorSet) codes.GHM {
	root, ok := agg.Index.RootInfo(ghm.Root())
	if !ok {
		return ghm
	}
	for _, adjust := range adjustments {
		if adjusted, fired := adjust(agg, flags, root, ghm, errs); fired {
			return adjusted
		}
	}
	return ghm
}

// adjustConfirmation rejects suspiciously short stays whose GHM requires
// an explicit confirmation flag.
func adjustConfirmation(agg *cluster.Aggregate, flags cluster.Flags, root *tables.GHMRootInfo,
	ghm codes.GHM, errs *cluster.ErrorSet) (codes.GHM, bool) {
	if root.ConfirmDurationThreshold <= 0 || agg.Duration >= root.ConfirmDurationThreshold {
		return ghm, false
	}
	if agg.Stay.Confirmed() || flags&cluster.FlagIgnoreConfirmation != 0 {
		return ghm, false
	}
	if agg.Stay.Exit.Mode == '9' {
		errs.Add(cluster.ErrorConfirmationMissingDeath, cluster.PriorityRule)
	} else {
		errs.Add(cluster.ErrorConfirmationMissing, cluster.PriorityRule)
	}
	return codes.ErrorGHM, true
}

// adjustChildbirthConsistency requires childbirth diagnoses and
// procedures to travel together.
func adjustChildbirthConsistency(agg *cluster.Aggregate, _ cluster.Flags, _ *tables.GHMRootInfo,
	ghm codes.GHM, errs *cluster.ErrorSet) (codes.GHM, bool) {
	hasDiag := agg.Flags&cluster.ChildbirthDiagnosis != 0
	hasProc := agg.Flags&cluster.ChildbirthProcedure != 0
	switch {
	case hasProc && !hasDiag:
		errs.Add(cluster.ErrorChildbirthNoDiagnosis, cluster.PriorityRule)
		return codes.ErrorGHM, true
	case hasDiag && !hasProc:
		errs.Add(cluster.ErrorChildbirthNoProcedure, cluster.PriorityRule)
		return codes.ErrorGHM, true
	}
	return ghm, false
}

// adjustAgeSeverity raises the severity mode for patients inside the
// root's young/old threshold bands.
func adjustAgeSeverity(agg *cluster.Aggregate, _ cluster.Flags, root *tables.GHMRootInfo,
	ghm codes.GHM, _ *cluster.ErrorSet) (codes.GHM, bool) {
	current := severityFromMode(ghm.Mode)
	if current < 0 {
		return ghm, false
	}

	target := -1
	if root.YoungSeverityLimit > 0 && agg.Age < root.YoungSeverityLimit {
		target = severityFromMode(root.YoungSeverityMode)
	} else if root.OldSeverityLimit > 0 && agg.Age >= root.OldSeverityLimit {
		target = severityFromMode(root.OldSeverityMode)
	}
	if target <= current {
		return ghm, false
	}

	ghm.Mode = modeWithSeverity(ghm.Mode, target)
	return ghm, true
}

// adjustSeverityDuration demotes severity levels the stay was too short
// to justify.
func adjustSeverityDuration(agg *cluster.Aggregate, _ cluster.Flags, root *tables.GHMRootInfo,
	ghm codes.GHM, _ *cluster.ErrorSet) (codes.GHM, bool) {
	severity := severityFromMode(ghm.Mode)
	if severity <= 0 {
		return ghm, false
	}
	if agg.Duration >= GetMinimalDurationForSeverity(severity) {
		return ghm, false
	}

	limited := LimitSeverityWithDuration(severity, agg.Duration)
	if limited == 0 && root.AllowAmbulatory && agg.Duration == 0 {
		ghm.Mode = 'J'
	} else {
		ghm.Mode = modeWithSeverity(ghm.Mode, limited)
	}
	return ghm, true
}

// adjustShortStay switches zero-night, zero-session stays to the
// short-duration mode.
func adjustShortStay(agg *cluster.Aggregate, _ cluster.Flags, root *tables.GHMRootInfo,
	ghm codes.GHM, _ *cluster.ErrorSet) (codes.GHM, bool) {
	if root.ShortDurationThreshold <= 0 || agg.Duration != 0 || agg.Stay.SessionCount != 0 {
		return ghm, false
	}
	if ghm.Mode == 'T' || ghm.Mode == 'J' {
		return ghm, false
	}
	ghm.Mode = 'T'
	return ghm, true
}
