// Package ghs resolves the billable group for a classified cluster: it
// walks the GHS-access rule chunks for the final GHM and counts the
// per-day supplement categories against the authorization timeline.
package ghs

import (
	"mco/auth"
	"mco/cluster"
	"mco/codes"
	"mco/tables"
)

// ClassifyGHS returns the first GHS-access chunk whose constraints the
// cluster satisfies, selected for the given sector. Error GHMs and
// clusters matching no chunk yield the no-GHS sentinel.
func ClassifyGHS(agg *cluster.Aggregate, auths *auth.Set, ghm codes.GHM,
	sector tables.Sector, flags cluster.Flags) codes.GHS {
	if !ghm.IsValid() || ghm.IsError() {
		return codes.NoGHS
	}

	for _, chunk := range agg.Index.GHSAccessFor(ghm) {
		if chunkPasses(agg, auths, chunk) {
			return chunk.GHSFor(sector)
		}
	}
	return codes.NoGHS
}

func chunkPasses(agg *cluster.Aggregate, auths *auth.Set, chunk *tables.GHSAccessChunk) bool {
	if agg.Duration < chunk.MinDuration {
		return false
	}
	if agg.Age < chunk.MinAge {
		return false
	}

	if len(chunk.MainDiagnosisMask) > 0 {
		if agg.MainDiagInfo == nil || !diagMatchesMask(agg.MainDiagInfo, agg.Stay.Sex, chunk.MainDiagnosisMask) {
			return false
		}
	}

	if len(chunk.DiagnosisMask) > 0 && !anyDiagMatches(agg, chunk.DiagnosisMask) {
		return false
	}

	// every procedure mask in the list must be covered by at least one
	// performed procedure
	for _, mask := range chunk.ProcedureMasks {
		if !anyProcMatches(agg.Procedures, mask) {
			return false
		}
	}

	if chunk.UnitAuth != 0 {
		a, ok := auths.Find(agg.Stay.Unit, agg.Stay.Exit.Date)
		if !ok || a.Type != chunk.UnitAuth {
			return false
		}
	}
	if chunk.BedAuth != 0 && agg.Stay.BedAuth != chunk.BedAuth {
		return false
	}

	return true
}

func diagMatchesMask(info *tables.DiagnosisInfo, sex byte, mask []uint8) bool {
	attrs := info.AttributesFor(sex)
	for i, m := range mask {
		if m != 0 && i < len(attrs) && attrs[i]&m != 0 {
			return true
		}
	}
	return false
}

func anyDiagMatches(agg *cluster.Aggregate, mask []uint8) bool {
	if agg.MainDiagInfo != nil && diagMatchesMask(agg.MainDiagInfo, agg.Stay.Sex, mask) {
		return true
	}
	if agg.LinkedDiagInfo != nil && diagMatchesMask(agg.LinkedDiagInfo, agg.Stay.Sex, mask) {
		return true
	}
	for _, info := range agg.Diagnoses {
		if diagMatchesMask(info, agg.Stay.Sex, mask) {
			return true
		}
	}
	return false
}

func anyProcMatches(procs []*tables.ProcedureInfo, mask []uint8) bool {
	for _, info := range procs {
		for i, m := range mask {
			if m != 0 && i < len(info.Attributes) && info.Attributes[i]&m != 0 {
				return true
			}
		}
	}
	return false
}
