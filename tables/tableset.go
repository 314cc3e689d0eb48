package tables

import (
	"fmt"
	"sort"

	"mco/codes"
)

// TableInfo is one section-bearing blob loaded from disk: one ATIH table
// revision, with its validity interval and build date.
type TableInfo struct {
	Type      string
	Version   string
	BuildDate Date
	LimitFrom Date
	LimitTo   Date // exclusive
	Source    string // file path, for diagnostics
}

// Covers reports whether d falls within the table's validity interval.
func (t TableInfo) Covers(d Date) bool {
	return !d.Before(t.LimitFrom) && d.Before(t.LimitTo)
}

// TableIndex is one maximal half-open date interval during which the set
// of active tables is constant.
type TableIndex struct {
	LimitFrom Date
	LimitTo   Date // exclusive

	GHMTree        *GHMTree
	Diagnoses      []DiagnosisInfo
	Exclusions     [][]byte // CMA exclusion bit-matrix, one row per exclusion set
	Procedures     []ProcedureInfo
	GHMRoots       []GHMRootInfo
	GNNCells       []Cell
	CMACells       [3][]Cell
	GHSAccess      []GHSAccessChunk
	GHSPrices      [sectorCount]map[codes.GHS]GHSPriceInfo
	Supplements    [sectorCount]SupplementPriceInfo
	Coefficients   [sectorCount]map[codes.GHMRoot]int // per-root price multiplier, fixed-point ×10000
	Authorizations map[AuthorizationKey]uint8

	// secondary hash indexes, built by buildIndexes for each index
	diagByCode  map[codes.Diagnosis]*DiagnosisInfo
	procByCode  map[codes.Procedure]*ProcedureInfo
	rootByCode  map[codes.GHMRoot]*GHMRootInfo
	ghsByGHM    map[codes.GHM][]*GHSAccessChunk
	ghsByRoot   map[codes.GHMRoot][]*GHSAccessChunk

	changedTables uint32 // bitmap: which of the 8 sub-tables changed vs the previous index
}

// buildIndexes (re)builds the secondary hash indexes for an index that
// just had one or more of its sub-tables replaced.
func (idx *TableIndex) buildIndexes() {
	idx.diagByCode = make(map[codes.Diagnosis]*DiagnosisInfo, len(idx.Diagnoses))
	for i := range idx.Diagnoses {
		d := &idx.Diagnoses[i]
		idx.diagByCode[d.Diagnosis] = d
	}

	idx.procByCode = make(map[codes.Procedure]*ProcedureInfo, len(idx.Procedures))
	for i := range idx.Procedures {
		p := &idx.Procedures[i]
		idx.procByCode[p.Procedure] = p
	}

	idx.rootByCode = make(map[codes.GHMRoot]*GHMRootInfo, len(idx.GHMRoots))
	for i := range idx.GHMRoots {
		r := &idx.GHMRoots[i]
		idx.rootByCode[r.Root] = r
	}

	idx.ghsByGHM = make(map[codes.GHM][]*GHSAccessChunk)
	idx.ghsByRoot = make(map[codes.GHMRoot][]*GHSAccessChunk)
	for i := range idx.GHSAccess {
		c := &idx.GHSAccess[i]
		if c.GHM.Mode != 0 {
			idx.ghsByGHM[c.GHM] = append(idx.ghsByGHM[c.GHM], c)
		} else {
			idx.ghsByRoot[c.GHMRoot] = append(idx.ghsByRoot[c.GHMRoot], c)
		}
	}
}

// Diagnosis looks up a diagnosis's attributes within this index.
func (idx *TableIndex) Diagnosis(d codes.Diagnosis) (*DiagnosisInfo, bool) {
	info, ok := idx.diagByCode[d]
	return info, ok
}

// Procedure looks up a procedure-phase's attributes within this index.
func (idx *TableIndex) Procedure(p codes.Procedure) (*ProcedureInfo, bool) {
	info, ok := idx.procByCode[p]
	return info, ok
}

// RootInfo looks up a GHM root's thresholds within this index.
func (idx *TableIndex) RootInfo(r codes.GHMRoot) (*GHMRootInfo, bool) {
	info, ok := idx.rootByCode[r]
	return info, ok
}

// GHSAccessFor returns the GHS-access chunks whose pattern could match ghm,
// most specific (exact GHM) first, then root-level patterns.
func (idx *TableIndex) GHSAccessFor(ghm codes.GHM) []*GHSAccessChunk {
	out := make([]*GHSAccessChunk, 0, 4)
	out = append(out, idx.ghsByGHM[ghm]...)
	out = append(out, idx.ghsByRoot[ghm.Root()]...)
	return out
}

// GHSPrice looks up the pricing row for a GHS in the given sector.
func (idx *TableIndex) GHSPrice(sector Sector, ghs codes.GHS) (GHSPriceInfo, bool) {
	info, ok := idx.GHSPrices[sector][ghs]
	return info, ok
}

// Coefficient returns the sector price multiplier for a GHM root as a
// fixed-point ×10000 integer. Roots without a published coefficient get
// the neutral 10000.
func (idx *TableIndex) Coefficient(sector Sector, root codes.GHMRoot) int {
	if c, ok := idx.Coefficients[sector][root]; ok && c > 0 {
		return c
	}
	return 10000
}

// ExcludesCMA reports whether main's CMA exclusion set rules other out of
// counting toward the cluster's severity level.
func (idx *TableIndex) ExcludesCMA(main, other *DiagnosisInfo) bool {
	if main == nil || other == nil {
		return false
	}
	if main.CMAExclusionSet < 0 || main.CMAExclusionSet >= len(idx.Exclusions) {
		return false
	}
	return bitTest(idx.Exclusions[main.CMAExclusionSet], int(other.CMAExclusionBit))
}

// valid reports whether idx has everything required to be emitted: a
// non-null GHM tree, diagnoses, procedures, GHM roots and GHS access list
// an index missing any of them is dropped rather than emitted.
func (idx *TableIndex) valid() bool {
	return idx.GHMTree != nil && len(idx.GHMTree.Nodes) > 0 &&
		len(idx.Diagnoses) > 0 && len(idx.Procedures) > 0 &&
		len(idx.GHMRoots) > 0 && len(idx.GHSAccess) > 0
}

// TableSet is the union of every loaded TableInfo plus the chronologically
// ordered list of TableIndex date intervals derived from them.
type TableSet struct {
	Tables  []TableInfo
	Indexes []TableIndex

	seenFingerprints map[[32]byte]string // fingerprint -> source path, for duplicate-load detection
}

// NewTableSet returns an empty TableSet ready for Load calls.
func NewTableSet() *TableSet {
	return &TableSet{seenFingerprints: make(map[[32]byte]string)}
}

// Find returns the index covering date d, or nil if d falls outside every
// loaded interval.
func (ts *TableSet) Find(d Date) *TableIndex {
	// Linear scan: index counts are small (one per reference-table
	// revision boundary, typically a few dozen over the classifier's
	// entire supported date range), so a binary search buys nothing.
	for k := range ts.Indexes {
		if ts.Indexes[k].Covers(d) {
			return &ts.Indexes[k]
		}
	}
	return nil
}

// Covers reports whether d falls within idx's validity interval.
func (idx TableIndex) Covers(d Date) bool {
	return !d.Before(idx.LimitFrom) && d.Before(idx.LimitTo)
}

// assembleIndexes turns the tables of one loaded file into exactly one
// TableIndex, spanning the intersection of those tables' validity
// intervals, inserts it in LimitFrom order and checks that the indexes
// stay adjacent.
//
// Tables are not ordered by (limit_from, version, build_date) and no
// timeline is walked: table revisions whose intervals straddle one
// another inside a file are not split into separate intervals, and the
// tables of different files are never combined into one index. Each file
// has to carry one coherent generation of tables (all types, same
// build), which is how ATIH ships them in practice.
func (ts *TableSet) assembleIndexes(loaded *loadedTables) error {
	if loaded.ghmTree == nil || len(loaded.diagnoses) == 0 || len(loaded.procedures) == 0 ||
		len(loaded.ghmRoots) == 0 || len(loaded.ghsAccess) == 0 {
		return fmt.Errorf("tables: incomplete table generation, index dropped")
	}

	idx := TableIndex{
		LimitFrom:      loaded.limitFrom,
		LimitTo:        loaded.limitTo,
		GHMTree:        loaded.ghmTree,
		Diagnoses:      loaded.diagnoses,
		Exclusions:     loaded.exclusions,
		Procedures:     loaded.procedures,
		GHMRoots:       loaded.ghmRoots,
		GNNCells:       loaded.gnnCells,
		CMACells:       loaded.cmaCells,
		GHSAccess:      loaded.ghsAccess,
		GHSPrices:      loaded.ghsPrices,
		Supplements:    loaded.supplements,
		Authorizations: loaded.authorizations,
	}
	if !idx.valid() {
		return fmt.Errorf("tables: index for [%s, %s) dropped, missing required sub-table", idx.LimitFrom, idx.LimitTo)
	}
	if err := idx.GHMTree.Validate(); err != nil {
		return err
	}
	idx.buildIndexes()

	ts.Indexes = append(ts.Indexes, idx)
	sort.Slice(ts.Indexes, func(i, j int) bool {
		return ts.Indexes[i].LimitFrom.Before(ts.Indexes[j].LimitFrom)
	})

	return ts.checkMonotonic()
}

// checkMonotonic verifies the invariant that adjacent indexes are ordered
// and non-overlapping.
func (ts *TableSet) checkMonotonic() error {
	for i := 1; i < len(ts.Indexes); i++ {
		prev, cur := ts.Indexes[i-1], ts.Indexes[i]
		if prev.LimitTo.Before(cur.LimitFrom) || cur.LimitFrom.Before(prev.LimitTo) {
			return fmt.Errorf("tables: indexes [%s,%s) and [%s,%s) are not adjacent",
				prev.LimitFrom, prev.LimitTo, cur.LimitFrom, cur.LimitTo)
		}
		if !(prev.LimitFrom.Before(prev.LimitTo)) {
			return fmt.Errorf("tables: index [%s,%s) has limit_from >= limit_to", prev.LimitFrom, prev.LimitTo)
		}
	}
	return nil
}

// loadedTables accumulates the sub-tables parsed out of one file before
// they are frozen into a TableIndex.
type loadedTables struct {
	limitFrom, limitTo Date

	ghmTree        *GHMTree
	diagnoses      []DiagnosisInfo
	exclusions     [][]byte
	procedures     []ProcedureInfo
	ghmRoots       []GHMRootInfo
	gnnCells       []Cell
	cmaCells       [3][]Cell
	ghsAccess      []GHSAccessChunk
	ghsPrices      [sectorCount]map[codes.GHS]GHSPriceInfo
	supplements    [sectorCount]SupplementPriceInfo
	authorizations map[AuthorizationKey]uint8
}
