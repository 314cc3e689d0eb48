package tables

import (
	"mco/codes"
)

// IndexBuilder assembles one TableIndex without going through the binary
// loader, for callers that synthesize reference data: the classifier test
// suites and the CLI's self-test fixtures. Load remains the production
// path. Finish applies Load's decision-tree and index-adjacency checks
// but not its required-sub-table check: an index missing its tree,
// diagnoses, procedures, roots or GHS access list is still appended.
type IndexBuilder struct {
	idx TableIndex
}

// NewIndexBuilder starts an index for the given validity interval.
func NewIndexBuilder(limitFrom, limitTo Date) *IndexBuilder {
	b := &IndexBuilder{}
	b.idx.LimitFrom = limitFrom
	b.idx.LimitTo = limitTo
	for s := Sector(0); s < sectorCount; s++ {
		b.idx.GHSPrices[s] = make(map[codes.GHS]GHSPriceInfo)
		b.idx.Coefficients[s] = make(map[codes.GHMRoot]int)
	}
	b.idx.Authorizations = make(map[AuthorizationKey]uint8)
	return b
}

// WithTree sets the decision tree.
func (b *IndexBuilder) WithTree(nodes []GHMNode) *IndexBuilder {
	b.idx.GHMTree = &GHMTree{Nodes: nodes}
	return b
}

// WithDiagnosis appends a diagnosis entry.
func (b *IndexBuilder) WithDiagnosis(info DiagnosisInfo) *IndexBuilder {
	b.idx.Diagnoses = append(b.idx.Diagnoses, info)
	return b
}

// WithExclusions sets the CMA exclusion bit-matrix.
func (b *IndexBuilder) WithExclusions(rows [][]byte) *IndexBuilder {
	b.idx.Exclusions = rows
	return b
}

// WithProcedure appends a procedure-phase entry.
func (b *IndexBuilder) WithProcedure(info ProcedureInfo) *IndexBuilder {
	b.idx.Procedures = append(b.idx.Procedures, info)
	return b
}

// WithRoot appends a GHM root entry.
func (b *IndexBuilder) WithRoot(info GHMRootInfo) *IndexBuilder {
	b.idx.GHMRoots = append(b.idx.GHMRoots, info)
	return b
}

// WithGNNCells and WithCMACells set the severity lookup tables.
func (b *IndexBuilder) WithGNNCells(cells []Cell) *IndexBuilder {
	b.idx.GNNCells = cells
	return b
}

func (b *IndexBuilder) WithCMACells(k int, cells []Cell) *IndexBuilder {
	b.idx.CMACells[k] = cells
	return b
}

// WithGHSAccess appends a GHS-access chunk; chunks keep insertion order.
func (b *IndexBuilder) WithGHSAccess(chunk GHSAccessChunk) *IndexBuilder {
	b.idx.GHSAccess = append(b.idx.GHSAccess, chunk)
	return b
}

// WithGHSPrice registers a pricing row for a sector.
func (b *IndexBuilder) WithGHSPrice(sector Sector, info GHSPriceInfo) *IndexBuilder {
	b.idx.GHSPrices[sector][info.GHS] = info
	return b
}

// WithSupplement sets one per-day supplement price.
func (b *IndexBuilder) WithSupplement(sector Sector, cat SupplementCategory, cents int) *IndexBuilder {
	b.idx.Supplements[sector][cat] = cents
	return b
}

// WithCoefficient registers a sector price multiplier (fixed-point ×10000).
func (b *IndexBuilder) WithCoefficient(sector Sector, root codes.GHMRoot, coeffE4 int) *IndexBuilder {
	b.idx.Coefficients[sector][root] = coeffE4
	return b
}

// WithAuthorization registers a (scope, code) → function id row.
func (b *IndexBuilder) WithAuthorization(key AuthorizationKey, function uint8) *IndexBuilder {
	b.idx.Authorizations[key] = function
	return b
}

// Finish validates the index and appends it to ts.
func (b *IndexBuilder) Finish(ts *TableSet) (*TableIndex, error) {
	if b.idx.GHMTree != nil {
		if err := b.idx.GHMTree.Validate(); err != nil {
			return nil, err
		}
	}
	idx := b.idx
	idx.buildIndexes()
	ts.Indexes = append(ts.Indexes, idx)
	if err := ts.checkMonotonic(); err != nil {
		ts.Indexes = ts.Indexes[:len(ts.Indexes)-1]
		return nil, err
	}
	return &ts.Indexes[len(ts.Indexes)-1], nil
}
