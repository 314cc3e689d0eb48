// Package engine drives the classification pipeline: it splits the input
// stay sequence into clusters, classifies and prices each one — in
// parallel when asked to — and folds the results into summaries.
package engine

import (
	"mco/codes"
	"mco/stays"
	"mco/tables"
)

// Result is the complete classification and pricing outcome for one
// cluster.
type Result struct {
	Stays       []stays.Stay
	MainStayIdx int
	Duration    int

	GHM       codes.GHM
	MainError int16

	GHS             codes.GHS
	ExbExh          int
	GHSCents        int
	PriceCents      int
	SupplementDays  tables.SupplementCounters[int16]
	SupplementCents tables.SupplementCounters[int32]
	TotalCents      int64
}

// Failed reports whether the cluster could not be classified.
func (r Result) Failed() bool {
	return r.GHM.IsError()
}

// Summary accumulates results: counts, summed cents and failure count.
// The zero value is the identity; Add is associative, so partial
// summaries can be folded in any grouping.
type Summary struct {
	Results  int
	Stays    int
	Failures int

	PriceCents      int64
	SupplementDays  tables.SupplementCounters[int32]
	SupplementCents tables.SupplementCounters[int64]
	TotalCents      int64
}

// AddResult folds one result into the summary.
func (s *Summary) AddResult(r *Result) {
	s.Results++
	s.Stays += len(r.Stays)
	if r.Failed() {
		s.Failures++
	}
	s.PriceCents += int64(r.PriceCents)
	for cat := range r.SupplementDays {
		s.SupplementDays[cat] += int32(r.SupplementDays[cat])
		s.SupplementCents[cat] += int64(r.SupplementCents[cat])
	}
	s.TotalCents += r.TotalCents
}

// Add merges another summary into s.
func (s *Summary) Add(other Summary) {
	s.Results += other.Results
	s.Stays += other.Stays
	s.Failures += other.Failures
	s.PriceCents += other.PriceCents
	s.SupplementDays = s.SupplementDays.Add(other.SupplementDays)
	s.SupplementCents = s.SupplementCents.Add(other.SupplementCents)
	s.TotalCents += other.TotalCents
}

// Summarize folds a result slice into one summary.
func Summarize(results []Result) Summary {
	var s Summary
	for i := range results {
		s.AddResult(&results[i])
	}
	return s
}
