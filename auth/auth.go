// Package auth holds the per-unit authorization timeline: which
// administrative authorization each care unit carries on a given date.
// Authorizations drive the per-day supplement categories.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"mco/codes"
	"mco/tables"
)

// Authorization is one unit-level authorization with its validity window.
// A unit may appear several times with disjoint windows.
type Authorization struct {
	Unit      codes.Unit
	Type      uint8
	BeginDate tables.Date
	EndDate   tables.Date // exclusive; open-ended entries get a far-future date
}

// Covers reports whether the authorization applies on date d.
func (a Authorization) Covers(d tables.Date) bool {
	return !d.Before(a.BeginDate) && d.Before(a.EndDate)
}

// Set is the loaded authorization timeline, queried by (unit, date).
type Set struct {
	Authorizations []Authorization

	byUnit map[codes.Unit][]int
}

// openEndDate substitutes for a missing "end_date": far enough out that
// no stay date reaches it.
var openEndDate = tables.Date{Year: 2999, Month: 12, Day: 31}

type authorizationRow struct {
	Unit          string `json:"unit"`
	Authorization int    `json:"authorization"`
	BeginDate     string `json:"begin_date"`
	EndDate       string `json:"end_date"`
}

// Load reads an authorization JSON file: an array of objects with "unit"
// (a number, or "facility" for the facility-wide fallback),
// "authorization" (the type id), "begin_date" and an optional "end_date".
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: reading %s: %w", path, err)
	}

	var rows []authorizationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("auth: parsing %s: %w", path, err)
	}

	set := &Set{byUnit: make(map[codes.Unit][]int)}
	for i, row := range rows {
		var a Authorization

		if row.Unit == "facility" {
			a.Unit = codes.UnitFacility
		} else {
			n, err := strconv.ParseInt(row.Unit, 10, 16)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("auth: %s: entry %d: invalid unit %q", path, i, row.Unit)
			}
			a.Unit = codes.Unit(n)
		}

		if row.Authorization < 0 || row.Authorization > 99 {
			return nil, fmt.Errorf("auth: %s: entry %d: invalid authorization type %d", path, i, row.Authorization)
		}
		a.Type = uint8(row.Authorization)

		a.BeginDate, err = parseISODate(row.BeginDate)
		if err != nil {
			return nil, fmt.Errorf("auth: %s: entry %d: begin_date: %w", path, i, err)
		}
		if row.EndDate == "" {
			a.EndDate = openEndDate
		} else {
			a.EndDate, err = parseISODate(row.EndDate)
			if err != nil {
				return nil, fmt.Errorf("auth: %s: entry %d: end_date: %w", path, i, err)
			}
		}

		set.Authorizations = append(set.Authorizations, a)
	}

	set.buildIndex()
	return set, nil
}

// NewSet builds a Set directly from authorizations, for tests and
// programmatic callers.
func NewSet(authorizations []Authorization) *Set {
	set := &Set{Authorizations: authorizations, byUnit: make(map[codes.Unit][]int)}
	set.buildIndex()
	return set
}

func (s *Set) buildIndex() {
	for i := range s.Authorizations {
		u := s.Authorizations[i].Unit
		s.byUnit[u] = append(s.byUnit[u], i)
	}
	for _, idxs := range s.byUnit {
		sort.Slice(idxs, func(a, b int) bool {
			return s.Authorizations[idxs[a]].BeginDate.Before(s.Authorizations[idxs[b]].BeginDate)
		})
	}
}

// FindUnit returns the authorization active for unit on date, without any
// facility fallback.
func (s *Set) FindUnit(unit codes.Unit, date tables.Date) (*Authorization, bool) {
	for _, i := range s.byUnit[unit] {
		if s.Authorizations[i].Covers(date) {
			return &s.Authorizations[i], true
		}
	}
	return nil, false
}

// Find returns the authorization applicable to unit on date: the unit's
// own authorization when one covers the date, otherwise the facility-wide
// entry if present.
func (s *Set) Find(unit codes.Unit, date tables.Date) (*Authorization, bool) {
	if a, ok := s.FindUnit(unit, date); ok {
		return a, true
	}
	return s.FindUnit(codes.UnitFacility, date)
}

func parseISODate(str string) (tables.Date, error) {
	var y, m, d int
	if _, err := fmt.Sscanf(str, "%04d-%02d-%02d", &y, &m, &d); err != nil {
		return tables.Date{}, fmt.Errorf("invalid date %q", str)
	}
	date := tables.Date{Year: int16(y), Month: int8(m), Day: int8(d)}
	if !date.IsValid() {
		return tables.Date{}, fmt.Errorf("invalid date %q", str)
	}
	return date, nil
}
