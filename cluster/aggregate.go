package cluster

import (
	"fmt"

	"mco/codes"
	"mco/stays"
	"mco/tables"
)

// Flags tune the classification pipeline; they are parsed from the CLI's
// -o option and threaded through every stage.
type Flags uint

const (
	FlagMono Flags = 1 << iota
	FlagIgnoreConfirmation
	FlagIgnoreProcedureDoc
	FlagIgnoreProcedureExtension
)

// Aggregate flag bits derived during preparation.
const (
	ChildbirthDiagnosis uint16 = 1 << iota
	ChildbirthProcedure
	ChildbirthType
)

// Aggregate is the per-cluster scratch the classifier reads: one
// representative stay plus resolved table entries for every diagnosis and
// procedure in the cluster.
type Aggregate struct {
	Index *tables.TableIndex
	Stays []stays.Stay

	// Stay is the representative: entry from the first stay, exit from
	// the last, unit and diagnoses from the main stay.
	Stay        stays.Stay
	MainStayIdx int

	Duration int
	Age      int // full years at admission
	AgeDays  int // only meaningful for newborns (<= 28 days)

	MainDiagInfo   *tables.DiagnosisInfo
	LinkedDiagInfo *tables.DiagnosisInfo
	Diagnoses      []*tables.DiagnosisInfo
	Procedures     []*tables.ProcedureInfo
	ProcActivities uint8

	Flags uint16
}

// HasChildbirth reports whether any childbirth diagnosis or procedure was
// seen.
func (agg *Aggregate) HasChildbirth() bool {
	return agg.Flags&(ChildbirthDiagnosis|ChildbirthProcedure) != 0
}

// Prepare aggregates one cluster against the table index covering its
// exit date. Per-field input problems become numbered errors in errs and
// preparation continues; only a missing table index is fatal to the run.
func Prepare(ts *tables.TableSet, cl []stays.Stay, flags Flags, errs *ErrorSet) (*Aggregate, error) {
	if len(cl) == 0 {
		return nil, fmt.Errorf("cluster: empty cluster")
	}

	last := &cl[len(cl)-1]
	index := ts.Find(last.Exit.Date)
	if index == nil {
		return nil, fmt.Errorf("cluster: no table index covers %s", last.Exit.Date)
	}

	agg := &Aggregate{Index: index, Stays: cl}
	agg.MainStayIdx = mainStayIndex(cl)
	main := &cl[agg.MainStayIdx]

	// representative stay
	agg.Stay = *main
	agg.Stay.Entry = cl[0].Entry
	agg.Stay.Exit = last.Exit
	for i := range cl {
		if cl[i].SessionCount > agg.Stay.SessionCount {
			agg.Stay.SessionCount = cl[i].SessionCount
		}
	}

	collectParseErrors(cl, errs)

	agg.Duration = agg.Stay.Exit.Date.Sub(agg.Stay.Entry.Date)
	if agg.Stay.Birthdate.IsValid() && !agg.Stay.Entry.Date.Before(agg.Stay.Birthdate) {
		agg.AgeDays = agg.Stay.Entry.Date.Sub(agg.Stay.Birthdate)
		agg.Age = fullYears(agg.Stay.Birthdate, agg.Stay.Entry.Date)
	}

	if agg.Stay.Sex != 'M' && agg.Stay.Sex != 'F' {
		errs.Add(ErrorSexMissing, PriorityParse)
	}

	resolveDiagnoses(agg, errs)
	resolveProcedures(agg, flags, errs)
	deriveChildbirthFlags(agg)

	return agg, nil
}

// mainStayIndex picks the stay carrying the cluster's diagnoses: the one
// with the highest session count when sessions were performed, otherwise
// the last stay.
func mainStayIndex(cl []stays.Stay) int {
	best := -1
	var bestCount int16
	for i := range cl {
		if cl[i].SessionCount > bestCount {
			best, bestCount = i, cl[i].SessionCount
		}
	}
	if best >= 0 {
		return best
	}
	return len(cl) - 1
}

// collectParseErrors promotes loader error bits into numbered errors.
func collectParseErrors(cl []stays.Stay, errs *ErrorSet) {
	for i := range cl {
		mask := cl[i].ErrorMask
		if mask == 0 {
			continue
		}
		if mask&stays.ErrMalformedBirthdate != 0 {
			errs.Add(ErrorMalformedBirthdate, PriorityParse)
		}
		if mask&stays.ErrMalformedSex != 0 {
			errs.Add(ErrorSexMissing, PriorityParse)
		}
		if mask&stays.ErrMalformedEntryDate != 0 {
			errs.Add(ErrorMalformedEntryDate, PriorityParse)
		}
		if mask&stays.ErrMalformedExitDate != 0 {
			errs.Add(ErrorMalformedExitDate, PriorityParse)
		}
		if mask&stays.ErrMalformedMainDiagnosis != 0 {
			errs.Add(ErrorMissingMainDiagnosis, PriorityParse)
		}
		const other = stays.ErrUnknownRumVersion | stays.ErrMalformedBillID |
			stays.ErrTruncatedRecord | stays.ErrMalformedSessionCount |
			stays.ErrMalformedLinkedDiagnosis | stays.ErrMalformedOtherDiagnosis |
			stays.ErrMalformedProcedureCode | stays.ErrMalformedUnit
		if mask&other != 0 {
			errs.Add(ErrorMalformedInput, PriorityParse)
		}
	}
}

func resolveDiagnoses(agg *Aggregate, errs *ErrorSet) {
	index := agg.Index
	main := &agg.Stays[agg.MainStayIdx]

	if !main.MainDiagnosis.IsValid() {
		errs.Add(ErrorMissingMainDiagnosis, PriorityParse)
	} else if info, ok := index.Diagnosis(main.MainDiagnosis); ok {
		agg.MainDiagInfo = info
	} else {
		errs.Add(ErrorUnknownMainDiagnosis, PriorityReference)
	}

	if main.LinkedDiagnosis.IsValid() {
		if info, ok := index.Diagnosis(main.LinkedDiagnosis); ok {
			agg.LinkedDiagInfo = info
		} else {
			errs.Add(ErrorUnknownLinkedDiagnosis, PriorityReference)
		}
	}

	// union every stay's diagnoses; non-main stays contribute their own
	// main and linked diagnoses as associated ones
	seen := make(map[codes.Diagnosis]struct{}, 8)
	add := func(d codes.Diagnosis) {
		if !d.IsValid() {
			return
		}
		if _, dup := seen[d]; dup {
			return
		}
		seen[d] = struct{}{}
		if info, ok := index.Diagnosis(d); ok {
			agg.Diagnoses = append(agg.Diagnoses, info)
		} else {
			errs.Add(ErrorUnknownOtherDiagnosis, PriorityReference)
		}
	}

	for i := range agg.Stays {
		s := &agg.Stays[i]
		if i != agg.MainStayIdx {
			add(s.MainDiagnosis)
			add(s.LinkedDiagnosis)
		}
		for _, d := range s.OtherDiagnoses {
			add(d)
		}
	}
}

func resolveProcedures(agg *Aggregate, flags Flags, errs *ErrorSet) {
	index := agg.Index
	for i := range agg.Stays {
		s := &agg.Stays[i]
		for _, p := range s.Procedures {
			info, ok := index.Procedure(p.Code)
			if !ok {
				errs.Add(ErrorUnknownProcedure, PriorityReference)
				continue
			}
			if flags&FlagIgnoreProcedureExtension == 0 && !info.ValidOn(p.Date) && p.Date.IsValid() {
				errs.Add(ErrorUnknownProcedure, PriorityReference)
				continue
			}
			agg.Procedures = append(agg.Procedures, info)
			agg.ProcActivities |= p.Activities
		}
	}
}

func deriveChildbirthFlags(agg *Aggregate) {
	sex := agg.Stay.Sex

	var vaginal, caesarean bool
	check := func(info *tables.DiagnosisInfo) {
		if info == nil {
			return
		}
		if info.TestBit(sex, tables.BitChildbirth) {
			agg.Flags |= ChildbirthDiagnosis
			vaginal = vaginal || info.TestBit(sex, tables.BitDeliveryVaginal)
			caesarean = caesarean || info.TestBit(sex, tables.BitDeliveryCaesarean)
		}
	}
	check(agg.MainDiagInfo)
	check(agg.LinkedDiagInfo)
	for _, info := range agg.Diagnoses {
		check(info)
	}

	for _, info := range agg.Procedures {
		if info.TestBit(tables.BitChildbirth) {
			agg.Flags |= ChildbirthProcedure
		}
	}

	if vaginal != caesarean {
		agg.Flags |= ChildbirthType
	}
}

// fullYears counts whole calendar years between birth and ref.
func fullYears(birth, ref tables.Date) int {
	years := int(ref.Year - birth.Year)
	if ref.Month < birth.Month || (ref.Month == birth.Month && ref.Day < birth.Day) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years
}
