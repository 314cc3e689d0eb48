package classify

import (
	"mco/cluster"
	"mco/codes"
	"mco/tables"
)

// Branch functions recognised by the tree interpreter. Ids above 20 are
// reserved; encountering one is a tree defect, not an input error.
//
//	 1  main diagnosis attribute bit (byte p1, mask p2)
//	 2  linked diagnosis attribute bit
//	 3  any associated diagnosis attribute bit
//	 4  any procedure attribute bit
//	 5  duration >= p1
//	 6  duration == p1
//	 7  age in years >= p1
//	 8  age in days >= p1
//	 9  sex (male 0, female 1)
//	10  session count >= p1
//	11  entry mode == p1
//	12  leaf: emits (GHM, error)
//	13  exit mode == p1
//	14  newborn cell lookup (weight, gestational age)
//	15  severity cell lookup, table p1, keyed (age, severity)
//	16  severity cell lookup, table p1, keyed (duration, severity)
//	17  childbirth diagnosis or procedure present
//	18  single delivery type present
//	19  confirmation flag present
//	20  long jump
const maxFunction = 20

// ClassifyGHM walks the decision tree for one aggregate and applies the
// post-leaf adjustments, returning the final GHM. Rule violations land in
// errs; a non-classifiable cluster gets the generic error GHM.
func ClassifyGHM(agg *cluster.Aggregate, flags cluster.Flags, errs *cluster.ErrorSet) codes.GHM {
	// parse-level input errors block classification outright
	if errs.MainError != 0 && errs.MainPriority() == cluster.PriorityParse {
		return codes.ErrorGHM
	}

	ghm, errCode := walkTree(agg, errs)
	if errCode != 0 {
		errs.Add(int16(errCode), cluster.PriorityRule)
	}
	if ghm.IsError() || !ghm.IsValid() {
		if !ghm.IsValid() {
			ghm = codes.ErrorGHM
		}
		return ghm
	}

	return applyAdjustments(agg, flags, ghm, errs)
}

func walkTree(agg *cluster.Aggregate, errs *cluster.ErrorSet) (codes.GHM, uint8) {
	nodes := agg.Index.GHMTree.Nodes
	severity := cmaSeverity(agg)

	nodeIdx := uint32(0)
	// each visit must advance to a strictly greater node index, so the
	// node count bounds the walk
	for step := 0; step <= len(nodes); step++ {
		node := nodes[nodeIdx]

		if node.IsLeaf() {
			return node.Leaf()
		}

		var next uint32
		if node.Function == tables.LongJumpFunction {
			next = node.LongJumpTarget()
		} else {
			result, ok := executeTest(agg, node, severity, errs)
			if !ok {
				errs.Add(cluster.ErrorTreeWalkFailed, cluster.PriorityRule)
				return codes.ErrorGHM, 0
			}
			if result < 0 || result >= int(node.ChildrenCount) {
				errs.Add(cluster.ErrorTreeWalkFailed, cluster.PriorityRule)
				return codes.ErrorGHM, 0
			}
			next = uint32(node.ChildrenIndex) + uint32(result)
		}

		if next <= nodeIdx || next >= uint32(len(nodes)) {
			break
		}
		nodeIdx = next
	}

	errs.Add(cluster.ErrorTreeWalkFailed, cluster.PriorityRule)
	return codes.ErrorGHM, 0
}

func executeTest(agg *cluster.Aggregate, node tables.GHMNode, severity int, errs *cluster.ErrorSet) (int, bool) {
	p1, p2 := int(node.Param1), int(node.Param2)

	switch node.Function {
	case 1:
		if agg.MainDiagInfo == nil {
			return 0, true
		}
		return boolResult(testAttrBit(agg.MainDiagInfo, agg.Stay.Sex, p1, p2)), true

	case 2:
		if agg.LinkedDiagInfo == nil {
			return 0, true
		}
		return boolResult(testAttrBit(agg.LinkedDiagInfo, agg.Stay.Sex, p1, p2)), true

	case 3:
		for _, info := range agg.Diagnoses {
			if testAttrBit(info, agg.Stay.Sex, p1, p2) {
				return 1, true
			}
		}
		return 0, true

	case 4:
		for _, info := range agg.Procedures {
			if p1 < len(info.Attributes) && info.Attributes[p1]&byte(p2) != 0 {
				return 1, true
			}
		}
		return 0, true

	case 5:
		return boolResult(agg.Duration >= p1), true

	case 6:
		return boolResult(agg.Duration == p1), true

	case 7:
		return boolResult(agg.Age >= p1), true

	case 8:
		return boolResult(agg.AgeDays >= p1), true

	case 9:
		switch agg.Stay.Sex {
		case 'M':
			return 0, true
		case 'F':
			return 1, true
		default:
			errs.Add(cluster.ErrorSexMissing, cluster.PriorityParse)
			return 0, false
		}

	case 10:
		return boolResult(int(agg.Stay.SessionCount) >= p1), true

	case 11:
		return boolResult(agg.Stay.Entry.Mode == byte(p1)), true

	case 13:
		return boolResult(agg.Stay.Exit.Mode == byte(p1)), true

	case 14:
		v, ok := tables.LookupCell(agg.Index.GNNCells,
			int(agg.Stay.NewbornWeight), int(agg.Stay.GestationalAge))
		if !ok {
			return 0, true
		}
		return v, true

	case 15, 16:
		if p1 < 0 || p1 >= len(agg.Index.CMACells) {
			return 0, false
		}
		row := agg.Age
		if node.Function == 16 {
			row = agg.Duration
		}
		v, ok := tables.LookupCell(agg.Index.CMACells[p1], row, severity)
		if !ok {
			return 0, true
		}
		return v, true

	case 17:
		return boolResult(agg.HasChildbirth()), true

	case 18:
		return boolResult(agg.Flags&cluster.ChildbirthType != 0), true

	case 19:
		return boolResult(agg.Stay.Confirmed()), true

	default:
		return 0, false
	}
}

func boolResult(b bool) int {
	if b {
		return 1
	}
	return 0
}

func testAttrBit(info *tables.DiagnosisInfo, sex byte, byteIdx, mask int) bool {
	attrs := info.AttributesFor(sex)
	return byteIdx < len(attrs) && attrs[byteIdx]&byte(mask) != 0
}

// cmaSeverity derives the cluster's co-morbidity severity level: the
// highest associated-diagnosis severity not excluded by the main
// diagnosis's CMA exclusion set.
func cmaSeverity(agg *cluster.Aggregate) int {
	severity := 0
	for _, info := range agg.Diagnoses {
		s := int(info.Severity)
		if s > severity && !agg.Index.ExcludesCMA(agg.MainDiagInfo, info) {
			severity = s
		}
	}
	return severity
}
