package tables

import (
	"encoding/binary"
	"fmt"

	"mco/codes"
)

// Diagnosis table (DIAG10CR) wire layout:
//
//	section 0: a 26×100 root index. Slot (letter-0..25, number-0..99)
//	           holds the int32 start offset into section 1 of the run of
//	           diagnoses sharing that three-character root, or -1 if none.
//	           Runs are contiguous and sorted by root, so a run's end is
//	           the next populated slot's start (or len(section1)).
//	section 1: one 16-byte record per diagnosis: 3-byte extension chars
//	           ("code456"), a uint32 index into section 2 (attributes),
//	           a uint32 index into section 3 (severity+warnings), and a
//	           uint8 CMA-exclusion-bit index plus a uint32 index into
//	           section 4 (the exclusion-set row).
//	section 2: 37-byte capability bit-fields. A diagnosis whose
//	           SexDifference flag (the low bit of its section 3 byte) is
//	           set occupies two consecutive blocks (male, then female);
//	           otherwise one block, shared by both sexes.
//	section 3: 3-byte records: 1 flag byte (bit 0 = SexDifference, bits
//	           1-2 = severity level) + a uint16 warnings bitmap.
//	section 4: exclusion bit-matrix rows, one row per CMA exclusion set.

const (
	diagRootLetters = 26
	diagRootNumbers = 100
	diagAttrWidth   = 37
)

func parseDiagnosesTable(h tableHeader, body []byte, source string) ([]DiagnosisInfo, [][]byte, error) {
	sec1, err := sectionBytes(h, body, 1, source)
	if err != nil {
		return nil, nil, err
	}
	sec2, err := sectionBytes(h, body, 2, source)
	if err != nil {
		return nil, nil, err
	}
	sec3, err := sectionBytes(h, body, 3, source)
	if err != nil {
		return nil, nil, err
	}
	sec4, err := sectionBytes(h, body, 4, source)
	if err != nil {
		return nil, nil, err
	}

	const rec1 = 16
	if len(sec1)%rec1 != 0 {
		return nil, nil, &ErrInvalidTable{source, "diagnosis section 1 record size mismatch"}
	}
	const rec3 = 3
	if len(sec3)%rec3 != 0 {
		return nil, nil, &ErrInvalidTable{source, "diagnosis section 3 record size mismatch"}
	}

	sec0, err := sectionBytes(h, body, 0, source)
	if err != nil {
		return nil, nil, err
	}
	if len(sec0) != diagRootLetters*diagRootNumbers*4 {
		return nil, nil, &ErrInvalidTable{source, "diagnosis root index wrong size"}
	}

	exclusions := make([][]byte, 0)
	const exclRowWidth = 64
	if len(sec4)%exclRowWidth != 0 {
		return nil, nil, &ErrInvalidTable{source, "diagnosis exclusion section size mismatch"}
	}
	for off := 0; off < len(sec4); off += exclRowWidth {
		row := make([]byte, exclRowWidth)
		copy(row, sec4[off:off+exclRowWidth])
		exclusions = append(exclusions, row)
	}

	nRecords := len(sec1) / rec1
	out := make([]DiagnosisInfo, 0, nRecords)

	for letter := 0; letter < diagRootLetters; letter++ {
		for num := 0; num < diagRootNumbers; num++ {
			slot := letter*diagRootNumbers + num
			start := int32(binary.BigEndian.Uint32(sec0[slot*4 : slot*4+4]))
			if start < 0 {
				continue
			}
			end := nextRunEnd(sec0, slot, nRecords)
			root := fmt.Sprintf("%c%02d", 'A'+letter, num)
			for i := int(start); i < end; i++ {
				off := i * rec1
				ext := trimExtension(sec1[off : off+3])
				diag, err := codes.ParseDiagnosis(root + ext)
				if err != nil {
					continue // malformed extension: skip this entry, not the whole table
				}
				sec2Idx := binary.BigEndian.Uint32(sec1[off+3 : off+7])
				sec3Idx := binary.BigEndian.Uint32(sec1[off+7 : off+11])
				exclBit := sec1[off+11]
				sec4Idx := int32(binary.BigEndian.Uint32(sec1[off+12 : off+16]))

				info := DiagnosisInfo{Diagnosis: diag, CMAExclusionSet: -1, CMAExclusionBit: exclBit}
				if int(sec2Idx)*diagAttrWidth+diagAttrWidth <= len(sec2) {
					copy(info.Attributes[:], sec2[int(sec2Idx)*diagAttrWidth:])
				}
				if int(sec3Idx)*rec3+rec3 <= len(sec3) {
					flags := sec3[int(sec3Idx)*rec3]
					info.SexDifference = flags&1 != 0
					info.Severity = Severity((flags >> 1) & 0x3)
					info.Warnings = binary.BigEndian.Uint16(sec3[int(sec3Idx)*rec3+1 : int(sec3Idx)*rec3+3])
				}
				if info.SexDifference {
					femaleOff := (int(sec2Idx) + 1) * diagAttrWidth
					if femaleOff+diagAttrWidth <= len(sec2) {
						copy(info.AttributesF[:], sec2[femaleOff:])
					}
				}
				if sec4Idx >= 0 && int(sec4Idx) < len(exclusions) {
					info.CMAExclusionSet = int(sec4Idx)
				}

				out = append(out, info)
			}
		}
	}

	return out, exclusions, nil
}

// nextRunEnd finds the next populated root-index slot after slot and
// returns its start offset, or fallback if none follow.
func nextRunEnd(sec0 []byte, slot, fallback int) int {
	for s := slot + 1; s < diagRootLetters*diagRootNumbers; s++ {
		v := int32(binary.BigEndian.Uint32(sec0[s*4 : s*4+4]))
		if v >= 0 {
			return int(v)
		}
	}
	return fallback
}

func trimExtension(b []byte) string {
	end := 0
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[:end])
}
