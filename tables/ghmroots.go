package tables

import (
	"encoding/binary"

	"mco/codes"
)

// GHM root table (RGHMINFO) wire layout:
//
//	section 0: one 15-byte record per root: CMD, type, sequence, young/old
//	           severity limit+mode, confirm-duration threshold,
//	           short-duration threshold, a flag byte (bit 0 =
//	           AllowAmbulatory, bit 1 = CMAExclusion), a childbirth-list
//	           entry count, and a uint32 offset into section 1.
//	section 1: flat array of 6-byte diagnosis codes (3-byte root + 3-byte
//	           extension, NUL-padded), referenced by the section 0 offset.
const ghmRootRecordSize = 11 + 4

func parseGHMRootsTable(h tableHeader, body []byte, source string) ([]GHMRootInfo, error) {
	sec0, err := sectionBytes(h, body, 0, source)
	if err != nil {
		return nil, err
	}
	sec1, err := sectionBytes(h, body, 1, source)
	if err != nil {
		return nil, err
	}
	if len(sec0)%ghmRootRecordSize != 0 {
		return nil, &ErrInvalidTable{source, "GHM root section record size mismatch"}
	}
	if len(sec1)%6 != 0 {
		return nil, &ErrInvalidTable{source, "GHM root childbirth list record size mismatch"}
	}

	n := len(sec0) / ghmRootRecordSize
	out := make([]GHMRootInfo, 0, n)
	for i := 0; i < n; i++ {
		off := i * ghmRootRecordSize
		rec := sec0[off : off+ghmRootRecordSize]

		flags := rec[9]
		count := int(rec[10])
		listOff := int(binary.BigEndian.Uint32(rec[11:15]))

		info := GHMRootInfo{
			Root: codes.GHMRoot{CMD: rec[0], Type: rec[1], Sequence: rec[2]},

			YoungSeverityLimit: int(rec[3]),
			YoungSeverityMode:  rec[4],
			OldSeverityLimit:   int(rec[5]),
			OldSeverityMode:    rec[6],

			ConfirmDurationThreshold: int(rec[7]),
			ShortDurationThreshold:   int(rec[8]),
			AllowAmbulatory:          flags&1 != 0,
			CMAExclusion:             flags&2 != 0,
		}

		for k := 0; k < count; k++ {
			eoff := (listOff + k) * 6
			if eoff+6 > len(sec1) {
				break
			}
			diag, err := codes.ParseDiagnosis(trimExtension(sec1[eoff : eoff+6]))
			if err != nil {
				continue
			}
			info.ChildbirthList = append(info.ChildbirthList, diag)
		}

		out = append(out, info)
	}
	return out, nil
}

// cellRecordSize is the width of one Cell wire record: four int32 bounds
// plus an int32 value, all big-endian.
const cellRecordSize = 5 * 4

// parseCellSection decodes a flat array of Cell records. The severity-rule
// cell tables (gnn_cells and the three cma_cells arrays) ride along as
// extra sections of the RGHMINFO table, one section index per array.
func parseCellSection(h tableHeader, body []byte, section int, source string) ([]Cell, error) {
	if section >= int(h.SectionCount) {
		return nil, nil
	}
	sec, err := sectionBytes(h, body, section, source)
	if err != nil {
		return nil, err
	}
	if len(sec)%cellRecordSize != 0 {
		return nil, &ErrInvalidTable{source, "cell section record size mismatch"}
	}
	n := len(sec) / cellRecordSize
	out := make([]Cell, n)
	for i := 0; i < n; i++ {
		off := i * cellRecordSize
		out[i] = Cell{
			MinRow: int(int32(binary.BigEndian.Uint32(sec[off : off+4]))),
			MaxRow: int(int32(binary.BigEndian.Uint32(sec[off+4 : off+8]))),
			MinCol: int(int32(binary.BigEndian.Uint32(sec[off+8 : off+12]))),
			MaxCol: int(int32(binary.BigEndian.Uint32(sec[off+12 : off+16]))),
			Value:  int(int32(binary.BigEndian.Uint32(sec[off+16 : off+20]))),
		}
	}
	return out, nil
}
