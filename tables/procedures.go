package tables

import (
	"encoding/binary"

	"mco/codes"
)

// Procedure table (CCAMCARA) wire layout: one fixed-width record per
// procedure-phase in section 0:
//
//	7 bytes  code
//	1 byte   phase
//	2 bytes  valid-from (wire date)
//	2 bytes  valid-to (wire date, 0 = open-ended)
//	55 bytes capability bit-field
//	1 byte   activity bitmap
const procRecordSize = 7 + 1 + 2 + 2 + 55 + 1

func parseProceduresTable(h tableHeader, body []byte, source string) ([]ProcedureInfo, error) {
	sec0, err := sectionBytes(h, body, 0, source)
	if err != nil {
		return nil, err
	}
	if len(sec0)%procRecordSize != 0 {
		return nil, &ErrInvalidTable{source, "procedure section record size mismatch"}
	}

	n := len(sec0) / procRecordSize
	out := make([]ProcedureInfo, 0, n)
	for i := 0; i < n; i++ {
		off := i * procRecordSize
		rec := sec0[off : off+procRecordSize]

		proc, err := codes.ParseProcedure(string(rec[0:7]))
		if err != nil {
			continue // skip malformed entries rather than failing the table
		}
		info := ProcedureInfo{
			Procedure:  proc,
			Phase:      rec[7],
			ValidFrom:  DecodeWireDate(binary.BigEndian.Uint16(rec[8:10])),
			ValidTo:    DecodeWireDate(binary.BigEndian.Uint16(rec[10:12])),
			Activities: rec[12+55],
		}
		copy(info.Attributes[:], rec[12:12+55])
		out = append(out, info)
	}
	return out, nil
}
