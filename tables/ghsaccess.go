package tables

import (
	"encoding/binary"

	"mco/codes"
)

// GHS-access table (GHSINFO) wire layout: one fixed-width record per
// access chunk in section 0, evaluated in file order.
//
//	1 byte  CMD
//	1 byte  type letter
//	1 byte  sequence
//	1 byte  mode letter (0 = any mode, i.e. a root-level pattern)
//	1 byte  procedure-mask count (0..maxProcMasks)
//	1 byte  min duration
//	1 byte  min age (years)
//	1 byte  unit authorization constraint (0 = none)
//	1 byte  bed authorization constraint (0 = none)
//	2 bytes GHS number, public sector
//	2 bytes GHS number, private sector
//	8 bytes main-diagnosis mask (all zero = no constraint)
//	8 bytes diagnosis mask (all zero = no constraint)
//	32 bytes procedure masks (4 × 8 bytes, only the first count used)
const (
	maskWidth           = 8
	maxProcMasks        = 4
	ghsAccessRecordSize = 1 + 1 + 1 + 1 + 1 + 1 + 1 + 1 + 1 + 2 + 2 + maskWidth + maskWidth + maxProcMasks*maskWidth
)

func parseGHSAccessTable(h tableHeader, body []byte, source string) ([]GHSAccessChunk, error) {
	sec0, err := sectionBytes(h, body, 0, source)
	if err != nil {
		return nil, err
	}
	if len(sec0)%ghsAccessRecordSize != 0 {
		return nil, &ErrInvalidTable{source, "GHS access section record size mismatch"}
	}

	n := len(sec0) / ghsAccessRecordSize
	out := make([]GHSAccessChunk, 0, n)
	for i := 0; i < n; i++ {
		off := i * ghsAccessRecordSize
		rec := sec0[off : off+ghsAccessRecordSize]

		cmd, typ, seq, mode := rec[0], rec[1], rec[2], rec[3]
		procCount := int(rec[4])
		if procCount > maxProcMasks {
			procCount = maxProcMasks
		}

		chunk := GHSAccessChunk{
			MinDuration: int(rec[5]),
			MinAge:      int(rec[6]),
			UnitAuth:    rec[7],
			BedAuth:     rec[8],
			GHSPublic:   codes.GHS(binary.BigEndian.Uint16(rec[9:11])),
			GHSPrivate:  codes.GHS(binary.BigEndian.Uint16(rec[11:13])),
		}
		if mode == 0 {
			chunk.GHMRoot = codes.GHMRoot{CMD: cmd, Type: typ, Sequence: seq}
		} else {
			chunk.GHM = codes.GHM{GHMRoot: codes.GHMRoot{CMD: cmd, Type: typ, Sequence: seq}, Mode: mode}
		}

		mainOff := 13
		diagOff := mainOff + maskWidth
		procOff := diagOff + maskWidth

		if !allZero(rec[mainOff : mainOff+maskWidth]) {
			chunk.MainDiagnosisMask = append([]byte(nil), rec[mainOff:mainOff+maskWidth]...)
		}
		if !allZero(rec[diagOff : diagOff+maskWidth]) {
			chunk.DiagnosisMask = append([]byte(nil), rec[diagOff:diagOff+maskWidth]...)
		}
		for k := 0; k < procCount; k++ {
			o := procOff + k*maskWidth
			chunk.ProcedureMasks = append(chunk.ProcedureMasks, append([]byte(nil), rec[o:o+maskWidth]...))
		}

		out = append(out, chunk)
	}
	return out, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
