package tables

import (
	"encoding/binary"
	"testing"

	"mco/codes"
)

func TestParseGHMRootsTable(t *testing.T) {
	sec0 := make([]byte, ghmRootRecordSize)
	sec0[0] = 4   // CMD
	sec0[1] = 'C' // type
	sec0[2] = 1   // sequence
	sec0[3] = 70  // young severity limit
	sec0[4] = 'A' // young severity mode
	sec0[5] = 0   // old severity limit
	sec0[6] = 0   // old severity mode
	sec0[7] = 2   // confirm duration threshold
	sec0[8] = 1   // short duration threshold
	sec0[9] = 0x03 // flags: AllowAmbulatory | CMAExclusion
	sec0[10] = 1   // one childbirth diagnosis
	binary.BigEndian.PutUint32(sec0[11:15], 0)

	sec1 := make([]byte, 6)
	copy(sec1[0:3], "Z37")
	copy(sec1[3:6], "0\x00\x00")

	buf := buildTestTableHeader(t, "RGHMINFO", [][]byte{sec0, sec1})
	h, err := decodeTableHeader(buf, "test")
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	roots, err := parseGHMRootsTable(h, buf[tableHeaderSize:], "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(roots))
	}

	r := roots[0]
	wantRoot := codes.GHMRoot{CMD: 4, Type: 'C', Sequence: 1}
	if r.Root != wantRoot {
		t.Errorf("got %v, want %v", r.Root, wantRoot)
	}
	if r.YoungSeverityLimit != 70 || r.YoungSeverityMode != 'A' {
		t.Errorf("got young severity %d/%c", r.YoungSeverityLimit, r.YoungSeverityMode)
	}
	if !r.AllowAmbulatory || !r.CMAExclusion {
		t.Error("expected both flag bits set")
	}
	if len(r.ChildbirthList) != 1 {
		t.Fatalf("expected 1 childbirth diagnosis, got %d", len(r.ChildbirthList))
	}
	wantDiag, _ := codes.ParseDiagnosis("Z370")
	if r.ChildbirthList[0] != wantDiag {
		t.Errorf("got %v, want %v", r.ChildbirthList[0], wantDiag)
	}
}

func TestParseCellSection(t *testing.T) {
	rec := make([]byte, cellRecordSize)
	binary.BigEndian.PutUint32(rec[0:4], 0)  // MinRow
	binary.BigEndian.PutUint32(rec[4:8], 10) // MaxRow
	binary.BigEndian.PutUint32(rec[8:12], 0) // MinCol
	binary.BigEndian.PutUint32(rec[12:16], 5) // MaxCol
	binary.BigEndian.PutUint32(rec[16:20], 42) // Value

	h := tableHeader{SectionCount: 1}
	h.Sections[0] = sectionDescriptor{Offset: 0, Length: uint32(len(rec)), ValueCount: 1, ValueLen: uint32(len(rec))}

	cells, err := parseCellSection(h, rec, 0, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(cells))
	}
	v, ok := LookupCell(cells, 5, 3)
	if !ok || v != 42 {
		t.Errorf("got (%d, %v), want (42, true)", v, ok)
	}
	if _, ok := LookupCell(cells, 20, 3); ok {
		t.Error("expected no match outside row bounds")
	}
}
