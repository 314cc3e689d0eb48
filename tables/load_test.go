package tables

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"mco/codes"
)

// buildTestFile assembles a minimal, self-consistent .tab file containing
// one of each required sub-table, all sharing the same validity window.
func buildTestFile(t *testing.T, from, to Date) []byte {
	t.Helper()

	ghmTreeSec0 := make([]byte, 6)
	ghmTreeSec0[0] = LeafFunction
	ghmTreeSec0[1] = 4
	ghmTreeSec0[2] = 'C'
	binary.BigEndian.PutUint16(ghmTreeSec0[3:5], uint16(1)<<8|uint16('1'))
	ghmTreeSec0[5] = 0
	ghmTreeBuf := buildTestTableHeader(t, TypeGHMTree, [][]byte{ghmTreeSec0})

	diagSec0, diagSec1, diagSec2, diagSec3, diagSec4 := buildDiagnosesSections(t)
	diagBuf := buildTestTableHeader(t, TypeDiagnoses, [][]byte{diagSec0, diagSec1, diagSec2, diagSec3, diagSec4})

	procRec := make([]byte, procRecordSize)
	copy(procRec[0:7], "JDQD002")
	procBuf := buildTestTableHeader(t, TypeProcedures, [][]byte{procRec})

	rootRec := make([]byte, ghmRootRecordSize)
	rootRec[0], rootRec[1], rootRec[2] = 4, 'C', 1
	rootBuf := buildTestTableHeader(t, TypeGHMRoots, [][]byte{rootRec, {}})

	ghsRec := make([]byte, ghsAccessRecordSize)
	ghsRec[0], ghsRec[1], ghsRec[2], ghsRec[3] = 4, 'C', 1, '1'
	binary.BigEndian.PutUint16(ghsRec[9:11], 1001)
	binary.BigEndian.PutUint16(ghsRec[11:13], 1002)
	ghsBuf := buildTestTableHeader(t, TypeGHS, [][]byte{ghsRec})

	authRec := make([]byte, authRecordSize)
	authRec[0] = 1
	binary.BigEndian.PutUint16(authRec[1:3], 9)
	authRec[3] = 1
	authBuf := buildTestTableHeader(t, TypeAuthorizations, [][]byte{authRec})

	tableBufs := [][]byte{ghmTreeBuf, diagBuf, procBuf, rootBuf, ghsBuf, authBuf}

	fromWire, err := EncodeWireDate(from)
	if err != nil {
		t.Fatalf("encode from: %v", err)
	}
	toWire, err := EncodeWireDate(to)
	if err != nil {
		t.Fatalf("encode to: %v", err)
	}

	fh := fileHeader{TableCount: uint16(len(tableBufs))}
	copy(fh.Magic[:], "ATIHTAB ")
	file := encodeFileHeader(fh)

	pointersOff := len(file)
	file = append(file, make([]byte, len(tableBufs)*tablePointerSize)...)

	var body []byte
	bodyBase := pointersOff + len(tableBufs)*tablePointerSize
	for i, tb := range tableBufs {
		ptr := tablePointer{
			LimitFrom: fromWire,
			LimitTo:   toWire,
			Offset:    uint32(bodyBase + len(body)),
			Length:    uint32(len(tb)),
		}
		copy(file[pointersOff+i*tablePointerSize:], encodeTablePointer(ptr))
		body = append(body, tb...)
	}
	file = append(file, body...)
	return file
}

func TestLoadAndFind(t *testing.T) {
	from := Date{Year: 2024, Month: 1, Day: 1}
	to := Date{Year: 2025, Month: 1, Day: 1}
	raw := buildTestFile(t, from, to)

	dir := t.TempDir()
	path := filepath.Join(dir, "generation.tab")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ts := NewTableSet()
	if err := Load(ts, []string{path}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ts.Indexes) != 1 {
		t.Fatalf("expected 1 index, got %d", len(ts.Indexes))
	}

	mid := Date{Year: 2024, Month: 6, Day: 1}
	idx := ts.Find(mid)
	if idx == nil {
		t.Fatal("expected an index covering the mid-point date")
	}
	if idx.GHMTree == nil || len(idx.GHMTree.Nodes) != 1 {
		t.Fatal("expected GHM tree with 1 node")
	}
	if _, ok := idx.Diagnosis(mustDiag(t, "A001")); !ok {
		t.Error("expected diagnosis A001 present")
	}
	if _, ok := idx.Procedure(mustProc(t, "JDQD002")); !ok {
		t.Error("expected procedure JDQD002 present")
	}
	root := codes.GHMRoot{CMD: 4, Type: 'C', Sequence: 1}
	if _, ok := idx.RootInfo(root); !ok {
		t.Error("expected GHM root present")
	}
	ghm := codes.GHM{GHMRoot: root, Mode: '1'}
	if len(idx.GHSAccessFor(ghm)) != 1 {
		t.Error("expected 1 GHS access chunk for this GHM")
	}

	if got := ts.Find(Date{Year: 2026, Month: 1, Day: 1}); got != nil {
		t.Error("expected no index covering a date outside the loaded window")
	}
}

func TestLoadDuplicateRejected(t *testing.T) {
	raw := buildTestFile(t, Date{Year: 2024, Month: 1, Day: 1}, Date{Year: 2025, Month: 1, Day: 1})
	dir := t.TempDir()
	path := filepath.Join(dir, "generation.tab")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ts := NewTableSet()
	if err := Load(ts, []string{path}); err != nil {
		t.Fatalf("first load: %v", err)
	}
	err := Load(ts, []string{path})
	if err == nil {
		t.Fatal("expected duplicate-load error")
	}
	if _, ok := err.(*ErrDuplicateTable); !ok {
		t.Errorf("got error type %T, want *ErrDuplicateTable", err)
	}
}

func mustDiag(t *testing.T, s string) codes.Diagnosis {
	t.Helper()
	d, err := codes.ParseDiagnosis(s)
	if err != nil {
		t.Fatalf("parse diagnosis %q: %v", s, err)
	}
	return d
}

func mustProc(t *testing.T, s string) codes.Procedure {
	t.Helper()
	p, err := codes.ParseProcedure(s)
	if err != nil {
		t.Fatalf("parse procedure %q: %v", s, err)
	}
	return p
}
