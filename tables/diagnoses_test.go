package tables

import (
	"encoding/binary"
	"testing"

	"mco/codes"
)

func buildDiagnosesSections(t *testing.T) (sec0, sec1, sec2, sec3, sec4 []byte) {
	t.Helper()
	sec0 = make([]byte, diagRootLetters*diagRootNumbers*4)
	for i := range sec0 {
		sec0[i] = 0xFF // -1 as int32 everywhere by default
	}
	// slot for root "A00" (letter 0, number 0) points at record 0.
	binary.BigEndian.PutUint32(sec0[0:4], 0)

	// One diagnosis "A001", sex-different, severity 2, one warning bit,
	// pointing at exclusion set 0.
	sec1 = make([]byte, 16)
	copy(sec1[0:3], "1\x00\x00")
	binary.BigEndian.PutUint32(sec1[3:7], 0)  // attributes index
	binary.BigEndian.PutUint32(sec1[7:11], 0) // severity index
	sec1[11] = 0
	binary.BigEndian.PutUint32(sec1[12:16], 0) // exclusion set index

	sec2 = make([]byte, diagAttrWidth*2) // male block then female block
	sec2[0] = 0x01                       // bit 0 set (male attrs)
	sec2[diagAttrWidth] = 0x02            // bit 1 set (female attrs)

	sec3 = make([]byte, 3)
	sec3[0] = 0x01 | (2 << 1) // SexDifference=true, severity=2
	binary.BigEndian.PutUint16(sec3[1:3], 0x0004)

	sec4 = make([]byte, 64)
	return
}

func TestParseDiagnosesTable(t *testing.T) {
	sec0, sec1, sec2, sec3, sec4 := buildDiagnosesSections(t)
	buf := buildTestTableHeader(t, "DIAG10CR", [][]byte{sec0, sec1, sec2, sec3, sec4})
	h, err := decodeTableHeader(buf, "test")
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	body := buf[tableHeaderSize:]

	diags, excl, err := parseDiagnosesTable(h, body, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(excl) != 1 {
		t.Fatalf("expected 1 exclusion row, got %d", len(excl))
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnosis, got %d", len(diags))
	}

	d := diags[0]
	want, _ := codes.ParseDiagnosis("A001")
	if d.Diagnosis != want {
		t.Errorf("got %v, want %v", d.Diagnosis, want)
	}
	if !d.SexDifference {
		t.Error("expected SexDifference")
	}
	if d.Severity != 2 {
		t.Errorf("got severity %d, want 2", d.Severity)
	}
	if d.Warnings != 4 {
		t.Errorf("got warnings %d, want 4", d.Warnings)
	}
	if !d.TestBit('M', 0) {
		t.Error("expected male bit 0 set")
	}
	if d.TestBit('M', 1) {
		t.Error("did not expect male bit 1 set")
	}
	if !d.TestBit('F', 1) {
		t.Error("expected female bit 1 set")
	}
	if d.CMAExclusionSet != 0 {
		t.Errorf("got exclusion set %d, want 0", d.CMAExclusionSet)
	}
}
