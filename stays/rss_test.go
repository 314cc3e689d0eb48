package stays

import (
	"fmt"
	"strings"
	"testing"

	"mco/codes"
	"mco/tables"
)

// rumLine builds one fixed-column RUM line with sane defaults.
type rumLine struct {
	version   string
	adminID   int
	billID    int
	sex       byte
	birthdate string
	entryDate string
	entryMode byte
	exitDate  string
	exitMode  byte
	unit      int
	sessions  int
	igs2      int
	confirmed bool
	mainDiag  string
	linked    string
	others    []string
	procs     []string // pre-formatted 20-char procedure zones
}

func (l rumLine) String() string {
	var sb strings.Builder

	version := l.version
	if version == "" {
		version = "018"
	}
	sb.WriteString(version)
	fmt.Fprintf(&sb, "%9d%9d", l.adminID, l.billID)
	sb.WriteByte(l.sex)
	sb.WriteString(l.birthdate)
	sb.WriteString(l.entryDate)
	sb.WriteByte(l.entryMode)
	sb.WriteByte(' ') // origin
	sb.WriteString(l.exitDate)
	sb.WriteByte(l.exitMode)
	sb.WriteByte(' ') // destination
	fmt.Fprintf(&sb, "%4d", l.unit)
	sb.WriteString("  ") // bed authorization
	fmt.Fprintf(&sb, "%2d%3d", l.sessions, l.igs2)
	sb.WriteString(strings.Repeat(" ", 8+2+4)) // LMP, gestational age, weight
	if l.confirmed {
		sb.WriteByte('1')
	} else {
		sb.WriteByte(' ')
	}
	fmt.Fprintf(&sb, "%2d%2d", len(l.others), len(l.procs))
	fmt.Fprintf(&sb, "%-8s%-8s", l.mainDiag, l.linked)
	for _, d := range l.others {
		fmt.Fprintf(&sb, "%-8s", d)
	}
	for _, p := range l.procs {
		sb.WriteString(p)
	}
	return sb.String()
}

func defaultRUMLine() rumLine {
	return rumLine{
		adminID:   1001,
		billID:    500001,
		sex:       '2',
		birthdate: "15051968",
		entryDate: "01032024",
		entryMode: '8',
		exitDate:  "05032024",
		exitMode:  '8',
		unit:      101,
		igs2:      22,
		mainDiag:  "J181",
	}
}

func TestLoadRSS(t *testing.T) {
	line := defaultRUMLine()
	line.others = []string{"E119", "I10"}
	line.procs = []string{"02032024GLLD01501  2"}

	all, err := LoadRSS(strings.NewReader(line.String() + "\n"))
	if err != nil {
		t.Fatalf("LoadRSS: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d stays, want 1", len(all))
	}

	s := all[0]
	if s.ErrorMask != 0 {
		t.Fatalf("unexpected error mask %#x", s.ErrorMask)
	}
	if s.AdminID != 1001 || s.BillID != 500001 {
		t.Errorf("got ids (%d, %d)", s.AdminID, s.BillID)
	}
	if s.Sex != 'F' {
		t.Errorf("got sex %c, want F", s.Sex)
	}
	if want := (tables.Date{Year: 2024, Month: 3, Day: 1}); s.Entry.Date != want {
		t.Errorf("got entry date %s", s.Entry.Date)
	}
	if s.Duration() != 4 {
		t.Errorf("got duration %d, want 4", s.Duration())
	}
	if s.Unit != codes.Unit(101) {
		t.Errorf("got unit %s", s.Unit)
	}
	if s.MainDiagnosis.String() != "J181" {
		t.Errorf("got main diagnosis %q", s.MainDiagnosis)
	}
	if len(s.OtherDiagnoses) != 2 || s.OtherDiagnoses[1].String() != "I10" {
		t.Errorf("got other diagnoses %v", s.OtherDiagnoses)
	}
	if len(s.Procedures) != 1 {
		t.Fatalf("got %d procedures", len(s.Procedures))
	}
	p := s.Procedures[0]
	if p.Code.String() != "GLLD015" || p.Activities != 1 || p.Count != 2 {
		t.Errorf("got procedure %+v", p)
	}
}

func TestLoadRSSFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*rumLine)
		bits   uint32
	}{
		{"bad sex", func(l *rumLine) { l.sex = 'X' }, ErrMalformedSex},
		{"bad birthdate", func(l *rumLine) { l.birthdate = "31131968" }, ErrMalformedBirthdate},
		{"bad entry date", func(l *rumLine) { l.entryDate = "xx032024" }, ErrMalformedEntryDate},
		{"bad main diagnosis", func(l *rumLine) { l.mainDiag = "??" }, ErrMalformedMainDiagnosis},
		{"unknown version", func(l *rumLine) { l.version = "015" }, ErrUnknownRumVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := defaultRUMLine()
			tt.mutate(&line)

			all, err := LoadRSS(strings.NewReader(line.String()))
			if err != nil {
				t.Fatalf("LoadRSS: %v", err)
			}
			if len(all) != 1 {
				t.Fatalf("got %d stays", len(all))
			}
			if !all[0].HasError(tt.bits) {
				t.Errorf("error mask %#x missing bit %#x", all[0].ErrorMask, tt.bits)
			}
		})
	}
}

func TestLoadRSSTruncated(t *testing.T) {
	all, err := LoadRSS(strings.NewReader("018 too short\n"))
	if err != nil {
		t.Fatalf("LoadRSS: %v", err)
	}
	if len(all) != 1 || !all[0].HasError(ErrTruncatedRecord) {
		t.Errorf("expected one truncated stay, got %+v", all)
	}
}

func TestLoadGRPCollectsTests(t *testing.T) {
	line := defaultRUMLine()
	grp := "04M051  0" + line.String()

	tests := make(map[int32]Test)
	all, err := LoadGRP(strings.NewReader(grp), tests)
	if err != nil {
		t.Fatalf("LoadGRP: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d stays", len(all))
	}

	test, ok := tests[500001]
	if !ok {
		t.Fatal("missing test entry for bill 500001")
	}
	if test.GHM.String() != "04M051" {
		t.Errorf("got test GHM %q", test.GHM)
	}
	if test.ClusterLen != 1 {
		t.Errorf("got cluster len %d", test.ClusterLen)
	}
}

func TestLoadRSA(t *testing.T) {
	// RSA: version + 9-digit index, then the RSS columns from sex onward
	rss := defaultRUMLine().String()
	rsa := rss[0:3] + rss[12:21] + rss[21:]

	all, err := LoadRSA(strings.NewReader(rsa))
	if err != nil {
		t.Fatalf("LoadRSA: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d stays", len(all))
	}
	if all[0].BillID != 500001 || all[0].AdminID != 500001 {
		t.Errorf("got ids (%d, %d)", all[0].AdminID, all[0].BillID)
	}
	if all[0].MainDiagnosis.String() != "J181" {
		t.Errorf("got main diagnosis %q", all[0].MainDiagnosis)
	}
}
