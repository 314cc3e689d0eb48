package codes

import "fmt"

// ErrorCMD is the "CMD 90" category reserved for classification errors.
const ErrorCMD = 90

var validGHMTypes = [...]byte{'C', 'H', 'K', 'M', 'Z'}

var validGHMModes = [...]byte{'A', 'B', 'C', 'D', 'E', 'J', 'Z', 'T', '1', '2', '3', '4'}

func isValidGHMType(b byte) bool {
	for _, v := range validGHMTypes {
		if v == b {
			return true
		}
	}
	return false
}

func isValidGHMMode(b byte) bool {
	for _, v := range validGHMModes {
		if v == b {
			return true
		}
	}
	return false
}

// GHMRoot is a GHM with its mode letter removed: CMD + type + sequence.
type GHMRoot struct {
	CMD      uint8
	Type     byte
	Sequence uint8
}

// IsValid reports whether r carries a well-formed CMD/type/sequence triple.
func (r GHMRoot) IsValid() bool {
	return (r.CMD >= 1 && r.CMD <= 28 || r.CMD == ErrorCMD) && isValidGHMType(r.Type)
}

// ParseGHMRoot parses the canonical "CMDtSS" textual form.
func ParseGHMRoot(s string) (GHMRoot, error) {
	var r GHMRoot
	if len(s) != 5 {
		return r, &ErrInvalidCode{"GHM root", s}
	}
	var cmd, seq int
	for i := 0; i < 2; i++ {
		if !isDigit(s[i]) {
			return r, &ErrInvalidCode{"GHM root", s}
		}
		cmd = cmd*10 + int(s[i]-'0')
	}
	if !isValidGHMType(s[2]) {
		return r, &ErrInvalidCode{"GHM root", s}
	}
	for i := 3; i < 5; i++ {
		if !isDigit(s[i]) {
			return r, &ErrInvalidCode{"GHM root", s}
		}
		seq = seq*10 + int(s[i]-'0')
	}
	r.CMD = uint8(cmd)
	r.Type = s[2]
	r.Sequence = uint8(seq)
	if !r.IsValid() {
		return r, &ErrInvalidCode{"GHM root", s}
	}
	return r, nil
}

func (r GHMRoot) String() string {
	if !r.IsValid() {
		return ""
	}
	return fmt.Sprintf("%02d%c%02d", r.CMD, r.Type, r.Sequence)
}

// GHM (Groupe Homogène de Malades) is the diagnosis-related group code:
// CMD, type letter, two-digit sequence, mode letter. Canonical textual
// form is "CMDtSSm", e.g. "04M051".
type GHM struct {
	GHMRoot
	Mode byte
}

// ParseGHM parses the canonical "CMDtSSm" textual form.
func ParseGHM(s string) (GHM, error) {
	var g GHM
	if len(s) != 6 {
		return g, &ErrInvalidCode{"GHM", s}
	}
	var cmd int
	for i := 0; i < 2; i++ {
		if !isDigit(s[i]) {
			return g, &ErrInvalidCode{"GHM", s}
		}
		cmd = cmd*10 + int(s[i]-'0')
	}
	typ := s[2]
	if !isValidGHMType(typ) {
		return g, &ErrInvalidCode{"GHM", s}
	}
	var seq int
	for i := 3; i < 5; i++ {
		if !isDigit(s[i]) {
			return g, &ErrInvalidCode{"GHM", s}
		}
		seq = seq*10 + int(s[i]-'0')
	}
	mode := s[5]
	if !isValidGHMMode(mode) {
		return g, &ErrInvalidCode{"GHM", s}
	}
	g.CMD = uint8(cmd)
	g.Type = typ
	g.Sequence = uint8(seq)
	g.Mode = mode
	if !g.GHMRoot.IsValid() {
		return g, &ErrInvalidCode{"GHM", s}
	}
	return g, nil
}

// IsValid reports whether g carries a well-formed code.
func (g GHM) IsValid() bool {
	return g.GHMRoot.IsValid() && isValidGHMMode(g.Mode)
}

// IsError reports whether g belongs to the CMD-90 error category.
func (g GHM) IsError() bool {
	return g.CMD == ErrorCMD
}

func (g GHM) String() string {
	if !g.IsValid() {
		return ""
	}
	return fmt.Sprintf("%02d%c%02d%c", g.CMD, g.Type, g.Sequence, g.Mode)
}

// Root returns the GHM with its mode letter stripped.
func (g GHM) Root() GHMRoot {
	return g.GHMRoot
}

// ErrorGHM is the sentinel GHM assigned to clusters that fail
// classification with no more specific error GHM available.
var ErrorGHM = GHM{GHMRoot: GHMRoot{CMD: ErrorCMD, Type: 'Z', Sequence: 0}, Mode: 'Z'}
