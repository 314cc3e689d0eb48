// Package codes defines the fixed-width code types used throughout the
// classifier: diagnosis, procedure, GHM, GHM root, GHS and care-unit codes.
// Every type is a small comparable value (safe to use directly as a map
// key) with a total IsValid method and a canonical textual form.
package codes

import "fmt"

// ErrInvalidCode is returned by every Parse function on malformed input.
type ErrInvalidCode struct {
	Kind  string
	Input string
}

func (e *ErrInvalidCode) Error() string {
	return fmt.Sprintf("codes: invalid %s %q", e.Kind, e.Input)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isUpperAlpha(b byte) bool { return b >= 'A' && b <= 'Z' }

func isAlnum(b byte) bool { return isDigit(b) || isUpperAlpha(b) }
