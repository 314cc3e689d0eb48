// Package stays defines the in-memory Stay (RUM) record and its three
// import paths: the packed binary round-trip codec, the RSS/GRP
// fixed-column textual format, and the one-line RSA format.
package stays

import (
	"mco/codes"
	"mco/tables"
)

// Error bits recorded in Stay.ErrorMask by the textual importers when a
// field could not be parsed. Classification continues regardless; the
// aggregator later turns these into numbered classification errors.
const (
	ErrUnknownRumVersion uint32 = 1 << iota
	ErrMalformedBillID
	ErrMalformedBirthdate
	ErrMalformedSex
	ErrMalformedEntryDate
	ErrMalformedEntryMode
	ErrMalformedEntryOrigin
	ErrMalformedExitDate
	ErrMalformedExitMode
	ErrMalformedExitDestination
	ErrMalformedSessionCount
	ErrMalformedGestationalAge
	ErrMalformedNewbornWeight
	ErrMalformedLastMenstrualPeriod
	ErrMalformedIGS2
	ErrMalformedMainDiagnosis
	ErrMalformedLinkedDiagnosis
	ErrMissingOtherDiagnosesCount
	ErrMalformedOtherDiagnosis
	ErrMissingProceduresCount
	ErrMalformedProcedureCode
	ErrMalformedUnit
	ErrTruncatedRecord
)

// EntryInfo is the admission side of a stay.
type EntryInfo struct {
	Date   tables.Date
	Mode   byte
	Origin byte
}

// ExitInfo is the discharge side of a stay.
type ExitInfo struct {
	Date        tables.Date
	Mode        byte
	Destination byte
}

// Exit/entry modes the cluster cut rule cares about: death, and the two
// same-facility transfer modes that continue a hospitalization.
const (
	ExitModeDeath        = '9'
	TransferModeMutation = '6'
	TransferModeTransfer = '7'
)

// ConfirmedFlag marks a stay whose short-duration GHM was explicitly
// confirmed by the physician (RSS confirmation flag).
const ConfirmedFlag uint16 = 1 << 0

// ProcedureRealisation is one performed procedure within a stay.
type ProcedureRealisation struct {
	Code       codes.Procedure
	Phase      uint8
	Activities uint8
	Count      int16
	Date       tables.Date
}

// Stay is one RUM: the smallest administrative/clinical unit the
// classifier reads. Stays sharing a BillID and presented in admission
// order form a cluster.
type Stay struct {
	AdminID int32
	BillID  int32

	Sex       byte // 'M' or 'F', 0 when missing
	Birthdate tables.Date

	Entry EntryInfo
	Exit  ExitInfo

	Unit         codes.Unit
	BedAuth      uint8
	SessionCount int16
	IGS2         int16
	Flags        uint16

	LastMenstrualPeriod tables.Date
	GestationalAge      int16 // weeks
	NewbornWeight       int16 // grams

	MainDiagnosis   codes.Diagnosis
	LinkedDiagnosis codes.Diagnosis
	OtherDiagnoses  []codes.Diagnosis
	Procedures      []ProcedureRealisation

	ErrorMask uint32
}

// HasError reports whether any of the given bits are set in ErrorMask.
func (s Stay) HasError(bits uint32) bool {
	return s.ErrorMask&bits != 0
}

// Confirmed reports whether the RSS confirmation flag is set.
func (s Stay) Confirmed() bool {
	return s.Flags&ConfirmedFlag != 0
}

// Duration returns the number of nights between entry and exit.
func (s Stay) Duration() int {
	return s.Exit.Date.Sub(s.Entry.Date)
}

// IsTransferContinuation reports whether mode is one of the two transfer
// modes ('6' mutation, '7' transfer) that can continue a hospitalization
// when the partner record is from the same facility.
func IsTransferContinuation(mode byte) bool {
	return mode == TransferModeMutation || mode == TransferModeTransfer
}

// Test carries the expected classification for one bill id, read from a
// GRP grouping prefix or a GenRSA side-car, and checked by the CLI's
// self-test mode.
type Test struct {
	BillID     int32
	ClusterLen int
	GHM        codes.GHM
	Error      int16
	GHS        codes.GHS
}
