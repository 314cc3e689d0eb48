package tables

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// Table type tags recognised in the per-table header.
const (
	TypeGHMTree     = "ARBREDEC"
	TypeDiagnoses   = "DIAG10CR"
	TypeProcedures  = "CCAMCARA"
	TypeGHMRoots    = "RGHMINFO"
	TypeGHS         = "GHSINFO"
	TypeCombinations = "TABCOMBI"
	TypeAuthorizations = "AUTOREFS"
	TypeSourceActivity = "SRCDGACT"
)

const minVersion = "1110" // FG 11.10, the oldest supported generation

// ErrInvalidTable is returned by Load on any malformed binary table.
type ErrInvalidTable struct {
	Source string
	Reason string
}

func (e *ErrInvalidTable) Error() string {
	return fmt.Sprintf("tables: invalid table %s: %s", e.Source, e.Reason)
}

// fileHeader is the 24-byte header at the start of every .tab file: an
// 8-byte magic, a table count, and reserved padding.
type fileHeader struct {
	Magic      [8]byte
	TableCount uint16
}

const fileHeaderSize = 24

func decodeFileHeader(buf []byte, source string) (fileHeader, error) {
	var h fileHeader
	if len(buf) < fileHeaderSize {
		return h, &ErrInvalidTable{source, "file shorter than the 24-byte file header"}
	}
	copy(h.Magic[:], buf[0:8])
	if string(h.Magic[:]) != "ATIHTAB " {
		return h, &ErrInvalidTable{source, "bad magic"}
	}
	h.TableCount = binary.BigEndian.Uint16(buf[8:10])
	return h, nil
}

func encodeFileHeader(h fileHeader) []byte {
	buf := make([]byte, fileHeaderSize)
	copy(buf[0:8], h.Magic[:])
	binary.BigEndian.PutUint16(buf[8:10], h.TableCount)
	return buf
}

// tablePointer is one fixed-size record in the file-level table-pointer
// section: the validity interval (wire dates) and byte offset/length of
// one table's own header+sections within the file.
type tablePointer struct {
	LimitFrom uint16
	LimitTo   uint16
	Offset    uint32
	Length    uint32
}

const tablePointerSize = 12

func decodeTablePointer(buf []byte) tablePointer {
	return tablePointer{
		LimitFrom: binary.BigEndian.Uint16(buf[0:2]),
		LimitTo:   binary.BigEndian.Uint16(buf[2:4]),
		Offset:    binary.BigEndian.Uint32(buf[4:8]),
		Length:    binary.BigEndian.Uint32(buf[8:12]),
	}
}

func encodeTablePointer(p tablePointer) []byte {
	buf := make([]byte, tablePointerSize)
	binary.BigEndian.PutUint16(buf[0:2], p.LimitFrom)
	binary.BigEndian.PutUint16(buf[2:4], p.LimitTo)
	binary.BigEndian.PutUint32(buf[4:8], p.Offset)
	binary.BigEndian.PutUint32(buf[8:12], p.Length)
	return buf
}

// sectionDescriptor describes one typed array within a table: its byte
// offset (relative to the table header start), byte length, element
// count and per-element byte width.
type sectionDescriptor struct {
	Offset     uint32
	Length     uint32
	ValueCount uint32
	ValueLen   uint32
}

const sectionDescriptorSize = 16

// maxSections is the maximum number of sections a table header reserves
// room for.
const maxSections = 16

// tableHeader is the per-table header: type name, version, build date and
// up to maxSections section descriptors.
type tableHeader struct {
	Version      string
	BuildDate    Date
	TypeName     string
	SectionCount uint16
	Sections     [maxSections]sectionDescriptor
}

const tableHeaderFixedSize = 8 + 4 + 6 + 8 + 2 // magic+version+build date+type name+section count
const tableHeaderSize = tableHeaderFixedSize + maxSections*sectionDescriptorSize

var latin1Decoder = charmap.ISO8859_1.NewDecoder()

// decodeLatin1 decodes an ISO-8859-1 byte slice (ATIH table text
// predates UTF-8 adoption) into a UTF-8 Go string, trimming trailing NULs.
func decodeLatin1(buf []byte) string {
	end := len(buf)
	for end > 0 && buf[end-1] == 0 {
		end--
	}
	out, err := latin1Decoder.String(string(buf[:end]))
	if err != nil {
		// Fall back to the raw bytes rather than failing a whole table
		// load over one cosmetic label field.
		return string(buf[:end])
	}
	return out
}

func decodeTableHeader(buf []byte, source string) (tableHeader, error) {
	var h tableHeader
	if len(buf) < tableHeaderSize {
		return h, &ErrInvalidTable{source, "table shorter than its header"}
	}
	h.Version = decodeLatin1(buf[8:12])
	buildDDMMYY := buf[12:18]
	h.BuildDate = decodeDDMMYY(buildDDMMYY)
	h.TypeName = decodeLatin1(buf[18:26])
	h.SectionCount = binary.BigEndian.Uint16(buf[26:28])
	if h.SectionCount > maxSections {
		return h, &ErrInvalidTable{source, "section count exceeds maximum"}
	}
	if h.Version < minVersion {
		return h, &ErrInvalidTable{source, fmt.Sprintf("table version %s older than minimum %s", h.Version, minVersion)}
	}
	off := tableHeaderFixedSize
	for i := 0; i < maxSections; i++ {
		d := sectionDescriptor{
			Offset:     binary.BigEndian.Uint32(buf[off : off+4]),
			Length:     binary.BigEndian.Uint32(buf[off+4 : off+8]),
			ValueCount: binary.BigEndian.Uint32(buf[off+8 : off+12]),
			ValueLen:   binary.BigEndian.Uint32(buf[off+12 : off+16]),
		}
		h.Sections[i] = d
		off += sectionDescriptorSize
	}
	for i := 0; i < int(h.SectionCount); i++ {
		d := h.Sections[i]
		if d.Length != d.ValueCount*d.ValueLen {
			return h, &ErrInvalidTable{source, fmt.Sprintf("section %d length %d != %d*%d", i, d.Length, d.ValueCount, d.ValueLen)}
		}
	}
	return h, nil
}

func decodeDDMMYY(buf []byte) Date {
	s := string(buf)
	if len(s) != 6 {
		return Date{}
	}
	dd := int8(atoiFixed(s[0:2]))
	mm := int8(atoiFixed(s[2:4]))
	yy := atoiFixed(s[4:6])
	year := int16(2000 + yy)
	if yy > 79 {
		year = int16(1900 + yy)
	}
	return Date{Year: year, Month: mm, Day: dd}
}

func atoiFixed(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// sectionBytes returns the raw bytes for section i of a table whose body
// (after the header) is body.
func sectionBytes(h tableHeader, body []byte, i int, source string) ([]byte, error) {
	if i < 0 || i >= int(h.SectionCount) {
		return nil, &ErrInvalidTable{source, fmt.Sprintf("section %d out of range", i)}
	}
	d := h.Sections[i]
	start, end := int(d.Offset), int(d.Offset+d.Length)
	if start < 0 || end > len(body) || start > end {
		return nil, &ErrInvalidTable{source, fmt.Sprintf("section %d offset out of file", i)}
	}
	return body[start:end], nil
}
