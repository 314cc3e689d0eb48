package stays

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"mco/codes"
	"mco/tables"
)

// Packed binary (.dspak) layout, all integers big-endian:
//
//	file header: 8-byte magic, uint32 stay count
//	per stay:    58-byte fixed part (including the main and linked
//	             diagnosis codes), a 4-byte error mask, then nDiag 6-byte
//	             associated diagnosis codes, then nProc 13-byte procedure
//	             realisations
//
// Calendar dates are stored as (int16 year, int8 month, int8 day) rather
// than the reference tables' 16-bit epoch offsets: birthdates routinely
// predate the tables' 1979-12-31 epoch.
var packMagic = [8]byte{'D', 'S', 'P', 'A', 'K', '1', '\r', '\n'}

const (
	packFixedSize = 58
	packDiagSize  = 6
	packProcSize  = 13
)

// ErrInvalidPack is returned by LoadPack on malformed input.
type ErrInvalidPack struct {
	Reason string
}

func (e *ErrInvalidPack) Error() string {
	return fmt.Sprintf("stays: invalid pack: %s", e.Reason)
}

func putDate(buf []byte, d tables.Date) {
	binary.BigEndian.PutUint16(buf[0:2], uint16(d.Year))
	buf[2] = byte(d.Month)
	buf[3] = byte(d.Day)
}

func getDate(buf []byte) tables.Date {
	return tables.Date{
		Year:  int16(binary.BigEndian.Uint16(buf[0:2])),
		Month: int8(buf[2]),
		Day:   int8(buf[3]),
	}
}

func putCode(buf []byte, s string) {
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, s)
}

// WritePack serializes stays to w in the packed binary format. The
// encoding round-trips: LoadPack(WritePack(stays)) reproduces stays
// field-for-field.
func WritePack(w io.Writer, all []Stay) error {
	bw := bufio.NewWriterSize(w, 64*1024)

	if _, err := bw.Write(packMagic[:]); err != nil {
		return err
	}
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(all)))
	if _, err := bw.Write(count[:]); err != nil {
		return err
	}

	var fixed [packFixedSize]byte
	for i := range all {
		s := &all[i]

		binary.BigEndian.PutUint32(fixed[0:4], uint32(s.AdminID))
		binary.BigEndian.PutUint32(fixed[4:8], uint32(s.BillID))
		fixed[8] = s.Sex
		putDate(fixed[9:13], s.Birthdate)
		putDate(fixed[13:17], s.Entry.Date)
		fixed[17] = s.Entry.Mode
		fixed[18] = s.Entry.Origin
		putDate(fixed[19:23], s.Exit.Date)
		fixed[23] = s.Exit.Mode
		fixed[24] = s.Exit.Destination
		binary.BigEndian.PutUint16(fixed[25:27], uint16(s.Unit))
		fixed[27] = s.BedAuth
		binary.BigEndian.PutUint16(fixed[28:30], uint16(s.SessionCount))
		binary.BigEndian.PutUint16(fixed[30:32], uint16(s.IGS2))
		binary.BigEndian.PutUint16(fixed[32:34], s.Flags)
		putDate(fixed[34:38], s.LastMenstrualPeriod)
		binary.BigEndian.PutUint16(fixed[38:40], uint16(s.GestationalAge))
		binary.BigEndian.PutUint16(fixed[40:42], uint16(s.NewbornWeight))
		putCode(fixed[42:48], s.MainDiagnosis.String())
		putCode(fixed[48:54], s.LinkedDiagnosis.String())
		// diagnosis/procedure counts land before the error mask so the
		// variable part can be sized from one contiguous read
		binary.BigEndian.PutUint16(fixed[54:56], uint16(len(s.OtherDiagnoses)))
		binary.BigEndian.PutUint16(fixed[56:58], uint16(len(s.Procedures)))
		if _, err := bw.Write(fixed[:]); err != nil {
			return err
		}

		var mask [4]byte
		binary.BigEndian.PutUint32(mask[:], s.ErrorMask)
		if _, err := bw.Write(mask[:]); err != nil {
			return err
		}

		var dbuf [packDiagSize]byte
		for _, d := range s.OtherDiagnoses {
			putCode(dbuf[:], d.String())
			if _, err := bw.Write(dbuf[:]); err != nil {
				return err
			}
		}

		var pbuf [packProcSize]byte
		for _, p := range s.Procedures {
			putCode(pbuf[0:7], p.Code.String())
			pbuf[7] = p.Phase
			pbuf[8] = p.Activities
			binary.BigEndian.PutUint16(pbuf[9:11], uint16(p.Count))
			// realisation dates postdate 1980, the wire offset fits
			off, err := tables.EncodeWireDate(p.Date)
			if err != nil {
				return fmt.Errorf("stays: bill %d: procedure date: %w", s.BillID, err)
			}
			binary.BigEndian.PutUint16(pbuf[11:13], off)
			if _, err := bw.Write(pbuf[:]); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// LoadPack deserializes a packed binary stream written by WritePack.
func LoadPack(r io.Reader) ([]Stay, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var header [12]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, &ErrInvalidPack{"truncated header"}
	}
	if [8]byte(header[0:8]) != packMagic {
		return nil, &ErrInvalidPack{"bad magic"}
	}
	count := binary.BigEndian.Uint32(header[8:12])

	out := make([]Stay, 0, count)
	var fixed [packFixedSize]byte
	for n := uint32(0); n < count; n++ {
		if _, err := io.ReadFull(br, fixed[:]); err != nil {
			return nil, &ErrInvalidPack{fmt.Sprintf("truncated stay %d", n)}
		}

		var s Stay
		s.AdminID = int32(binary.BigEndian.Uint32(fixed[0:4]))
		s.BillID = int32(binary.BigEndian.Uint32(fixed[4:8]))
		s.Sex = fixed[8]
		s.Birthdate = getDate(fixed[9:13])
		s.Entry.Date = getDate(fixed[13:17])
		s.Entry.Mode = fixed[17]
		s.Entry.Origin = fixed[18]
		s.Exit.Date = getDate(fixed[19:23])
		s.Exit.Mode = fixed[23]
		s.Exit.Destination = fixed[24]
		s.Unit = codes.Unit(int16(binary.BigEndian.Uint16(fixed[25:27])))
		s.BedAuth = fixed[27]
		s.SessionCount = int16(binary.BigEndian.Uint16(fixed[28:30]))
		s.IGS2 = int16(binary.BigEndian.Uint16(fixed[30:32]))
		s.Flags = binary.BigEndian.Uint16(fixed[32:34])
		s.LastMenstrualPeriod = getDate(fixed[34:38])
		s.GestationalAge = int16(binary.BigEndian.Uint16(fixed[38:40]))
		s.NewbornWeight = int16(binary.BigEndian.Uint16(fixed[40:42]))
		if raw := trimNul(fixed[42:48]); raw != "" {
			d, err := codes.ParseDiagnosis(raw)
			if err != nil {
				return nil, &ErrInvalidPack{fmt.Sprintf("bad main diagnosis in stay %d", n)}
			}
			s.MainDiagnosis = d
		}
		if raw := trimNul(fixed[48:54]); raw != "" {
			d, err := codes.ParseDiagnosis(raw)
			if err != nil {
				return nil, &ErrInvalidPack{fmt.Sprintf("bad linked diagnosis in stay %d", n)}
			}
			s.LinkedDiagnosis = d
		}
		nDiag := int(binary.BigEndian.Uint16(fixed[54:56]))
		nProc := int(binary.BigEndian.Uint16(fixed[56:58]))

		var mask [4]byte
		if _, err := io.ReadFull(br, mask[:]); err != nil {
			return nil, &ErrInvalidPack{fmt.Sprintf("truncated stay %d", n)}
		}
		s.ErrorMask = binary.BigEndian.Uint32(mask[:])

		if nDiag > 0 {
			s.OtherDiagnoses = make([]codes.Diagnosis, 0, nDiag)
			var dbuf [packDiagSize]byte
			for i := 0; i < nDiag; i++ {
				if _, err := io.ReadFull(br, dbuf[:]); err != nil {
					return nil, &ErrInvalidPack{fmt.Sprintf("truncated diagnoses of stay %d", n)}
				}
				d, err := codes.ParseDiagnosis(trimNul(dbuf[:]))
				if err != nil {
					return nil, &ErrInvalidPack{fmt.Sprintf("bad diagnosis in stay %d", n)}
				}
				s.OtherDiagnoses = append(s.OtherDiagnoses, d)
			}
		}

		if nProc > 0 {
			s.Procedures = make([]ProcedureRealisation, 0, nProc)
			var pbuf [packProcSize]byte
			for i := 0; i < nProc; i++ {
				if _, err := io.ReadFull(br, pbuf[:]); err != nil {
					return nil, &ErrInvalidPack{fmt.Sprintf("truncated procedures of stay %d", n)}
				}
				code, err := codes.ParseProcedure(trimNul(pbuf[0:7]))
				if err != nil {
					return nil, &ErrInvalidPack{fmt.Sprintf("bad procedure in stay %d", n)}
				}
				s.Procedures = append(s.Procedures, ProcedureRealisation{
					Code:       code,
					Phase:      pbuf[7],
					Activities: pbuf[8],
					Count:      int16(binary.BigEndian.Uint16(pbuf[9:11])),
					Date:       tables.DecodeWireDate(binary.BigEndian.Uint16(pbuf[11:13])),
				})
			}
		}

		out = append(out, s)
	}

	return out, nil
}

// SavePack writes stays to path; a ".gz" suffix selects gzip compression.
func SavePack(path string, all []Stay) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stays: creating %s: %w", path, err)
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}
	if err := WritePack(w, all); err != nil {
		return fmt.Errorf("stays: writing %s: %w", path, err)
	}
	return nil
}

// LoadPackFile reads a packed file written by SavePack.
func LoadPackFile(path string) ([]Stay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stays: opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("stays: %s: gzip: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	out, err := LoadPack(r)
	if err != nil {
		return nil, fmt.Errorf("stays: reading %s: %w", path, err)
	}
	return out, nil
}

func trimNul(b []byte) string {
	end := 0
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[:end])
}
