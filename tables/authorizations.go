package tables

import "encoding/binary"

// Authorization reference table (AUTOREFS) wire layout: one 4-byte record
// per (scope, code) → function-id mapping in section 0.
const authRecordSize = 1 + 2 + 1

func parseAuthorizationsTable(h tableHeader, body []byte, source string) (map[AuthorizationKey]uint8, error) {
	sec0, err := sectionBytes(h, body, 0, source)
	if err != nil {
		return nil, err
	}
	if len(sec0)%authRecordSize != 0 {
		return nil, &ErrInvalidTable{source, "authorization section record size mismatch"}
	}

	out := make(map[AuthorizationKey]uint8, len(sec0)/authRecordSize)
	for off := 0; off < len(sec0); off += authRecordSize {
		rec := sec0[off : off+authRecordSize]
		key := AuthorizationKey{Scope: rec[0], Code: binary.BigEndian.Uint16(rec[1:3])}
		out[key] = rec[3]
	}
	return out, nil
}
