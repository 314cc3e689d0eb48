package tables

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/blake2b"
)

// ErrDuplicateTable is returned by Load when the exact same file (by
// content fingerprint) has already been loaded into this TableSet.
type ErrDuplicateTable struct {
	Source      string
	FirstLoaded string
}

func (e *ErrDuplicateTable) Error() string {
	return fmt.Sprintf("tables: %s is a duplicate of already-loaded %s", e.Source, e.FirstLoaded)
}

// Load reads every ATIH binary table file in paths (each may be gzipped)
// and folds them into ts, producing one new TableIndex per
// file. Loading the exact same file content twice is rejected with
// ErrDuplicateTable rather than silently duplicating the index.
func Load(ts *TableSet, paths []string) error {
	for _, path := range paths {
		if err := loadOne(ts, path); err != nil {
			return err
		}
	}
	return nil
}

func loadOne(ts *TableSet, path string) error {
	raw, err := readMaybeGzip(path)
	if err != nil {
		return fmt.Errorf("tables: reading %s: %w", path, err)
	}

	fp := blake2b.Sum256(raw)
	if first, dup := ts.seenFingerprints[fp]; dup {
		return &ErrDuplicateTable{Source: path, FirstLoaded: first}
	}

	loaded, tableInfos, err := parseFile(raw, path)
	if err != nil {
		return err
	}

	if err := ts.assembleIndexes(loaded); err != nil {
		return err
	}
	ts.Tables = append(ts.Tables, tableInfos...)
	ts.seenFingerprints[fp] = path
	return nil
}

func readMaybeGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}
	return io.ReadAll(f)
}

func parseFile(raw []byte, source string) (*loadedTables, []TableInfo, error) {
	fh, err := decodeFileHeader(raw, source)
	if err != nil {
		return nil, nil, err
	}

	const pointersStart = fileHeaderSize
	pointersEnd := pointersStart + int(fh.TableCount)*tablePointerSize
	if pointersEnd > len(raw) {
		return nil, nil, &ErrInvalidTable{source, "table pointer section runs past end of file"}
	}

	loaded := &loadedTables{
		limitFrom: Date{Year: -4712, Month: 1, Day: 1},
		limitTo:   Date{Year: 9999, Month: 12, Day: 31},
	}
	var infos []TableInfo

	for i := 0; i < int(fh.TableCount); i++ {
		pbuf := raw[pointersStart+i*tablePointerSize : pointersStart+(i+1)*tablePointerSize]
		ptr := decodeTablePointer(pbuf)

		start, end := int(ptr.Offset), int(ptr.Offset+ptr.Length)
		if start < 0 || end > len(raw) || start > end {
			return nil, nil, &ErrInvalidTable{source, fmt.Sprintf("table %d offset out of file", i)}
		}
		tableBuf := raw[start:end]

		th, err := decodeTableHeader(tableBuf, source)
		if err != nil {
			return nil, nil, err
		}
		body := tableBuf[tableHeaderSize:]

		limitFrom := DecodeWireDate(ptr.LimitFrom)
		limitTo := DecodeWireDate(ptr.LimitTo)
		if limitFrom.After(loaded.limitFrom) {
			loaded.limitFrom = limitFrom
		}
		if limitTo.Before(loaded.limitTo) {
			loaded.limitTo = limitTo
		}

		infos = append(infos, TableInfo{
			Type:      th.TypeName,
			Version:   th.Version,
			BuildDate: th.BuildDate,
			LimitFrom: limitFrom,
			LimitTo:   limitTo,
			Source:    source,
		})

		if err := dispatchTable(th, body, source, loaded); err != nil {
			return nil, nil, err
		}
	}

	return loaded, infos, nil
}

func dispatchTable(h tableHeader, body []byte, source string, loaded *loadedTables) error {
	switch h.TypeName {
	case TypeGHMTree:
		nodes, err := parseGHMTreeTable(h, body, source)
		if err != nil {
			return err
		}
		loaded.ghmTree = &GHMTree{Nodes: nodes}

	case TypeDiagnoses:
		diags, excl, err := parseDiagnosesTable(h, body, source)
		if err != nil {
			return err
		}
		loaded.diagnoses = diags
		loaded.exclusions = excl

	case TypeProcedures:
		procs, err := parseProceduresTable(h, body, source)
		if err != nil {
			return err
		}
		loaded.procedures = procs

	case TypeGHMRoots:
		roots, err := parseGHMRootsTable(h, body, source)
		if err != nil {
			return err
		}
		loaded.ghmRoots = roots

		gnn, err := parseCellSection(h, body, 2, source)
		if err != nil {
			return err
		}
		loaded.gnnCells = gnn
		for k := 0; k < 3; k++ {
			cells, err := parseCellSection(h, body, 3+k, source)
			if err != nil {
				return err
			}
			loaded.cmaCells[k] = cells
		}

	case TypeGHS:
		chunks, err := parseGHSAccessTable(h, body, source)
		if err != nil {
			return err
		}
		loaded.ghsAccess = chunks

	case TypeAuthorizations:
		auths, err := parseAuthorizationsTable(h, body, source)
		if err != nil {
			return err
		}
		loaded.authorizations = auths

	case TypeCombinations, TypeSourceActivity:
		// Read but not interpreted: neither table feeds a TableIndex
		// field the classifier consumes, so they are accepted for
		// forward-compatibility and otherwise ignored.

	default:
		return &ErrInvalidTable{source, fmt.Sprintf("unknown table type %q", h.TypeName)}
	}
	return nil
}

func parseGHMTreeTable(h tableHeader, body []byte, source string) ([]GHMNode, error) {
	sec0, err := sectionBytes(h, body, 0, source)
	if err != nil {
		return nil, err
	}
	if len(sec0)%6 != 0 {
		return nil, &ErrInvalidTable{source, "GHM tree section record size mismatch"}
	}
	n := len(sec0) / 6
	out := make([]GHMNode, n)
	for i := 0; i < n; i++ {
		off := i * 6
		out[i] = GHMNode{
			Function:      sec0[off],
			Param1:        sec0[off+1],
			Param2:        sec0[off+2],
			ChildrenIndex: uint16(sec0[off+3])<<8 | uint16(sec0[off+4]),
			ChildrenCount: sec0[off+5],
		}
	}
	return out, nil
}
