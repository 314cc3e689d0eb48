package tables

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"mco/codes"
)

// JSON tariff wire format: a top-level array of tariff objects, each
//
//	{
//	  "build_date": "2024-02-15",
//	  "date": "2024-03-01",
//	  "ghs": [
//	    {"ghs": 4005,
//	     "public":  {"price_cents": 200000, "exb_treshold": 3, "exb_cents": 15000,
//	                 "exb_once": false, "exh_treshold": 12, "exh_cents": 8000},
//	     "private": {...}},
//	    ...
//	  ],
//	  "supplements": {
//	    "public":  {"rea_cents": 84300, "stf_cents": 40000, "src_cents": 30000,
//	                "nn1_cents": ..., "nn2_cents": ..., "nn3_cents": ..., "rep_cents": ...},
//	    "private": {...}
//	  }
//	}
//
// "stf_cents" prices both the REASI and SI categories. A sector missing
// from a ghs entry or from the supplements map inherits the other
// sector's values. Unknown keys are tolerated. Each object takes effect
// on its "date" and stays current until the next object's date.
type tariffSectorPrice struct {
	PriceCents  int  `json:"price_cents"`
	EXBTreshold int  `json:"exb_treshold"`
	EXBCents    int  `json:"exb_cents"`
	EXBOnce     bool `json:"exb_once"`
	EXHTreshold int  `json:"exh_treshold"`
	EXHCents    int  `json:"exh_cents"`
}

type tariffGHSRow struct {
	GHS     int                `json:"ghs"`
	Public  *tariffSectorPrice `json:"public"`
	Private *tariffSectorPrice `json:"private"`
}

type tariffSupplementRow struct {
	REACents int `json:"rea_cents"`
	STFCents int `json:"stf_cents"` // shared by REASI and SI
	SRCCents int `json:"src_cents"`
	NN1Cents int `json:"nn1_cents"`
	NN2Cents int `json:"nn2_cents"`
	NN3Cents int `json:"nn3_cents"`
	REPCents int `json:"rep_cents"`
}

type tariffCoefficientRow struct {
	GHMRoot string `json:"ghm_root"`
	CoeffE4 int    `json:"coefficient_e4"` // fixed-point ×10000
}

type tariffEntry struct {
	BuildDate    string                            `json:"build_date"`
	Date         string                            `json:"date"`
	GHS          []tariffGHSRow                    `json:"ghs"`
	Supplements  map[string]tariffSupplementRow    `json:"supplements"`
	Coefficients map[string][]tariffCoefficientRow `json:"coefficients"`
}

// tariffData is one entry resolved into per-sector tables, with its
// effective window.
type tariffData struct {
	from, to Date

	ghsPrices    [sectorCount]map[codes.GHS]GHSPriceInfo
	supplements  [sectorCount]SupplementPriceInfo
	coefficients [sectorCount]map[codes.GHMRoot]int
}

// LoadPrices streams a JSON tariff file and layers its prices onto every
// TableIndex whose validity interval the tariffs cover. Unlike the
// binary reference tables, tariffs are published on their own quarterly
// schedule and do not produce indexes of their own; each tariff object is
// in force from its "date" until the next object's, and when several
// cover one index the latest wins.
func LoadPrices(ts *TableSet, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("tables: opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 64*1024)
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("tables: %s: gzip: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	decoder := json.NewDecoder(r)
	tok, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("tables: %s: reading opening token: %w", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("tables: %s: expected a tariff array, got %v", path, tok)
	}

	var tariffs []tariffData
	for decoder.More() {
		var entry tariffEntry
		if err := decoder.Decode(&entry); err != nil {
			return fmt.Errorf("tables: %s: tariff %d: %w", path, len(tariffs), err)
		}
		data, err := resolveTariff(entry)
		if err != nil {
			return fmt.Errorf("tables: %s: tariff %d: %w", path, len(tariffs), err)
		}
		tariffs = append(tariffs, data)
	}
	if _, err := decoder.Token(); err != nil { // closing ]
		return fmt.Errorf("tables: %s: reading closing token: %w", path, err)
	}
	if len(tariffs) == 0 {
		return fmt.Errorf("tables: %s: no tariff entries", path)
	}

	// each entry runs until the next one's date; the last is open-ended
	sort.Slice(tariffs, func(i, j int) bool {
		return tariffs[i].from.Before(tariffs[j].from)
	})
	for i := range tariffs {
		if i+1 < len(tariffs) {
			tariffs[i].to = tariffs[i+1].from
		} else {
			tariffs[i].to = Date{Year: 9999, Month: 12, Day: 31}
		}
	}

	applied := 0
	for i := range ts.Indexes {
		idx := &ts.Indexes[i]

		var chosen *tariffData
		for k := range tariffs {
			t := &tariffs[k]
			// both intervals are half-open; no overlap when one ends
			// before (or exactly where) the other starts
			if !t.from.Before(idx.LimitTo) || !idx.LimitFrom.Before(t.to) {
				continue
			}
			chosen = t // latest overlapping tariff wins
		}
		if chosen == nil {
			continue
		}

		idx.GHSPrices = chosen.ghsPrices
		idx.Supplements = chosen.supplements
		idx.Coefficients = chosen.coefficients
		applied++
	}
	if applied == 0 {
		return fmt.Errorf("tables: %s: tariffs cover no loaded table index", path)
	}
	return nil
}

// resolveTariff turns one wire entry into per-sector tables, applying
// the missing-sector inheritance rule.
func resolveTariff(entry tariffEntry) (tariffData, error) {
	var data tariffData

	from, err := parseISODate(entry.Date)
	if err != nil {
		return data, fmt.Errorf("date: %w", err)
	}
	data.from = from
	if entry.BuildDate != "" {
		if _, err := parseISODate(entry.BuildDate); err != nil {
			return data, fmt.Errorf("build_date: %w", err)
		}
	}

	data.ghsPrices[SectorPublic] = make(map[codes.GHS]GHSPriceInfo, len(entry.GHS))
	data.ghsPrices[SectorPrivate] = make(map[codes.GHS]GHSPriceInfo, len(entry.GHS))
	for _, row := range entry.GHS {
		if row.GHS <= 0 || row.GHS > 0xFFFF {
			continue
		}
		ghs := codes.GHS(row.GHS)

		public, private := row.Public, row.Private
		if public == nil {
			public = private
		}
		if private == nil {
			private = public
		}
		if public == nil {
			continue
		}
		data.ghsPrices[SectorPublic][ghs] = sectorPriceInfo(ghs, public)
		data.ghsPrices[SectorPrivate][ghs] = sectorPriceInfo(ghs, private)
	}

	public, havePublic := entry.Supplements["public"]
	private, havePrivate := entry.Supplements["private"]
	if !havePublic {
		public = private
	}
	if !havePrivate {
		private = public
	}
	data.supplements[SectorPublic] = supplementPrices(public)
	data.supplements[SectorPrivate] = supplementPrices(private)

	data.coefficients[SectorPublic] = make(map[codes.GHMRoot]int)
	data.coefficients[SectorPrivate] = make(map[codes.GHMRoot]int)
	pubCoeffs, havePubCoeffs := entry.Coefficients["public"]
	privCoeffs, havePrivCoeffs := entry.Coefficients["private"]
	if !havePubCoeffs {
		pubCoeffs = privCoeffs
	}
	if !havePrivCoeffs {
		privCoeffs = pubCoeffs
	}
	fillCoefficients(data.coefficients[SectorPublic], pubCoeffs)
	fillCoefficients(data.coefficients[SectorPrivate], privCoeffs)

	return data, nil
}

func sectorPriceInfo(ghs codes.GHS, p *tariffSectorPrice) GHSPriceInfo {
	return GHSPriceInfo{
		GHS:          ghs,
		GHSCents:     p.PriceCents,
		EXBThreshold: p.EXBTreshold,
		EXBCents:     p.EXBCents,
		EXBOnce:      p.EXBOnce,
		EXHThreshold: p.EXHTreshold,
		EXHCents:     p.EXHCents,
	}
}

func supplementPrices(row tariffSupplementRow) SupplementPriceInfo {
	var out SupplementPriceInfo
	out[SupplementREA] = row.REACents
	out[SupplementREASI] = row.STFCents
	out[SupplementSI] = row.STFCents
	out[SupplementSRC] = row.SRCCents
	out[SupplementNN1] = row.NN1Cents
	out[SupplementNN2] = row.NN2Cents
	out[SupplementNN3] = row.NN3Cents
	out[SupplementREP] = row.REPCents
	return out
}

func fillCoefficients(out map[codes.GHMRoot]int, rows []tariffCoefficientRow) {
	for _, row := range rows {
		root, err := codes.ParseGHMRoot(row.GHMRoot)
		if err != nil {
			continue
		}
		out[root] = row.CoeffE4
	}
}

func parseISODate(s string) (Date, error) {
	var y, m, d int
	if _, err := fmt.Sscanf(s, "%04d-%02d-%02d", &y, &m, &d); err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	date := Date{Year: int16(y), Month: int8(m), Day: int8(d)}
	if !date.IsValid() {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return date, nil
}
