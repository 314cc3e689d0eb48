package warehouse

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"mco/codes"
	"mco/engine"
	"mco/stays"
	"mco/tables"
)

func sampleResults(t *testing.T) []engine.Result {
	t.Helper()

	ghm, err := codes.ParseGHM("04M051")
	if err != nil {
		t.Fatalf("parse GHM: %v", err)
	}

	var days tables.SupplementCounters[int16]
	var cents tables.SupplementCounters[int32]
	days[tables.SupplementREA] = 2
	cents[tables.SupplementREA] = 200000

	return []engine.Result{
		{
			Stays:           []stays.Stay{{AdminID: 1, BillID: 500001}},
			Duration:        4,
			GHM:             ghm,
			GHS:             codes.GHS(4005),
			GHSCents:        200000,
			PriceCents:      200000,
			SupplementDays:  days,
			SupplementCents: cents,
			TotalCents:      400000,
		},
		{
			Stays:     []stays.Stay{{AdminID: 2, BillID: 500002}},
			Duration:  1,
			GHM:       codes.ErrorGHM,
			MainError: 13,
		},
	}
}

func TestRowsFromResults(t *testing.T) {
	runID := uuid.New()
	rows := RowsFromResults(runID, sampleResults(t))

	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	r := rows[0]
	if r.RunID != runID.String() {
		t.Errorf("got run id %s", r.RunID)
	}
	if r.BillID != 500001 || r.GHM != "04M051" || r.GHS != 4005 {
		t.Errorf("got row %+v", r)
	}
	if r.READays != 2 || r.REACents != 200000 {
		t.Errorf("got supplements %d days / %d cents", r.READays, r.REACents)
	}
	if rows[1].GHM != "90Z00Z" || rows[1].MainError != 13 {
		t.Errorf("got error row %+v", rows[1])
	}
}

func TestParquetRoundTrip(t *testing.T) {
	rows := RowsFromResults(uuid.New(), sampleResults(t))

	for _, codec := range []string{"zstd", "snappy", "gzip", "brotli", "lz4", "none"} {
		t.Run(codec, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "results.parquet")
			if err := WriteParquet(path, codec, rows); err != nil {
				t.Fatalf("WriteParquet: %v", err)
			}

			got, err := ReadParquet(path)
			if err != nil {
				t.Fatalf("ReadParquet: %v", err)
			}
			if !reflect.DeepEqual(got, rows) {
				t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, rows)
			}
		})
	}
}

func TestNewResultWriterRejectsUnknownCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.parquet")
	if _, err := NewResultWriter(path, "bogus"); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}
