// Package warehouse persists classified results for analytics: a Parquet
// export for query engines and an optional batched Postgres load.
package warehouse

import (
	"github.com/google/uuid"

	"mco/engine"
	"mco/tables"
)

// ResultRow is one denormalized Parquet row per classified cluster.
//
// Identifiers and the GHM/GHS come first for predicate pushdown ("WHERE
// ghm = '04M051'" scans one column); monetary columns follow; the
// mostly-zero supplement columns sit last.
type ResultRow struct {
	RunID   string `parquet:"run_id"`
	BillID  int32  `parquet:"bill_id"`
	AdminID int32  `parquet:"admin_id"`

	GHM       string `parquet:"ghm"`
	MainError int16  `parquet:"main_error"`
	GHS       int32  `parquet:"ghs"`

	StayCount int32 `parquet:"stay_count"`
	Duration  int32 `parquet:"duration"`
	ExbExh    int32 `parquet:"exb_exh"`

	GHSCents   int64 `parquet:"ghs_cents"`
	PriceCents int64 `parquet:"price_cents"`
	TotalCents int64 `parquet:"total_cents"`

	READays   int16 `parquet:"rea_days"`
	REASIDays int16 `parquet:"reasi_days"`
	SIDays    int16 `parquet:"si_days"`
	SRCDays   int16 `parquet:"src_days"`
	NN1Days   int16 `parquet:"nn1_days"`
	NN2Days   int16 `parquet:"nn2_days"`
	NN3Days   int16 `parquet:"nn3_days"`
	REPDays   int16 `parquet:"rep_days"`

	REACents   int32 `parquet:"rea_cents"`
	REASICents int32 `parquet:"reasi_cents"`
	SICents    int32 `parquet:"si_cents"`
	SRCCents   int32 `parquet:"src_cents"`
	NN1Cents   int32 `parquet:"nn1_cents"`
	NN2Cents   int32 `parquet:"nn2_cents"`
	NN3Cents   int32 `parquet:"nn3_cents"`
	REPCents   int32 `parquet:"rep_cents"`
}

// RowsFromResults flattens classified results into warehouse rows, all
// stamped with the producing run's id.
func RowsFromResults(runID uuid.UUID, results []engine.Result) []ResultRow {
	rows := make([]ResultRow, 0, len(results))
	for i := range results {
		r := &results[i]

		row := ResultRow{
			RunID:      runID.String(),
			GHM:        r.GHM.String(),
			MainError:  r.MainError,
			GHS:        int32(r.GHS),
			StayCount:  int32(len(r.Stays)),
			Duration:   int32(r.Duration),
			ExbExh:     int32(r.ExbExh),
			GHSCents:   int64(r.GHSCents),
			PriceCents: int64(r.PriceCents),
			TotalCents: r.TotalCents,
		}
		if len(r.Stays) > 0 {
			row.BillID = r.Stays[0].BillID
			row.AdminID = r.Stays[0].AdminID
		}

		days := r.SupplementDays
		row.READays = days[tables.SupplementREA]
		row.REASIDays = days[tables.SupplementREASI]
		row.SIDays = days[tables.SupplementSI]
		row.SRCDays = days[tables.SupplementSRC]
		row.NN1Days = days[tables.SupplementNN1]
		row.NN2Days = days[tables.SupplementNN2]
		row.NN3Days = days[tables.SupplementNN3]
		row.REPDays = days[tables.SupplementREP]

		cents := r.SupplementCents
		row.REACents = cents[tables.SupplementREA]
		row.REASICents = cents[tables.SupplementREASI]
		row.SICents = cents[tables.SupplementSI]
		row.SRCCents = cents[tables.SupplementSRC]
		row.NN1Cents = cents[tables.SupplementNN1]
		row.NN2Cents = cents[tables.SupplementNN2]
		row.NN3Cents = cents[tables.SupplementNN3]
		row.REPCents = cents[tables.SupplementREP]

		rows = append(rows, row)
	}
	return rows
}
