package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resultsSchema = `
CREATE TABLE IF NOT EXISTS mco_results (
	run_id      uuid     NOT NULL,
	bill_id     integer  NOT NULL,
	admin_id    integer  NOT NULL,
	ghm         text     NOT NULL,
	main_error  smallint NOT NULL,
	ghs         integer  NOT NULL,
	stay_count  integer  NOT NULL,
	duration    integer  NOT NULL,
	exb_exh     integer  NOT NULL,
	ghs_cents   bigint   NOT NULL,
	price_cents bigint   NOT NULL,
	total_cents bigint   NOT NULL,
	rea_days    smallint NOT NULL, reasi_days smallint NOT NULL,
	si_days     smallint NOT NULL, src_days   smallint NOT NULL,
	nn1_days    smallint NOT NULL, nn2_days   smallint NOT NULL,
	nn3_days    smallint NOT NULL, rep_days   smallint NOT NULL,
	rea_cents   integer  NOT NULL, reasi_cents integer NOT NULL,
	si_cents    integer  NOT NULL, src_cents  integer  NOT NULL,
	nn1_cents   integer  NOT NULL, nn2_cents  integer  NOT NULL,
	nn3_cents   integer  NOT NULL, rep_cents  integer  NOT NULL,
	PRIMARY KEY (run_id, bill_id)
)`

const insertResult = `
INSERT INTO mco_results (
	run_id, bill_id, admin_id, ghm, main_error, ghs,
	stay_count, duration, exb_exh, ghs_cents, price_cents, total_cents,
	rea_days, reasi_days, si_days, src_days, nn1_days, nn2_days, nn3_days, rep_days,
	rea_cents, reasi_cents, si_cents, src_cents, nn1_cents, nn2_cents, nn3_cents, rep_cents
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
	$13, $14, $15, $16, $17, $18, $19, $20,
	$21, $22, $23, $24, $25, $26, $27, $28
)
ON CONFLICT (run_id, bill_id) DO NOTHING`

// LoadPostgres batches result rows into the mco_results table: one
// transaction per batch, committed as it fills, the way a load survives
// large runs without holding one giant transaction open.
func LoadPostgres(ctx context.Context, connStr string, rows []ResultRow, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("warehouse: parse connection: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("warehouse: connect: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("warehouse: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, resultsSchema); err != nil {
		return fmt.Errorf("warehouse: create schema: %w", err)
	}

	for off := 0; off < len(rows); off += batchSize {
		end := off + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := loadBatch(ctx, pool, rows[off:end]); err != nil {
			return fmt.Errorf("warehouse: batch at row %d: %w", off, err)
		}
	}

	return nil
}

func loadBatch(ctx context.Context, pool *pgxpool.Pool, rows []ResultRow) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range rows {
		r := &rows[i]
		batch.Queue(insertResult,
			r.RunID, r.BillID, r.AdminID, r.GHM, r.MainError, r.GHS,
			r.StayCount, r.Duration, r.ExbExh, r.GHSCents, r.PriceCents, r.TotalCents,
			r.READays, r.REASIDays, r.SIDays, r.SRCDays,
			r.NN1Days, r.NN2Days, r.NN3Days, r.REPDays,
			r.REACents, r.REASICents, r.SICents, r.SRCCents,
			r.NN1Cents, r.NN2Cents, r.NN3Cents, r.REPCents,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}
