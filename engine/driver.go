package engine

import (
	"context"
	"log"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mco/auth"
	"mco/classify"
	"mco/cluster"
	"mco/ghs"
	"mco/pricing"
	"mco/stays"
	"mco/tables"
)

// chunkSize is how many clusters one worker grabs at a time.
const chunkSize = 64

// Driver runs the pipeline over an input stay sequence. Tables and Auths
// are read-only once loaded and shared across workers without locking.
type Driver struct {
	Tables *tables.TableSet
	Auths  *auth.Set

	Sector           tables.Sector
	Flags            cluster.Flags
	ApplyCoefficient bool

	// Workers caps the pool; 0 picks min(cores, chunks).
	Workers int

	// RunID tags everything this driver produces across Run calls.
	RunID uuid.UUID

	// Logger receives non-fatal diagnostics; nil means silent.
	Logger *log.Logger
}

// NewDriver returns a Driver with a fresh run id.
func NewDriver(ts *tables.TableSet, auths *auth.Set) *Driver {
	return &Driver{Tables: ts, Auths: auths, RunID: uuid.New()}
}

func (d *Driver) logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

// splitAll partitions the input into clusters, preserving order.
func splitAll(all []stays.Stay) [][]stays.Stay {
	var clusters [][]stays.Stay
	rest := all
	for len(rest) > 0 {
		var cl []stays.Stay
		cl, rest = cluster.Split(rest)
		clusters = append(clusters, cl)
	}
	return clusters
}

// Run classifies and prices every cluster in all, returning one Result
// per cluster in input order. Results are identical whatever the worker
// count. A cancelled context stops scheduling new chunks; chunks already
// running finish and their results are returned along with ctx.Err().
func (d *Driver) Run(ctx context.Context, all []stays.Stay) ([]Result, error) {
	results, _, err := d.run(ctx, all, false)
	return results, err
}

// RunMono additionally classifies every stay as its own one-stay cluster.
// The mono slice holds one entry per input stay, aligned with the flat
// stay order; dispensation consumes it.
func (d *Driver) RunMono(ctx context.Context, all []stays.Stay) ([]Result, []Result, error) {
	return d.run(ctx, all, true)
}

func (d *Driver) run(ctx context.Context, all []stays.Stay, mono bool) ([]Result, []Result, error) {
	clusters := splitAll(all)
	results := make([]Result, len(clusters))

	var monoResults []Result
	var monoOffsets []int
	if mono {
		monoResults = make([]Result, len(all))
		monoOffsets = make([]int, len(clusters))
		off := 0
		for i, cl := range clusters {
			monoOffsets[i] = off
			off += len(cl)
		}
	}

	chunks := (len(clusters) + chunkSize - 1) / chunkSize
	workers := d.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > chunks {
		workers = chunks
	}
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)

	cancelled := false
	for start := 0; start < len(clusters); start += chunkSize {
		if err := ctx.Err(); err != nil {
			cancelled = true
			break
		}

		start := start
		end := start + chunkSize
		if end > len(clusters) {
			end = len(clusters)
		}

		g.Go(func() error {
			var errs cluster.ErrorSet
			for i := start; i < end; i++ {
				if err := d.classifyCluster(clusters[i], &errs, &results[i]); err != nil {
					return err
				}
				if mono {
					off := monoOffsets[i]
					for j := range clusters[i] {
						one := clusters[i][j : j+1]
						if err := d.classifyCluster(one, &errs, &monoResults[off+j]); err != nil {
							return err
						}
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if cancelled {
		return results, monoResults, ctx.Err()
	}
	return results, monoResults, nil
}

// classifyCluster runs the whole per-cluster pipeline into out. Only a
// configuration problem (no table index) returns an error; everything
// else degrades into an error GHM or a pricing miss.
func (d *Driver) classifyCluster(cl []stays.Stay, errs *cluster.ErrorSet, out *Result) error {
	errs.Reset()
	*out = Result{Stays: cl}

	agg, err := cluster.Prepare(d.Tables, cl, d.Flags, errs)
	if err != nil {
		return err
	}
	out.MainStayIdx = agg.MainStayIdx
	out.Duration = agg.Duration

	out.GHM = classify.ClassifyGHM(agg, d.Flags, errs)
	out.GHS = ghs.ClassifyGHS(agg, d.Auths, out.GHM, d.Sector, d.Flags)

	if out.GHS.IsValid() {
		ghs.CountSupplements(agg, d.Auths, &out.SupplementDays)

		if info, ok := pricing.ResolvePrice(agg.Index, d.Sector, out.GHS); ok {
			death := agg.Stay.Exit.Mode == stays.ExitModeDeath
			out.GHSCents = info.GHSCents
			out.PriceCents, out.ExbExh = pricing.PriceGhs(info, agg.Duration, death)
			if d.ApplyCoefficient {
				coeff := agg.Index.Coefficient(d.Sector, out.GHM.Root())
				out.PriceCents = pricing.ApplyCoefficient(out.PriceCents, coeff)
			}
		} else {
			errs.Add(cluster.ErrorNoGHSPrice, cluster.PriorityPricing)
			d.logf("no %s price for GHS %s (bill %d)", d.Sector, out.GHS, agg.Stay.BillID)
		}

		var supplementTotal int64
		out.SupplementCents, supplementTotal = pricing.PriceSupplements(agg.Index, d.Sector, out.SupplementDays)
		out.TotalCents = int64(out.PriceCents) + supplementTotal
	}

	out.MainError = errs.MainError
	return nil
}

// Dispense redistributes every cluster result across its units, using
// the aligned mono results from RunMono.
func Dispense(results, monoResults []Result, mode pricing.DispenseMode) []pricing.Due {
	dispenser := pricing.NewDispenser(mode)

	off := 0
	for i := range results {
		r := &results[i]
		monos := make([]pricing.MonoPricing, len(r.Stays))
		for j := range r.Stays {
			m := &monoResults[off+j]
			monos[j] = pricing.MonoPricing{
				Unit:            r.Stays[j].Unit,
				Duration:        m.Duration,
				GHSCents:        m.GHSCents,
				PriceCents:      m.PriceCents,
				SupplementDays:  m.SupplementDays,
				SupplementCents: m.SupplementCents,
				TotalCents:      m.TotalCents,
			}
		}
		off += len(r.Stays)

		dispenser.Dispense(pricing.ClusterPricing{
			GHSCents:   r.GHSCents,
			PriceCents: r.PriceCents,
			ExbExh:     r.ExbExh,
		}, monos)
	}

	return dispenser.Finish()
}
