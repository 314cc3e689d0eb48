// Command mco classifies PMSI MCO stay files against the ATIH reference
// tables: GHM, GHS, supplements, pricing and optional per-unit
// dispensation, with Parquet/Postgres export of the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mco/auth"
	"mco/cluster"
	"mco/engine"
	"mco/pricing"
	"mco/stays"
	"mco/tables"
	"mco/warehouse"
)

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// countFlag counts how many times a boolean flag was given.
type countFlag int

func (c *countFlag) String() string { return strconv.Itoa(int(*c)) }

func (c *countFlag) IsBoolFlag() bool { return true }

func (c *countFlag) Set(v string) error {
	if v == "true" || v == "" {
		*c++
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*c = countFlag(n)
	return nil
}

func main() {
	var tableDirs stringList
	var verbosity countFlag
	flag.Var(&tableDirs, "T", "table search directory (repeatable)")
	authFile := flag.String("A", "", "authorization JSON file")
	options := flag.String("o", "", "classifier flags (CSV: mono, ignore_confirm, ignore_proc_doc, ignore_proc_ext)")
	dispenseModeName := flag.String("d", "", "dispensation mode (e, ex, ex2, j, exj, exj2; implies mono)")
	applyCoeff := flag.Bool("coeff", false, "apply sector coefficient in pricing")
	sectorName := flag.String("sector", "public", "tariff sector (public or private)")
	flag.Var(&verbosity, "v", "increase verbosity (repeatable)")
	selfTest := flag.Bool("test", false, "check results against expected GenRSA values")
	torture := flag.Int("torture", 0, "run the classification loop N times for benchmarking")
	parquetOut := flag.String("parquet", "", "write classified results to a Parquet file")
	parquetCodec := flag.String("codec", "zstd", "Parquet compression codec (zstd, snappy, gzip, brotli, lz4, none)")
	pgConn := flag.String("pg", "", "load classified results into PostgreSQL")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mco -T tables/ [options] stays.dspak [stays.rss ...]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if len(tableDirs) == 0 {
		logger.Fatal("no table directory specified (-T)")
	}

	sector, err := parseSector(*sectorName)
	if err != nil {
		logger.Fatal(err)
	}
	flags, err := parseOptions(*options)
	if err != nil {
		logger.Fatal(err)
	}

	var dispenseMode pricing.DispenseMode
	dispense := *dispenseModeName != ""
	if dispense {
		dispenseMode, err = pricing.ParseDispenseMode(*dispenseModeName)
		if err != nil {
			logger.Fatal(err)
		}
		flags |= cluster.FlagMono
	}

	ts, err := loadTables(tableDirs, logger)
	if err != nil {
		logger.Fatal(err)
	}

	auths := auth.NewSet(nil)
	if *authFile != "" {
		auths, err = auth.Load(*authFile)
		if err != nil {
			logger.Fatal(err)
		}
	}

	allStays, tests, err := loadStays(flag.Args())
	if err != nil {
		logger.Fatal(err)
	}
	if verbosity >= 1 {
		logger.Printf("loaded %d stays, %d table indexes", len(allStays), len(ts.Indexes))
	}

	driver := engine.NewDriver(ts, auths)
	driver.Sector = sector
	driver.Flags = flags
	driver.ApplyCoefficient = *applyCoeff
	if verbosity >= 1 {
		driver.Logger = logger
	}

	ctx := context.Background()
	mono := flags&cluster.FlagMono != 0

	runs := 1
	if *torture > 1 {
		runs = *torture
	}

	var results, monoResults []engine.Result
	start := time.Now()
	for i := 0; i < runs; i++ {
		if mono {
			results, monoResults, err = driver.RunMono(ctx, allStays)
		} else {
			results, err = driver.Run(ctx, allStays)
		}
		if err != nil {
			logger.Fatal(err)
		}
	}
	elapsed := time.Since(start)

	summary := engine.Summarize(results)
	fmt.Printf("Run:      %s\n", driver.RunID)
	fmt.Printf("Clusters: %d (%d stays, %d failures)\n", summary.Results, summary.Stays, summary.Failures)
	fmt.Printf("Price:    %s\n", euros(summary.PriceCents))
	fmt.Printf("Total:    %s\n", euros(summary.TotalCents))
	fmt.Printf("Coefficients have%s been applied\n", applied(*applyCoeff))

	if *torture > 1 {
		perf := int64(summary.Results) * int64(*torture) * int64(time.Second) / int64(elapsed)
		fmt.Printf("Torture:  %d runs in %s (%d clusters/sec)\n", *torture, elapsed.Round(time.Millisecond), perf)
	}

	if verbosity >= 2 {
		for i := range results {
			printResult(&results[i])
		}
	}

	if dispense {
		dues := engine.Dispense(results, monoResults, dispenseMode)
		fmt.Printf("\nDispensation (%s):\n", dispenseMode)
		for _, due := range dues {
			fmt.Printf("  unit %-8s %14s\n", due.Unit, euros(due.TotalCents))
		}
	}

	if *parquetOut != "" {
		rows := warehouse.RowsFromResults(driver.RunID, results)
		if err := warehouse.WriteParquet(*parquetOut, *parquetCodec, rows); err != nil {
			logger.Fatal(err)
		}
		if verbosity >= 1 {
			logger.Printf("wrote %d rows to %s", len(rows), *parquetOut)
		}
	}
	if *pgConn != "" {
		rows := warehouse.RowsFromResults(driver.RunID, results)
		if err := warehouse.LoadPostgres(ctx, *pgConn, rows, 500); err != nil {
			logger.Fatal(err)
		}
	}

	if *selfTest {
		mismatches := runSelfTest(results, tests, logger)
		if mismatches > 0 {
			logger.Fatalf("self-test: %d mismatches", mismatches)
		}
		fmt.Printf("Self-test: %d clusters checked, all good\n", len(tests))
	}
}

func parseSector(name string) (tables.Sector, error) {
	switch name {
	case "public":
		return tables.SectorPublic, nil
	case "private":
		return tables.SectorPrivate, nil
	default:
		return 0, fmt.Errorf("unknown sector %q", name)
	}
}

func parseOptions(csv string) (cluster.Flags, error) {
	var flags cluster.Flags
	if csv == "" {
		return 0, nil
	}
	for _, opt := range strings.Split(csv, ",") {
		switch strings.TrimSpace(opt) {
		case "mono":
			flags |= cluster.FlagMono
		case "ignore_confirm":
			flags |= cluster.FlagIgnoreConfirmation
		case "ignore_proc_doc":
			flags |= cluster.FlagIgnoreProcedureDoc
		case "ignore_proc_ext":
			flags |= cluster.FlagIgnoreProcedureExtension
		case "":
		default:
			return 0, fmt.Errorf("unknown classifier option %q", opt)
		}
	}
	return flags, nil
}

// loadTables gathers every table file under the search directories:
// binary tables first, then JSON tariffs layered on top.
func loadTables(dirs []string, logger *log.Logger) (*tables.TableSet, error) {
	var binaries, tariffs []string
	for _, dir := range dirs {
		for _, pattern := range []string{"*.tab", "*.tab.gz"} {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return nil, err
			}
			binaries = append(binaries, matches...)
		}
		for _, pattern := range []string{"*.json", "*.json.gz"} {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return nil, err
			}
			tariffs = append(tariffs, matches...)
		}
	}
	if len(binaries) == 0 {
		return nil, fmt.Errorf("no table files found under %s", strings.Join(dirs, ", "))
	}

	ts := tables.NewTableSet()
	if err := tables.Load(ts, binaries); err != nil {
		return nil, err
	}
	for _, path := range tariffs {
		if err := tables.LoadPrices(ts, path); err != nil {
			return nil, err
		}
	}
	logger.Printf("loaded %d tables from %d files", len(ts.Tables), len(binaries))
	return ts, nil
}

// loadStays reads every input file, picking the importer by extension.
// GRP grouping prefixes and .expected.json side-cars feed the self-test
// map.
func loadStays(paths []string) ([]stays.Stay, map[int32]stays.Test, error) {
	var all []stays.Stay
	tests := make(map[int32]stays.Test)

	for _, path := range paths {
		base := strings.TrimSuffix(strings.ToLower(path), ".gz")

		var loaded []stays.Stay
		var err error
		switch filepath.Ext(base) {
		case ".dspak":
			loaded, err = stays.LoadPackFile(path)
		case ".grp":
			loaded, err = loadTextFile(path, func(r io.Reader) ([]stays.Stay, error) {
				return stays.LoadGRP(r, tests)
			})
		case ".rsa":
			loaded, err = loadTextFile(path, stays.LoadRSA)
		default: // .rss and anything else in the fixed-column format
			loaded, err = loadTextFile(path, stays.LoadRSS)
		}
		if err != nil {
			return nil, nil, err
		}

		if err := loadExpected(path, tests); err != nil {
			return nil, nil, err
		}
		all = append(all, loaded...)
	}
	return all, tests, nil
}

func loadTextFile(path string, load func(io.Reader) ([]stays.Stay, error)) ([]stays.Stay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return load(f)
}

func euros(cents int64) string {
	return fmt.Sprintf("%d.%02d €", cents/100, cents%100)
}

func applied(b bool) string {
	if b {
		return ""
	}
	return " NOT"
}

func printResult(r *engine.Result) {
	bill := int32(0)
	if len(r.Stays) > 0 {
		bill = r.Stays[0].BillID
	}
	fmt.Printf("  %9d  %s  ghs %-5s  %2d nights  %12s", bill, r.GHM, r.GHS, r.Duration, euros(int64(r.PriceCents)))
	if r.MainError != 0 {
		fmt.Printf("  [error %d]", r.MainError)
	}
	fmt.Println()
}
