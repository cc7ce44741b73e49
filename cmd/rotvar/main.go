// Command rotvar loads simulated rotated-rupture ground motions into a
// sqlite database and writes variability reports from them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/guptarohit/asciigraph"
	"github.com/joho/godotenv"

	"github.com/banshee-data/rotvar/internal/config"
	"github.com/banshee-data/rotvar/internal/event"
	"github.com/banshee-data/rotvar/internal/fsutil"
	"github.com/banshee-data/rotvar/internal/gmpe"
	"github.com/banshee-data/rotvar/internal/report"
	"github.com/banshee-data/rotvar/internal/simdb"
	"github.com/banshee-data/rotvar/internal/variability"
	"github.com/banshee-data/rotvar/internal/version"
)

const (
	envDB     = "ROTVAR_DB"
	envOutput = "ROTVAR_OUTPUT"

	defaultDB     = "rotvar.db"
	defaultOutput = "report"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: rotvar <command> [flags]

Commands:
  migrate up|down|status   manage the database schema
  ingest -kind KIND FILE   load sites, events, elements or spectra from CSV
  report                   compute variability and write the report
  runs                     list recorded report runs
  version                  print build information

Environment (also read from .env):
  %s   database path (default %q)
  %s   report output directory (default %q)
`, envDB, defaultDB, envOutput, defaultOutput)
}

// envOr returns the environment value of key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to read .env: %v", err)
	}
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "migrate":
		err = runMigrate(args)
	case "ingest":
		err = runIngest(ctx, args)
	case "report":
		err = runReport(ctx, args)
	case "runs":
		err = runRuns(ctx, args)
	case "version":
		fmt.Println(version.String())
		return
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func dbFlag(fs *flag.FlagSet) *string {
	return fs.String("db", envOr(envDB, defaultDB), "sqlite database path")
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := dbFlag(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rotvar migrate [-db path] up|down|status")
	}

	db, err := simdb.OpenDBNoMigrate(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch action := fs.Arg(0); action {
	case "up":
		return db.MigrateUp()
	case "down":
		return db.MigrateDown()
	case "status":
		v, dirty, err := db.MigrateVersion()
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d (dirty=%t)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

func runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	dbPath := dbFlag(fs)
	kind := fs.String("kind", "", "CSV kind: sites, events, elements or spectra")
	fs.Parse(args)
	if *kind == "" || fs.NArg() == 0 {
		return fmt.Errorf("usage: rotvar ingest [-db path] -kind KIND FILE...")
	}

	db, err := simdb.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		n, err := db.Ingest(ctx, *kind, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.Printf("%s: %d rows", path, n)
	}
	return nil
}

func loadModels(cfg *config.ReportConfig) ([]gmpe.Model, error) {
	if len(cfg.GMPETables) == 0 {
		return []gmpe.Model{gmpe.DefaultTableModel()}, nil
	}
	models := make([]gmpe.Model, 0, len(cfg.GMPETables))
	for _, path := range cfg.GMPETables {
		m, err := gmpe.LoadTableModelFile(path)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dbPath := dbFlag(fs)
	configPath := fs.String("config", "", "report config (.json, .yaml or .yml); defaults apply when empty")
	outDir := fs.String("out", envOr(envOutput, defaultOutput), "output directory")
	quiet := fs.Bool("quiet", false, "skip the terminal summary chart")
	chart := fs.String("chart", "", "comma-separated type prefixes for the terminal chart (default every computed type)")
	fs.Parse(args)

	cfg := config.EmptyReportConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadReportConfig(*configPath); err != nil {
			return err
		}
	}

	db, err := simdb.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	configs, err := db.Configs(ctx)
	if err != nil {
		return err
	}
	providers := make(map[float64]variability.SpectrumProvider, len(configs))
	for mag := range configs {
		providers[mag] = db.Provider(mag)
	}
	engine, err := variability.NewEngine(configs, providers)
	if err != nil {
		return err
	}

	var comparator *gmpe.Comparator
	if !cfg.GetDisableGMPE() {
		models, err := loadModels(cfg)
		if err != nil {
			return err
		}
		if comparator, err = gmpe.NewComparator(engine, db, cfg.GetDistanceJB(), models...); err != nil {
			return err
		}
	}

	var ids []int
	for _, mag := range engine.Magnitudes() {
		ids = append(ids, engine.EventIDs(mag)...)
	}
	gen, err := report.NewPageGen(cfg, engine, comparator, event.NewMap(db, ids), fsutil.OSFileSystem{})
	if err != nil {
		return err
	}

	runID, err := db.StartRun(ctx, *outDir, cfg.JSON())
	if err != nil {
		return err
	}
	genErr := gen.Generate(ctx, *outDir)
	if err := db.FinishRun(context.WithoutCancel(ctx), runID, genErr); err != nil {
		log.Printf("failed to record run %s: %v", runID, err)
	}
	if genErr != nil {
		return genErr
	}
	log.Printf("report run %s written to %s", runID, *outDir)

	if *quiet {
		return nil
	}
	types, err := chartTypes(*chart, gen.ComputedTypes())
	if err != nil {
		return err
	}
	return printSummary(ctx, engine, types, cfg.GetPeriods())
}

// chartTypes resolves the -chart flag against the computed types.
func chartTypes(prefixes string, computed []variability.Type) ([]variability.Type, error) {
	if prefixes == "" {
		return computed, nil
	}
	var out []variability.Type
	for _, p := range strings.Split(prefixes, ",") {
		t, ok := variability.TypeByPrefix(strings.TrimSpace(p))
		if !ok {
			return nil, fmt.Errorf("unknown variability type %q", p)
		}
		found := false
		for _, c := range computed {
			found = found || c.Prefix == t.Prefix
		}
		if !found {
			return nil, fmt.Errorf("variability type %q is not computed for this catalog", p)
		}
		out = append(out, t)
	}
	return out, nil
}

// printSummary draws the all-sites std dev against period of every type at
// the lowest magnitude and distance.
func printSummary(ctx context.Context, engine *variability.Engine, types []variability.Type, periods []float64) error {
	if len(periods) < 2 {
		return nil
	}
	mag := engine.Magnitudes()[0]
	dist := engine.Distances()[0]
	for _, t := range types {
		sum, err := engine.Summary(ctx, t, mag, &dist, "", periods)
		if err != nil {
			return err
		}
		fmt.Println(asciigraph.Plot(sum.StdDevs(),
			asciigraph.Height(6),
			asciigraph.Width(40),
			asciigraph.Caption(fmt.Sprintf("%s (%s), M%v %vkm, std dev vs period %v", t.Name, t.Symbol, mag, dist, periods)),
		))
		fmt.Println()
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := dbFlag(fs)
	limit := fs.Int("limit", 10, "number of runs to list")
	fs.Parse(args)

	db, err := simdb.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		status := "running"
		switch {
		case r.Error != "":
			status = "failed: " + r.Error
		case r.Finished != nil:
			status = "done in " + r.Finished.Sub(r.Started).String()
		}
		fmt.Printf("%s  %s  %s  %s\n", r.ID, r.Started.Format("2006-01-02 15:04:05"), r.OutputDir, status)
	}
	return nil
}
