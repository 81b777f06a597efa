// Command coda-infos builds the CODa info files and the train
// ground-truth database from a dataset root.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/coda-infos/internal/coda"
	"github.com/banshee-data/coda-infos/internal/config"
	"github.com/banshee-data/coda-infos/internal/fsutil"
	"github.com/banshee-data/coda-infos/internal/monitoring"
	"github.com/banshee-data/coda-infos/internal/report"
	"github.com/banshee-data/coda-infos/internal/storage/sqlite"
	"github.com/banshee-data/coda-infos/internal/version"
)

type flags struct {
	configPath  string
	dataPath    string
	savePath    string
	workers     int
	catalogPath string
	plotPath    string
	verbose     bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("coda-infos", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "dataset config JSON (optional)")
	fs.StringVar(&f.dataPath, "data", "data/coda", "dataset root")
	fs.StringVar(&f.savePath, "save", "", "directory for info files (default: -data)")
	fs.IntVar(&f.workers, "workers", 0, "frames processed in parallel (default: config workers)")
	fs.StringVar(&f.catalogPath, "catalog", "", "sqlite catalog to record the gt database in")
	fs.StringVar(&f.plotPath, "plot", "", "write a train class distribution chart to this PNG")
	fs.BoolVar(&f.verbose, "verbose", false, "log per-frame progress")
	fs.BoolVar(&f.showVersion, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.savePath == "" {
		f.savePath = f.dataPath
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if f.showVersion {
		fmt.Println(version.String("coda-infos"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, os.Stderr); err != nil {
		log.Fatalf("coda-infos: %v", err)
	}
}

func run(ctx context.Context, f flags, stderr io.Writer) error {
	var trace io.Writer
	if f.verbose {
		trace = stderr
	}
	coda.SetLogWriters(stderr, stderr, trace)

	cfg := &config.DatasetConfig{}
	if f.configPath != "" {
		loaded, err := config.LoadDatasetConfig(f.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	resolved := cfg.Resolve()
	workers := resolved.Options.Workers
	if f.workers > 0 {
		workers = f.workers
	}

	params := coda.CreateParams{
		FS:                fsutil.OSFileSystem{},
		DataPath:          f.dataPath,
		SavePath:          f.savePath,
		Workers:           workers,
		CountInsidePoints: resolved.Options.CountInsidePoints,
		UsedClasses:       resolved.GTDatabaseClasses,
	}
	if f.catalogPath != "" {
		catalog, err := sqlite.Open(f.catalogPath)
		if err != nil {
			return err
		}
		defer catalog.Close()
		params.Catalog = catalog.GTEntries()
	}

	var sum *coda.CreateSummary
	err := monitoring.Timed("create infos", func() error {
		var err error
		sum, err = coda.CreateInfos(ctx, params)
		return err
	})
	if err != nil {
		return err
	}

	for _, split := range []string{"train", "val", "test"} {
		monitoring.LogClassCounts(split, coda.ClassRecordCounts(sum.Infos[split], resolved.ClassNames))
	}
	gtCounts := make(map[string]int, len(sum.GTIndex))
	for class, entries := range sum.GTIndex {
		gtCounts[class] = len(entries)
	}
	monitoring.LogClassCounts("gt database", gtCounts)

	if f.plotPath != "" {
		return plotTrainDistribution(f.plotPath, sum.Infos["train"], resolved)
	}
	return nil
}

// plotTrainDistribution charts per-class train records before and after
// balanced resampling.
func plotTrainDistribution(path string, infos []coda.InfoRecord, resolved config.ResolvedConfig) error {
	var rng *rand.Rand
	if seed := resolved.Options.Seed; seed != nil {
		rng = rand.New(rand.NewPCG(*seed, *seed))
	}
	classes := resolved.ClassNames
	before := coda.ClassRecordCounts(infos, classes)
	after := coda.ClassRecordCounts(coda.BalancedResample(infos, classes, rng), classes)

	err := report.PlotClassDistribution(path, "CODa train records per class",
		report.Series{Label: "original", Counts: before},
		report.Series{Label: "resampled", Counts: after},
	)
	if err != nil {
		return fmt.Errorf("plot class distribution: %w", err)
	}
	monitoring.Logf("class distribution written to %s", path)
	return nil
}
