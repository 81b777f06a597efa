// Command coda-submit turns model predictions for a CODa split into
// KITTI-format submission files and evaluates them against the split's
// ground truth.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/coda-infos/internal/coda"
	"github.com/banshee-data/coda-infos/internal/config"
	"github.com/banshee-data/coda-infos/internal/eval"
	"github.com/banshee-data/coda-infos/internal/fsutil"
	"github.com/banshee-data/coda-infos/internal/monitoring"
	"github.com/banshee-data/coda-infos/internal/storage/sqlite"
	"github.com/banshee-data/coda-infos/internal/version"
)

type flags struct {
	configPath      string
	dataPath        string
	predictionsPath string
	outputDir       string
	catalogPath     string
	verbose         bool
	showVersion     bool
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("coda-submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "dataset config JSON (optional)")
	fs.StringVar(&f.dataPath, "data", "data/coda", "dataset root")
	fs.StringVar(&f.predictionsPath, "predictions", "", "model predictions JSON")
	fs.StringVar(&f.outputDir, "output", "", "directory for per-frame submission files")
	fs.StringVar(&f.catalogPath, "catalog", "", "sqlite catalog to record the evaluation in")
	fs.BoolVar(&f.verbose, "verbose", false, "log per-frame progress")
	fs.BoolVar(&f.showVersion, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.predictionsPath == "" && !f.showVersion {
		return f, fmt.Errorf("-predictions is required")
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if f.showVersion {
		fmt.Println(version.String("coda-submit"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("coda-submit: %v", err)
	}
}

func run(ctx context.Context, f flags, stdout, stderr io.Writer) error {
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

	d, err := coda.NewDataset(resolved.Options, resolved.ClassNames, false, f.dataPath, fsutil.OSFileSystem{})
	if err != nil {
		return err
	}
	if len(d.Infos()) == 0 {
		return fmt.Errorf("no infos loaded for split %s under %s", d.Split(), f.dataPath)
	}

	preds, err := readPredictions(f.predictionsPath)
	if err != nil {
		return err
	}
	batch, aligned, err := alignBatch(d.Infos(), preds)
	if err != nil {
		return err
	}

	var records []coda.PredictionRecord
	err = monitoring.Timed("serialize predictions", func() error {
		var err error
		records, err = d.GeneratePredictionDicts(batch, aligned, resolved.ClassNames, f.outputDir)
		return err
	})
	if err != nil {
		return err
	}

	var res coda.EvalResult
	err = monitoring.Timed("evaluate", func() error {
		var err error
		res, err = d.Evaluation(eval.NewKITTIEvaluator(), records, resolved.ClassNames)
		return err
	})
	if err != nil {
		return err
	}
	if res.Available {
		fmt.Fprint(stdout, res.Report)
	} else {
		fmt.Fprintf(stdout, "split %s has no ground truth; submission files only\n", d.Split())
	}

	if f.catalogPath == "" {
		return nil
	}
	catalog, err := sqlite.Open(f.catalogPath)
	if err != nil {
		return err
	}
	defer catalog.Close()
	rec := sqlite.NewEvaluation(d.Split(), resolved.ClassNames, len(records), res)
	if err := catalog.Evaluations().Insert(ctx, rec); err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}
	monitoring.Logf("evaluation %s recorded in %s", rec.EvaluationID, f.catalogPath)
	return nil
}
