// Command ejecta runs a Monte Carlo radiative-transfer simulation of a
// supernova ejecta model and writes the spectrum and convergence report.
//
//	ejecta -config run.json -out out/w7 -db runs.db
//	ejecta -db runs.db runs
//	ejecta -db runs.db migrate status
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/ejecta.report/internal/monitoring"
	"github.com/banshee-data/ejecta.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Run configuration JSON (defaults to the built-in sample run)")
	dbPath      = flag.String("db", "", "SQLite database for run records (disabled when empty)")
	outDir      = flag.String("out", "out", "Directory for spectra, plots and the HTML report")
	workers     = flag.Int("workers", -1, "Transport and plasma workers; 0 uses every CPU, -1 keeps the config value")
	seed        = flag.Int64("seed", -1, "Override the Monte Carlo seed (-1 keeps the config value)")
	verbose     = flag.Bool("verbose", false, "Log per-shell tables and phase changes")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [runs | migrate up|down|status]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("ejecta", version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	var err error
	switch {
	case len(args) == 0:
		_, err = run(ctx, options{
			ConfigPath: *configPath,
			DBPath:     *dbPath,
			OutDir:     *outDir,
			Workers:    *workers,
			Seed:       *seed,
		})
	case args[0] == "runs":
		err = listRuns(ctx, os.Stdout, *dbPath)
	case args[0] == "migrate":
		err = migrateCommand(os.Stdout, *dbPath, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("ejecta: %v", err)
	}
}
