package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/ejecta.report/internal/atomdata"
	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/fsutil"
	"github.com/banshee-data/ejecta.report/internal/monitoring"
	"github.com/banshee-data/ejecta.report/internal/report"
	"github.com/banshee-data/ejecta.report/internal/simulation"
	"github.com/banshee-data/ejecta.report/internal/store"
	"github.com/banshee-data/ejecta.report/internal/timeutil"
	"github.com/banshee-data/ejecta.report/internal/version"
)

type options struct {
	ConfigPath string
	DBPath     string
	OutDir     string
	Workers    int   // < 0 keeps the config value
	Seed       int64 // < 0 keeps the config value

	FS    fsutil.FileSystem // nil writes to disk
	Clock timeutil.Clock    // nil uses the wall clock
}

type outcome struct {
	RunID  string
	Result *simulation.Result
	Files  []string
}

func loadConfig(o options) (*config.RunConfig, error) {
	cfg := config.DefaultRunConfig()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadRunConfig(o.ConfigPath); err != nil {
			return nil, err
		}
	}
	if o.Workers >= 0 {
		w := o.Workers
		cfg.MonteCarlo.Workers = &w
	}
	if o.Seed >= 0 {
		s := uint64(o.Seed)
		cfg.MonteCarlo.Seed = &s
	}
	return cfg, cfg.Validate()
}

// run executes one simulation, records it when a database is configured and
// writes the report.
func run(ctx context.Context, o options) (*outcome, error) {
	clock := o.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	table, err := atomdata.Load(cfg.GetAtomData())
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[ejecta] %s, atomic data %s: %d ions, %d levels, %d lines",
		version.String(), cfg.GetAtomData(), len(table.Ions), len(table.Levels), table.NumLines())

	simOpts := []simulation.Option{simulation.WithClock(clock)}
	out := &outcome{}

	var db *store.Store
	if o.DBPath != "" {
		if db, err = store.Open(o.DBPath); err != nil {
			return nil, err
		}
		defer db.Close()
		// Run bookkeeping outlives cancellation of the simulation itself.
		if out.RunID, err = db.CreateRun(context.WithoutCancel(ctx), cfg, clock.Now()); err != nil {
			return nil, err
		}
		simOpts = append(simOpts, simulation.WithObserver(store.NewRecorder(db, out.RunID)))
		monitoring.Logf("[ejecta] recording run %s in %s", out.RunID, o.DBPath)
	}

	sim, err := simulation.New(cfg, table, simOpts...)
	if err == nil {
		out.Result, err = sim.Run(ctx)
	}
	if err != nil {
		if db != nil {
			if ferr := db.FailRun(context.WithoutCancel(ctx), out.RunID, err, clock.Now()); ferr != nil {
				err = errors.Join(err, ferr)
			}
		}
		return nil, err
	}
	if db != nil {
		if err := db.CompleteRun(ctx, out.RunID, sim.Grid(), out.Result, clock.Now()); err != nil {
			return nil, err
		}
	}

	title := fmt.Sprintf("%d shells, t=%.1f d, T_inner=%.0f K", sim.Grid().NumShells(),
		cfg.Supernova.GetTimeExplosionDays(), out.Result.State.TInner)
	w := report.NewWriter(o.FS, o.OutDir, title)
	if out.Files, err = w.WriteAll(out.RunID, sim.Grid(), out.Result); err != nil {
		return nil, err
	}
	if out.Result.Degraded {
		monitoring.Logf("[ejecta] run finished degraded with %d warnings", len(out.Result.Warnings))
	}
	return out, nil
}

func listRuns(ctx context.Context, w io.Writer, path string) error {
	if path == "" {
		return errors.New("runs requires -db")
	}
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tITERATIONS\tCONVERGED\tT_INNER\tL_EMITTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%.1f\t%.4e\n",
			r.RunID, r.Status, r.StartedAt.Format(time.RFC3339), r.Iterations, r.Converged, r.TInner, r.LuminosityEmitted)
	}
	return tw.Flush()
}

func migrateCommand(w io.Writer, path string, args []string) error {
	if path == "" {
		return errors.New("migrate requires -db")
	}
	if len(args) != 1 {
		return errors.New("usage: migrate up|down|status")
	}
	// Open applies pending migrations, so "up" needs nothing further.
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	switch args[0] {
	case "up", "status":
	case "down":
		if err := db.MigrateDown(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown migrate action %q", args[0])
	}
	v, dirty, err := db.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schema version %d (dirty=%t)\n", v, dirty)
	return nil
}
