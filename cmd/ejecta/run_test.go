package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/fsutil"
	"github.com/banshee-data/ejecta.report/internal/monitoring"
	"github.com/banshee-data/ejecta.report/internal/report"
	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/store"
	"github.com/banshee-data/ejecta.report/internal/testutil"
	"github.com/banshee-data/ejecta.report/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// writeSmallConfig writes a quick three-shell run and returns its path.
func writeSmallConfig(t *testing.T) string {
	t.Helper()
	cfg := config.DefaultRunConfig()
	shells, packets, iterations := 3, 300, 2
	cfg.Model.Velocity.Num = &shells
	cfg.MonteCarlo.NoOfPackets = &packets
	cfg.MonteCarlo.Iterations = &iterations
	data, err := cfg.ToJSON()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestRunRecordsAndReports(t *testing.T) {
	ctx := context.Background()
	mem := fsutil.NewMemoryFileSystem()
	dbPath := testutil.TempDBPath(t)

	out, err := run(ctx, options{
		ConfigPath: writeSmallConfig(t),
		DBPath:     dbPath,
		OutDir:     "out",
		Workers:    2,
		Seed:       7,
		FS:         mem,
		Clock:      timeutil.NewSteppingClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), time.Second),
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.RunID)
	assert.Equal(t, 2, out.Result.Iterations)
	assert.True(t, mem.Exists(filepath.Join("out", report.SummaryJSON)))
	assert.ElementsMatch(t, out.Files, mem.Files("out"))

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	r, err := db.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusCompleted, r.Status)
	assert.Equal(t, 2, r.Iterations)
	its, err := db.Iterations(ctx, out.RunID)
	require.NoError(t, err)
	assert.Len(t, its, 2)

	var buf bytes.Buffer
	require.NoError(t, listRuns(ctx, &buf, dbPath))
	assert.Contains(t, buf.String(), out.RunID)
	assert.Contains(t, buf.String(), "completed")
}

func TestRunWithoutDatabase(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	out, err := run(context.Background(), options{ConfigPath: writeSmallConfig(t), OutDir: "report", Workers: -1, Seed: -1, FS: mem})
	require.NoError(t, err)
	assert.Empty(t, out.RunID)
	assert.NotEmpty(t, mem.Files("report"))
}

func TestRunFailures(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		_, err := run(context.Background(), options{ConfigPath: filepath.Join(t.TempDir(), "nope.json"), FS: fsutil.NewMemoryFileSystem()})
		assert.Error(t, err)
	})

	t.Run("cancelled run is recorded as failed", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		dbPath := testutil.TempDBPath(t)
		_, err := run(ctx, options{ConfigPath: writeSmallConfig(t), DBPath: dbPath, Workers: -1, Seed: -1, FS: fsutil.NewMemoryFileSystem()})
		require.ErrorIs(t, err, context.Canceled)

		db, err := store.Open(dbPath)
		require.NoError(t, err)
		defer db.Close()
		runs, err := db.ListRuns(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, store.RunStatusFailed, runs[0].Status)
		assert.NotEmpty(t, runs[0].Error)
	})
}

func TestLoadConfigOverrides(t *testing.T) {
	testCases := []struct {
		name        string
		workers     int
		seed        int64
		wantWorkers *int
		wantSeed    uint64
	}{
		{"keep config", -1, -1, nil, config.DefaultRunConfig().MonteCarlo.GetSeed()},
		{"override", 3, 42, ptr(3), 42},
		{"all cpus", 0, 0, ptr(0), 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := loadConfig(options{Workers: tc.workers, Seed: tc.seed})
			require.NoError(t, err)
			assert.Equal(t, tc.wantWorkers, cfg.MonteCarlo.Workers)
			assert.Equal(t, tc.wantSeed, cfg.MonteCarlo.GetSeed())
		})
	}

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"montecarlo": {"iterations": 0}}`), 0o644))
		_, err := loadConfig(options{ConfigPath: path, Workers: -1, Seed: -1})
		assert.ErrorIs(t, err, simerr.ErrConfiguration)
	})
}

func ptr[T any](v T) *T { return &v }

func TestMigrateCommand(t *testing.T) {
	dbPath := testutil.TempDBPath(t)
	var buf bytes.Buffer

	require.NoError(t, migrateCommand(&buf, dbPath, []string{"status"}))
	assert.Equal(t, "schema version 1 (dirty=false)\n", buf.String())

	buf.Reset()
	require.NoError(t, migrateCommand(&buf, dbPath, []string{"down"}))
	assert.Equal(t, "schema version 0 (dirty=false)\n", buf.String())

	assert.Error(t, migrateCommand(&buf, dbPath, []string{"sideways"}))
	assert.Error(t, migrateCommand(&buf, dbPath, nil))
	assert.Error(t, migrateCommand(&buf, "", []string{"up"}))
	assert.Error(t, listRuns(context.Background(), &buf, ""))
}
