package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/simulation"
	"github.com/banshee-data/ejecta.report/internal/spectrum"
	"github.com/banshee-data/ejecta.report/internal/transport"
)

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Spectrum kinds.
const (
	SpectrumReal       = "real"
	SpectrumVirtual    = "virtual"
	SpectrumReabsorbed = "reabsorbed"
)

// Run is a stored run summary.
type Run struct {
	RunID             string                          `json:"run_id"`
	Status            RunStatus                       `json:"status"`
	ConfigJSON        json.RawMessage                 `json:"config"`
	StartedAt         time.Time                       `json:"started_at"`
	FinishedAt        *time.Time                      `json:"finished_at,omitempty"`
	Iterations        int                             `json:"iterations"`
	Converged         bool                            `json:"converged"`
	Degraded          bool                            `json:"degraded"`
	TInner            float64                         `json:"t_inner,omitempty"`
	LuminosityEmitted float64                         `json:"luminosity_emitted,omitempty"`
	Energy            *transport.EnergyBalance        `json:"energy,omitempty"`
	Warnings          []simulation.ConvergenceWarning `json:"warnings,omitempty"`
	Error             string                          `json:"error,omitempty"`
}

// ShellState is one stored shell of the final plasma state.
type ShellState struct {
	Shell           int     `json:"shell"`
	VInner          float64 `json:"v_inner"` // cm/s
	VOuter          float64 `json:"v_outer"`
	TRad            float64 `json:"t_rad"`
	W               float64 `json:"w"`
	TElectron       float64 `json:"t_electron"`
	ElectronDensity float64 `json:"electron_density"`
	SolverConverged bool    `json:"solver_converged"`
}

// SpectrumBin is one stored spectrum bin.
type SpectrumBin struct {
	NuLower    float64 `json:"nu_lower"`
	NuUpper    float64 `json:"nu_upper"`
	Luminosity float64 `json:"luminosity"` // erg/s in the bin
}

// CreateRun stores a new run in the running state and returns its ID.
func (s *Store) CreateRun(ctx context.Context, cfg *config.RunConfig, startedAt time.Time) (string, error) {
	cfgJSON, err := cfg.ToJSON()
	if err != nil {
		return "", err
	}
	runID := uuid.New().String()
	err = retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO runs (run_id, status, config_json, started_at)
			VALUES (?, ?, ?, ?)`,
			runID, RunStatusRunning, cfgJSON, startedAt.UnixNano())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// RecordIteration stores one iteration's diagnostics. Recording the same
// iteration twice replaces the earlier record.
func (s *Store) RecordIteration(ctx context.Context, runID string, d simulation.IterationDiagnostics) error {
	blob, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO iterations (
				run_id, iteration, t_inner, next_t_inner, luminosity_emitted,
				fraction_converged, converged, diagnostics_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, d.Iteration, d.TInner, d.NextTInner, d.LuminosityEmitted,
			d.FractionConverged, boolInt(d.Converged), string(blob))
		return err
	})
}

// CompleteRun stores the outcome of a finished run: the summary, the final
// shell state and every spectrum the run produced.
func (s *Store) CompleteRun(ctx context.Context, runID string, grid *model.Grid, res *simulation.Result, finishedAt time.Time) error {
	energy, err := json.Marshal(res.Final.Energy)
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(res.Warnings)
	if err != nil {
		return err
	}
	lEmitted := 0.0
	if res.Spectrum != nil {
		lEmitted = res.Spectrum.Total()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, `
			UPDATE runs SET status = ?, finished_at = ?, iterations = ?, converged = ?,
				degraded = ?, t_inner = ?, luminosity_emitted = ?, energy_json = ?, warnings_json = ?
			WHERE run_id = ?`,
			RunStatusCompleted, finishedAt.UnixNano(), res.Iterations, boolInt(res.Converged),
			boolInt(res.Degraded), res.State.TInner, lEmitted, string(energy), string(warnings), runID)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if err := expectOne(r, runID); err != nil {
			return err
		}

		for i := 0; i < res.State.NumShells(); i++ {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO shell_states (
					run_id, shell, v_inner, v_outer, t_rad, w, t_electron, electron_density, solver_converged
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, i, grid.VInner[i], grid.VOuter[i], res.State.TRad[i], res.State.W[i],
				res.State.TElectron[i], res.State.ElectronDensity[i], boolInt(res.State.SolverConverged[i])); err != nil {
				return fmt.Errorf("insert shell %d: %w", i, err)
			}
		}

		spectra := map[string]*spectrum.Spectrum{
			SpectrumReal:       res.Spectrum,
			SpectrumVirtual:    res.VirtualSpectrum,
			SpectrumReabsorbed: res.Final.ReabsorbedSpectrum,
		}
		for kind, sp := range spectra {
			if sp == nil {
				continue
			}
			if err := insertSpectrum(ctx, tx, runID, kind, sp); err != nil {
				return err
			}
		}
		return nil
	})
}

// FailRun marks a run as failed with the given cause.
func (s *Store) FailRun(ctx context.Context, runID string, cause error, finishedAt time.Time) error {
	return retryOnBusy(func() error {
		r, err := s.db.ExecContext(ctx, `
			UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE run_id = ?`,
			RunStatusFailed, finishedAt.UnixNano(), cause.Error(), runID)
		if err != nil {
			return err
		}
		return expectOne(r, runID)
	})
}

func insertSpectrum(ctx context.Context, tx *sql.Tx, runID, kind string, sp *spectrum.Spectrum) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO spectra (run_id, kind, bin, nu_lower, nu_upper, luminosity)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	edges := sp.Edges()
	for i, l := range sp.Luminosity() {
		if _, err := stmt.ExecContext(ctx, runID, kind, i, edges[i], edges[i+1], l); err != nil {
			return fmt.Errorf("insert %s spectrum bin %d: %w", kind, i, err)
		}
	}
	return nil
}

func expectOne(r sql.Result, runID string) error {
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `run_id, status, config_json, started_at, finished_at, iterations, converged,
	degraded, t_inner, luminosity_emitted, energy_json, warnings_json, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                     Run
		cfgJSON               string
		startedAt             int64
		finishedAt            sql.NullInt64
		converged, degraded   int
		tInner, lEmitted      sql.NullFloat64
		energy, warnings, msg sql.NullString
	)
	if err := row.Scan(&r.RunID, &r.Status, &cfgJSON, &startedAt, &finishedAt, &r.Iterations, &converged,
		&degraded, &tInner, &lEmitted, &energy, &warnings, &msg); err != nil {
		return nil, err
	}
	r.ConfigJSON = json.RawMessage(cfgJSON)
	r.StartedAt = time.Unix(0, startedAt).UTC()
	if finishedAt.Valid {
		t := time.Unix(0, finishedAt.Int64).UTC()
		r.FinishedAt = &t
	}
	r.Converged = converged != 0
	r.Degraded = degraded != 0
	r.TInner = tInner.Float64
	r.LuminosityEmitted = lEmitted.Float64
	r.Error = msg.String
	if energy.Valid {
		r.Energy = &transport.EnergyBalance{}
		if err := json.Unmarshal([]byte(energy.String), r.Energy); err != nil {
			return nil, fmt.Errorf("decode energy of run %s: %w", r.RunID, err)
		}
	}
	if warnings.Valid {
		if err := json.Unmarshal([]byte(warnings.String), &r.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings of run %s: %w", r.RunID, err)
		}
	}
	return &r, nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and everything stored with it.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	return retryOnBusy(func() error {
		r, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		return expectOne(r, runID)
	})
}

// Iterations returns the stored diagnostics of a run in iteration order.
func (s *Store) Iterations(ctx context.Context, runID string) ([]simulation.IterationDiagnostics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT diagnostics_json FROM iterations WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var out []simulation.IterationDiagnostics
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var d simulation.IterationDiagnostics
		if err := json.Unmarshal([]byte(blob), &d); err != nil {
			return nil, fmt.Errorf("decode iteration: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ShellStates returns the final shell state of a run.
func (s *Store) ShellStates(ctx context.Context, runID string) ([]ShellState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT shell, v_inner, v_outer, t_rad, w, t_electron, electron_density, solver_converged
		FROM shell_states WHERE run_id = ? ORDER BY shell`, runID)
	if err != nil {
		return nil, fmt.Errorf("query shell states: %w", err)
	}
	defer rows.Close()

	var out []ShellState
	for rows.Next() {
		var sh ShellState
		var ok int
		if err := rows.Scan(&sh.Shell, &sh.VInner, &sh.VOuter, &sh.TRad, &sh.W, &sh.TElectron, &sh.ElectronDensity, &ok); err != nil {
			return nil, err
		}
		sh.SolverConverged = ok != 0
		out = append(out, sh)
	}
	return out, rows.Err()
}

// Spectrum returns the stored bins of one spectrum kind, ascending in
// frequency. A kind the run did not produce yields no bins.
func (s *Store) Spectrum(ctx context.Context, runID, kind string) ([]SpectrumBin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT nu_lower, nu_upper, luminosity FROM spectra
		WHERE run_id = ? AND kind = ? ORDER BY bin`, runID, kind)
	if err != nil {
		return nil, fmt.Errorf("query spectrum: %w", err)
	}
	defer rows.Close()

	var out []SpectrumBin
	for rows.Next() {
		var b SpectrumBin
		if err := rows.Scan(&b.NuLower, &b.NuUpper, &b.Luminosity); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
