package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/pipeline"
	"github.com/banshee-data/sarsim/internal/sar"
	"github.com/banshee-data/sarsim/internal/version"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusPersisted = "persisted"
	StatusAborted   = "aborted"
)

// ErrRunNotFound is returned when a run ID is not in the catalog.
var ErrRunNotFound = errors.New("run not found")

// Run is one catalogued run.
type Run struct {
	ID               string
	Mode             string
	InputPath        string
	OutputPath       string
	Denoise          bool
	PulseCompress    bool
	Status           string
	Error            string
	RangeResolutionM float64
	ArtifactCount    int
	Producer         string
	StartedAt        time.Time
	FinishedAt       *time.Time
}

// Artifact summarizes one artifact produced by a run.
type Artifact struct {
	RunID  string
	Seq    int
	Name   string
	Rows   int
	Cols   int
	Peak   float64
	Energy float64
}

// Stage is one stage executed (or skipped) by a run.
type Stage struct {
	RunID    string
	Seq      int
	Name     string
	Duration time.Duration
	Skipped  bool
	Error    string
}

// StartRun inserts a running row for a run with the given options and
// returns its ID.
func (c *Catalog) StartRun(opts config.Options) (string, error) {
	id := uuid.New().String()
	now := c.clock.Now().UnixNano()

	err := retryOnBusy(func() error {
		_, err := c.db.Exec(`
			INSERT INTO sar_runs (
				run_id, mode, input_path, output_path, denoise, pulse_compress,
				status, producer, started_at_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, opts.Mode.String(), opts.InputPath, opts.OutputPath,
			opts.Denoise, opts.ImagePulseCompression,
			StatusRunning, version.Version, now,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	logf("started run %s (%s)", id, opts.Mode)
	return id, nil
}

// RecordStage stores one stage record of a run.
func (c *Catalog) RecordStage(runID string, rec pipeline.StageRecord) error {
	var msg string
	if rec.Err != nil {
		msg = rec.Err.Error()
	}
	err := retryOnBusy(func() error {
		_, err := c.db.Exec(`
			INSERT INTO sar_stages (run_id, seq, stage, duration_ns, skipped, error)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, rec.Seq, rec.Name, rec.Duration.Nanoseconds(), rec.Skipped, msg,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert stage %s: %w", rec.Name, err)
	}
	return nil
}

// Observer returns a pipeline.StageObserver that records every stage of
// runID. Failed inserts are logged, not propagated: the catalog never
// aborts a run.
func (c *Catalog) Observer(runID string) pipeline.StageObserver {
	return pipeline.StageObserverFunc(func(rec pipeline.StageRecord) {
		if err := c.RecordStage(runID, rec); err != nil {
			logf("run %s: %v", runID, err)
		}
	})
}

// FinishRun marks a run persisted and stores a summary of every artifact
// in store, in creation order.
func (c *Catalog) FinishRun(runID string, store *artifact.Store, st *sar.State) error {
	now := c.clock.Now().UnixNano()
	return retryOnBusy(func() error {
		tx, err := c.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for i, a := range store.Artifacts() {
			peak, _ := a.Matrix().Peak()
			if _, err := tx.Exec(`
				INSERT INTO sar_artifacts (run_id, seq, name, n_rows, n_cols, peak, energy)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID, i, a.Name(), a.Rows, a.Cols, peak, a.Matrix().Energy(),
			); err != nil {
				return fmt.Errorf("failed to insert artifact %s: %w", a.Name(), err)
			}
		}

		res, err := tx.Exec(`
			UPDATE sar_runs
			SET status = ?, range_resolution_m = ?, artifact_count = ?, finished_at_ns = ?
			WHERE run_id = ?`,
			StatusPersisted, st.RangeResolutionM, store.Count(), now, runID,
		)
		if err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return tx.Commit()
	})
}

// AbortRun marks a run aborted with the error that ended it.
func (c *Catalog) AbortRun(runID string, runErr error) error {
	var msg string
	if runErr != nil {
		msg = runErr.Error()
	}
	now := c.clock.Now().UnixNano()

	var affected int64
	err := retryOnBusy(func() error {
		res, err := c.db.Exec(`
			UPDATE sar_runs SET status = ?, error = ?, finished_at_ns = ?
			WHERE run_id = ?`,
			StatusAborted, msg, now, runID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to abort run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `
	run_id, mode, input_path, output_path, denoise, pulse_compress, status,
	error, range_resolution_m, artifact_count, producer, started_at_ns, finished_at_ns`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s rowScanner) (*Run, error) {
	var r Run
	var started int64
	var finished sql.NullInt64
	if err := s.Scan(
		&r.ID, &r.Mode, &r.InputPath, &r.OutputPath, &r.Denoise, &r.PulseCompress,
		&r.Status, &r.Error, &r.RangeResolutionM, &r.ArtifactCount, &r.Producer,
		&started, &finished,
	); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.FinishedAt = &t
	}
	return &r, nil
}

// GetRun returns the run with the given ID.
func (c *Catalog) GetRun(runID string) (*Run, error) {
	row := c.db.QueryRow(`SELECT `+runColumns+` FROM sar_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, most recently started first. A
// non-positive limit returns every run.
func (c *Catalog) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.Query(`SELECT `+runColumns+` FROM sar_runs
		ORDER BY started_at_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListArtifacts returns the artifacts of a run in creation order.
func (c *Catalog) ListArtifacts(runID string) ([]Artifact, error) {
	rows, err := c.db.Query(`
		SELECT run_id, seq, name, n_rows, n_cols, peak, energy
		FROM sar_artifacts WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.RunID, &a.Seq, &a.Name, &a.Rows, &a.Cols, &a.Peak, &a.Energy); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListStages returns the stages of a run in execution order.
func (c *Catalog) ListStages(runID string) ([]Stage, error) {
	rows, err := c.db.Query(`
		SELECT run_id, seq, stage, duration_ns, skipped, error
		FROM sar_stages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		var s Stage
		var ns int64
		if err := rows.Scan(&s.RunID, &s.Seq, &s.Name, &ns, &s.Skipped, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		s.Duration = time.Duration(ns)
		out = append(out, s)
	}
	return out, rows.Err()
}
