package db

import (
	"context"
	"fmt"

	"echochamber/internal/sim"
)

// Recorder persists every observed tick of one simulation under a new run
type Recorder struct {
	db    *DB
	runID string
}

// NewRecorder creates the run row for cfg and returns a collector writing to it
func NewRecorder(ctx context.Context, d *DB, cfg sim.Config) (*Recorder, error) {
	id, err := d.CreateRun(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return &Recorder{db: d, runID: id}, nil
}

// RunID returns the id of the run being recorded
func (r *Recorder) RunID() string { return r.runID }

// Collect implements sim.Collector
func (r *Recorder) Collect(stats *sim.StepStats) error {
	return r.db.RecordStep(context.Background(), r.runID, stats)
}

// Finish stamps the run with the driver's summary
func (r *Recorder) Finish(ctx context.Context, summary *sim.RunSummary) error {
	return r.db.FinishRun(ctx, r.runID, summary)
}
