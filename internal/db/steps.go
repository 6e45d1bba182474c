package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"echochamber/internal/sim"
)

// StepRecord is a row in the steps table: the scalar statistics of one tick.
// The per-node cluster assignment and the interaction descriptions are not
// stored; Interactions is their count.
type StepRecord struct {
	RunID         string     `json:"run_id"`
	Step          int        `json:"step"`
	Running       bool       `json:"running"`
	Counts        sim.Counts `json:"counts"`
	ConsProgRatio sim.Ratio  `json:"cons_prog_ratio"`

	ClusterCount         int     `json:"cluster_count"`
	ExactClusterCount    int     `json:"exact_cluster_count"`
	AvgClusterSize       float64 `json:"avg_cluster_size"`
	ClusterToNodeRatio   float64 `json:"cluster_to_node_ratio"`
	CrossInteractions    int     `json:"cross_interactions"`
	ConservativeClusters int     `json:"conservative_clusters"`
	ConservativeAvgSize  int     `json:"conservative_avg_size"`
	ProgressiveClusters  int     `json:"progressive_clusters"`
	ProgressiveAvgSize   int     `json:"progressive_avg_size"`
	LargestCluster       int     `json:"largest_cluster"`
	SizeStdDev           float64 `json:"size_std_dev"`

	Interactions int `json:"interactions"`
}

// NewStepRecord flattens tick statistics for storage
func NewStepRecord(runID string, s *sim.StepStats) StepRecord {
	c := s.Clusters
	return StepRecord{
		RunID:                runID,
		Step:                 s.Step,
		Running:              s.Running,
		Counts:               s.Counts,
		ConsProgRatio:        s.ConsProgRatio,
		ClusterCount:         c.Count,
		ExactClusterCount:    c.ExactCount,
		AvgClusterSize:       c.AvgSize,
		ClusterToNodeRatio:   c.ClusterToNodeRatio,
		CrossInteractions:    c.CrossInteractions,
		ConservativeClusters: c.ConservativeCount,
		ConservativeAvgSize:  c.ConservativeAvgSize,
		ProgressiveClusters:  c.ProgressiveCount,
		ProgressiveAvgSize:   c.ProgressiveAvgSize,
		LargestCluster:       c.Largest,
		SizeStdDev:           c.SizeStdDev,
		Interactions:         len(s.Interactions),
	}
}

// RecordStep stores one tick. A ratio with no progressives is stored as NULL.
func (d *DB) RecordStep(ctx context.Context, runID string, s *sim.StepStats) error {
	r := NewStepRecord(runID, s)

	var ratio any
	if !r.ConsProgRatio.IsInf() {
		ratio = float64(r.ConsProgRatio)
	}

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO steps (
			run_id, step, running,
			conservative, progressive, neutral, humans, bots, cons_prog_ratio,
			cluster_count, exact_cluster_count, avg_cluster_size, cluster_node_ratio,
			cross_interactions, conservative_clusters, conservative_avg_size,
			progressive_clusters, progressive_avg_size, largest_cluster, size_std_dev,
			interactions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID, r.Step, r.Running,
		r.Counts.Conservative, r.Counts.Progressive, r.Counts.Neutral, r.Counts.Humans, r.Counts.Bots, ratio,
		r.ClusterCount, r.ExactClusterCount, r.AvgClusterSize, r.ClusterToNodeRatio,
		r.CrossInteractions, r.ConservativeClusters, r.ConservativeAvgSize,
		r.ProgressiveClusters, r.ProgressiveAvgSize, r.LargestCluster, r.SizeStdDev,
		r.Interactions,
	)
	if err != nil {
		return fmt.Errorf("inserting step %d of run %s: %w", s.Step, runID, err)
	}
	return nil
}

func scanStep(scanner interface{ Scan(dest ...any) error }) (StepRecord, error) {
	var r StepRecord
	var ratio sql.NullFloat64
	err := scanner.Scan(
		&r.RunID, &r.Step, &r.Running,
		&r.Counts.Conservative, &r.Counts.Progressive, &r.Counts.Neutral, &r.Counts.Humans, &r.Counts.Bots, &ratio,
		&r.ClusterCount, &r.ExactClusterCount, &r.AvgClusterSize, &r.ClusterToNodeRatio,
		&r.CrossInteractions, &r.ConservativeClusters, &r.ConservativeAvgSize,
		&r.ProgressiveClusters, &r.ProgressiveAvgSize, &r.LargestCluster, &r.SizeStdDev,
		&r.Interactions,
	)
	if err != nil {
		return r, err
	}
	if ratio.Valid {
		r.ConsProgRatio = sim.Ratio(ratio.Float64)
	} else {
		r.ConsProgRatio = sim.Ratio(math.Inf(1))
	}
	return r, nil
}

// StepsForRun returns the recorded ticks of a run in step order, starting
// at step from. limit <= 0 means all.
func (d *DB) StepsForRun(ctx context.Context, runID string, from, limit int) ([]StepRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT run_id, step, running,
		       conservative, progressive, neutral, humans, bots, cons_prog_ratio,
		       cluster_count, exact_cluster_count, avg_cluster_size, cluster_node_ratio,
		       cross_interactions, conservative_clusters, conservative_avg_size,
		       progressive_clusters, progressive_avg_size, largest_cluster, size_std_dev,
		       interactions
		FROM steps WHERE run_id = ? AND step >= ?
		ORDER BY step LIMIT ?
	`, runID, from, limit)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		r, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, r)
	}
	return steps, rows.Err()
}
