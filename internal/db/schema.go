package db

import "fmt"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	created_at  INTEGER NOT NULL,
	finished_at INTEGER,
	seed        INTEGER NOT NULL,
	nodes       INTEGER NOT NULL,
	topology    TEXT NOT NULL,
	config      TEXT NOT NULL,
	steps       INTEGER NOT NULL DEFAULT 0,
	terminated  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS steps (
	run_id                TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	step                  INTEGER NOT NULL,
	running               INTEGER NOT NULL,
	conservative          INTEGER NOT NULL,
	progressive           INTEGER NOT NULL,
	neutral               INTEGER NOT NULL,
	humans                INTEGER NOT NULL,
	bots                  INTEGER NOT NULL,
	cons_prog_ratio       REAL,
	cluster_count         INTEGER NOT NULL,
	exact_cluster_count   INTEGER NOT NULL,
	avg_cluster_size      REAL NOT NULL,
	cluster_node_ratio    REAL NOT NULL,
	cross_interactions    INTEGER NOT NULL,
	conservative_clusters INTEGER NOT NULL,
	conservative_avg_size INTEGER NOT NULL,
	progressive_clusters  INTEGER NOT NULL,
	progressive_avg_size  INTEGER NOT NULL,
	largest_cluster       INTEGER NOT NULL,
	size_std_dev          REAL NOT NULL,
	interactions          INTEGER NOT NULL,
	PRIMARY KEY (run_id, step)
);
`

func (d *DB) migrate() error {
	if _, err := d.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
