package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"echochamber/internal/sim"
)

// ErrRunNotFound is returned when no run matches the requested id
var ErrRunNotFound = errors.New("run not found")

// Run is a row in the runs table
type Run struct {
	ID         string     `json:"id"`
	CreatedAt  int64      `json:"created_at"`  // Unix millis
	FinishedAt *int64     `json:"finished_at"` // nil while in progress
	Config     sim.Config `json:"config"`
	Steps      int        `json:"steps"`
	Terminated bool       `json:"terminated"`
}

// CreateRun stores a new run for cfg and returns its id
func (d *DB) CreateRun(ctx context.Context, cfg sim.Config) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	id := uuid.NewString()
	_, err = d.conn.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, seed, nodes, topology, config)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, time.Now().UnixMilli(), int64(cfg.Seed), cfg.Nodes, string(cfg.Topology), string(raw))
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run complete with its final step count
func (d *DB) FinishRun(ctx context.Context, id string, summary *sim.RunSummary) error {
	res, err := d.conn.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, steps = ?, terminated = ? WHERE id = ?
	`, time.Now().UnixMilli(), summary.Steps, summary.Terminated, id)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var r Run
	var finished sql.NullInt64
	var raw string
	if err := scanner.Scan(&r.ID, &r.CreatedAt, &finished, &raw, &r.Steps, &r.Terminated); err != nil {
		return r, err
	}
	if finished.Valid {
		r.FinishedAt = &finished.Int64
	}
	if err := json.Unmarshal([]byte(raw), &r.Config); err != nil {
		return r, fmt.Errorf("decoding config of run %s: %w", r.ID, err)
	}
	return r, nil
}

// ListRuns returns runs newest first. limit <= 0 means all.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, created_at, finished_at, config, steps, terminated
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by id, or by unique id prefix
func (d *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("empty run id: %w", ErrRunNotFound)
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, created_at, finished_at, config, steps, terminated
		FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 2
	`, id, likePrefix(id))
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		if r.ID == id {
			return &r, nil
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("ambiguous run prefix %q", id)
	}
}

// likePrefix escapes LIKE wildcards in prefix and appends %
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
