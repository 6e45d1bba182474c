// Package export writes per-tick statistics as zstd-compressed JSON lines.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"echochamber/internal/sim"
)

// Ext is the file extension of an export
const Ext = ".jsonl.zst"

// StepWriter appends one JSON line per tick to a compressed file. It
// implements sim.Collector.
type StepWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// PathFor returns the export file of a run inside dir
func PathFor(dir, runID string) string {
	return filepath.Join(dir, runID+Ext)
}

// NewStepWriter creates (or truncates) the export file for runID in dir
func NewStepWriter(dir, runID string) (*StepWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	path := PathFor(dir, runID)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating export file: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &StepWriter{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Path returns the file being written
func (w *StepWriter) Path() string { return w.path }

// Collect implements sim.Collector
func (w *StepWriter) Collect(stats *sim.StepStats) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return fmt.Errorf("writing step %d: export closed", stats.Step)
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding step %d: %w", stats.Step, err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes and finishes the zstd frame. Closing twice is a no-op.
func (w *StepWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.w != nil {
		err = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	return err
}

// ReadSteps decodes every tick from an export stream
func ReadSteps(r io.Reader) ([]sim.StepStats, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	var steps []sim.StepStats
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var s sim.StepStats
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("decoding line %d: %w", len(steps)+1, err)
		}
		steps = append(steps, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	return steps, nil
}

// ReadFile decodes an export file
func ReadFile(path string) ([]sim.StepStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()
	return ReadSteps(f)
}
