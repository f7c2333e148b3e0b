package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/pumpsim/internal/schedule"
)

// TraceWriter appends one JSON line per executed event to a zstd file.
// Two runs with the same seed produce byte-identical traces.
type TraceWriter struct {
	path string

	mu    sync.Mutex
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	lines uint64
	err   error // first write error; later writes are dropped
}

// NewTraceWriter creates dir if needed and opens <dir>/<prefix>-<seed>.jsonl.zst,
// truncating any earlier trace of the same run.
func NewTraceWriter(dir, prefix string, seed int64) (*TraceWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.jsonl.zst", prefix, seed))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &TraceWriter{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Path returns the trace file.
func (t *TraceWriter) Path() string { return t.path }

// Lines returns how many records were written.
func (t *TraceWriter) Lines() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lines
}

// Err returns the first write error, if any.
func (t *TraceWriter) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Write appends v as one JSON line.
func (t *TraceWriter) Write(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	if t.w == nil {
		return os.ErrClosed
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(b); err != nil {
		t.err = err
		return err
	}
	if err := t.w.WriteByte('\n'); err != nil {
		t.err = err
		return err
	}
	t.lines++
	return nil
}

// Fired records one scheduler execution. It fits Scheduler.SetTrace.
func (t *TraceWriter) Fired(f schedule.Fired) {
	_ = t.Write(f)
}

// Close flushes and closes the file.
func (t *TraceWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err1 error
	if t.w != nil {
		err1 = t.w.Flush()
	}
	if t.enc != nil {
		if err := t.enc.Close(); err1 == nil {
			err1 = err
		}
		t.enc = nil
	}
	if t.f != nil {
		if err := t.f.Close(); err1 == nil {
			err1 = err
		}
		t.f = nil
	}
	t.w = nil
	return err1
}

// ReadTrace decodes a trace written by TraceWriter.
func ReadTrace(path string) ([]schedule.Fired, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []schedule.Fired
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec schedule.Fired
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("trace line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
