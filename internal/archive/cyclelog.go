// Package archive writes and reads zstd-compressed JSONL cycle logs, one
// file per run.
package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/regionsim/internal/engine"
)

// maxLine bounds a single decoded cycle log line.
const maxLine = 16 << 20

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("cycle log closed")

// Path returns the cycle log file for a run inside dir.
func Path(dir, runID string) string {
	return filepath.Join(dir, runID+".jsonl.zst")
}

// Writer appends one JSON line per cycle to a compressed file.
type Writer struct {
	mu   sync.Mutex
	path string
	f    *os.File
	enc  *zstd.Encoder
	w    *bufio.Writer
	n    int
}

// Create opens a new cycle log for runID in dir, replacing any existing file.
func Create(dir, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := Path(dir, runID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open cycle log: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &Writer{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Path returns the file being written.
func (w *Writer) Path() string { return w.path }

// Count returns the number of cycles written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Write appends one cycle log. It matches engine.Runner.OnCycle.
func (w *Writer) Write(log engine.CycleLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return ErrClosed
	}

	b, err := json.Marshal(log)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.n++
	return nil
}

// Close flushes and finishes the compressed stream.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}

	errFlush := w.w.Flush()
	errEnc := w.enc.Close()
	errFile := w.f.Close()
	w.w, w.enc, w.f = nil, nil, nil
	return errors.Join(errFlush, errEnc, errFile)
}

// Read decodes every cycle log in a file, in write order.
func Read(path string) ([]engine.CycleLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var logs []engine.CycleLog
	err = Scan(f, func(log engine.CycleLog) error {
		logs = append(logs, log)
		return nil
	})
	return logs, err
}

// Scan streams cycle logs from a compressed reader, stopping at the first
// error returned by fn.
func Scan(r io.Reader, fn func(engine.CycleLog) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		var log engine.CycleLog
		if err := json.Unmarshal(sc.Bytes(), &log); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(log); err != nil {
			return err
		}
	}
	return sc.Err()
}
