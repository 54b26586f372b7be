package recording

// ============================================================================
// Recording persistence
//
//   - One event per line in the RecordedEvent text format
//   - Save is atomic: temp file in the target directory, fsync, rename
//   - Load is fail-fast: the first malformed line rejects the whole file
// ============================================================================

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/TeYo001/Mimic/pkg/types"
)

// FileStore reads and writes recordings on the local filesystem
type FileStore struct {
	mu sync.Mutex // serializes file operations
}

// NewFileStore creates a FileStore
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Save writes events to path, replacing any existing file
func (s *FileStore) Save(path string, events []types.RecordedEvent) error {
	if path == "" {
		return ErrNoFilename
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp recording: %w", err)
	}
	tmpPath := tmp.Name()

	// any failure below leaves the original file untouched
	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to %s recording: %w", step, err)
	}

	w := bufio.NewWriter(tmp)
	if err := Encode(w, events); err != nil {
		return fail("encode", err)
	}
	if err := w.Flush(); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close recording: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod recording: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename recording: %w", err)
	}
	return nil
}

// Load reads every event from path
func (s *FileStore) Load(path string) ([]types.RecordedEvent, error) {
	if path == "" {
		return nil, ErrNoFilename
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRecordingNotFound, path)
		}
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	events, err := Decode(f)
	if err != nil {
		var le *LineError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRecording, path)
	}
	return events, nil
}

// Encode writes events to w, each terminated by a newline
func Encode(w io.Writer, events []types.RecordedEvent) error {
	for i, e := range events {
		line, err := e.MarshalText()
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads events from r until EOF. Empty lines are ignored.
func Decode(r io.Reader) ([]types.RecordedEvent, error) {
	var events []types.RecordedEvent

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		e, err := types.ParseEvent(text)
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	return events, nil
}
