package recording

// ============================================================================
// Recording Error Definitions
// ============================================================================

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRecording indicates a recording file without a single event
	ErrEmptyRecording = errors.New("recording: file has no events")

	// ErrRecordingNotFound indicates the recording file does not exist
	ErrRecordingNotFound = errors.New("recording: file not found")

	// ErrNoFilename indicates neither the action nor the store named a file
	ErrNoFilename = errors.New("recording: no filename")
)

// LineError pinpoints the line that made a load fail. Loading is all or
// nothing, so the first bad line rejects the whole file.
type LineError struct {
	Path string // file being read, empty when decoding a plain reader
	Line int    // 1-based line number
	Err  error  // underlying parse error
}

func (e *LineError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("recording: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("recording: %s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
