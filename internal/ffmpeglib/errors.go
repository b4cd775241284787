package ffmpeglib

import (
	"fmt"
	"strings"
	"time"
)

// EncodingError is returned when the encoder itself failed: non-zero exit,
// spawn failure, timeout, or an output that did not pass validation. It is a
// per-file failure; callers tombstone the file and move on.
type EncodingError struct {
	Args     []string
	Stdout   string
	Stderr   string
	TimedOut bool
	Timeout  time.Duration
	Err      error
}

func (e *EncodingError) Error() string {
	var b strings.Builder
	if e.TimedOut {
		fmt.Fprintf(&b, "encoding timed out after %s", e.Timeout)
	} else {
		b.WriteString("encoding failed")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if tail := lastLines(e.Stderr, 3); tail != "" {
		fmt.Fprintf(&b, ": %s", tail)
	}
	return b.String()
}

func (e *EncodingError) Unwrap() error { return e.Err }

// EnvironmentError reports a required tool that is missing or not runnable.
type EnvironmentError struct {
	Tool string
	Err  error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("%s not available: %v", e.Tool, e.Err)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
