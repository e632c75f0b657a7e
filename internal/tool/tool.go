// Package tool wraps the external programs vinyl shells out to.
//
// Adapters hold a binary path, can probe for it up front, and run it with
// stdout discarded and a bounded stderr tail kept for error reporting.
package tool

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// stderrTail keeps only the last cap bytes written. External encoders can
// be extremely chatty on long inputs; the useful part is the end.
type stderrTail struct {
	buf bytes.Buffer
	cap int
}

func newStderrTail(capacity int) *stderrTail {
	return &stderrTail{cap: capacity}
}

func (t *stderrTail) Write(p []byte) (int, error) {
	n := len(p)
	if n >= t.cap {
		t.buf.Reset()
		p = p[n-t.cap:]
	} else if t.buf.Len()+n > t.cap {
		trimmed := t.buf.Bytes()[t.buf.Len()+n-t.cap:]
		rest := make([]byte, len(trimmed))
		copy(rest, trimmed)
		t.buf.Reset()
		t.buf.Write(rest)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *stderrTail) String() string {
	return strings.TrimSpace(t.buf.String())
}

// run executes path with args, discarding stdout. On a non-zero exit the
// returned error carries the stderr tail.
func run(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	tail := newStderrTail(4096)
	cmd.Stderr = tail

	if err := cmd.Run(); err != nil {
		if msg := tail.String(); msg != "" {
			return fmt.Errorf("%s: %w: %s", path, err, lastLine(msg))
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// lastLine returns the final non-empty line, where tools put their
// actual complaint.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return s
}

// probe reports whether the binary resolves via PATH or as a direct path.
func probe(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// version runs `path -flag` and returns the first output line.
func version(path, flag string) (string, error) {
	out, err := exec.Command(path, flag).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", path, flag, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
