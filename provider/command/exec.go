package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// MaxOutputSize is the maximum size of captured command output (10MB).
const MaxOutputSize = 10 * 1024 * 1024

// Error is returned when an external command cannot run or exits non-zero.
type Error struct {
	Command string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %s: %s: %v", e.Command, e.Message, e.Err)
	}
	return fmt.Sprintf("command %s: %s", e.Command, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Spec describes one external command invocation.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Stdin   string
	Timeout time.Duration
}

// limitedWriter wraps an io.Writer and limits total bytes written.
type limitedWriter struct {
	w       io.Writer
	n       int64
	limit   int64
	limited bool
}

func newLimitedWriter(w io.Writer, limit int64) *limitedWriter {
	return &limitedWriter{w: w, limit: limit}
}

func (l *limitedWriter) Write(p []byte) (n int, err error) {
	if l.n >= l.limit {
		l.limited = true
		return len(p), nil
	}

	// Report the full length so io.Copy does not fail with a short write.
	total := len(p)
	remaining := l.limit - l.n
	if int64(len(p)) > remaining {
		p = p[:remaining]
		l.limited = true
	}

	n, err = l.w.Write(p)
	l.n += int64(n)
	if err != nil {
		return n, err
	}
	return total, nil
}

// Lookup reports whether name resolves to an executable in PATH.
func Lookup(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return &Error{Command: name, Message: "executable not found in PATH", Err: err}
	}
	if path == "" {
		return &Error{Command: name, Message: "executable found but path is empty"}
	}
	return nil
}

// Run executes spec once and returns its trimmed stdout.
func Run(ctx context.Context, spec Spec) (string, error) {
	if err := Lookup(spec.Command); err != nil {
		return "", err
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	slog.Debug("Executing command",
		"command", spec.Command,
		"args", len(spec.Args),
		"dir", spec.Dir,
	)

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}

	var stdout, stderr bytes.Buffer
	stdoutLimited := newLimitedWriter(&stdout, MaxOutputSize)
	stderrLimited := newLimitedWriter(&stderr, MaxOutputSize)
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	if err := cmd.Run(); err != nil {
		slog.Error("Command failed",
			"command", spec.Command,
			"error", err,
			"stderr", stderr.String(),
		)
		if ctx.Err() == context.DeadlineExceeded {
			return "", &Error{Command: spec.Command, Message: "command timed out", Err: ctx.Err()}
		}
		if stderr.Len() > 0 {
			msg := strings.TrimSpace(stderr.String())
			if stderrLimited.limited {
				msg += "\n... (output truncated)"
			}
			return "", &Error{Command: spec.Command, Message: msg, Err: err}
		}
		return "", &Error{Command: spec.Command, Message: "command failed", Err: err}
	}

	result := strings.TrimSpace(stdout.String())
	if stdoutLimited.limited {
		result += "\n... (output truncated at 10MB)"
	}
	slog.Debug("Command successful",
		"command", spec.Command,
		"output_len", len(result),
	)
	return result, nil
}
