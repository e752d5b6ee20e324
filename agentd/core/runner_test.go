package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestRunner(t *testing.T) *Runner {
	return &Runner{
		BaseDir: t.TempDir(),
		Shell:   "/bin/sh",
		Timeout: 5 * time.Second,
		Logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
}

func TestRunnerExecuteSuccess(t *testing.T) {
	runner := newTestRunner(t)

	outcome := runner.Execute(context.Background(), "run-1", "echo hello")
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", outcome.ExitCode)
	}
	if !strings.Contains(outcome.StdoutTail, "hello") {
		t.Fatalf("expected stdout tail to contain output, got %q", outcome.StdoutTail)
	}

	data, err := os.ReadFile(outcome.StdoutPath)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("expected stdout file to contain output, got %q", string(data))
	}
}

func TestRunnerExecuteNonZeroExit(t *testing.T) {
	runner := newTestRunner(t)

	outcome := runner.Execute(context.Background(), "run-2", "echo oops >&2; exit 3")
	if outcome.Succeeded() {
		t.Fatalf("expected failure")
	}
	if outcome.ExitCode != 3 {
		t.Fatalf("expected exit 3, got %d", outcome.ExitCode)
	}
	if !strings.Contains(outcome.StderrTail, "oops") {
		t.Fatalf("expected stderr tail, got %q", outcome.StderrTail)
	}
}

func TestRunnerExecuteTimeout(t *testing.T) {
	runner := newTestRunner(t)
	runner.Timeout = 200 * time.Millisecond

	start := time.Now()
	outcome := runner.Execute(context.Background(), "run-3", "sleep 5")
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout kill took too long")
	}
	if !outcome.TimedOut {
		t.Fatalf("expected timeout, got %+v", outcome)
	}
	if outcome.ExitCode != TimeoutExitCode {
		t.Fatalf("expected exit %d, got %d", TimeoutExitCode, outcome.ExitCode)
	}
}

func TestRunnerExecuteSpawnFailure(t *testing.T) {
	runner := newTestRunner(t)
	runner.Shell = filepath.Join(t.TempDir(), "missing-shell")

	outcome := runner.Execute(context.Background(), "run-4", "echo hi")
	if outcome.Err == "" {
		t.Fatalf("expected spawn error")
	}
	if outcome.ExitCode != FailureExitCode {
		t.Fatalf("expected exit %d, got %d", FailureExitCode, outcome.ExitCode)
	}
}

func TestRunnerTailRedaction(t *testing.T) {
	runner := newTestRunner(t)

	outcome := runner.Execute(context.Background(), "run-5", "echo 'password=supersecret'")
	if strings.Contains(outcome.StdoutTail, "supersecret") {
		t.Fatalf("expected secret to be redacted, got %q", outcome.StdoutTail)
	}
	if !strings.Contains(outcome.StdoutTail, "<REDACTED>") {
		t.Fatalf("expected redaction marker, got %q", outcome.StdoutTail)
	}
}

func TestTailBytesLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	if err := os.WriteFile(path, []byte(strings.Repeat("a", 1000)+"tail-end"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tail := tailBytes(path, 100)
	if len(tail) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(tail))
	}
	if !strings.HasSuffix(tail, "tail-end") {
		t.Fatalf("expected tail to end with file end, got %q", tail)
	}

	if tail := tailBytes(filepath.Join(dir, "missing.log"), 100); tail != "" {
		t.Fatalf("expected empty tail for missing file, got %q", tail)
	}
}
