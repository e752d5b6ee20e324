package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gitoleg1/lucy-agent/internals/redact"
)

const (
	// TimeoutExitCode is the uniform sentinel for runs killed by the
	// wall-clock timeout (POSIX timeout(1) convention).
	TimeoutExitCode = 124
	// FailureExitCode is the sentinel for runs that never produced an
	// exit status (spawn or I/O failure).
	FailureExitCode = -1

	tailLimit = 400
)

type Limits struct {
	CPUSeconds        uint64
	AddressSpaceBytes uint64
	OutputFileBytes   uint64
}

// Runner executes one shell action as a child process, streaming stdout
// and stderr to bounded files under a per-run directory.
type Runner struct {
	BaseDir string
	Shell   string
	Timeout time.Duration
	Limits  Limits
	Logger  *slog.Logger
}

// Outcome is the captured result of one execution attempt. Execution
// problems land in TimedOut/Err, never in a returned error: every failure
// must become run data.
type Outcome struct {
	ExitCode   int
	StdoutPath string
	StderrPath string
	StdoutTail string
	StderrTail string
	TimedOut   bool
	Err        string
}

func (o Outcome) Succeeded() bool {
	return o.ExitCode == 0 && !o.TimedOut && o.Err == ""
}

// RunDir returns the working directory for a run's captured output.
func (r *Runner) RunDir(runID string) string {
	return filepath.Join(r.BaseDir, runID)
}

func (r *Runner) Execute(ctx context.Context, runID string, command string) Outcome {
	runDir := r.RunDir(runID)
	stdoutPath := filepath.Join(runDir, "stdout.log")
	stderrPath := filepath.Join(runDir, "stderr.log")
	outcome := Outcome{ExitCode: FailureExitCode, StdoutPath: stdoutPath, StderrPath: stderrPath}

	if err := os.MkdirAll(runDir, 0o755); err != nil {
		outcome.Err = err.Error()
		return outcome
	}
	stdout, err := os.Create(stdoutPath)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}
	defer stdout.Close()
	stderr, err := os.Create(stderrPath)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}
	defer stderr.Close()

	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(execCtx, shell, "-lc", command)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Dir = runDir
	// Own process group so a timeout kill reaches the whole pipeline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	if err := cmd.Start(); err != nil {
		outcome.Err = err.Error()
		outcome.StdoutTail, outcome.StderrTail = r.tails(stdoutPath, stderrPath)
		return outcome
	}
	r.Limits.apply(cmd.Process.Pid, r.Logger)

	waitErr := cmd.Wait()
	outcome.StdoutTail, outcome.StderrTail = r.tails(stdoutPath, stderrPath)

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		outcome.TimedOut = true
		outcome.ExitCode = TimeoutExitCode
		return outcome
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
			return outcome
		}
		outcome.Err = waitErr.Error()
		return outcome
	}
	outcome.ExitCode = 0
	return outcome
}

func (r *Runner) tails(stdoutPath, stderrPath string) (string, string) {
	return tailBytes(stdoutPath, tailLimit), tailBytes(stderrPath, tailLimit)
}

// tailBytes reads at most limit bytes from the end of the file, redacted.
// Always returns a string, possibly empty, never fails the run.
func tailBytes(path string, limit int64) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return ""
	}
	if info.Size() > limit {
		if _, err := file.Seek(-limit, io.SeekEnd); err != nil {
			return ""
		}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return ""
	}
	return redact.Redact(string(data))
}
