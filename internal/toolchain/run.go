package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// gracefulShutdownGrace is how long a spawned process is given to exit
// after SIGINT before SIGKILL is sent, giving an external tool a window
// to flush output before it is force-terminated.
const gracefulShutdownGrace = 2 * time.Second

// maxCapturedOutput bounds stdout/stderr capture per stage so a
// pathological compiler diagnostic flood (or a miscompiled binary stuck
// in an output loop) cannot exhaust memory.
const maxCapturedOutput = 16 * 1024 * 1024 // 16MB

// processResult is the raw outcome of one subprocess invocation, before
// it has been classified into a CompileStatus/RunStatus by the caller.
type processResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Signaled  bool
	TimedOut  bool
	Duration  time.Duration
}

// runProcess executes name with args under ctx's deadline, using a
// process-group + SIGINT-then-SIGKILL shutdown sequence so a compiler
// or test binary can exit cleanly before being force-killed. tracker,
// if non-nil, has the child PID registered for the duration of the
// call; the registry is in memory only and no cleanup pass reads it.
func runProcess(ctx context.Context, tracker *PIDTracker, label, name string, args []string, env []string, stdin string, log *zap.Logger) (*processResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()

	cmd := exec.Command(name, args...)
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: maxCapturedOutput}
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: maxCapturedOutput}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	if tracker != nil {
		tracker.Add(cmd.Process.Pid, label)
		defer tracker.Remove(cmd.Process.Pid)
	}

	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		done <- err
		close(exited)
	}()

	timedOut := false
	go func() {
		select {
		case <-ctx.Done():
			timedOut = true
			pgid := cmd.Process.Pid
			if err := syscall.Kill(-pgid, syscall.SIGINT); err != nil {
				_ = cmd.Process.Signal(syscall.SIGINT)
			}
			select {
			case <-exited:
			case <-time.After(gracefulShutdownGrace):
				_ = syscall.Kill(-pgid, syscall.SIGKILL)
			}
		case <-exited:
		}
	}()

	waitErr := <-done

	res := &processResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		TimedOut: timedOut,
	}

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			res.Signaled = true
		}
	}

	if len(res.Stdout) == 0 && len(res.Stderr) > 0 {
		log.Debug("subprocess produced no stdout", zap.String("label", label), zap.String("cmd", name))
	}

	if res.TimedOut || ctx.Err() != nil {
		res.TimedOut = true
		return res, nil
	}

	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); ok {
			return res, nil
		}
		return nil, fmt.Errorf("execute %s: %w", name, waitErr)
	}

	return res, nil
}

// limitedWriter caps how much of a subprocess's output is retained,
// discarding anything past limit while still reporting to the caller
// that all bytes were "written" so the pipe never backs up and blocks
// the child.
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int64
	written int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.written >= w.limit {
		return len(p), nil
	}
	remaining := w.limit - w.written
	if int64(len(p)) > remaining {
		n, err := w.buf.Write(p[:remaining])
		w.written += int64(n)
		return len(p), err
	}
	n, err := w.buf.Write(p)
	w.written += int64(n)
	return n, err
}
