package protocol

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kingrea/rvmbridge/internal/runlog"
)

// RemoveError reports a cleanup deletion that failed.
type RemoveError struct {
	Path string
	Err  error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("protocol: remove %s: %v", e.Path, e.Err)
}

func (e *RemoveError) Unwrap() error { return e.Err }

// Result summarizes a run.
type Result struct {
	State State
	// Output is the verified output file, as a host path.
	Output   string
	Attempts int
	// Removed and Skipped list cleanup targets that were deleted or absent.
	Removed []string
	Skipped []string
	// CleanupErr aggregates RemoveErrors. Cleanup never stops on one.
	CleanupErr error
}

// Machine runs the completion protocol for one Plan.
type Machine struct {
	plan     Plan
	launcher Launcher
	clock    clockwork.Clock
	fs       afero.Fs
	logger   *zap.Logger
	observer func(Transition)
	log      *runlog.Log

	state    State
	attempts int
	captured string
	result   Result
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock overrides the clock used between polls.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithFs overrides the filesystem used for the log, the output check, and
// cleanup.
func WithFs(fsys afero.Fs) Option {
	return func(m *Machine) {
		if fsys != nil {
			m.fs = fsys
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver is called after every transition.
func WithObserver(fn func(Transition)) Option {
	return func(m *Machine) {
		m.observer = fn
	}
}

// NewMachine builds a machine in START.
func NewMachine(plan Plan, launcher Launcher, opts ...Option) *Machine {
	m := &Machine{
		plan:     plan,
		launcher: launcher,
		clock:    clockwork.NewRealClock(),
		fs:       afero.NewOsFs(),
		logger:   zap.NewNop(),
		state:    StateStart,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.plan.PollInterval <= 0 {
		m.plan.PollInterval = DefaultPollInterval
	}
	if m.plan.SettleDelay < 0 {
		m.plan.SettleDelay = 0
	}
	m.log = runlog.Open(plan.LogPath, runlog.WithFs(m.fs))
	return m
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Terminal reports whether no further step changes the state.
func (m *Machine) Terminal() bool {
	switch m.state {
	case StateSelfRemove, StateTimedOut:
		return true
	case StateOutputVerified:
		return m.plan.KeepArtifacts
	}
	return false
}

// Result returns the outcome so far.
func (m *Machine) Result() Result {
	res := m.result
	res.State = m.state
	res.Attempts = m.attempts
	return res
}

// Step performs one transition. It never sleeps; Run does the waiting.
func (m *Machine) Step(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return m.state, err
	}
	switch m.state {
	case StateStart:
		if err := m.log.Remove(); err != nil {
			return m.state, err
		}
		if err := m.launcher.Launch(ctx, m.plan.Command); err != nil {
			return m.state, err
		}
		m.move(StateLaunched, m.plan.Command.Path)

	case StateLaunched:
		m.move(StatePolling, "")

	case StatePolling:
		m.attempts++
		scan, err := ScanLog(m.log)
		if err != nil {
			m.logger.Warn("run log unreadable, retrying", zap.String("log", m.plan.LogPath), zap.Error(err))
			m.retry("log unreadable")
			break
		}
		if !scan.Finished {
			m.retry("")
			break
		}
		m.captured = scan.Output
		m.move(StateCompletionDetected, scan.Output)

	case StateCompletionDetected:
		if m.captured == "" {
			m.logger.Warn("run finished without declaring an output file")
			m.retry("no output declared")
			break
		}
		output := hostPath(m.captured)
		info, err := m.fs.Stat(output)
		if err != nil || info.IsDir() {
			m.logger.Warn("output file does not exist yet, waiting", zap.String("output", output))
			m.retry("output missing")
			break
		}
		m.result.Output = output
		m.move(StateOutputVerified, output)

	case StateOutputVerified:
		if m.plan.KeepArtifacts {
			return m.state, nil
		}
		for _, path := range m.plan.Cleanup {
			m.remove(path)
		}
		m.move(StateCleanup, "")

	case StateCleanup:
		if m.plan.Script != "" {
			m.remove(m.plan.Script)
		}
		m.move(StateSelfRemove, "")
	}
	return m.state, nil
}

// Run steps until a terminal state, waiting PollInterval between polls and
// SettleDelay before cleanup. Cancelling ctx stops the wait and returns the
// partial result with the context error.
func (m *Machine) Run(ctx context.Context) (Result, error) {
	for !m.Terminal() {
		before := m.state
		state, err := m.Step(ctx)
		if err != nil {
			return m.Result(), err
		}
		wait := m.waitAfter(before, state)
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return m.Result(), ctx.Err()
		case <-m.clock.After(wait):
		}
	}
	return m.Result(), nil
}

func (m *Machine) waitAfter(before, after State) time.Duration {
	switch {
	case after == StatePolling && before != StateLaunched:
		return m.plan.PollInterval
	case after == StateOutputVerified && !m.plan.KeepArtifacts:
		return m.plan.SettleDelay
	}
	return 0
}

func (m *Machine) retry(reason string) {
	if m.plan.MaxAttempts > 0 && m.attempts >= m.plan.MaxAttempts {
		m.move(StateTimedOut, reason)
		return
	}
	m.move(StatePolling, reason)
}

func (m *Machine) move(to State, message string) {
	from := m.state
	m.state = to
	if from != to {
		m.logger.Debug("protocol transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Int("attempt", m.attempts),
			zap.String("detail", message),
		)
	}
	if m.observer != nil {
		m.observer(Transition{From: from, To: to, Attempt: m.attempts, Message: message})
	}
}

func (m *Machine) remove(path string) {
	err := m.fs.Remove(path)
	switch {
	case err == nil:
		m.result.Removed = append(m.result.Removed, path)
		m.logger.Info("removed", zap.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
		m.result.Skipped = append(m.result.Skipped, path)
		m.logger.Warn("not found, skipping", zap.String("path", path))
	default:
		m.result.CleanupErr = multierr.Append(m.result.CleanupErr, &RemoveError{Path: path, Err: err})
		m.logger.Warn("could not remove, skipping", zap.String("path", path), zap.Error(err))
	}
}

// hostPath converts a path declared by the macro to the host convention.
func hostPath(declared string) string {
	return filepath.FromSlash(strings.ReplaceAll(strings.TrimSpace(declared), `\`, "/"))
}
