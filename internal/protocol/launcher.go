package protocol

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// Launcher starts the external tool without waiting for it.
type Launcher interface {
	Launch(ctx context.Context, cmd Command) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, cmd Command) error

// Launch implements Launcher.
func (f LauncherFunc) Launch(ctx context.Context, cmd Command) error { return f(ctx, cmd) }

// ExecLauncher spawns a host process. The process is not tied to the context
// so it outlives a cancelled wait, the same as `start /b` in the run script.
type ExecLauncher struct {
	Logger *zap.Logger
	Dir    string
}

// Launch implements Launcher.
func (l ExecLauncher) Launch(_ context.Context, cmd Command) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	proc := exec.Command(cmd.Path, cmd.Args...)
	proc.Dir = l.Dir
	if err := proc.Start(); err != nil {
		return fmt.Errorf("protocol: start %s: %w", cmd.Path, err)
	}
	logger.Info("external tool started", zap.String("path", cmd.Path), zap.Int("pid", proc.Process.Pid))
	go func() {
		err := proc.Wait()
		if err != nil {
			logger.Warn("external tool exited", zap.Int("pid", proc.Process.Pid), zap.Error(err))
			return
		}
		logger.Info("external tool exited", zap.Int("pid", proc.Process.Pid))
	}()
	return nil
}
