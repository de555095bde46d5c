package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/rvmbridge/internal/protocol"
	"github.com/kingrea/rvmbridge/internal/runlog"
)

const timeoutTailLines = 20

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate the artifacts, launch the export and wait for the model",
		Long: `Generates the artifacts, then performs what RunE3D.bat would: launches the
design tool with the export macro, polls the log until the finished sentinel
shows up, verifies the model file and removes the intermediate files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd)
		},
	}
	c.flags.bindExport(cmd)
	c.flags.bindProtocol(cmd)
	return cmd
}

func (c *cli) run(cmd *cobra.Command) error {
	set, err := c.generate(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	c.report(out, set)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	launcher := c.launcher
	if launcher == nil {
		launcher = protocol.ExecLauncher{Logger: c.log(), Dir: c.cfg.Export.OutputFolder}
	}
	machine := protocol.NewMachine(set.Plan, launcher,
		protocol.WithClock(c.clock),
		protocol.WithFs(c.fs),
		protocol.WithLogger(c.log()),
		protocol.WithObserver(func(t protocol.Transition) {
			if t.From == t.To {
				return
			}
			printf(out, "%-20s -> %-20s %s\n", t.From, t.To, t.Message)
		}),
	)
	result, err := machine.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printf(out, "stopped in %s after %d checks; the design tool keeps running\n", result.State, result.Attempts)
		}
		return err
	}

	switch result.State {
	case protocol.StateTimedOut:
		lines, total := runlog.Open(set.Plan.LogPath, runlog.WithFs(c.fs)).Tail(timeoutTailLines)
		printf(out, "no finished sentinel after %d checks; last %d of %d log lines:\n", result.Attempts, len(lines), total)
		for _, line := range lines {
			printf(out, "  %s\n", line)
		}
		return fmt.Errorf("export timed out after %d checks", result.Attempts)
	default:
		printf(out, "model ready: %s\n", result.Output)
	}
	if len(result.Skipped) > 0 {
		c.log().Debug("cleanup targets already absent", zap.Strings("paths", result.Skipped))
	}
	if result.CleanupErr != nil {
		printf(out, "some files could not be removed: %v\n", result.CleanupErr)
	}
	return nil
}
