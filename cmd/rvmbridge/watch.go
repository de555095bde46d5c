package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/rvmbridge/internal/runlog"
	"github.com/kingrea/rvmbridge/internal/tui"
)

func newWatchCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a run started by RunE3D.bat",
		Long: `Shows the log, the declared model file and the artifacts of a run that was
started by the run script. Nothing is changed on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = c.cfg.Export.OutputFolder
			}
			if output == "" {
				return fmt.Errorf("no output folder: pass --output or set output_folder in %s", c.cfg.FilePath())
			}
			return c.watch(cmd, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output folder of the run (defaults to the configured one)")
	return cmd
}

func (c *cli) watch(cmd *cobra.Command, output string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	observer := tui.NewObserver(output, c.fs)
	var opts []tui.AppOption
	watcher, err := runlog.NewWatcher(observer.LogPath(), c.log())
	if err != nil {
		c.log().Warn("log notifications unavailable, refreshing on a timer", zap.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		c.log().Warn("log notifications unavailable, refreshing on a timer", zap.Error(err))
	} else {
		defer watcher.Stop()
		opts = append(opts, tui.WithChanges(watcher.Changes()))
	}

	program := tea.NewProgram(tui.NewApp(observer, opts...),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	_, err = program.Run()
	return err
}
