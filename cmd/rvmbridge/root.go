package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/rvmbridge/internal/config"
	"github.com/kingrea/rvmbridge/internal/defaults"
	"github.com/kingrea/rvmbridge/internal/logging"
	"github.com/kingrea/rvmbridge/internal/objects"
	"github.com/kingrea/rvmbridge/internal/protocol"
)

// cli carries state shared by every command of one invocation.
type cli struct {
	workDir string
	verbose bool
	flags   exportFlags

	cfg    *config.Config
	logger *logging.Logger
	fs     afero.Fs
	clock  clockwork.Clock

	// launcher defaults to spawning the design tool on the host.
	launcher protocol.Launcher
}

func newRootCmd() *cobra.Command {
	return newRootCommand(&cli{fs: afero.NewOsFs(), clock: clockwork.NewRealClock()})
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "rvmbridge",
		Short: "Generate and supervise E3D to Navisworks batch exports",
		Long: `rvmbridge writes the settings record, the export and attribute macros, and
the run script that drive a batch RVM export from the design tool and the
conversion to a Navisworks model. It can also launch the export itself and
wait for the output, or watch a run started by the script.

Configuration is read from .rvmbridge/config.yaml, then RVMBRIDGE_*
environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.workDir, "dir", "C", "", "folder holding .rvmbridge (defaults to the current directory)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "show debug output")

	root.AddCommand(
		newGenerateCmd(c),
		newRunCmd(c),
		newWatchCmd(c),
		newObjectsCmd(c),
		newDefaultsCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if c.workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		c.workDir = cwd
	}
	if err := config.InitDir(c.workDir); err != nil {
		return fmt.Errorf("initialize %s: %w", config.Dir, err)
	}
	cfg, err := config.Load(c.workDir)
	if err != nil {
		return err
	}
	c.flags.apply(cmd, cfg)
	c.cfg = cfg

	logger, err := logging.New(cfg.LogsDir(), logging.Options{Verbose: c.verbose, Console: cmd.ErrOrStderr()})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.logger = logger
	logger.Debug("configuration loaded", zap.String("dir", c.workDir), zap.String("command", cmd.Name()))
	return nil
}

func (c *cli) log() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger.Logger
}

// openStore opens the persisted object lists.
func (c *cli) openStore() (*objects.SQLiteStore, error) {
	return objects.OpenSQLiteStore(c.cfg.ObjectStorePath())
}

func (c *cli) resolver(store objects.Store) *objects.Resolver {
	return objects.NewResolver(store, defaults.Builtin(), objects.WithFs(c.fs), objects.WithLogger(c.log()))
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
