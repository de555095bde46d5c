package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kingrea/rvmbridge/internal/artifact"
	"github.com/kingrea/rvmbridge/internal/config"
)

func newGenerateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write settings.json, RVM.mac, attribute.mac and RunE3D.bat",
		Long: `Writes the four artifacts into the output folder. Running RunE3D.bat on the
workstation performs the export, waits for the model and cleans up after
itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := c.generate(cmd)
			if err != nil {
				return err
			}
			c.report(cmd.OutOrStdout(), set)
			return nil
		},
	}
	c.flags.bindExport(cmd)
	c.flags.bindProtocol(cmd)
	return cmd
}

// generate resolves the object list and writes the artifact set.
func (c *cli) generate(cmd *cobra.Command) (artifact.Set, error) {
	if err := c.flags.validateTime(cmd); err != nil {
		return artifact.Set{}, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.cfg.Export.Validate(c.fs); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			return artifact.Set{}, fmt.Errorf("configuration incomplete: %w", err)
		}
		return artifact.Set{}, err
	}

	store, err := c.openStore()
	if err != nil {
		return artifact.Set{}, err
	}
	defer store.Close()

	res, err := c.resolver(store).Resolve(ctx, c.cfg.Export.ProjectCode, c.cfg.Export.ObjectListFile)
	if err != nil {
		return artifact.Set{}, err
	}
	gen := artifact.NewGenerator(artifact.WithFs(c.fs), artifact.WithLogger(c.log()))
	set, err := gen.Generate(ctx, c.cfg, res)
	if err != nil {
		return set, err
	}
	if c.flags.save {
		if err := c.cfg.Save(); err != nil {
			return set, err
		}
	}
	return set, nil
}

func (c *cli) report(w io.Writer, set artifact.Set) {
	native := artifact.NativeConvention()
	for _, ref := range artifact.GeneratedRefs() {
		printf(w, "wrote %s\n", native.RenderPath(set.Layout.File(ref)))
	}
	exp := c.cfg.Export
	if exp.DailyExport && exp.ExportTime.Valid {
		next := exp.ExportTime.Time.Next(c.clock.Now())
		printf(w, "daily export at %s, next %s\n", exp.ExportTime, next.Format("2006-01-02 15:04"))
	}
}
