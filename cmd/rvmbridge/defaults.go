package main

import (
	"github.com/spf13/cobra"

	"github.com/kingrea/rvmbridge/internal/defaults"
)

func newDefaultsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "List the built-in project codes, databases and object lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := defaults.Builtin()
			out := cmd.OutOrStdout()
			for _, code := range table.Codes() {
				mdb, _ := table.Database(code)
				printf(out, "%s  mdb=%s\n", code, mdb)
				for _, obj := range table.Objects(code) {
					printf(out, "  %s\n", obj)
				}
			}
			c.log().Debug("defaults listed")
			return nil
		},
	}
}
