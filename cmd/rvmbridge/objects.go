package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/rvmbridge/internal/defaults"
	"github.com/kingrea/rvmbridge/internal/objects"
)

func newObjectsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "Show or edit the persisted object list of a project",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <project>",
			Short: "Print the object list used when no list file is given",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withStore(cmd, func(ctx context.Context, store objects.Store) error {
					list, err := c.resolver(store).Persisted(ctx, args[0])
					if err != nil {
						return err
					}
					for _, obj := range list {
						printf(cmd.OutOrStdout(), "%s\n", obj)
					}
					return nil
				})
			},
		},
		newObjectsSetCmd(c),
		&cobra.Command{
			Use:   "reset <project>",
			Short: "Replace the object list with the built-in defaults",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withStore(cmd, func(ctx context.Context, store objects.Store) error {
					list := objects.List(defaults.Builtin().Objects(args[0]))
					if list == nil {
						list = objects.List{}
					}
					if err := store.Set(ctx, args[0], list); err != nil {
						return err
					}
					printf(cmd.OutOrStdout(), "%s: %d objects\n", strings.ToUpper(args[0]), len(list))
					return nil
				})
			},
		},
	)
	return cmd
}

func newObjectsSetCmd(c *cli) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set <project> [object...]",
		Short: "Replace the object list of a project",
		Long: `Replaces the persisted list with the given objects, in order. With --file the
objects are read one per line from a text file instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list := objects.List{}
			for _, arg := range args[1:] {
				if obj := strings.TrimSpace(arg); obj != "" {
					list = append(list, obj)
				}
			}
			if file != "" {
				read, err := objects.ReadList(c.fs, file)
				if err != nil {
					return err
				}
				if len(read) == 0 {
					return fmt.Errorf("object list %s is missing or empty", file)
				}
				list = append(list, read...)
			}
			if len(list) == 0 {
				return fmt.Errorf("no objects given for %s", args[0])
			}
			return c.withStore(cmd, func(ctx context.Context, store objects.Store) error {
				if err := store.Set(ctx, args[0], list); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s: %d objects\n", strings.ToUpper(args[0]), len(list))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "text file with one object per line")
	return cmd
}

func (c *cli) withStore(cmd *cobra.Command, fn func(context.Context, objects.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}
