package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCreateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "create <dir> <remote>",
		Short: "Start syncing a new directory against an empty remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.app.Create(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s as %s\n", green("created"), r.Path, cyan(r.ClientID))
			return nil
		},
	}
}

func newConnectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <dir> <remote>",
		Short: "Clone an existing synced remote into a new directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.app.Connect(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s as %s\n", green("connected"), r.Path, cyan(r.ClientID))
			return nil
		},
	}
}

func newTrackCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "track [dir]",
		Short: "Include a directory in sync-all-tracked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := dirArg(args)
			if err := c.app.Track(cmd.Context(), dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("tracking"), dir)
			return nil
		},
	}
}

func newUntrackCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "untrack [dir]",
		Short: "Exclude a directory from sync-all-tracked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := dirArg(args)
			if err := c.app.Untrack(cmd.Context(), dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", yellow("untracked"), dir)
			return nil
		},
	}
}

func newCleanupTrackedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-tracked",
		Short: "Forget tracked directories that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := c.app.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			for _, path := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", yellow("removed"), path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d missing %s removed\n", len(removed), plural(len(removed), "directory", "directories"))
			return nil
		},
	}
}

// dirArg defaults an optional directory argument to the working directory
func dirArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
