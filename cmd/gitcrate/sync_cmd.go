package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openmined/gitcrate/internal/client/repo"
	"github.com/openmined/gitcrate/internal/client/sync"
	"github.com/spf13/cobra"
)

func newSyncCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [dir]",
		Short: "Merge a directory with the shared remote and publish it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.app.Sync(cmd.Context(), dirArg(args))
			if errors.Is(err, sync.ErrQuarantined) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", red("quarantined"), report.Path)
				fmt.Fprintln(cmd.ErrOrStderr(), "  merge gitcrate/master by hand, commit, then delete", cyan(filepath.Join(report.Path, repo.MarkerFile)))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s in %s\n", green("synced"), report.Path, report.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func newSyncAllTrackedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "sync-all-tracked",
		Aliases: []string{"sync_all_tracked"},
		Short:   "Sync every tracked directory in random order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := c.app.SyncAllTracked(cmd.Context())
			if err != nil {
				return err
			}

			// individual failures are reported but do not fail the batch
			for _, res := range summary.Failed() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", red("failed"), res.Path, res.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d tracked %s synced\n",
				summary.Succeeded(), len(summary.Results), plural(len(summary.Results), "directory", "directories"))
			return nil
		},
	}
}

func newEnableAutosyncCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "enable-autosync-all-tracked",
		Aliases: []string{"enable_autosync_all_tracked"},
		Short:   "Install a cron job that runs sync-all-tracked every five minutes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate gitcrate executable: %w", err)
			}
			if err := c.app.EnableAutosync(cmd.Context(), exe); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s every 5 minutes via %s\n", green("autosync enabled"), exe)
			return nil
		},
	}
}
