package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/gitcrate/internal/client"
	"github.com/openmined/gitcrate/internal/client/sync"
	"github.com/spf13/cobra"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tracked directories and their last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := c.app.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), statuses, time.Now())
			return nil
		},
	}
}

func printStatus(w io.Writer, statuses []client.RepoStatus, now time.Time) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "no tracked directories")
		return
	}

	for _, st := range statuses {
		fmt.Fprintln(w, cyan(st.Path))
		if st.Err != nil {
			fmt.Fprintf(w, "  %s %v\n", red("invalid"), st.Err)
			continue
		}

		fmt.Fprintf(w, "  client   %s\n", st.ClientID)
		if st.MainlineTip != "" {
			fmt.Fprintf(w, "  master   %s\n", shortHash(st.MainlineTip))
		}
		if st.Quarantined {
			fmt.Fprintf(w, "  %s needs a manual merge\n", red("quarantined"))
		}

		if st.Last == nil {
			fmt.Fprintf(w, "  last     %s\n", gray("never synced"))
			continue
		}
		when := humanize.RelTime(st.Last.StartedAt, now, "ago", "from now")
		fmt.Fprintf(w, "  last     %s %s (%d %s)\n",
			stateColor(st.Last.State), when, st.Last.Attempts, plural(st.Last.Attempts, "attempt", "attempts"))
		if st.Last.Error != "" {
			fmt.Fprintf(w, "           %s\n", gray(st.Last.Error))
		}
	}
}

func stateColor(state string) string {
	switch sync.State(state) {
	case sync.StateSuccess:
		return green(state)
	case sync.StateQuarantined:
		return red(state)
	default:
		return yellow(state)
	}
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
