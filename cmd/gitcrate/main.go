package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/openmined/gitcrate/internal/client"
	"github.com/openmined/gitcrate/internal/client/config"
	"github.com/openmined/gitcrate/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// cli holds what the persistent pre-run sets up for the command being run
type cli struct {
	cfg     *config.Config
	app     *client.Client
	closers []io.Closer
}

func (c *cli) close() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			slog.Warn("close client", "error", err)
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i].Close()
	}
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gitcrate",
		Short:         "Keep directories in sync through a shared git remote",
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "gitcrate config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(
		newCreateCmd(c),
		newConnectCmd(c),
		newSyncCmd(c),
		newTrackCmd(c),
		newUntrackCmd(c),
		newSyncAllTrackedCmd(c),
		newEnableAutosyncCmd(c),
		newCleanupTrackedCmd(c),
		newStatusCmd(c),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the config, installs the logger and builds the client
func (c *cli) setup(cmd *cobra.Command) error {
	v := viper.New()
	if err := v.BindPFlag("verbose", cmd.Flags().Lookup("verbose")); err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return err
	}

	logFile, err := setupLogger(cmd.ErrOrStderr(), cfg.LogFile, v.GetBool("verbose"))
	if err != nil {
		return err
	}
	c.closers = append(c.closers, logFile)
	slog.Debug("gitcrate", "version", version.Short(), "config", cfg)

	app, err := client.New(cfg)
	if err != nil {
		return err
	}
	c.cfg, c.app = cfg, app
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	err := newRootCmd(c).ExecuteContext(ctx)
	c.close()

	if err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(1)
	}
}
