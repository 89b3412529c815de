package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/wlrs/internal/control"
	"github.com/jmylchreest/wlrs/internal/dbus"
)

var monitorOpts struct {
	monitor string
}

var tickOpts struct {
	dt time.Duration
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Show what each monitor is displaying",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := createFormatter()
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			rows, err := c.Query(ctx)
			if err != nil {
				return err
			}
			return formatter.Monitors(cmd.OutOrStdout(), rows)
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Freeze animation on one or all monitors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.Pause(ctx, monitorOpts.monitor)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume animation on one or all monitors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.Resume(ctx, monitorOpts.monitor)
		})
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Advance animation by one step",
	Long: `Advance animation by one step and render a frame, even while paused.

Without --dt the wallpaper's natural tick interval is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.ForceTick(ctx, monitorOpts.monitor, tickOpts.dt)
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print wallpaper changes as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dbus.Connect()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		return client.WatchChanges(ctx, func(ch control.Change) {
			fmt.Fprintf(out, "%s\t%s\t%s\n", ch.Monitor, ch.Wallpaper, ch.WallpaperID)
		})
	},
}

func init() {
	rootCmd.AddCommand(queryCmd, pauseCmd, resumeCmd, tickCmd, watchCmd)

	for _, cmd := range []*cobra.Command{pauseCmd, resumeCmd, tickCmd} {
		cmd.Flags().StringVarP(&monitorOpts.monitor, "monitor", "m", "",
			"Output ID or name (default: all)")
	}
	tickCmd.Flags().DurationVar(&tickOpts.dt, "dt", 0,
		"Time to advance (default: the wallpaper's tick interval)")
}
