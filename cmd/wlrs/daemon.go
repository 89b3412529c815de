package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/wlrs/internal/dbus"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := createFormatter()
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			h, err := c.Ping(ctx)
			if err != nil {
				return err
			}
			return formatter.Health(cmd.OutOrStdout(), h)
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			if err := c.StopServer(ctx); err != nil {
				return err
			}
			if globalOpts.verbose {
				fmt.Fprintln(cmd.ErrOrStderr(), "wlrsd stopping")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(pingCmd, stopCmd)
}
