package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/wlrs/internal/core"
	"github.com/jmylchreest/wlrs/internal/dbus"
)

var setOpts struct {
	monitor string
	stdin   bool
}

var listOpts struct {
	filter string
	search string
	sort   string
	order  string
}

var installOpts struct {
	name string
}

var loadCmd = &cobra.Command{
	Use:   "load <dir>",
	Short: "Load a wallpaper directory without installing it",
	Long: `Load a wallpaper directory into the daemon's library and print its ID.

The directory must contain a manifest (manifest.toml, manifest.yaml or
manifest.json). The wallpaper is not copied; it stays where it is.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			id, err := c.LoadWallpaper(ctx, dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set [wallpaper]",
	Short: "Show a wallpaper on one or all monitors",
	Long: `Bind a wallpaper, by name or ID, to a monitor.

Without --monitor the wallpaper goes to every monitor that shows one, or to
every monitor when none does.

Examples:
  # Show "ocean" everywhere
  wlrs set ocean

  # Show a wallpaper on one output
  wlrs set --monitor DP-1 01HZ3X2J5YFMK2V3P4Q6R7S8T9

  # Pick one interactively
  wlrs list --format ids | fzf | wlrs set --stdin`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSet,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List wallpapers known to the daemon",
	Long: `List wallpapers known to the daemon.

Filter expressions are comma-separated conditions that must all match.
Fields: name, author, description, source, path, version, framerate,
tickrate, layers, loaded. Operators: = != ~ (contains) ~= (regex) > < >= <=.

Examples:
  # Installed wallpapers with at least three layers
  wlrs list --filter "source=installed,layers>=3"

  # Most recently loaded first
  wlrs list --sort loaded --order desc`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var installCmd = &cobra.Command{
	Use:   "install <dir>",
	Short: "Copy a wallpaper into the install directory",
	Long: `Copy a wallpaper directory into the daemon's install directory and load it.

The copy is named after the source directory unless --name is given. An
existing wallpaper of the same name is never overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		formatter, err := createFormatter()
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			sum, err := c.InstallWallpaper(ctx, dir, installOpts.name)
			if err != nil {
				return err
			}
			return formatter.Wallpaper(cmd.OutOrStdout(), sum)
		})
	},
}

var installDirCmd = &cobra.Command{
	Use:   "install-dir",
	Short: "Print the daemon's wallpaper install directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			dir, err := c.GetInstallDirectory(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(loadCmd, setCmd, listCmd, installCmd, installDirCmd)

	listCmd.Flags().StringVar(&listOpts.filter, "filter", "",
		"Filter expression (e.g. \"source=installed,layers>=3\")")
	listCmd.Flags().StringVarP(&listOpts.search, "search", "s", "",
		"Case-insensitive search in name, author and description")
	listCmd.Flags().StringVar(&listOpts.sort, "sort", "name",
		"Sort field (name, layers, loaded, source)")
	listCmd.Flags().StringVar(&listOpts.order, "order", "asc",
		"Sort order (asc, desc)")

	setCmd.Flags().StringVarP(&setOpts.monitor, "monitor", "m", "",
		"Output ID or name (default: all)")
	setCmd.Flags().BoolVar(&setOpts.stdin, "stdin", false,
		"Read the wallpaper from the first non-empty line of stdin")

	installCmd.Flags().StringVarP(&installOpts.name, "name", "n", "",
		"Directory name for the installed copy")
}

func runList(cmd *cobra.Command, args []string) error {
	expr, err := core.ParseFilter(listOpts.filter)
	if err != nil {
		return err
	}
	field, err := core.ParseSortField(listOpts.sort)
	if err != nil {
		return err
	}
	order, err := core.ParseSortOrder(listOpts.order)
	if err != nil {
		return err
	}
	formatter, err := createFormatter()
	if err != nil {
		return err
	}

	return withClient(func(ctx context.Context, c *dbus.Client) error {
		list, err := c.ListWallpapers(ctx)
		if err != nil {
			return err
		}
		list = core.Search(core.Filter(list, expr), listOpts.search)
		core.Sort(list, core.SortOptions{Field: field, Order: order})
		return formatter.Wallpapers(cmd.OutOrStdout(), list)
	})
}

func runSet(cmd *cobra.Command, args []string) error {
	var wallpaper string
	switch {
	case setOpts.stdin && len(args) > 0:
		return errors.New("give a wallpaper or --stdin, not both")
	case setOpts.stdin:
		w, err := readFirstLine(cmd.InOrStdin())
		if err != nil {
			return err
		}
		wallpaper = w
	case len(args) == 1:
		wallpaper = args[0]
	default:
		return errors.New("no wallpaper given")
	}

	return withClient(func(ctx context.Context, c *dbus.Client) error {
		return c.SetWallpaper(ctx, wallpaper, setOpts.monitor)
	})
}

// readFirstLine returns the first field of the first non-empty line, so
// plain listings can be piped back in.
func readFirstLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return "", errors.New("stdin is empty")
}
