// Package main provides the CLI entrypoint for wlrs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmylchreest/wlrs/internal/adapter/output"
	"github.com/jmylchreest/wlrs/internal/config"
	"github.com/jmylchreest/wlrs/internal/dbus"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		format     string
		color      string
		configPath string
	}
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wlrs",
	Short: "Control the wlrsd wallpaper daemon",
	Long: `wlrs controls wlrsd, a layered animated wallpaper daemon.

It talks to the daemon over the session bus: load and install wallpapers,
bind them to monitors, inspect what each monitor is showing, and pause or
step animation.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if !cmd.Flags().Changed("format") && cfg.Output.Format != "" {
			globalOpts.format = cfg.Output.Format
		}
		if !cmd.Flags().Changed("color") && cfg.Output.Color != "" {
			globalOpts.color = cfg.Output.Color
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wlrs:", describe(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging and detailed output")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.format, "format", "f", config.DefaultFormat,
		"Output format (plain, json, yaml, ids)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.color, "color", "auto",
		"Colorize plain output (auto, always, never)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/wlrs/config.toml)")
}

func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}
	// Log to stderr so stdout is clean for output
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// createFormatter creates the output formatter from the global flags.
func createFormatter() (output.Formatter, error) {
	format, err := output.ParseFormat(globalOpts.format)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format, output.FormatterOptions{
		Color:   useColor(globalOpts.color, os.Stdout),
		Verbose: globalOpts.verbose,
	}), nil
}

func useColor(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// withClient connects to the daemon and runs fn with a context bounded by
// the configured client timeout.
func withClient(fn func(ctx context.Context, c *dbus.Client) error) error {
	client, err := dbus.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	timeout := config.DefaultTimeout
	if cfg != nil && cfg.Client.Timeout.Duration() > 0 {
		timeout = cfg.Client.Timeout.Duration()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, client)
}

// describe adds a hint to errors the user can act on.
func describe(err error) string {
	if errors.Is(err, dbus.ErrDaemonNotRunning) {
		return err.Error() + " (start it with: wlrsd)"
	}
	return err.Error()
}

func main() {
	Execute()
}
