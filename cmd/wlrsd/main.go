// Package main is the entry point for the wlrsd wallpaper daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jmylchreest/wlrs/internal/config"
	"github.com/jmylchreest/wlrs/internal/daemon"
	"github.com/jmylchreest/wlrs/internal/display"
	"github.com/jmylchreest/wlrs/internal/display/x11"
)

// appID differs from dbus.BusName: GApplication claims its ID on the session
// bus as well.
const appID = "io.github.jmylchreest.wlrsd"

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/wlrs/wlrsd.toml)")
	backend := flag.String("host", "", "Presentation host: gtk, x11 or headless (overrides config)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	noDBus := flag.Bool("no-dbus", false, "Do not export the control interface on the session bus")
	writeConfig := flag.Bool("write-config", false, "Write the effective config to the config path and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("wlrsd version", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadDaemonConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Host.Backend = *backend
		if err := cfg.Validate(); err != nil {
			logger.Error("invalid host", "error", err)
			os.Exit(2)
		}
	}

	if *writeConfig {
		if err := config.SaveDaemonConfig(cfg, *configPath); err != nil {
			logger.Error("failed to write config", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	host, err := newHost(cfg, logger)
	if err != nil {
		logger.Error("failed to create display host", "backend", cfg.Host.Backend, "error", err)
		os.Exit(1)
	}

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: *configPath,
		Host:       host,
		Version:    version,
		DBus:       !*noDBus,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to initialise daemon", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	logger.Info("starting wlrsd", "version", version, "host", cfg.Host.Backend)

	// The GTK host must own the main goroutine, so Run is not backgrounded.
	if err := d.Run(ctx); err != nil {
		logger.Error("wlrsd exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("wlrsd shutdown complete")
}

func newHost(cfg *config.DaemonConfig, logger *slog.Logger) (display.Host, error) {
	switch config.Backend(cfg.Host.Backend) {
	case config.BackendX11:
		return x11.NewHost(logger)
	case config.BackendHeadless:
		outputs := display.HeadlessOutputs(cfg.Render.HeadlessOutputs, cfg.Render.HeadlessWidth, cfg.Render.HeadlessHeight)
		return display.NewHeadlessHost(outputs, logger), nil
	default:
		return display.NewGTKHost(appID, logger), nil
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
