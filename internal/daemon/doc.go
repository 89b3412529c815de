// Package daemon provides the main orchestration for wlrsd.
// It wires the wallpaper library, monitor registry and control service to a
// presentation host, the D-Bus server, and configuration and library
// hot-reload.
package daemon
