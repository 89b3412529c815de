// Package display puts composited frames on screen. A Host reports the
// outputs it can draw on, presents frames to them and, when it has access to
// the compositor's refresh clock, drives frame opportunities for
// compositor-driven wallpapers. Hosts are GTK4 layer-shell windows on
// Wayland, the X11 root window (package x11) or an in-memory headless host.
package display
