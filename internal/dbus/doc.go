// Package dbus exposes the wallpaper daemon on the session bus as
// io.github.jmylchreest.wlrs and provides the matching client. It also sends
// desktop notifications through org.freedesktop.Notifications.
package dbus
