package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/wlrs/internal/dbus"
)

// NotificationLevel indicates the urgency/severity of an internal notification.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low urgency).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (normal urgency).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (critical urgency).
	NotificationLevelError
)

// Sender delivers a desktop notification.
type Sender interface {
	Send(n *dbus.Notification) (uint32, error)
}

// InternalNotifier tells the user about daemon events through desktop
// notifications, rate limited per key.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	sender Sender

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration
	timeout        time.Duration
	now            func() time.Time

	enabled bool
}

// NewInternalNotifier creates a notifier that sends through sender.
func NewInternalNotifier(sender Sender, logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		sender:         sender,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		timeout:        5 * time.Second,
		now:            time.Now,
		enabled:        true,
	}
}

// SetEnabled enables or disables notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between notifications with the same key.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// SetTimeout sets how long notifications stay on screen.
func (n *InternalNotifier) SetTimeout(timeout time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timeout = timeout
}

// Notify sends a notification unless one with the same key went out within
// the minimum interval.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) {
	n.mu.Lock()
	if !n.enabled || n.sender == nil {
		n.mu.Unlock()
		return
	}
	now := n.now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key, "summary", summary)
		return
	}
	n.lastNotifyTime[key] = now
	timeout := n.timeout
	sender := n.sender
	n.mu.Unlock()

	urgency := dbus.UrgencyNormal
	icon := "dialog-warning"
	switch level {
	case NotificationLevelInfo:
		urgency = dbus.UrgencyLow
		icon = "dialog-information"
	case NotificationLevelError:
		urgency = dbus.UrgencyCritical
		icon = "dialog-error"
	}

	notification := &dbus.Notification{
		AppName: "wlrsd",
		AppIcon: icon,
		Summary: summary,
		Body:    body,
		Hints: map[string]godbus.Variant{
			"urgency":       godbus.MakeVariant(urgency),
			"transient":     godbus.MakeVariant(true),
			"desktop-entry": godbus.MakeVariant("wlrsd"),
		},
		ExpireTimeout: int32(timeout / time.Millisecond),
	}

	if _, err := sender.Send(notification); err != nil {
		n.logger.Debug("internal notification failed", "key", key, "error", err)
	}
}

// NotifyStartup announces how many monitors and wallpapers the daemon found.
func (n *InternalNotifier) NotifyStartup(monitors, wallpapers int) {
	n.Notify(
		"startup",
		"Wallpaper daemon started",
		humanize.Plural(monitors, "monitor", "")+", "+humanize.Plural(wallpapers, "wallpaper", "")+" available.",
		NotificationLevelInfo,
	)
}

// NotifyConfigReloaded sends a notification about config being reloaded.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify(
		"config-reload",
		"Configuration Reloaded",
		"wlrsd configuration has been successfully reloaded.",
		NotificationLevelInfo,
	)
}

// NotifyConfigError sends a notification about config validation error.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify(
		"config-error",
		"Configuration Error",
		"Failed to reload configuration: "+err.Error(),
		NotificationLevelWarning,
	)
}

// NotifyWallpaperError reports a wallpaper that failed to load or reload.
func (n *InternalNotifier) NotifyWallpaperError(path string, err error) {
	n.Notify(
		"wallpaper-error:"+path,
		"Wallpaper Error",
		path+": "+err.Error(),
		NotificationLevelError,
	)
}
