package dbus

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName  = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsIface = "org.freedesktop.Notifications"
)

// Urgency levels defined by the desktop notification protocol.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// Notification is an outgoing org.freedesktop.Notifications.Notify call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// Urgency extracts the urgency hint, defaulting to UrgencyNormal.
func (n *Notification) Urgency() byte {
	if v, ok := n.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return b
		}
	}
	return UrgencyNormal
}

// Transient reports whether the transient hint is set.
func (n *Notification) Transient() bool {
	if v, ok := n.Hints["transient"]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// DesktopNotifier sends notifications to whichever daemon owns
// org.freedesktop.Notifications. The session bus is dialled lazily.
type DesktopNotifier struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewDesktopNotifier creates a notifier.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{}
}

// Send delivers n and returns the ID assigned by the notification daemon.
func (d *DesktopNotifier) Send(n *Notification) (uint32, error) {
	d.mu.Lock()
	if d.conn == nil {
		conn, err := dbus.SessionBus()
		if err != nil {
			d.mu.Unlock()
			return 0, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		d.conn = conn
	}
	conn := d.conn
	d.mu.Unlock()

	actions := n.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := n.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}

	var id uint32
	err := conn.Object(notificationsName, notificationsPath).Call(
		notificationsIface+".Notify", 0,
		n.AppName, n.ReplacesID, n.AppIcon, n.Summary, n.Body, actions, hints, n.ExpireTimeout,
	).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	return id, nil
}
