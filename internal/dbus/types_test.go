package dbus

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/wlrs/internal/control"
	"github.com/jmylchreest/wlrs/internal/library"
	"github.com/jmylchreest/wlrs/internal/manifest"
	"github.com/jmylchreest/wlrs/internal/model"
	"github.com/jmylchreest/wlrs/internal/scheduler"
)

func TestToDBusError_Names(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"monitor", &control.MonitorNotFoundError{ID: "DP-9"}, ErrorMonitorNotFound},
		{"wallpaper", &control.WallpaperNotFoundError{Query: "ocean"}, ErrorWallpaperNotFound},
		{"no monitors", control.ErrNoMonitors, ErrorNoMonitors},
		{"installed", fmt.Errorf("/x: %w", library.ErrAlreadyInstalled), ErrorAlreadyInstalled},
		{"validation", &model.ValidationError{Field: "name", Reason: "empty"}, ErrorInvalidWallpaper},
		{"unknown effect", &model.UnknownEffectError{Kind: "sparkle"}, ErrorInvalidWallpaper},
		{"no manifest", fmt.Errorf("/w: %w", manifest.ErrNoManifest), ErrorInvalidWallpaper},
		{"state", &scheduler.StateError{Op: "pause", State: scheduler.Idle}, ErrorInvalidState},
		{"other", errors.New("disk on fire"), ErrorFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := toDBusError(tt.err)
			require.NotNil(t, de)
			assert.Equal(t, tt.want, de.Name)
			assert.Equal(t, tt.err.Error(), de.Error())
		})
	}
	assert.Nil(t, toDBusError(nil))
}

func TestFromDBusError_RestoresTypes(t *testing.T) {
	// Replies arrive as dbus.Error values.
	roundTrip := func(err error) error {
		return fromDBusError(*toDBusError(err))
	}

	var mnf *control.MonitorNotFoundError
	require.ErrorAs(t, roundTrip(&control.MonitorNotFoundError{ID: "DP-9"}), &mnf)
	assert.Equal(t, "DP-9", mnf.ID)

	var wnf *control.WallpaperNotFoundError
	require.ErrorAs(t, roundTrip(&control.WallpaperNotFoundError{Query: "ocean"}), &wnf)
	assert.Equal(t, "ocean", wnf.Query)

	assert.ErrorIs(t, roundTrip(control.ErrNoMonitors), control.ErrNoMonitors)

	installed := roundTrip(fmt.Errorf("/x: %w", library.ErrAlreadyInstalled))
	assert.ErrorIs(t, installed, library.ErrAlreadyInstalled)
	assert.Contains(t, installed.Error(), "/x")

	var re *RemoteError
	require.ErrorAs(t, roundTrip(&model.ValidationError{Field: "layers", Reason: "empty"}), &re)
	assert.Equal(t, ErrorInvalidWallpaper, re.Name)
	assert.Contains(t, re.Message, "layers")
}

func TestFromDBusError_PassesThroughTransportErrors(t *testing.T) {
	err := errors.New("connection reset")
	assert.Same(t, err, fromDBusError(err))
	assert.NoError(t, fromDBusError(nil))
}

func TestWireConversions_KeepTimes(t *testing.T) {
	loaded := time.UnixMilli(1_700_000_000_123)
	sum := library.Summary{ID: "01H", Name: "Ocean", Source: library.SourceInstalled, Layers: 3, LoadedAt: loaded}
	back := summaryFromWire(summaryToWire(sum))
	assert.Equal(t, sum.Name, back.Name)
	assert.Equal(t, sum.Source, back.Source)
	assert.True(t, loaded.Equal(back.LoadedAt))

	idle := activeFromWire(activeToWire(control.Active{Monitor: "DP-1", State: "idle"}))
	assert.True(t, idle.BoundAt.IsZero(), "unbound monitors keep a zero time")

	h := healthFromWire(healthToWire(control.Health{Version: "1.0", Uptime: 90 * time.Second, Monitors: 2}))
	assert.Equal(t, 90*time.Second, h.Uptime)
	assert.Equal(t, 2, h.Monitors)
}

func TestChangeFromSignal(t *testing.T) {
	ch, ok := changeFromSignal([]any{"DP-1", "Ocean", "01H"})
	require.True(t, ok)
	assert.Equal(t, control.Change{Monitor: "DP-1", Wallpaper: "Ocean", WallpaperID: "01H"}, ch)

	_, ok = changeFromSignal([]any{"DP-1", 3, "x"})
	assert.False(t, ok)
	_, ok = changeFromSignal(nil)
	assert.False(t, ok)
}

func TestNotificationHints(t *testing.T) {
	n := &Notification{Hints: map[string]dbus.Variant{
		"urgency":   dbus.MakeVariant(UrgencyCritical),
		"transient": dbus.MakeVariant(true),
	}}
	assert.Equal(t, UrgencyCritical, n.Urgency())
	assert.True(t, n.Transient())

	empty := &Notification{}
	assert.Equal(t, UrgencyNormal, empty.Urgency())
	assert.False(t, empty.Transient())
}
