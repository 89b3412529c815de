package control

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/wlrs/internal/asset"
	"github.com/jmylchreest/wlrs/internal/effect"
	"github.com/jmylchreest/wlrs/internal/library"
	"github.com/jmylchreest/wlrs/internal/manifest"
	"github.com/jmylchreest/wlrs/internal/monitor"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Wallpaper(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[id]
	return p, ok
}

func (m *memStore) SetWallpaper(id, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = path
	return nil
}

// slowStore delays writes like a real file save.
type slowStore struct {
	memStore
	delay time.Duration
}

func (s *slowStore) SetWallpaper(id, path string) error {
	time.Sleep(s.delay)
	return s.memStore.SetWallpaper(id, path)
}

type framePresenter struct {
	mu    sync.Mutex
	last  map[string]*image.RGBA
	count int
}

func (p *framePresenter) Present(id string, frame *image.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := image.NewRGBA(frame.Rect)
	copy(cp.Pix, frame.Pix)
	p.last[id] = cp
	p.count++
	return nil
}

type fixture struct {
	svc       *Service
	lib       *library.Library
	reg       *monitor.Registry
	store     *memStore
	presenter *framePresenter
	stopped   chan struct{}
}

func newFixture(t *testing.T, defaults Defaults) *fixture {
	t.Helper()
	effects := effect.NewRegistry(nil)
	lib := library.New(filepath.Join(t.TempDir(), "wallpapers"), nil, manifest.NewLoader(effects, nil), nil)
	p := &framePresenter{last: make(map[string]*image.RGBA)}
	reg := monitor.NewRegistry(monitor.Options{
		Effects:   effects,
		Sources:   asset.NewCache(8, nil),
		Presenter: p,
	})
	f := &fixture{
		lib:       lib,
		reg:       reg,
		store:     &memStore{data: make(map[string]string)},
		presenter: p,
		stopped:   make(chan struct{}),
	}
	f.svc = NewService(Options{
		Library:  lib,
		Monitors: reg,
		Store:    f.store,
		Defaults: defaults,
		Version:  "test",
		Stop:     func() { close(f.stopped) },
	})
	return f
}

func writeWallpaper(t *testing.T, name, body string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	doc := fmt.Sprintf("name = %q\n%s", name, body)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.toml"), []byte(doc), 0644))
	return dir
}

const waveBody = `
framerate = 60
tickrate = 60

[[layers]]
name = "fill"
content = "#000033"

[[layers]]
name = "ripple"
content = "#000033"
z_index = 1
effect_type = { shader = "wave" }
`

func TestSetWallpaper_Errors(t *testing.T) {
	f := newFixture(t, Defaults{})
	_, err := f.svc.LoadWallpaper(writeWallpaper(t, "calm", waveBody))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.SetWallpaper("calm", ""), ErrNoMonitors)

	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 2, Height: 2})

	var mnf *MonitorNotFoundError
	assert.ErrorAs(t, f.svc.SetWallpaper("calm", "DP-7"), &mnf)

	var wnf *WallpaperNotFoundError
	assert.ErrorAs(t, f.svc.SetWallpaper("stormy", "DP-1"), &wnf)

	assert.Empty(t, f.svc.Query()[0].Wallpaper, "failed requests change nothing")
}

func TestSetWallpaper_AllMonitorsFallback(t *testing.T) {
	f := newFixture(t, Defaults{})
	calm, err := f.svc.LoadWallpaper(writeWallpaper(t, "calm", waveBody))
	require.NoError(t, err)
	_, err = f.svc.LoadWallpaper(writeWallpaper(t, "busy", waveBody))
	require.NoError(t, err)

	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Name: "Left", Width: 2, Height: 2})
	f.svc.MonitorAdded(monitor.Output{ID: "DP-2", Name: "Right", Width: 2, Height: 2})

	// Nothing bound yet: every output gets it.
	require.NoError(t, f.svc.SetWallpaper(calm, ""))
	for _, a := range f.svc.Query() {
		assert.Equal(t, "calm", a.Wallpaper)
		assert.Equal(t, calm, a.WallpaperID)
		assert.Equal(t, "running", a.State)
	}

	// Monitor names are accepted in place of IDs.
	require.NoError(t, f.svc.SetWallpaper("busy", "Right"))
	q := f.svc.Query()
	assert.Equal(t, "calm", q[0].Wallpaper)
	assert.Equal(t, "busy", q[1].Wallpaper)
	assert.Equal(t, "Right", q[1].OutputName)
}

func TestSetWallpaper_EmptyMonitorTargetsBoundOnly(t *testing.T) {
	f := newFixture(t, Defaults{})
	_, err := f.svc.LoadWallpaper(writeWallpaper(t, "calm", waveBody))
	require.NoError(t, err)
	_, err = f.svc.LoadWallpaper(writeWallpaper(t, "busy", waveBody))
	require.NoError(t, err)

	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 2, Height: 2})
	f.svc.MonitorAdded(monitor.Output{ID: "DP-2", Width: 2, Height: 2})
	require.NoError(t, f.svc.SetWallpaper("calm", "DP-1"))

	require.NoError(t, f.svc.SetWallpaper("busy", ""))
	q := f.svc.Query()
	assert.Equal(t, "busy", q[0].Wallpaper)
	assert.Empty(t, q[1].Wallpaper)
	assert.Equal(t, "idle", q[1].State)
}

func TestSetWallpaper_ResetsPhaseAndNotifies(t *testing.T) {
	f := newFixture(t, Defaults{})
	_, err := f.svc.LoadWallpaper(writeWallpaper(t, "calm", waveBody))
	require.NoError(t, err)
	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 2, Height: 2})

	var changes []Change
	f.svc.OnChange(func(c Change) { changes = append(changes, c) })

	require.NoError(t, f.svc.SetWallpaper("calm", "DP-1"))
	require.NoError(t, f.svc.ForceTick("DP-1", 3*time.Second))
	states, err := f.reg.EffectStates("DP-1")
	require.NoError(t, err)
	require.InDelta(t, 3.0, states["ripple"].Elapsed, 1e-9)

	require.NoError(t, f.svc.SetWallpaper("calm", "DP-1"))
	states, err = f.reg.EffectStates("DP-1")
	require.NoError(t, err)
	for name, st := range states {
		assert.Zero(t, st.Elapsed, name)
	}

	require.Len(t, changes, 2)
	assert.Equal(t, "DP-1", changes[0].Monitor)
	assert.Equal(t, "calm", changes[0].Wallpaper)
}

func TestSetWallpaper_ConcurrentSetsPersistWhatIsShown(t *testing.T) {
	f := newFixture(t, Defaults{})
	store := &slowStore{memStore: memStore{data: make(map[string]string)}, delay: 2 * time.Millisecond}
	f.svc = NewService(Options{Library: f.lib, Monitors: f.reg, Store: store})

	alpha := writeWallpaper(t, "alpha", waveBody)
	beta := writeWallpaper(t, "beta", waveBody)
	_, err := f.svc.LoadWallpaper(alpha)
	require.NoError(t, err)
	_, err = f.svc.LoadWallpaper(beta)
	require.NoError(t, err)
	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 2, Height: 2})

	var (
		mu   sync.Mutex
		last Change
	)
	f.svc.OnChange(func(c Change) {
		mu.Lock()
		last = c
		mu.Unlock()
	})

	for round := 0; round < 25; round++ {
		var wg sync.WaitGroup
		for _, name := range []string{"alpha", "beta"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, f.svc.SetWallpaper(name, "DP-1"))
			}()
		}
		wg.Wait()

		shown := f.svc.Query()[0]
		saved, ok := store.Wallpaper("DP-1")
		require.True(t, ok)
		require.Equal(t, shown.Wallpaper, filepath.Base(saved), "round %d", round)

		mu.Lock()
		assert.Equal(t, shown.Wallpaper, last.Wallpaper, "last signal names the shown wallpaper")
		assert.Equal(t, shown.WallpaperID, last.WallpaperID)
		mu.Unlock()
	}
}

func TestMonitorAdded_RestoresRememberedWallpaper(t *testing.T) {
	f := newFixture(t, Defaults{})
	dir := writeWallpaper(t, "remembered", waveBody)
	require.NoError(t, f.store.SetWallpaper("DP-1", dir))

	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 2, Height: 2})
	q := f.svc.Query()
	require.Len(t, q, 1)
	assert.Equal(t, "remembered", q[0].Wallpaper, "loaded from the stored path")
}

func TestMonitorAdded_UsesDefaults(t *testing.T) {
	f := newFixture(t, Defaults{})
	_, err := f.svc.LoadWallpaper(writeWallpaper(t, "everywhere", waveBody))
	require.NoError(t, err)
	_, err = f.svc.LoadWallpaper(writeWallpaper(t, "special", waveBody))
	require.NoError(t, err)
	f.svc.SetDefaults(Defaults{Wallpaper: "everywhere", PerMonitor: map[string]string{"HDMI-A-1": "special"}})

	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 2, Height: 2})
	f.svc.MonitorAdded(monitor.Output{ID: "HDMI-A-1", Width: 2, Height: 2})

	q := f.svc.Query()
	assert.Equal(t, "everywhere", q[0].Wallpaper)
	assert.Equal(t, "special", q[1].Wallpaper)

	p, ok := f.store.Wallpaper("HDMI-A-1")
	require.True(t, ok)
	assert.Equal(t, "special", filepath.Base(p), "bindings are persisted")

	f.svc.MonitorRemoved("HDMI-A-1")
	assert.Len(t, f.svc.Query(), 1)
}

func TestPauseResumeAll(t *testing.T) {
	f := newFixture(t, Defaults{})
	_, err := f.svc.LoadWallpaper(writeWallpaper(t, "calm", waveBody))
	require.NoError(t, err)
	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 2, Height: 2})
	f.svc.MonitorAdded(monitor.Output{ID: "DP-2", Width: 2, Height: 2})
	require.NoError(t, f.svc.SetWallpaper("calm", ""))

	require.NoError(t, f.svc.Pause(""))
	for _, a := range f.svc.Query() {
		assert.Equal(t, "paused", a.State)
	}
	assert.Error(t, f.svc.Pause("DP-1"), "already paused")

	require.NoError(t, f.svc.Resume(""))
	for _, a := range f.svc.Query() {
		assert.Equal(t, "running", a.State)
	}
}

func TestStopServer_Once(t *testing.T) {
	f := newFixture(t, Defaults{})
	require.NoError(t, f.svc.StopServer())
	require.NoError(t, f.svc.StopServer())
	select {
	case <-f.stopped:
	case <-time.After(time.Second):
		t.Fatal("stop not called")
	}
}

func TestPingAndInstallDirectory(t *testing.T) {
	f := newFixture(t, Defaults{})
	_, err := f.svc.LoadWallpaper(writeWallpaper(t, "calm", waveBody))
	require.NoError(t, err)
	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 2, Height: 2})

	h := f.svc.Ping()
	assert.Equal(t, "test", h.Version)
	assert.Equal(t, 1, h.Monitors)
	assert.Equal(t, 1, h.Wallpapers)
	assert.Equal(t, f.lib.InstallDir(), f.svc.GetInstallDirectory())

	sum, err := f.svc.InstallWallpaper(writeWallpaper(t, "fresh", waveBody), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.svc.GetInstallDirectory(), "fresh"), sum.Path)
	assert.Len(t, f.svc.ListWallpapers(), 2)
}

func TestEndToEnd_ManifestToFrame(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "meadow")
	require.NoError(t, os.MkdirAll(dir, 0755))
	green := color.NRGBA{G: 200, A: 255}
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, green)
		}
	}
	fh, err := os.Create(filepath.Join(dir, "bg.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(fh, img))
	require.NoError(t, fh.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.toml"), []byte(`
name = "meadow"
framerate = 30
tickrate = 60

[[layers]]
name = "sky"
content = "#000033"
z_index = -1000

[[layers]]
name = "background"
content = "bg.png"
z_index = -500

[[layers]]
name = "waves"
content = "bg.png"
z_index = 500
opacity = 1.0
effect_type = { shader = "wave" }
`), 0644))

	f := newFixture(t, Defaults{})
	id, err := f.svc.LoadWallpaper(dir)
	require.NoError(t, err)
	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 8, Height: 8})
	require.NoError(t, f.svc.SetWallpaper(id, "DP-1"))

	out, err := f.reg.FrameOpportunity("DP-1", time.Now())
	require.NoError(t, err)
	require.True(t, out.Framed)

	frame := f.presenter.last["DP-1"]
	require.NotNil(t, frame)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			require.Equal(t, color.RGBA{G: 200, A: 255}, frame.RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestRebind_PicksUpReloadedWallpaper(t *testing.T) {
	f := newFixture(t, Defaults{})
	dir := writeWallpaper(t, "calm", waveBody)
	id, err := f.svc.LoadWallpaper(dir)
	require.NoError(t, err)
	f.svc.MonitorAdded(monitor.Output{ID: "DP-1", Width: 2, Height: 2})
	f.svc.MonitorAdded(monitor.Output{ID: "DP-2", Width: 2, Height: 2})
	require.NoError(t, f.svc.SetWallpaper("calm", "DP-1"))

	n, err := f.svc.Rebind("01UNRELATED")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.toml"),
		[]byte("name = \"calm\"\n\n[[layers]]\nname = \"only\"\ncontent = \"#ffffff\"\n"), 0644))
	_, err = f.lib.LoadPath(dir)
	require.NoError(t, err)

	n, err = f.svc.Rebind(id)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only monitors showing the wallpaper are rebound")

	w, err := f.reg.Wallpaper("DP-1")
	require.NoError(t, err)
	assert.Equal(t, 1, w.LayerCount())
}
