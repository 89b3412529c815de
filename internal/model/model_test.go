package model

import (
	"errors"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	warnings []string
	err      error
}

func (s stubChecker) CheckParams(EffectKind, map[string]float64, bool) ([]string, error) {
	return s.warnings, s.err
}

func ptr(f float64) *float64 { return &f }

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func TestValidate_Minimal(t *testing.T) {
	w, warnings, err := Validate(RawWallpaper{Name: "plain"}, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "plain", w.Name())
	assert.Equal(t, DefaultVersion, w.Version())
	assert.Equal(t, ScaleFill, w.ScaleMode())
	assert.Equal(t, Fixed(DefaultFramerate), w.Framerate())
	assert.Equal(t, w.Framerate(), w.Tickrate(), "default tickrate mirrors framerate")
}

func TestValidate_Rejects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bg.png")

	tests := []struct {
		name  string
		raw   RawWallpaper
		field string
	}{
		{"empty name", RawWallpaper{}, "name"},
		{"duplicate layers", RawWallpaper{Name: "w", Layers: []RawLayer{
			{Name: "a", Content: "#000"}, {Name: "a", Content: "#fff"},
		}}, "layers[1].name"},
		{"missing asset", RawWallpaper{Name: "w", Layers: []RawLayer{
			{Name: "a", Content: "missing.png"},
		}}, "layers[0].content"},
		{"unknown effect", RawWallpaper{Name: "w", Layers: []RawLayer{
			{Name: "a", Content: "bg.png", EffectType: map[string]any{"shader": "plasma"}},
		}}, "layers[0].effect_type.shader"},
		{"opacity above one", RawWallpaper{Name: "w", Layers: []RawLayer{
			{Name: "a", Content: "#000", Opacity: ptr(1.5)},
		}}, "layers[0].opacity"},
		{"negative opacity", RawWallpaper{Name: "w", Layers: []RawLayer{
			{Name: "a", Content: "#000", Opacity: ptr(-0.01)},
		}}, "layers[0].opacity"},
		{"bad scale mode", RawWallpaper{Name: "w", ScaleMode: "zoom"}, "scale_mode"},
		{"bad framerate", RawWallpaper{Name: "w", Framerate: int64(-5)}, "framerate"},
		{"bad tickrate", RawWallpaper{Name: "w", Tickrate: "sometimes"}, "tickrate"},
		{"bad color", RawWallpaper{Name: "w", Layers: []RawLayer{
			{Name: "a", Content: "#zzzzzz"},
		}}, "layers[0].content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Validate(tt.raw, dir, nil)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_UnknownEffectUnwraps(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Validate(RawWallpaper{Name: "w", Layers: []RawLayer{
		{Name: "a", Content: "#000", EffectType: "plasma"},
	}}, dir, nil)

	var uerr *UnknownEffectError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "plasma", uerr.Kind)
}

func TestValidate_ParamChecker(t *testing.T) {
	dir := t.TempDir()
	raw := RawWallpaper{Name: "w", Layers: []RawLayer{
		{Name: "a", Content: "#000", EffectType: map[string]any{"shader": "wave"}, Params: map[string]float64{"bogus": 1}},
	}}

	_, warnings, err := Validate(raw, dir, stubChecker{warnings: []string{"unknown parameter \"bogus\" ignored"}})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "a", warnings[0].Layer)

	_, _, err = Validate(raw, dir, stubChecker{err: errors.New("missing required parameter")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "layers[0].params", verr.Field)
}

func TestValidate_OpacityAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dir := t.TempDir()
	for i := 0; i < 200; i++ {
		op := rng.Float64()*3 - 1
		raw := RawWallpaper{Name: "w", Layers: []RawLayer{{Name: "a", Content: "#123456", Opacity: ptr(op)}}}
		w, _, err := Validate(raw, dir, nil)
		if op < 0 || op > 1 {
			assert.Error(t, err, "opacity %v", op)
			continue
		}
		require.NoError(t, err)
		for _, l := range w.Layers() {
			assert.GreaterOrEqual(t, l.Opacity, 0.0)
			assert.LessOrEqual(t, l.Opacity, 1.0)
		}
	}
}

func TestValidate_ContentVariants(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bg.png")

	w, _, err := Validate(RawWallpaper{Name: "w", Layers: []RawLayer{
		{Name: "solid", Content: "#000033"},
		{Name: "image", Content: "bg.png"},
		{Name: "empty"},
	}}, dir, nil)
	require.NoError(t, err)

	layers := w.Layers()
	assert.Equal(t, SolidContent{Color: color.NRGBA{R: 0, G: 0, B: 0x33, A: 255}}, layers[0].Content)
	assert.Equal(t, ImageContent{Path: filepath.Join(dir, "bg.png")}, layers[1].Content)
	assert.Equal(t, NoContent{}, layers[2].Content)
	assert.Equal(t, 1.0, layers[1].Opacity, "opacity defaults to 1")
}

func TestWallpaper_Immutable(t *testing.T) {
	w, err := NewWallpaper(Metadata{Name: "w"}, []Layer{
		{Name: "a", Opacity: 1, Params: map[string]float64{"speed": 1}},
	})
	require.NoError(t, err)

	layers := w.Layers()
	layers[0].Params["speed"] = 99
	layers[0].Name = "changed"

	again := w.Layers()
	assert.Equal(t, "a", again[0].Name)
	assert.Equal(t, 1.0, again[0].Params["speed"])
}

func TestSortedLayers_StabilityLaw(t *testing.T) {
	base := []Layer{
		{Name: "bg", ZIndex: -1000, Opacity: 1},
		{Name: "mid", ZIndex: -500, Opacity: 1},
		{Name: "top", ZIndex: 500, Opacity: 1},
		{Name: "front", ZIndex: 900, Opacity: 1},
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		perm := make([]Layer, len(base))
		for j, k := range rng.Perm(len(base)) {
			perm[j] = base[k]
		}
		w, err := NewWallpaper(Metadata{Name: "w"}, perm)
		require.NoError(t, err)

		var names []string
		for _, l := range w.SortedLayers() {
			names = append(names, l.Name)
		}
		assert.Equal(t, []string{"bg", "mid", "top", "front"}, names)
	}
}

func TestSortedLayers_TiesKeepDeclarationOrder(t *testing.T) {
	w, err := NewWallpaper(Metadata{Name: "w"}, []Layer{
		{Name: "c", ZIndex: 1, Opacity: 1},
		{Name: "a", ZIndex: 0, Opacity: 1},
		{Name: "b", ZIndex: 1, Opacity: 1},
		{Name: "d", ZIndex: 0, Opacity: 1},
	})
	require.NoError(t, err)

	var names []string
	for _, l := range w.SortedLayers() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"a", "d", "c", "b"}, names)
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in        any
		want      RatePolicy
		isDefault bool
		wantErr   bool
	}{
		{nil, RatePolicy{}, true, false},
		{"default", RatePolicy{}, true, false},
		{"compositor", CompositorDriven(), false, false},
		{"STATIC", Static(), false, false},
		{int64(0), Static(), false, false},
		{int64(60), Fixed(60), false, false},
		{30.5, Fixed(30.5), false, false},
		{"24", Fixed(24), false, false},
		{int64(-1), CompositorDriven(), false, false},
		{int64(-2), RatePolicy{}, false, true},
		{"fast", RatePolicy{}, false, true},
		{true, RatePolicy{}, false, true},
	}

	for _, tt := range tests {
		got, isDefault, err := ParseRate(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %v", tt.in)
			continue
		}
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
		assert.Equal(t, tt.isDefault, isDefault, "input %v", tt.in)
	}
}

func TestRatePolicy_Interval(t *testing.T) {
	assert.Equal(t, time.Second/60, Fixed(60).Interval())
	assert.Zero(t, Static().Interval())
	assert.Zero(t, CompositorDriven().Interval())
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#000033", color.NRGBA{0, 0, 0x33, 255}},
		{"#fff", color.NRGBA{255, 255, 255, 255}},
		{"#ff000080", color.NRGBA{255, 0, 0, 0x80}},
		{"rgb(255, 128, 0)", color.NRGBA{255, 128, 0, 255}},
		{"rgba(0, 0, 255, 0.5)", color.NRGBA{0, 0, 255, 128}},
		{"hsl(0, 100%, 50%)", color.NRGBA{255, 0, 0, 255}},
	}

	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseColor("blue")
	assert.Error(t, err)
}

func TestFormatColor(t *testing.T) {
	assert.Equal(t, "#000033", FormatColor(color.NRGBA{0, 0, 0x33, 255}))
	assert.Equal(t, "#ff000080", FormatColor(color.NRGBA{255, 0, 0, 0x80}))
}

func TestParseEffectKind(t *testing.T) {
	for _, name := range []string{"wave", "glitch", "gaussian", "custom"} {
		k, err := ParseEffectKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, k.String())
	}
	k, err := ParseEffectKind("image")
	require.NoError(t, err)
	assert.Equal(t, EffectNone, k)

	_, err = ParseEffectKind("particles")
	assert.Error(t, err)
}
