package effect

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/wlrs/internal/model"
)

func TestInstantiate_Defaults(t *testing.T) {
	r := NewRegistry(nil)

	st, err := r.Instantiate(model.EffectWave, map[string]float64{"amplitude": 0.1, "bogus": 3}, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 0.1, st.Param("amplitude"))
	assert.Equal(t, 10.0, st.Param("frequency"), "missing params fall back to defaults")
	assert.NotContains(t, st.Params, "bogus")
	assert.Zero(t, st.Elapsed)
	assert.InDelta(t, 0.5, st.Strength, 1e-9)
}

func TestInstantiate_StrengthClamped(t *testing.T) {
	r := NewRegistry(nil)
	st, err := r.Instantiate(model.EffectGlitch, map[string]float64{"intensity": 0.4}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, st.Strength, 1e-9)

	st, err = r.Instantiate(model.EffectGaussian, nil, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, st.Strength, 1.0)
	assert.GreaterOrEqual(t, st.Strength, 0.0)
}

func TestInstantiate_UnknownKind(t *testing.T) {
	_, err := NewRegistry(nil).Instantiate(model.EffectKind(42), nil, 1)
	var uerr *model.UnknownEffectError
	assert.ErrorAs(t, err, &uerr)
}

func TestCheckParams(t *testing.T) {
	r := NewRegistry(nil)

	warnings, err := r.CheckParams(model.EffectWave, map[string]float64{"amplitude": 0.2, "colour": 1}, false)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "colour")

	_, err = r.CheckParams(model.EffectWave, map[string]float64{"amplitude": 5}, false)
	assert.Error(t, err, "out of range")

	_, err = r.CheckParams(model.EffectCustom, nil, false)
	assert.ErrorContains(t, err, "script")

	_, err = r.CheckParams(model.EffectCustom, nil, true)
	assert.NoError(t, err)
}

func TestAdvance(t *testing.T) {
	r := NewRegistry(nil)
	st, err := r.Instantiate(model.EffectWave, map[string]float64{"speed": 2}, 1)
	require.NoError(t, err)

	now := time.Unix(100, 0)
	st.Advance(500*time.Millisecond, now)
	assert.InDelta(t, 1.0, st.Elapsed, 1e-9)
	assert.Equal(t, now, st.LastTick)
	assert.Equal(t, uint64(1), st.Ticks)

	st.Elapsed = TimeWrap - 0.5
	st.Advance(time.Second, now)
	assert.InDelta(t, 1.5, st.Elapsed, 1e-9, "elapsed wraps")
}

func TestClone_Independent(t *testing.T) {
	st, err := NewRegistry(nil).Instantiate(model.EffectWave, nil, 1)
	require.NoError(t, err)

	c := st.Clone()
	c.Params["amplitude"] = 0.9
	c.Advance(time.Second, time.Now())

	assert.Equal(t, 0.02, st.Param("amplitude"))
	assert.Zero(t, st.Elapsed)
}

func TestInstantiateAll(t *testing.T) {
	w, err := model.NewWallpaper(model.Metadata{Name: "w"}, []model.Layer{
		{Name: "bg", Opacity: 1},
		{Name: "fx", Effect: model.EffectWave, Opacity: 1},
	})
	require.NoError(t, err)

	states, errs := NewRegistry(nil).InstantiateAll(w)
	assert.Empty(t, errs)
	require.Len(t, states, 2)
	for _, st := range states {
		assert.Zero(t, st.Elapsed)
	}
	assert.Equal(t, model.EffectNone, states["bg"].Kind)
}

func TestKernel(t *testing.T) {
	assert.Equal(t, []float32{1}, Kernel(0))

	k := Kernel(2)
	assert.Len(t, k, 13)
	var sum float32
	for _, v := range k {
		sum += v
	}
	assert.InDelta(t, 1.0, float64(sum), 1e-5)
	assert.Equal(t, k[0], k[len(k)-1], "kernel is symmetric")
}

// halfMasked returns an image whose left half is opaque and varied and
// whose right half is fully transparent.
func halfMasked(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 200, A: 255})
		}
	}
	return img
}

func TestApply_MaskedPixelsStayTransparent(t *testing.T) {
	r := NewRegistry(nil)
	src := halfMasked(16, 16)

	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			st, err := r.Instantiate(kind, map[string]float64{}, 1)
			require.NoError(t, err)
			st.Elapsed = 0.37

			out := Apply(st, src)
			require.Equal(t, src.Rect, out.Rect)
			for y := 0; y < 16; y++ {
				for x := 8; x < 16; x++ {
					assert.Equal(t, color.RGBA{}, out.RGBAAt(x, y), "pixel %d,%d", x, y)
				}
			}
		})
	}
}

func TestApply_ZeroStrengthIsIdentity(t *testing.T) {
	src := halfMasked(16, 16)
	st, err := NewRegistry(nil).Instantiate(model.EffectGlitch, map[string]float64{"intensity": 0}, 1)
	require.NoError(t, err)
	st.Elapsed = 3

	out := Apply(st, src)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestApply_Deterministic(t *testing.T) {
	src := halfMasked(32, 32)
	r := NewRegistry(nil)
	for _, kind := range []model.EffectKind{model.EffectWave, model.EffectGlitch, model.EffectGaussian} {
		a, _ := r.Instantiate(kind, nil, 1)
		b, _ := r.Instantiate(kind, nil, 1)
		a.Elapsed, b.Elapsed = 1.25, 1.25
		assert.Equal(t, Apply(a, src).Pix, Apply(b, src).Pix, kind.String())
	}
}

func TestApply_WaveMovesWithTime(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), A: 255})
		}
	}
	st, err := NewRegistry(nil).Instantiate(model.EffectWave, map[string]float64{"amplitude": 0.1}, 1)
	require.NoError(t, err)

	first := Apply(st, src)
	st.Advance(250*time.Millisecond, time.Now())
	second := Apply(st, src)
	assert.NotEqual(t, first.Pix, second.Pix)
}

func TestSchemaFor(t *testing.T) {
	wave, ok := SchemaFor(model.EffectWave)
	require.True(t, ok)
	assert.Equal(t, Param{Default: 0.02, Min: 0, Max: 1}, wave.Params["amplitude"])
	assert.False(t, wave.NeedsScript)

	custom, ok := SchemaFor(model.EffectCustom)
	require.True(t, ok)
	assert.True(t, custom.NeedsScript)

	_, ok = SchemaFor(model.EffectKind(99))
	assert.False(t, ok)
}
