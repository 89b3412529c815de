package effect

import (
	"image"
	"math"

	"github.com/jmylchreest/wlrs/internal/model"
)

// AlphaCutoff is the source alpha below which a pixel counts as masked out:
// effects leave it fully transparent instead of computing a value there.
const AlphaCutoff = 2

// Apply runs the effect of s over src and returns a new image with the same
// bounds. src is premultiplied RGBA already mapped into output space. Kinds
// without a transform (none, custom) return src unchanged.
func Apply(s *State, src *image.RGBA) *image.RGBA {
	if s == nil || src == nil || src.Rect.Empty() {
		return src
	}

	var fx *image.RGBA
	switch s.Kind {
	case model.EffectWave:
		fx = wave(s, src)
	case model.EffectGlitch:
		fx = glitch(s, src)
	case model.EffectGaussian:
		fx = gaussian(s, src)
	default:
		return src
	}

	finish(fx, src, s.Strength)
	return fx
}

// finish blends the effect output toward the source by strength and forces
// masked-out pixels to transparent.
func finish(fx, src *image.RGBA, strength float64) {
	b := src.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			si := src.PixOffset(x, y)
			fi := fx.PixOffset(x, y)
			if src.Pix[si+3] < AlphaCutoff {
				fx.Pix[fi+0], fx.Pix[fi+1], fx.Pix[fi+2], fx.Pix[fi+3] = 0, 0, 0, 0
				continue
			}
			if strength >= 1 {
				continue
			}
			for c := 0; c < 4; c++ {
				s := float64(src.Pix[si+c])
				f := float64(fx.Pix[fi+c])
				fx.Pix[fi+c] = clampByte(s + (f-s)*strength)
			}
		}
	}
}

// wave displaces rows horizontally and columns vertically along sine waves
// whose phase follows the elapsed accumulator.
func wave(s *State, src *image.RGBA) *image.RGBA {
	b := src.Rect
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(b)

	ampX := s.Param("amplitude") * float64(w)
	ampY := s.Param("amplitude") * float64(h) / 2
	freq := s.Param("frequency")
	phase := s.Elapsed * 2 * math.Pi

	for y := 0; y < h; y++ {
		dx := int(math.Round(ampX * math.Sin(2*math.Pi*freq*float64(y)/float64(h)+phase)))
		for x := 0; x < w; x++ {
			dy := int(math.Round(ampY * math.Cos(2*math.Pi*freq*float64(x)/float64(w)+phase)))
			sx := clampInt(x+dx, 0, w-1)
			sy := clampInt(y+dy, 0, h-1)
			copy(dst.Pix[dst.PixOffset(b.Min.X+x, b.Min.Y+y):][:4], src.Pix[src.PixOffset(b.Min.X+sx, b.Min.Y+sy):][:4])
		}
	}
	return dst
}

// glitch shifts horizontal bands by pseudo-random offsets that change a few
// times per second, and splits the red and blue channels apart.
func glitch(s *State, src *image.RGBA) *image.RGBA {
	b := src.Rect
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(b)

	intensity := s.Param("intensity")
	blockH := max(1, int(s.Param("block_size")*float64(h)))
	maxShift := s.Param("shift") * float64(w)
	split := int(maxShift / 3 * intensity)
	slice := uint64(math.Floor(s.Elapsed * 12))

	for by := 0; by*blockH < h; by++ {
		shift := 0
		if hash01(slice, uint64(by)) < intensity {
			shift = int((hash01(slice, uint64(by)+7919)*2 - 1) * maxShift)
		}
		for y := by * blockH; y < min(h, (by+1)*blockH); y++ {
			for x := 0; x < w; x++ {
				base := src.PixOffset(b.Min.X+clampInt(x-shift, 0, w-1), b.Min.Y+y)
				red := src.PixOffset(b.Min.X+clampInt(x-shift+split, 0, w-1), b.Min.Y+y)
				blue := src.PixOffset(b.Min.X+clampInt(x-shift-split, 0, w-1), b.Min.Y+y)

				a := src.Pix[base+3]
				di := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
				dst.Pix[di+0] = min(src.Pix[red+0], a)
				dst.Pix[di+1] = src.Pix[base+1]
				dst.Pix[di+2] = min(src.Pix[blue+2], a)
				dst.Pix[di+3] = a
			}
		}
	}
	return dst
}

// gaussian blurs with a separable kernel; pulse modulates the radius over
// time.
func gaussian(s *State, src *image.RGBA) *image.RGBA {
	sigma := s.Param("sigma") * (1 + s.Param("pulse")*math.Sin(s.Elapsed*2*math.Pi))
	dst := image.NewRGBA(src.Rect)
	if sigma <= 0 {
		copyRGBA(dst, src)
		return dst
	}
	blur(src, dst, Kernel(sigma))
	return dst
}

// hash01 maps (a, b) to a deterministic value in [0,1) using splitmix64.
func hash01(a, b uint64) float64 {
	z := a*0x9e3779b97f4a7c15 + b + 0x632be59bd9b4e019
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return float64(z>>11) / float64(1<<53)
}

func copyRGBA(dst, src *image.RGBA) {
	b := src.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		copy(dst.Pix[dst.PixOffset(b.Min.X, y):][:4*b.Dx()], src.Pix[src.PixOffset(b.Min.X, y):][:4*b.Dx()])
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
