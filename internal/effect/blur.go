package effect

import (
	"image"
	"math"
)

// Kernel generates a normalized 1D Gaussian kernel of size 2*ceil(3σ)+1.
// sigma <= 0 yields the identity kernel.
func Kernel(sigma float64) []float32 {
	if sigma <= 0 {
		return []float32{1}
	}

	half := int(math.Ceil(sigma * 3))
	k := make([]float32, half*2+1)
	twoSigmaSq := 2 * sigma * sigma
	sum := 0.0
	for i := range k {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		k[i] = float32(v)
		sum += v
	}
	inv := float32(1 / sum)
	for i := range k {
		k[i] *= inv
	}
	return k
}

// blur convolves src with kernel horizontally then vertically, clamping at
// the edges, and writes into dst (same bounds as src).
func blur(src, dst *image.RGBA, kernel []float32) {
	b := src.Rect
	w, h := b.Dx(), b.Dy()
	half := len(kernel) / 2
	tmp := make([]float32, w*h*4)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [4]float32
			for k, weight := range kernel {
				sx := clampInt(x+k-half, 0, w-1)
				si := src.PixOffset(b.Min.X+sx, b.Min.Y+y)
				for c := 0; c < 4; c++ {
					acc[c] += float32(src.Pix[si+c]) * weight
				}
			}
			copy(tmp[(y*w+x)*4:], acc[:])
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [4]float32
			for k, weight := range kernel {
				sy := clampInt(y+k-half, 0, h-1)
				ti := (sy*w + x) * 4
				for c := 0; c < 4; c++ {
					acc[c] += tmp[ti+c] * weight
				}
			}
			di := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
			for c := 0; c < 4; c++ {
				dst.Pix[di+c] = clampByte(float64(acc[c]))
			}
		}
	}
}
