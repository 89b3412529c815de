package compositor

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// BlendOver composites src onto dst in place with the layer opacity:
//
//	out = src*opacity + dst*(1 - src.alpha*opacity)
//
// Both images hold premultiplied RGBA. Only the overlap of their bounds is
// touched.
func BlendOver(dst, src *image.RGBA, opacity float64) {
	if opacity <= 0 {
		return
	}
	b := dst.Rect.Intersect(src.Rect)
	if b.Empty() {
		return
	}
	if opacity >= 1 {
		xdraw.Draw(dst, b, src, b.Min, xdraw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	xdraw.DrawMask(dst, b, src, b.Min, mask, image.Point{}, xdraw.Over)
}

// Clear resets every pixel of img to transparent black.
func Clear(img *image.RGBA) {
	clear(img.Pix)
}
