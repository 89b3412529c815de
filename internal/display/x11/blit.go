package x11

import (
	"image"

	"github.com/BurntSushi/xgbutil/xgraphics"
)

// blitBGRA copies src into dst with src's top-left at origin, clipped to
// dst's bounds, and returns the rectangle written. It writes the same bytes
// as draw.Draw with draw.Src but without a per-pixel Set.
func blitBGRA(dst *xgraphics.Image, origin image.Point, src *image.RGBA) image.Rectangle {
	target := src.Rect.Sub(src.Rect.Min).Add(origin).Intersect(dst.Rect)
	if target.Empty() {
		return target
	}
	for y := target.Min.Y; y < target.Max.Y; y++ {
		si := src.PixOffset(target.Min.X-origin.X+src.Rect.Min.X, y-origin.Y+src.Rect.Min.Y)
		di := dst.PixOffset(target.Min.X, y)
		for x := target.Min.X; x < target.Max.X; x++ {
			dst.Pix[di+0] = src.Pix[si+2]
			dst.Pix[di+1] = src.Pix[si+1]
			dst.Pix[di+2] = src.Pix[si+0]
			dst.Pix[di+3] = src.Pix[si+3]
			si += 4
			di += 4
		}
	}
	return target
}
