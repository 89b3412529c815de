package compositor

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/jmylchreest/wlrs/internal/model"
)

// Placement returns the destination rectangle for a source of size src
// mapped onto a target of size dst under mode. Tile uses the native size
// anchored at the origin; the caller repeats it.
func Placement(mode model.ScaleMode, src, dst image.Point) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 {
		return image.Rectangle{}
	}

	switch mode {
	case model.ScaleStretch:
		return image.Rect(0, 0, dst.X, dst.Y)
	case model.ScaleCenter:
		return centered(src, dst)
	case model.ScaleTile:
		return image.Rect(0, 0, src.X, src.Y)
	case model.ScaleFit, model.ScaleFill:
		sx := float64(dst.X) / float64(src.X)
		sy := float64(dst.Y) / float64(src.Y)
		scale := min(sx, sy)
		if mode == model.ScaleFill {
			scale = max(sx, sy)
		}
		size := image.Pt(int(float64(src.X)*scale+0.5), int(float64(src.Y)*scale+0.5))
		return centered(size, dst)
	default:
		return image.Rect(0, 0, dst.X, dst.Y)
	}
}

func centered(size, dst image.Point) image.Rectangle {
	off := image.Pt((dst.X-size.X)/2, (dst.Y-size.Y)/2)
	return image.Rectangle{Min: off, Max: off.Add(size)}
}

// ScaleInto maps src onto a new premultiplied image of the given size using
// mode. Uncovered regions stay transparent.
func ScaleInto(src image.Image, mode model.ScaleMode, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	sb := src.Bounds()
	dr := Placement(mode, sb.Size(), size)
	if dr.Empty() {
		return dst
	}

	switch mode {
	case model.ScaleCenter:
		draw.Draw(dst, dr, src, sb.Min, draw.Src)
	case model.ScaleTile:
		for y := 0; y < size.Y; y += dr.Dy() {
			for x := 0; x < size.X; x += dr.Dx() {
				draw.Draw(dst, dr.Add(image.Pt(x, y)), src, sb.Min, draw.Src)
			}
		}
	default:
		if dr.Size() == sb.Size() {
			draw.Draw(dst, dr, src, sb.Min, draw.Src)
			break
		}
		xdraw.CatmullRom.Scale(dst, dr, src, sb, xdraw.Src, nil)
	}
	return dst
}

// Solid returns a uniform premultiplied surface.
func Solid(c color.NRGBA, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(dst, dst.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return dst
}

// ApplyMask limits img's alpha to the luminance of mask at each pixel
// (mask alpha included), rescaling the premultiplied channels to match.
// mask must have the same bounds as img.
func ApplyMask(img, mask *image.RGBA) {
	b := img.Rect.Intersect(mask.Rect)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			mi := mask.PixOffset(x, y)
			ma := uint32(mask.Pix[mi+3])
			var lum uint32
			if ma > 0 {
				// Un-premultiply before weighting, then reapply mask alpha.
				r := uint32(mask.Pix[mi+0]) * 255 / ma
				g := uint32(mask.Pix[mi+1]) * 255 / ma
				bl := uint32(mask.Pix[mi+2]) * 255 / ma
				lum = (299*r + 587*g + 114*bl) / 1000 * ma / 255
			}

			ii := img.PixOffset(x, y)
			a := uint32(img.Pix[ii+3])
			if lum >= a {
				continue
			}
			if a == 0 {
				continue
			}
			for c := 0; c < 3; c++ {
				img.Pix[ii+c] = uint8(uint32(img.Pix[ii+c]) * lum / a)
			}
			img.Pix[ii+3] = uint8(lum)
		}
	}
}
