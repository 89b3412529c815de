package asset

import (
	"image"
	"image/color"
	"image/gif"
	"io"
	"time"

	xdraw "golang.org/x/image/draw"
)

// MinFrameDelay replaces GIF frame delays of 10ms or less, as browsers do.
const MinFrameDelay = 100 * time.Millisecond

// Animation is a decoded multi-frame GIF with every frame composed onto the
// full canvas. As an image.Image it shows its first frame.
type Animation struct {
	frames []*image.RGBA
	delays []time.Duration
	total  time.Duration
}

// ColorModel implements image.Image.
func (a *Animation) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (a *Animation) Bounds() image.Rectangle { return a.frames[0].Rect }

// At implements image.Image.
func (a *Animation) At(x, y int) color.Color { return a.frames[0].At(x, y) }

// FrameCount returns the number of frames.
func (a *Animation) FrameCount() int { return len(a.frames) }

// Frame returns frame i. It must not be modified.
func (a *Animation) Frame(i int) image.Image { return a.frames[i] }

// Delay returns how long frame i is shown.
func (a *Animation) Delay(i int) time.Duration { return a.delays[i] }

// Duration returns the length of one loop.
func (a *Animation) Duration() time.Duration { return a.total }

// FrameAt returns the frame showing elapsed into the animation. Playback
// loops.
func (a *Animation) FrameAt(elapsed time.Duration) int {
	if a.total <= 0 || elapsed <= 0 {
		return 0
	}
	t := elapsed % a.total
	for i, d := range a.delays {
		if t < d {
			return i
		}
		t -= d
	}
	return len(a.delays) - 1
}

// decodeGIF decodes every frame of a GIF. Single-frame files decode to a
// plain image.
func decodeGIF(r io.Reader) (image.Image, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 1 {
		return g.Image[0], nil
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)
	a := &Animation{}
	for i, frame := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var previous *image.RGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		xdraw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, xdraw.Over)
		a.frames = append(a.frames, cloneRGBA(canvas))

		delay := MinFrameDelay
		if i < len(g.Delay) && g.Delay[i] > 1 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		a.delays = append(a.delays, delay)
		a.total += delay

		switch disposal {
		case gif.DisposalBackground:
			xdraw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, xdraw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return a, nil
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	c := image.NewRGBA(img.Rect)
	copy(c.Pix, img.Pix)
	return c
}
