// Package compositor blends a wallpaper's layers, in z order, into one frame
// per output.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"maps"
	"time"

	"github.com/jmylchreest/wlrs/internal/effect"
	"github.com/jmylchreest/wlrs/internal/model"
)

// SourceResolver supplies decoded images for asset paths.
type SourceResolver interface {
	Image(path string) (image.Image, error)
}

// Animated is a multi-frame source. The frame shown follows the layer's
// elapsed time, so animations advance with ticks and stop while paused.
type Animated interface {
	image.Image
	FrameCount() int
	Frame(i int) image.Image
	FrameAt(elapsed time.Duration) int
}

// animatedLayer holds the scaled form of the frame last shown.
type animatedLayer struct {
	src   Animated
	mask  *image.RGBA // scaled mask, nil when the layer has none
	index int
	img   *image.RGBA
}

// Compositor renders frames for one binding. It caches the scaled form of
// every layer source for the current target size and is not safe for
// concurrent use; each binding owns its own instance.
type Compositor struct {
	sources SourceResolver
	logger  *slog.Logger

	size    image.Point
	scaled   map[string]*image.RGBA // layer name -> content in target space
	animated map[string]*animatedLayer
	dropped  map[string]error // layers excluded from compositing
}

// New creates a compositor reading assets from sources.
func New(sources SourceResolver, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{
		sources: sources,
		logger:  logger,
		scaled:   make(map[string]*image.RGBA),
		animated: make(map[string]*animatedLayer),
		dropped:  make(map[string]error),
	}
}

// Dropped returns the layers excluded from compositing and why.
func (c *Compositor) Dropped() map[string]error {
	return maps.Clone(c.dropped)
}

// Composite renders w into target and returns it. Layers are drawn in
// ascending z_index (declaration order on ties). A layer with a missing or
// undecodable asset, or without effect state, is dropped with a warning; the
// returned errors list every dropped layer.
func (c *Compositor) Composite(w *model.Wallpaper, states map[string]*effect.State, target *image.RGBA) (*image.RGBA, []error) {
	size := target.Rect.Size()
	if size != c.size {
		c.size = size
		clear(c.scaled)
		clear(c.animated)
	}

	Clear(target)

	var errs []error
	for _, layer := range w.SortedLayers() {
		src, err := c.layerSource(layer, w.ScaleMode())
		if err != nil {
			errs = append(errs, c.drop(layer.Name, err))
			continue
		}

		st, ok := states[layer.Name]
		if !ok {
			errs = append(errs, c.drop(layer.Name, &model.UnknownEffectError{Layer: layer.Name, Kind: layer.Effect.String()}))
			continue
		}
		if st.Kind != layer.Effect {
			errs = append(errs, c.drop(layer.Name, fmt.Errorf("layer %q: effect state is %s, layer declares %s", layer.Name, st.Kind, layer.Effect)))
			continue
		}

		if a, ok := c.animated[layer.Name]; ok {
			src = c.animationFrame(a, w.ScaleMode(), st.Elapsed)
		}

		out := effect.Apply(st, src)
		BlendOver(target, out, layer.Opacity)
	}
	return target, errs
}

// layerSource resolves a layer's content in target space, with its mask
// applied, and caches it for the binding's lifetime.
func (c *Compositor) layerSource(layer model.Layer, mode model.ScaleMode) (*image.RGBA, error) {
	if err, ok := c.dropped[layer.Name]; ok {
		return nil, err
	}
	if img, ok := c.scaled[layer.Name]; ok {
		return img, nil
	}

	var img *image.RGBA
	switch content := layer.Content.(type) {
	case model.SolidContent:
		img = Solid(content.Color, c.size)
	case model.ImageContent:
		decoded, err := c.sources.Image(content.Path)
		if err != nil {
			return nil, assetError(layer.Name, content.Path, err)
		}
		if a, ok := decoded.(Animated); ok && a.FrameCount() > 1 {
			c.animated[layer.Name] = &animatedLayer{src: a, index: -1}
			decoded = a.Frame(0)
		}
		img = ScaleInto(decoded, mode, c.size)
	default:
		img = image.NewRGBA(image.Rect(0, 0, c.size.X, c.size.Y))
	}

	if layer.Mask != "" {
		decoded, err := c.sources.Image(layer.Mask)
		if err != nil {
			return nil, assetError(layer.Name, layer.Mask, err)
		}
		mask := ScaleInto(decoded, mode, c.size)
		ApplyMask(img, mask)
		if a, ok := c.animated[layer.Name]; ok {
			a.mask = mask
		}
	}

	c.scaled[layer.Name] = img
	return img, nil
}

// animationFrame returns the scaled frame of a showing elapsed seconds in,
// rescaling only when the frame changes.
func (c *Compositor) animationFrame(a *animatedLayer, mode model.ScaleMode, elapsed float64) *image.RGBA {
	i := a.src.FrameAt(time.Duration(elapsed * float64(time.Second)))
	if i == a.index {
		return a.img
	}
	img := ScaleInto(a.src.Frame(i), mode, c.size)
	if a.mask != nil {
		ApplyMask(img, a.mask)
	}
	a.index, a.img = i, img
	return img
}

func assetError(layer, path string, err error) error {
	var aerr *model.AssetError
	if errors.As(err, &aerr) {
		return &model.AssetError{Layer: layer, Path: aerr.Path, Err: aerr.Err}
	}
	return &model.AssetError{Layer: layer, Path: path, Err: err}
}

func (c *Compositor) drop(layer string, err error) error {
	if _, seen := c.dropped[layer]; !seen {
		c.logger.Warn("dropping layer from composite", "layer", layer, "error", err)
	}
	c.dropped[layer] = err
	return err
}
