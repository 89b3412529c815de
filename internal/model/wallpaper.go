// Package model defines the validated, immutable wallpaper representation
// consumed by the effect registry, the compositor and the scheduler.
package model

import (
	"cmp"
	"fmt"
	"image/color"
	"maps"
	"math"
	"slices"
)

// ScaleMode controls how a layer's source image is mapped onto an output.
type ScaleMode string

const (
	ScaleFill    ScaleMode = "fill"    // cover the output, cropping overflow
	ScaleFit     ScaleMode = "fit"     // fit inside the output, letterboxed
	ScaleStretch ScaleMode = "stretch" // ignore aspect ratio
	ScaleCenter  ScaleMode = "center"  // native size, centered
	ScaleTile    ScaleMode = "tile"    // native size, repeated
)

// ValidScaleModes returns all valid scale mode values.
func ValidScaleModes() []ScaleMode {
	return []ScaleMode{ScaleFill, ScaleFit, ScaleStretch, ScaleCenter, ScaleTile}
}

// ParseScaleMode parses a manifest scale_mode value. Empty means fill.
func ParseScaleMode(s string) (ScaleMode, error) {
	if s == "" {
		return ScaleFill, nil
	}
	for _, m := range ValidScaleModes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("must be one of %v", ValidScaleModes())
}

// EffectKind is the closed set of effects a layer may declare.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectWave
	EffectGlitch
	EffectGaussian
	EffectCustom
)

var effectNames = map[EffectKind]string{
	EffectNone:     "none",
	EffectWave:     "wave",
	EffectGlitch:   "glitch",
	EffectGaussian: "gaussian",
	EffectCustom:   "custom",
}

func (k EffectKind) String() string {
	if name, ok := effectNames[k]; ok {
		return name
	}
	return fmt.Sprintf("effect(%d)", int(k))
}

// Known reports whether k is one of the declared effect kinds.
func (k EffectKind) Known() bool {
	_, ok := effectNames[k]
	return ok
}

// ParseEffectKind resolves a shader name. "image" and "" both mean no effect.
func ParseEffectKind(name string) (EffectKind, error) {
	switch name {
	case "", "none", "image":
		return EffectNone, nil
	}
	for k, n := range effectNames {
		if n == name {
			return k, nil
		}
	}
	return EffectNone, &UnknownEffectError{Kind: name}
}

// Content is the source a layer draws from.
type Content interface {
	isContent()
	String() string
}

// SolidContent fills the whole output with one color.
type SolidContent struct {
	Color color.NRGBA
}

// ImageContent draws an image asset. Path is absolute.
type ImageContent struct {
	Path string
}

// NoContent renders as fully transparent.
type NoContent struct{}

func (SolidContent) isContent() {}
func (ImageContent) isContent() {}
func (NoContent) isContent()    {}

func (c SolidContent) String() string { return FormatColor(c.Color) }
func (c ImageContent) String() string { return c.Path }
func (NoContent) String() string      { return "none" }

// Layer is one ordered contribution to a composited frame.
type Layer struct {
	Name    string
	Content Content
	Effect  EffectKind
	Mask    string // optional absolute path of a mask image
	Script  string // optional absolute path, required by custom effects
	ZIndex  int
	Opacity float64
	Params  map[string]float64

	// Order is the declaration index in the manifest and breaks z_index ties.
	Order int
}

func (l Layer) clone() Layer {
	l.Params = maps.Clone(l.Params)
	if l.Params == nil {
		l.Params = map[string]float64{}
	}
	return l
}

// Metadata carries the non-layer fields of a wallpaper.
type Metadata struct {
	Name        string
	Author      string
	Version     string
	Description string
	Dir         string // directory the manifest was loaded from
	Framerate   RatePolicy
	Tickrate    RatePolicy
	ScaleMode   ScaleMode
}

// Wallpaper is a validated layer stack. It is never mutated after creation;
// every accessor hands out copies.
type Wallpaper struct {
	meta   Metadata
	layers []Layer
}

// NewWallpaper checks the structural invariants of a layer stack and returns
// an immutable wallpaper. File existence is checked by Validate, not here.
func NewWallpaper(meta Metadata, layers []Layer) (*Wallpaper, error) {
	if meta.Name == "" {
		return nil, &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if meta.ScaleMode == "" {
		meta.ScaleMode = ScaleFill
	}
	if _, err := ParseScaleMode(string(meta.ScaleMode)); err != nil {
		return nil, &ValidationError{Field: "scale_mode", Reason: err.Error()}
	}
	if err := meta.Framerate.Validate(); err != nil {
		return nil, &ValidationError{Field: "framerate", Reason: err.Error()}
	}
	if err := meta.Tickrate.Validate(); err != nil {
		return nil, &ValidationError{Field: "tickrate", Reason: err.Error()}
	}

	seen := make(map[string]bool, len(layers))
	out := make([]Layer, 0, len(layers))
	for i, l := range layers {
		field := fmt.Sprintf("layers[%d]", i)
		if l.Name == "" {
			return nil, &ValidationError{Field: field + ".name", Reason: "cannot be empty"}
		}
		if seen[l.Name] {
			return nil, &ValidationError{Field: field + ".name", Reason: fmt.Sprintf("duplicate layer name %q", l.Name)}
		}
		seen[l.Name] = true
		if math.IsNaN(l.Opacity) || l.Opacity < 0 || l.Opacity > 1 {
			return nil, &ValidationError{Field: field + ".opacity", Reason: fmt.Sprintf("must be between 0 and 1, got %v", l.Opacity)}
		}
		if !l.Effect.Known() {
			return nil, &ValidationError{Field: field + ".effect_type", Err: &UnknownEffectError{Kind: l.Effect.String()}}
		}
		if l.Content == nil {
			l.Content = NoContent{}
		}
		l.Order = i
		out = append(out, l.clone())
	}

	return &Wallpaper{meta: meta, layers: out}, nil
}

func (w *Wallpaper) Name() string          { return w.meta.Name }
func (w *Wallpaper) Author() string        { return w.meta.Author }
func (w *Wallpaper) Version() string       { return w.meta.Version }
func (w *Wallpaper) Description() string   { return w.meta.Description }
func (w *Wallpaper) Dir() string           { return w.meta.Dir }
func (w *Wallpaper) Framerate() RatePolicy { return w.meta.Framerate }
func (w *Wallpaper) Tickrate() RatePolicy  { return w.meta.Tickrate }
func (w *Wallpaper) ScaleMode() ScaleMode  { return w.meta.ScaleMode }
func (w *Wallpaper) Metadata() Metadata    { return w.meta }
func (w *Wallpaper) LayerCount() int       { return len(w.layers) }

// Layers returns the layers in declaration order.
func (w *Wallpaper) Layers() []Layer {
	out := make([]Layer, len(w.layers))
	for i, l := range w.layers {
		out[i] = l.clone()
	}
	return out
}

// SortedLayers returns the layers in compositing order: ascending z_index,
// declaration order on ties.
func (w *Wallpaper) SortedLayers() []Layer {
	layers := w.Layers()
	SortLayers(layers)
	return layers
}

// SortLayers stable-sorts layers into compositing order in place.
func SortLayers(layers []Layer) {
	slices.SortStableFunc(layers, func(a, b Layer) int {
		if c := cmp.Compare(a.ZIndex, b.ZIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.Order, b.Order)
	})
}
