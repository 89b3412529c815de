// Package effect holds the closed set of layer effects: their parameter
// schemas, the per-layer animation state and the CPU transforms that render
// them.
package effect

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/jmylchreest/wlrs/internal/model"
)

// TimeWrap bounds the elapsed accumulator so float precision never degrades
// on long-running outputs.
const TimeWrap = 1000.0

// Param describes one entry of an effect's parameter schema.
type Param struct {
	Default  float64
	Min      float64
	Max      float64
	Required bool
}

// Schema is the fixed parameter layout of an effect kind.
type Schema struct {
	Params map[string]Param
	// NeedsScript marks kinds that must reference a script file.
	NeedsScript bool
}

var schemas = map[model.EffectKind]Schema{
	model.EffectNone: {Params: map[string]Param{}},
	model.EffectWave: {Params: map[string]Param{
		"amplitude": {Default: 0.02, Min: 0, Max: 1},
		"frequency": {Default: 10, Min: 0, Max: 200},
		"speed":     {Default: 1, Min: 0, Max: 50},
		"intensity": {Default: 1, Min: 0, Max: 1},
	}},
	model.EffectGlitch: {Params: map[string]Param{
		"intensity":  {Default: 0.5, Min: 0, Max: 1},
		"speed":      {Default: 1, Min: 0, Max: 50},
		"block_size": {Default: 0.05, Min: 0.001, Max: 1},
		"shift":      {Default: 0.03, Min: 0, Max: 1},
	}},
	model.EffectGaussian: {Params: map[string]Param{
		"sigma":     {Default: 4, Min: 0, Max: 64},
		"intensity": {Default: 1, Min: 0, Max: 1},
		"speed":     {Default: 0, Min: 0, Max: 50},
		"pulse":     {Default: 0, Min: 0, Max: 1},
	}},
	model.EffectCustom: {NeedsScript: true, Params: map[string]Param{
		"intensity": {Default: 1, Min: 0, Max: 1},
		"speed":     {Default: 1, Min: 0, Max: 50},
	}},
}

// SchemaFor returns the parameter schema of kind.
func SchemaFor(kind model.EffectKind) (Schema, bool) {
	s, ok := schemas[kind]
	return s, ok
}

// Kinds returns every effect kind with a schema, in declaration order.
func Kinds() []model.EffectKind {
	kinds := slices.Collect(maps.Keys(schemas))
	slices.Sort(kinds)
	return kinds
}

// State is the mutable animation state of one layer on one output. It is
// owned by exactly one binding and never shared.
type State struct {
	Kind     model.EffectKind
	Elapsed  float64 // seconds, scaled by the speed param, wrapped at TimeWrap
	LastTick time.Time
	Ticks    uint64
	Params   map[string]float64
	// Strength is opacity times the intensity param, clamped to [0,1].
	Strength float64
}

// Param returns a resolved parameter, or 0 when absent.
func (s *State) Param(name string) float64 {
	return s.Params[name]
}

// Advance moves the elapsed accumulator forward by dt. It never renders.
func (s *State) Advance(dt time.Duration, now time.Time) {
	if dt > 0 {
		speed, ok := s.Params["speed"]
		if !ok {
			speed = 1
		}
		s.Elapsed = math.Mod(s.Elapsed+dt.Seconds()*speed, TimeWrap)
	}
	s.LastTick = now
	s.Ticks++
}

// Clone returns an independent copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.Params = maps.Clone(s.Params)
	return &c
}

// Registry instantiates effect state and checks manifest parameters.
type Registry struct {
	logger *slog.Logger
}

// NewRegistry creates a registry that logs ignored parameters to logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// CheckParams implements model.ParamChecker.
func (r *Registry) CheckParams(kind model.EffectKind, params map[string]float64, hasScript bool) ([]string, error) {
	schema, ok := schemas[kind]
	if !ok {
		return nil, &model.UnknownEffectError{Kind: kind.String()}
	}

	var warnings []string
	for _, name := range slices.Sorted(maps.Keys(params)) {
		p, known := schema.Params[name]
		if !known {
			warnings = append(warnings, fmt.Sprintf("unknown parameter %q for %s ignored", name, kind))
			continue
		}
		if v := params[name]; math.IsNaN(v) || v < p.Min || v > p.Max {
			return nil, fmt.Errorf("parameter %q for %s must be between %v and %v, got %v", name, kind, p.Min, p.Max, v)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(schema.Params)) {
		if _, set := params[name]; schema.Params[name].Required && !set {
			return nil, fmt.Errorf("missing required parameter %q for %s", name, kind)
		}
	}
	if schema.NeedsScript && !hasScript {
		return nil, fmt.Errorf("missing required parameter %q for %s", "script", kind)
	}
	return warnings, nil
}

// Instantiate builds fresh state for one layer: elapsed time 0, params merged
// over schema defaults, unknown keys dropped with a warning.
func (r *Registry) Instantiate(kind model.EffectKind, params map[string]float64, opacity float64) (*State, error) {
	schema, ok := schemas[kind]
	if !ok {
		return nil, &model.UnknownEffectError{Kind: kind.String()}
	}

	resolved := make(map[string]float64, len(schema.Params))
	for name, p := range schema.Params {
		resolved[name] = p.Default
	}
	for name, v := range params {
		p, known := schema.Params[name]
		if !known {
			r.logger.Warn("ignoring unknown effect parameter", "effect", kind.String(), "param", name)
			continue
		}
		resolved[name] = clamp(v, p.Min, p.Max)
	}

	intensity, ok := resolved["intensity"]
	if !ok {
		intensity = 1
	}

	return &State{
		Kind:     kind,
		Params:   resolved,
		Strength: clamp(clamp(opacity, 0, 1)*intensity, 0, 1),
	}, nil
}

// InstantiateAll builds state for every layer of w, keyed by layer name.
// Layers whose kind cannot be instantiated are left out and reported.
func (r *Registry) InstantiateAll(w *model.Wallpaper) (map[string]*State, []error) {
	states := make(map[string]*State, w.LayerCount())
	var errs []error
	for _, l := range w.Layers() {
		st, err := r.Instantiate(l.Effect, l.Params, l.Opacity)
		if err != nil {
			if ue, ok := err.(*model.UnknownEffectError); ok {
				ue.Layer = l.Name
			}
			r.logger.Warn("dropping layer", "layer", l.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		states[l.Name] = st
	}
	return states, errs
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
