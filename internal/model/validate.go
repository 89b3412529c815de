package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RawWallpaper is the decoded, unvalidated manifest.
type RawWallpaper struct {
	Name        string     `toml:"name" yaml:"name" json:"name"`
	Author      string     `toml:"author" yaml:"author" json:"author"`
	Version     string     `toml:"version" yaml:"version" json:"version"`
	Description string     `toml:"description" yaml:"description" json:"description"`
	Framerate   any        `toml:"framerate" yaml:"framerate" json:"framerate"`
	Tickrate    any        `toml:"tickrate" yaml:"tickrate" json:"tickrate"`
	FPS         any        `toml:"fps" yaml:"fps" json:"fps"` // older manifests
	ScaleMode   string     `toml:"scale_mode" yaml:"scale_mode" json:"scale_mode"`
	Layers      []RawLayer `toml:"layers" yaml:"layers" json:"layers"`
}

// RawLayer is one undecoded [[layers]] entry.
type RawLayer struct {
	Name    string `toml:"name" yaml:"name" json:"name"`
	Content string `toml:"content" yaml:"content" json:"content"`
	// EffectType is either a table with a "shader" key or a bare string.
	EffectType any                `toml:"effect_type" yaml:"effect_type" json:"effect_type"`
	Mask       string             `toml:"mask" yaml:"mask" json:"mask"`
	Script     string             `toml:"script" yaml:"script" json:"script"`
	ZIndex     int                `toml:"z_index" yaml:"z_index" json:"z_index"`
	Opacity    *float64           `toml:"opacity" yaml:"opacity" json:"opacity"`
	Params     map[string]float64 `toml:"params" yaml:"params" json:"params"`
}

// DefaultVersion is applied when a manifest omits its version.
const DefaultVersion = "1.0.0"

// ParamChecker validates the parameters of a declared effect. It returns
// warnings for ignorable problems and an error for fatal ones.
type ParamChecker interface {
	CheckParams(kind EffectKind, params map[string]float64, hasScript bool) (warnings []string, err error)
}

// Validate turns a raw manifest into a Wallpaper. Relative paths resolve
// against dir. Only existence of referenced files is checked; decoding
// happens later, per layer.
func Validate(raw RawWallpaper, dir string, checker ParamChecker) (*Wallpaper, []Warning, error) {
	var warnings []Warning

	meta := Metadata{
		Name:        strings.TrimSpace(raw.Name),
		Author:      raw.Author,
		Version:     raw.Version,
		Description: raw.Description,
		Dir:         dir,
	}
	if meta.Version == "" {
		meta.Version = DefaultVersion
	}

	scale, err := ParseScaleMode(raw.ScaleMode)
	if err != nil {
		return nil, nil, &ValidationError{Field: "scale_mode", Reason: err.Error()}
	}
	meta.ScaleMode = scale

	frameVal := raw.Framerate
	if frameVal == nil {
		frameVal = raw.FPS
	}
	framerate, isDefault, err := ParseRate(frameVal)
	if err != nil {
		return nil, nil, &ValidationError{Field: "framerate", Reason: err.Error()}
	}
	if isDefault {
		framerate = Fixed(DefaultFramerate)
	}
	tickrate, isDefault, err := ParseRate(raw.Tickrate)
	if err != nil {
		return nil, nil, &ValidationError{Field: "tickrate", Reason: err.Error()}
	}
	if isDefault {
		tickrate = framerate
	}
	meta.Framerate = framerate
	meta.Tickrate = tickrate

	layers := make([]Layer, 0, len(raw.Layers))
	for i, rl := range raw.Layers {
		field := fmt.Sprintf("layers[%d]", i)
		layer, layerWarnings, err := validateLayer(rl, field, dir, checker)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, layerWarnings...)
		layers = append(layers, layer)
	}

	w, err := NewWallpaper(meta, layers)
	if err != nil {
		return nil, nil, err
	}
	return w, warnings, nil
}

func validateLayer(rl RawLayer, field, dir string, checker ParamChecker) (Layer, []Warning, error) {
	var warnings []Warning

	layer := Layer{
		Name:    strings.TrimSpace(rl.Name),
		ZIndex:  rl.ZIndex,
		Opacity: 1.0,
		Params:  rl.Params,
	}
	if rl.Opacity != nil {
		layer.Opacity = *rl.Opacity
	}
	if layer.Opacity < 0 || layer.Opacity > 1 {
		return Layer{}, nil, &ValidationError{Field: field + ".opacity", Reason: fmt.Sprintf("must be between 0 and 1, got %v", layer.Opacity)}
	}

	switch content := strings.TrimSpace(rl.Content); {
	case content == "":
		layer.Content = NoContent{}
	case IsColorString(content):
		c, err := ParseColor(content)
		if err != nil {
			return Layer{}, nil, &ValidationError{Field: field + ".content", Err: err}
		}
		layer.Content = SolidContent{Color: c}
	default:
		path, err := resolvePath(dir, content)
		if err != nil {
			return Layer{}, nil, &ValidationError{Field: field + ".content", Err: err}
		}
		layer.Content = ImageContent{Path: path}
	}

	if rl.Mask != "" {
		path, err := resolvePath(dir, rl.Mask)
		if err != nil {
			return Layer{}, nil, &ValidationError{Field: field + ".mask", Err: err}
		}
		layer.Mask = path
	}
	if rl.Script != "" {
		path, err := resolvePath(dir, rl.Script)
		if err != nil {
			return Layer{}, nil, &ValidationError{Field: field + ".script", Err: err}
		}
		layer.Script = path
	}

	shader, err := shaderName(rl.EffectType)
	if err != nil {
		return Layer{}, nil, &ValidationError{Field: field + ".effect_type", Reason: err.Error()}
	}
	kind, err := ParseEffectKind(shader)
	if err != nil {
		return Layer{}, nil, &ValidationError{Field: field + ".effect_type.shader", Err: err}
	}
	layer.Effect = kind

	if kind != EffectNone && checker != nil {
		msgs, err := checker.CheckParams(kind, rl.Params, layer.Script != "")
		if err != nil {
			return Layer{}, nil, &ValidationError{Field: field + ".params", Err: err}
		}
		for _, m := range msgs {
			warnings = append(warnings, Warning{Layer: layer.Name, Message: m})
		}
	} else if kind == EffectNone && len(rl.Params) > 0 {
		warnings = append(warnings, Warning{Layer: layer.Name, Message: "params ignored on a layer without an effect"})
	}

	return layer, warnings, nil
}

// shaderName extracts the shader from effect_type = { shader = "wave" } or
// effect_type = "wave".
func shaderName(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.ToLower(strings.TrimSpace(val)), nil
	case map[string]any:
		s, ok := val["shader"]
		if !ok {
			return "", nil
		}
		name, ok := s.(string)
		if !ok {
			return "", fmt.Errorf("shader must be a string, got %T", s)
		}
		return strings.ToLower(strings.TrimSpace(name)), nil
	default:
		return "", fmt.Errorf("unsupported effect_type %T", v)
	}
}

func resolvePath(dir, p string) (string, error) {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("file not found: %s", p)
	}
	return p, nil
}
