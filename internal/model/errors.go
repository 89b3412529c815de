package model

import (
	"errors"
	"fmt"
)

// ErrEmptyName is returned when a manifest has no name.
var ErrEmptyName = errors.New("wallpaper name cannot be empty")

// ValidationError reports a manifest field that prevents a wallpaper from
// loading. The wallpaper is never partially exposed.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Err != nil && e.Reason == "":
		return fmt.Sprintf("invalid manifest: %s: %v", e.Field, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("invalid manifest: %s: %s: %v", e.Field, e.Reason, e.Err)
	default:
		return fmt.Sprintf("invalid manifest: %s: %s", e.Field, e.Reason)
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UnknownEffectError reports a shader kind outside the closed effect set.
// At render time it only disables the offending layer.
type UnknownEffectError struct {
	Layer string
	Kind  string
}

func (e *UnknownEffectError) Error() string {
	if e.Layer == "" {
		return fmt.Sprintf("unknown effect kind %q", e.Kind)
	}
	return fmt.Sprintf("layer %q: unknown effect kind %q", e.Layer, e.Kind)
}

// Warning is a non-fatal manifest problem, such as an ignored parameter.
type Warning struct {
	Layer   string
	Message string
}

func (w Warning) String() string {
	if w.Layer == "" {
		return w.Message
	}
	return fmt.Sprintf("layer %q: %s", w.Layer, w.Message)
}

// AssetError reports an image that is missing or cannot be decoded. The
// layer that references it is dropped from compositing; the rest of the
// wallpaper still renders.
type AssetError struct {
	Layer string
	Path  string
	Err   error
}

func (e *AssetError) Error() string {
	if e.Layer == "" {
		return fmt.Sprintf("asset %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("layer %q: asset %s: %v", e.Layer, e.Path, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }
