// Package output renders daemon replies for the wlrs CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/wlrs/internal/control"
	"github.com/jmylchreest/wlrs/internal/library"
)

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// ValidFormats returns all valid format values.
func ValidFormats() []FormatType {
	return []FormatType{FormatPlain, FormatJSON, FormatYAML, FormatIDs}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (FormatType, error) {
	f := FormatType(s)
	if !slices.Contains(ValidFormats(), f) {
		return "", fmt.Errorf("invalid format %q, must be one of: %v", s, ValidFormats())
	}
	return f, nil
}

// Formatter renders each reply type.
type Formatter interface {
	Wallpapers(w io.Writer, list []library.Summary) error
	Wallpaper(w io.Writer, s library.Summary) error
	Monitors(w io.Writer, rows []control.Active) error
	Health(w io.Writer, h control.Health) error
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Color   bool // style plain output with ANSI colors
	Verbose bool // include descriptions and counters
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return &encodingFormatter{encode: encodeJSON}
	case FormatYAML:
		return &encodingFormatter{encode: encodeYAML}
	case FormatIDs:
		return &idsFormatter{}
	default:
		return NewPlainFormatter(opts)
	}
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func encodeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// encodingFormatter writes replies as structured documents.
type encodingFormatter struct {
	encode func(io.Writer, any) error
}

func (f *encodingFormatter) Wallpapers(w io.Writer, list []library.Summary) error {
	if list == nil {
		list = []library.Summary{}
	}
	return f.encode(w, list)
}

func (f *encodingFormatter) Wallpaper(w io.Writer, s library.Summary) error {
	return f.encode(w, s)
}

func (f *encodingFormatter) Monitors(w io.Writer, rows []control.Active) error {
	if rows == nil {
		rows = []control.Active{}
	}
	return f.encode(w, rows)
}

func (f *encodingFormatter) Health(w io.Writer, h control.Health) error {
	return f.encode(w, healthDoc{
		Version:    h.Version,
		Uptime:     h.Uptime.String(),
		Monitors:   h.Monitors,
		Wallpapers: h.Wallpapers,
	})
}

type healthDoc struct {
	Version    string `json:"version" yaml:"version"`
	Uptime     string `json:"uptime" yaml:"uptime"`
	Monitors   int    `json:"monitors" yaml:"monitors"`
	Wallpapers int    `json:"wallpapers" yaml:"wallpapers"`
}

// idsFormatter writes one ID per line for piping into other commands.
type idsFormatter struct{}

func (idsFormatter) Wallpapers(w io.Writer, list []library.Summary) error {
	for _, s := range list {
		if _, err := fmt.Fprintln(w, s.ID); err != nil {
			return err
		}
	}
	return nil
}

func (idsFormatter) Wallpaper(w io.Writer, s library.Summary) error {
	_, err := fmt.Fprintln(w, s.ID)
	return err
}

func (idsFormatter) Monitors(w io.Writer, rows []control.Active) error {
	for _, r := range rows {
		if _, err := fmt.Fprintln(w, r.Monitor); err != nil {
			return err
		}
	}
	return nil
}

func (idsFormatter) Health(w io.Writer, h control.Health) error {
	_, err := fmt.Fprintln(w, h.Version)
	return err
}
