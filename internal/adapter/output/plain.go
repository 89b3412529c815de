package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/jmylchreest/wlrs/internal/control"
	"github.com/jmylchreest/wlrs/internal/library"
)

// PlainFormatter writes human-readable text.
type PlainFormatter struct {
	opts  FormatterOptions
	name  lipgloss.Style
	label lipgloss.Style
	state map[string]lipgloss.Style
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts, state: map[string]lipgloss.Style{}}
	if opts.Color {
		f.name = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
		f.label = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		f.state["running"] = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
		f.state["paused"] = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
		f.state["idle"] = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	}
	return f
}

func (f *PlainFormatter) render(s lipgloss.Style, text string) string {
	if !f.opts.Color {
		return text
	}
	return s.Render(text)
}

// Wallpapers writes one block per wallpaper.
func (f *PlainFormatter) Wallpapers(w io.Writer, list []library.Summary) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no wallpapers")
		return err
	}
	for _, s := range list {
		if err := f.Wallpaper(w, s); err != nil {
			return err
		}
	}
	return nil
}

// Wallpaper writes one wallpaper.
func (f *PlainFormatter) Wallpaper(w io.Writer, s library.Summary) error {
	var sb strings.Builder
	sb.WriteString(f.render(f.name, s.Name))
	if s.Author != "" {
		sb.WriteString(" by " + s.Author)
	}
	sb.WriteString(f.render(f.label, fmt.Sprintf(" (%s, v%s)", s.Source, s.Version)))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "    %s %s\n", f.render(f.label, "id:  "), s.ID)
	fmt.Fprintf(&sb, "    %s %s\n", f.render(f.label, "path:"), s.Path)
	fmt.Fprintf(&sb, "    %s %s, framerate %s, tickrate %s\n", f.render(f.label, "info:"),
		english.Plural(s.Layers, "layer", ""), s.Framerate, s.Tickrate)
	if f.opts.Verbose {
		if s.Description != "" {
			fmt.Fprintf(&sb, "    %s\n", s.Description)
		}
		if !s.LoadedAt.IsZero() {
			fmt.Fprintf(&sb, "    %s %s\n", f.render(f.label, "loaded"), humanize.Time(s.LoadedAt))
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Monitors writes one line per monitor.
func (f *PlainFormatter) Monitors(w io.Writer, rows []control.Active) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no monitors")
		return err
	}
	for _, r := range rows {
		var sb strings.Builder
		name := r.Monitor
		if r.OutputName != "" && r.OutputName != r.Monitor {
			name += " (" + r.OutputName + ")"
		}
		fmt.Fprintf(&sb, "%s %dx%d %s", f.render(f.name, name), r.Width, r.Height, f.render(f.state[r.State], r.State))
		if r.Wallpaper != "" {
			sb.WriteString(": " + r.Wallpaper)
		}
		if f.opts.Verbose && r.State != "idle" {
			fmt.Fprintf(&sb, "\n    %s ticks, %s frames, %s errors",
				humanize.Comma(int64(r.Ticks)), humanize.Comma(int64(r.Frames)), humanize.Comma(int64(r.Errors)))
			if !r.BoundAt.IsZero() {
				sb.WriteString(", bound " + humanize.Time(r.BoundAt))
			}
		}
		sb.WriteString("\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// Health writes a one-line status.
func (f *PlainFormatter) Health(w io.Writer, h control.Health) error {
	_, err := fmt.Fprintf(w, "wlrsd %s up %s, %s, %s\n",
		h.Version, h.Uptime.Round(time.Second),
		english.Plural(h.Monitors, "monitor", ""), english.Plural(h.Wallpapers, "wallpaper", ""))
	return err
}
