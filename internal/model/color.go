package model

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// IsColorString reports whether a content value names a color rather than
// an asset path.
func IsColorString(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return strings.HasPrefix(s, "#") || strings.HasPrefix(s, "rgb") || strings.HasPrefix(s, "hsl")
}

// ParseColor parses #rgb, #rrggbb, #rrggbbaa, rgb(), rgba(), hsl() and
// hsla() color strings.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s)
	case strings.HasPrefix(s, "rgb"):
		return parseFunc(s, false)
	case strings.HasPrefix(s, "hsl"):
		return parseFunc(s, true)
	}
	return color.NRGBA{}, fmt.Errorf("unrecognised color %q", s)
}

func parseHex(s string) (color.NRGBA, error) {
	alpha := uint8(255)
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q", s)
		}
		alpha = uint8(a)
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// parseFunc handles rgb(r, g, b[, a]) and hsl(h, s%, l%[, a]).
func parseFunc(s string, hsl bool) (color.NRGBA, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return color.NRGBA{}, fmt.Errorf("invalid color function %q", s)
	}
	parts := strings.Split(s[open+1:len(s)-1], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("color function %q needs 3 or 4 components", s)
	}

	vals := make([]float64, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		pct := strings.HasSuffix(p, "%")
		v, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid component %q in %q", p, s)
		}
		switch {
		case pct && !hsl && i < 3:
			v = v / 100 * 255
		case pct:
			v /= 100
		}
		vals[i] = v
	}

	alpha := uint8(255)
	if len(vals) == 4 {
		alpha = uint8(clamp01(vals[3])*255 + 0.5)
	}

	var c colorful.Color
	if hsl {
		c = colorful.Hsl(vals[0], clamp01(vals[1]), clamp01(vals[2]))
	} else {
		c = colorful.Color{R: vals[0] / 255, G: vals[1] / 255, B: vals[2] / 255}
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// FormatColor renders a color as #rrggbb, or #rrggbbaa when translucent.
func FormatColor(c color.NRGBA) string {
	hex := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex()
	if c.A == 255 {
		return hex
	}
	return fmt.Sprintf("%s%02x", hex, c.A)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
