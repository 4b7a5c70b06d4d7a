// Package color provides the RGB color type shared by zones, effects, and
// the device protocol.
package color

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a 24-bit RGB color as understood by addressable LED hardware.
type Color struct {
	R, G, B uint8
}

// Common colors.
var (
	Black = Color{R: 0, G: 0, B: 0}
	White = Color{R: 255, G: 255, B: 255}
	Red   = Color{R: 255, G: 0, B: 0}
	Green = Color{R: 0, G: 255, B: 0}
	Blue  = Color{R: 0, G: 0, B: 255}
)

// New creates a color from RGB components.
func New(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// FromHSV creates a color from hue (degrees, wrapped into [0,360)),
// saturation and value (both clamped to [0,1]).
func FromHSV(h, s, v float64) Color {
	h = wrapHue(h)
	s = clamp01(s)
	v = clamp01(v)

	r, g, b := colorful.Hsv(h, s, v).RGB255()
	return Color{R: r, G: g, B: b}
}

// HSV returns the hue (degrees), saturation and value of the color.
func (c Color) HSV() (h, s, v float64) {
	cf := colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
	return cf.Hsv()
}

// Parse parses a color from either "R,G,B" decimal form or a "#RRGGBB"
// hex string.
func Parse(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Color{}, fmt.Errorf("empty color")
	}

	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return Color{}, fmt.Errorf("invalid color %q: want R,G,B", s)
		}
		var vals [3]uint8
		for i, p := range parts {
			n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return Color{}, fmt.Errorf("invalid color component %q: %w", p, err)
			}
			vals[i] = uint8(n)
		}
		return Color{R: vals[0], G: vals[1], B: vals[2]}, nil
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return Color{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// String returns the color in "#RRGGBB" form.
func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func wrapHue(h float64) float64 {
	h = math.Mod(h, 360.0)
	if h < 0 {
		h += 360.0
	}
	return h
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
