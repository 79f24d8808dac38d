// Package theme computes the widget's CSS custom property values from a
// merchant-configured primary color.
package theme

import (
	"fmt"
	"math"
	"strings"
)

// DefaultPrimary is used when the configured color cannot be parsed.
const DefaultPrimary = "#4f46e5"

// luminanceThreshold splits colors needing a white foreground from those
// needing a dark one.
const luminanceThreshold = 0.5

// hoverFactor darkens the primary color for the hover shade.
const hoverFactor = 0.85

// Variables holds the computed theme values injected into the widget DOM.
type Variables struct {
	Primary    string
	Foreground string
	Hover      string
}

type rgb struct {
	r, g, b uint8
}

// parseHex accepts "#rgb" and "#rrggbb" forms, with or without the leading hash.
func parseHex(s string) (rgb, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[i*2] = s[i]
			expanded[i*2+1] = s[i]
		}
		s = string(expanded)
	case 6:
	default:
		return rgb{}, false
	}
	var c rgb
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.r, &c.g, &c.b); err != nil {
		return rgb{}, false
	}
	return c, true
}

func (c rgb) hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.r, c.g, c.b)
}

// luminance is the WCAG relative luminance of the color, in [0, 1].
func (c rgb) luminance() float64 {
	lin := func(v uint8) float64 {
		f := float64(v) / 255.0
		if f <= 0.04045 {
			return f / 12.92
		}
		// Gamma expansion per WCAG 2.x.
		return math.Pow((f+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.r) + 0.7152*lin(c.g) + 0.0722*lin(c.b)
}

func (c rgb) darken(factor float64) rgb {
	scale := func(v uint8) uint8 {
		f := float64(v) * factor
		if f < 0 {
			f = 0
		}
		return uint8(f)
	}
	return rgb{scale(c.r), scale(c.g), scale(c.b)}
}

// Compute derives the theme variables for the given primary color. Dark
// primaries get a white foreground, light ones a near-black foreground; the
// hover shade is a darkened variant of the primary. Pure black is the one
// exception: it cannot darken, so its hover is nudged one step lighter to
// keep the hover state visible. Unparseable input falls back to the
// default brand color.
func Compute(primary string) Variables {
	c, ok := parseHex(primary)
	if !ok {
		c, _ = parseHex(DefaultPrimary)
	}

	foreground := "#1f2937"
	if c.luminance() < luminanceThreshold {
		foreground = "#ffffff"
	}

	hover := c.darken(hoverFactor)
	if hover == c {
		// Pure black does not darken; nudge so hover always differs.
		hover = rgb{r: c.r, g: c.g, b: c.b}
		if hover.r < 255 {
			hover.r++
		} else {
			hover.r--
		}
	}

	return Variables{
		Primary:    c.hex(),
		Foreground: foreground,
		Hover:      hover.hex(),
	}
}
