package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a 24-bit RGB value, 0xRRGGBB.
type Color uint32

// Hex renders the color as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

func (c Color) String() string { return c.Hex() }

// MarshalText encodes the color as "#rrggbb" so JSON maps stay readable.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText accepts any form ParseColor accepts.
func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseColor accepts a decimal integer ("16711680"), a 0x-prefixed hex
// value ("0xff0000") or a CSS-style hex value ("#ff0000").
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(s, "#"):
		v, err = strconv.ParseUint(s[1:], 16, 32)
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 32)
	default:
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if v > 0xffffff {
		return 0, fmt.Errorf("invalid color %q: exceeds 0xffffff", s)
	}
	return Color(v), nil
}

// DefaultPalette is the rotation used in multi-color mode.
var DefaultPalette = []Color{
	0x3b82f6, // blue
	0x10b981, // green
	0xf59e0b, // amber
	0xef4444, // red
	0x8b5cf6, // purple
	0x06b6d4, // cyan
	0xf97316, // orange
	0x6366f1, // indigo
	0xec4899, // pink
	0x84cc16, // lime
}
