package screen

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// Color is one sampled RGB triple.
type Color struct {
	R, G, B uint8
}

// FromStd converts any color.Color, dropping alpha.
func FromStd(c color.Color) Color {
	r, g, b, _ := c.RGBA()
	return Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

// RGBA implements color.Color so a Color can be drawn directly.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

// Hex returns the #rrggbb form.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.R, c.G, c.B)
}

// Distance is the sum of squared per-channel differences. It is not a
// perceptual distance.
func Distance(a, b Color) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return dr*dr + dg*dg + db*db
}

// Matcher decides whether two colors differ beyond a tolerance. Distances
// listed in the ignore set never count as different.
type Matcher struct {
	Tolerance int
	ignore    map[int]struct{}
}

// NewMatcher builds a matcher with the given tolerance and ignored distances.
func NewMatcher(tolerance int, ignored []int) Matcher {
	m := Matcher{Tolerance: tolerance}
	if len(ignored) > 0 {
		m.ignore = make(map[int]struct{}, len(ignored))
		for _, d := range ignored {
			m.ignore[d] = struct{}{}
		}
	}
	return m
}

// Ignored reports whether d is a known flicker distance.
func (m Matcher) Ignored(d int) bool {
	_, ok := m.ignore[d]
	return ok
}

// Differs is true when Distance(a, b) exceeds the tolerance and is not ignored.
func (m Matcher) Differs(a, b Color) bool {
	d := Distance(a, b)
	if m.Ignored(d) {
		return false
	}
	return d > m.Tolerance
}

// Similar is the complement of Differs.
func (m Matcher) Similar(a, b Color) bool {
	return !m.Differs(a, b)
}

// Report formats a sample as "(x, y) - (r, g, b) - 0xrrggbb - #rrggbb".
func Report(p image.Point, c Color) string {
	return fmt.Sprintf("(%d, %d) - (%d, %d, %d) - 0x%02x%02x%02x - %s",
		p.X, p.Y, c.R, c.G, c.B, c.R, c.G, c.B, c.Hex())
}

// ParseHex accepts "#rrggbb", "0xrrggbb" or bare "rrggbb".
func ParseHex(s string) (Color, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(h, "#")
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(h) != 6 {
		return Color{}, fmt.Errorf("color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}
