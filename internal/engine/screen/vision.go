package screen

import (
	"fmt"
	"image"
	"math"
	"sync/atomic"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"

	"github.com/ConserveLee/pxlreact/internal/constants"
)

// Sampler reads the color at a screen location. ok is false when the
// location cannot be read; callers treat that as "no change".
type Sampler interface {
	Sample(p image.Point) (c Color, ok bool)
}

// Pointer reports the current pointer location in screen coordinates.
type Pointer interface {
	Position() image.Point
}

// Reader samples single pixels from the live screen.
type Reader struct {
	closed atomic.Bool
}

// NewReader creates a new instance
func NewReader() *Reader {
	return &Reader{}
}

// Sample captures a 1x1 rectangle at p. Any capture error is swallowed.
func (r *Reader) Sample(p image.Point) (Color, bool) {
	if r.closed.Load() {
		return Color{}, false
	}
	img, err := screenshot.CaptureRect(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
	if err != nil || img == nil {
		return Color{}, false
	}
	b := img.Bounds()
	if b.Empty() {
		return Color{}, false
	}
	return FromStd(img.RGBAAt(b.Min.X, b.Min.Y)), true
}

// Close stops the reader; later samples report unavailable.
func (r *Reader) Close() error {
	r.closed.Store(true)
	return nil
}

// ImageSampler samples a still image as if it were the screen. Origin is the
// screen position of the image's top left pixel.
type ImageSampler struct {
	Img    image.Image
	Origin image.Point
}

func (s ImageSampler) Sample(p image.Point) (Color, bool) {
	b := s.Img.Bounds()
	q := p.Sub(s.Origin).Add(b.Min)
	if !q.In(b) {
		return Color{}, false
	}
	return FromStd(s.Img.At(q.X, q.Y)), true
}

// RobotPointer reads the pointer through robotgo.
type RobotPointer struct{}

// Position returns the current pointer location.
func (RobotPointer) Position() image.Point {
	x, y := robotgo.Location()
	return image.Point{X: x, Y: y}
}

// VirtualBounds returns the union of all active display bounds. When no
// display can be enumerated it falls back to the default bounds.
func VirtualBounds() image.Rectangle {
	var union image.Rectangle
	n := screenshot.NumActiveDisplays()
	for i := 0; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	if union.Empty() {
		return DefaultBounds()
	}
	return union
}

// DefaultBounds is the fixed dual-monitor layout used when nothing better is known.
func DefaultBounds() image.Rectangle {
	return image.Rect(constants.BoundsMinX, constants.BoundsMinY, constants.BoundsMaxX, constants.BoundsMaxY)
}

// CaptureDisplay returns the current image of one display together with its
// global bounds.
func CaptureDisplay(index int) (image.Image, image.Rectangle, error) {
	// kbinani/screenshot handles multi-monitor bounds correctly
	bounds := screenshot.GetDisplayBounds(index)

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, bounds, fmt.Errorf("failed to capture screen %d: %w", index, err)
	}
	return img, bounds, nil
}

// Match is the result of a nearest-color search.
type Match struct {
	Point    image.Point // Location in the searched image's coordinate space
	Color    Color
	Distance int
}

// FindMostSimilar scans roi (clamped to img) for the pixel closest to target.
// If roi is empty the whole image is searched. ok is false when nothing was scanned.
func FindMostSimilar(img image.Image, roi image.Rectangle, target Color) (Match, bool) {
	area := img.Bounds()
	if !roi.Empty() {
		area = roi.Intersect(area)
	}
	if area.Empty() {
		return Match{}, false
	}

	best := Match{Distance: math.MaxInt}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			c := FromStd(img.At(x, y))
			d := Distance(c, target)
			if d < best.Distance {
				best = Match{Point: image.Point{X: x, Y: y}, Color: c, Distance: d}
				if d == 0 {
					return best, true
				}
			}
		}
	}
	return best, true
}
