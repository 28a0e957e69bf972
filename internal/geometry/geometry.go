package geometry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDegenerateGeometry is returned when a geometry has no usable area.
var ErrDegenerateGeometry = errors.New("geometry has zero or negative size")

// Point is an absolute position on the virtual desktop.
// Coordinates can be negative (a monitor left of or above the primary one).
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns "(x,y)".
func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty returns true if either dimension is not positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// String returns "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rect is a half-open rectangle [Min, Max).
type Rect struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// RectFromOriginSize builds a rectangle from an origin and a size.
func RectFromOriginSize(origin Point, size Size) Rect {
	return Rect{
		Min: origin,
		Max: Point{X: origin.X + size.Width, Y: origin.Y + size.Height},
	}
}

// Size returns the rectangle's size.
func (r Rect) Size() Size {
	return Size{Width: r.Max.X - r.Min.X, Height: r.Max.Y - r.Min.Y}
}

// Contains returns true if p lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Empty returns true if the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Size().Empty()
}

// RelPoint is a window-relative position: 0 is the window's left/top edge,
// 1 its right/bottom edge. It is not clamped.
type RelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InBounds returns true if both components are within [0, 1].
func (r RelPoint) InBounds() bool {
	return r.X >= 0 && r.X <= 1 && r.Y >= 0 && r.Y <= 1
}

// Geometry is an immutable snapshot of a window's origin and size.
// A new snapshot replaces the previous one; snapshots are never mutated.
type Geometry struct {
	Origin Point
	Size   Size
	// Valid is false when the window could not be resolved at poll time.
	Valid bool
	// PolledAt is when the snapshot was taken.
	PolledAt time.Time
}

// New creates a valid geometry snapshot taken at the given time.
func New(origin Point, size Size, polledAt time.Time) Geometry {
	return Geometry{Origin: origin, Size: size, Valid: !size.Empty(), PolledAt: polledAt}
}

// Bounds returns the window rectangle.
func (g Geometry) Bounds() Rect {
	return RectFromOriginSize(g.Origin, g.Size)
}

// Center returns the center of the window.
func (g Geometry) Center() Point {
	return Point{X: g.Origin.X + g.Size.Width/2, Y: g.Origin.Y + g.Size.Height/2}
}

// SameBounds returns true if origin and size are equal (poll time ignored).
func (g Geometry) SameBounds(other Geometry) bool {
	return g.Origin == other.Origin && g.Size == other.Size && g.Valid == other.Valid
}

// Usable returns true if the snapshot can be used for coordinate transforms.
func (g Geometry) Usable() bool {
	return g.Valid && !g.Size.Empty()
}

// String returns a compact description.
func (g Geometry) String() string {
	if !g.Valid {
		return "invalid"
	}
	return fmt.Sprintf("%s@%s", g.Size, g.Origin)
}

// ToRelative maps an absolute point to window-relative coordinates:
// (abs - origin) / size. The result is not clamped.
func ToRelative(abs Point, g Geometry) (RelPoint, error) {
	if g.Size.Empty() {
		return RelPoint{}, ErrDegenerateGeometry
	}
	return RelPoint{
		X: float64(abs.X-g.Origin.X) / float64(g.Size.Width),
		Y: float64(abs.Y-g.Origin.Y) / float64(g.Size.Height),
	}, nil
}

// ToAbsolute projects a relative point onto a geometry:
// round(origin + rel*size). Results outside the int32 range saturate.
func ToAbsolute(rel RelPoint, g Geometry) Point {
	return Point{
		X: roundPixel(float64(g.Origin.X) + rel.X*float64(g.Size.Width)),
		Y: roundPixel(float64(g.Origin.Y) + rel.Y*float64(g.Size.Height)),
	}
}

func roundPixel(v float64) int {
	v = math.Round(v)
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

// ClampToScreen confines p to the screen rectangle. An empty screen
// rectangle leaves p unchanged.
func ClampToScreen(p Point, screen Rect) Point {
	if screen.Empty() {
		return p
	}
	return Point{
		X: clamp(p.X, screen.Min.X, screen.Max.X-1),
		Y: clamp(p.Y, screen.Min.Y, screen.Max.Y-1),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
