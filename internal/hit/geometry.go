// Package hit resolves finger taps against small clickable regions.
//
// Rectangles are closed integer pixel regions: a rectangle at (x, y) with
// size w x h covers x..x+w-1 and y..y+h-1 inclusive.
package hit

import (
	"errors"
	"fmt"
	"image"
)

var ErrInvalidRectSize = errors.New("hit: width and height must be at least 1")

type Point struct {
	X int
	Y int
}

func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// RectSize is only valid when built through NewRectSize. The zero value has
// no area.
type RectSize struct {
	width  int
	height int
}

func NewRectSize(width, height int) (RectSize, error) {
	if width < 1 || height < 1 {
		return RectSize{}, fmt.Errorf("%w: got %dx%d", ErrInvalidRectSize, width, height)
	}
	return RectSize{width: width, height: height}, nil
}

func (s RectSize) Width() int {
	return s.width
}

func (s RectSize) Height() int {
	return s.height
}

func (s RectSize) Valid() bool {
	return s.width >= 1 && s.height >= 1
}

// Rectangle is comparable and safe to use as a map key.
type Rectangle struct {
	topLeft Point
	size    RectSize
}

func NewRectangle(topLeft Point, size RectSize) (Rectangle, error) {
	if !size.Valid() {
		return Rectangle{}, fmt.Errorf("%w: got %dx%d", ErrInvalidRectSize, size.width, size.height)
	}
	return Rectangle{topLeft: topLeft, size: size}, nil
}

func Rect(x, y, width, height int) (Rectangle, error) {
	size, err := NewRectSize(width, height)
	if err != nil {
		return Rectangle{}, err
	}
	return Rectangle{topLeft: Pt(x, y), size: size}, nil
}

func MustRect(x, y, width, height int) Rectangle {
	r, err := Rect(x, y, width, height)
	if err != nil {
		panic(err)
	}
	return r
}

// FromImage converts a half-open image.Rectangle into the closed form.
func FromImage(r image.Rectangle) (Rectangle, error) {
	r = r.Canon()
	return Rect(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

func (r Rectangle) Image() image.Rectangle {
	return image.Rect(r.topLeft.X, r.topLeft.Y, r.topLeft.X+r.size.width, r.topLeft.Y+r.size.height)
}

func (r Rectangle) TopLeft() Point {
	return r.topLeft
}

func (r Rectangle) Size() RectSize {
	return r.size
}

func (r Rectangle) Valid() bool {
	return r.size.Valid()
}

func (r Rectangle) Area() int {
	return r.size.width * r.size.height
}

func (r Rectangle) BottomRight() Point {
	return Point{
		X: r.topLeft.X + r.size.width - 1,
		Y: r.topLeft.Y + r.size.height - 1,
	}
}

func (r Rectangle) Contains(p Point) bool {
	br := r.BottomRight()
	return r.topLeft.X <= p.X && p.X <= br.X && r.topLeft.Y <= p.Y && p.Y <= br.Y
}

// Expand grows the rectangle by n pixels on every side, which is exactly the
// region where Distance is at most n.
func (r Rectangle) Expand(n int) Rectangle {
	if n <= 0 {
		return r
	}
	return Rectangle{
		topLeft: Point{X: r.topLeft.X - n, Y: r.topLeft.Y - n},
		size:    RectSize{width: r.size.width + 2*n, height: r.size.height + 2*n},
	}
}

func (r Rectangle) String() string {
	return fmt.Sprintf("(%d,%d)+%dx%d", r.topLeft.X, r.topLeft.Y, r.size.width, r.size.height)
}
