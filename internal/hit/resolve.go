package hit

import (
	"cmp"
	"slices"
)

// Distance is the Chebyshev distance from p to the nearest pixel of r. It is
// 0 for any point inside r or on its boundary.
func Distance(r Rectangle, p Point) int {
	br := r.BottomRight()
	return max(axisDistance(r.topLeft.X, br.X, p.X), axisDistance(r.topLeft.Y, br.Y, p.Y))
}

func axisDistance(lo, hi, v int) int {
	if lo <= v && v <= hi {
		return 0
	}
	return min(abs(lo-v), abs(hi-v))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type Match[V any] struct {
	Rect     Rectangle
	Value    V
	Distance int
}

// Resolve returns the value bound to the rectangle nearest to click, provided
// it lies within tolerance pixels. The boolean is false when nothing is close
// enough.
func Resolve[V any](registry map[Rectangle]V, tolerance int, click Point) (V, bool) {
	m, ok := Nearest(registry, tolerance, click)
	return m.Value, ok
}

// Nearest is Resolve that also reports which rectangle won and how far the
// click was from it. Equal distances go to the smaller rectangle, then to the
// one that sorts first by top-left Y, top-left X, height and width, so the
// result does not depend on map iteration order.
func Nearest[V any](registry map[Rectangle]V, tolerance int, click Point) (Match[V], bool) {
	var (
		best  Match[V]
		found bool
	)
	for rect, value := range registry {
		d := Distance(rect, click)
		if d > tolerance {
			continue
		}
		cand := Match[V]{Rect: rect, Value: value, Distance: d}
		if !found || compareMatch(cand, best) < 0 {
			best = cand
			found = true
		}
	}
	return best, found
}

// Candidates lists every rectangle within tolerance of click, best first.
func Candidates[V any](registry map[Rectangle]V, tolerance int, click Point) []Match[V] {
	var out []Match[V]
	for rect, value := range registry {
		if d := Distance(rect, click); d <= tolerance {
			out = append(out, Match[V]{Rect: rect, Value: value, Distance: d})
		}
	}
	slices.SortFunc(out, compareMatch[V])
	return out
}

func compareMatch[V any](a, b Match[V]) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return compareRect(a.Rect, b.Rect)
}

func compareRect(a, b Rectangle) int {
	if c := cmp.Compare(a.Area(), b.Area()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.topLeft.Y, b.topLeft.Y); c != 0 {
		return c
	}
	if c := cmp.Compare(a.topLeft.X, b.topLeft.X); c != 0 {
		return c
	}
	if c := cmp.Compare(a.size.height, b.size.height); c != 0 {
		return c
	}
	return cmp.Compare(a.size.width, b.size.width)
}
