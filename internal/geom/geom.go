// Package geom provides the small amount of planar geometry the clustering
// pipeline needs: Euclidean distance, convex hulls, and polygon area and
// centroid, all over projected coordinates in meters.
package geom

import (
	"math"
	"sort"
)

// Point is a planar projected coordinate in meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// ConvexHull returns the convex hull of pts as a counterclockwise ring
// without a repeated closing vertex, using Andrew's monotone chain.
// Degenerate inputs yield degenerate hulls: fewer than three distinct
// points, or collinear points, produce a ring of one or two vertices.
func ConvexHull(pts []Point) []Point {
	unique := dedupe(pts)
	n := len(unique)
	if n < 3 {
		return unique
	}

	// Lower hull, then upper hull.
	hull := make([]Point, 0, 2*n)
	for _, p := range unique {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := unique[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1] // last point repeats the first
}

// Area returns the enclosed area of a ring in square meters via the shoelace
// formula. Rings with fewer than three vertices have zero area.
func Area(ring []Point) float64 {
	if len(ring) < 3 {
		return 0
	}
	var sum float64
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(sum) / 2
}

// Centroid returns the area centroid of a ring. Degenerate rings (zero
// area) fall back to the mean of the vertices.
func Centroid(ring []Point) Point {
	if len(ring) == 0 {
		return Point{}
	}

	var cx, cy, a float64
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		w := p.X*q.Y - q.X*p.Y
		cx += (p.X + q.X) * w
		cy += (p.Y + q.Y) * w
		a += w
	}
	if a == 0 {
		return vertexMean(ring)
	}
	return Point{X: cx / (3 * a), Y: cy / (3 * a)}
}

func vertexMean(pts []Point) Point {
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return Point{X: sx / n, Y: sy / n}
}

// cross returns the z component of (b-a) x (c-a): positive when a,b,c turn
// counterclockwise.
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// dedupe returns pts sorted by (X, Y) with exact duplicates removed.
func dedupe(pts []Point) []Point {
	out := make([]Point, len(pts))
	copy(out, pts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	uniq := out[:0]
	for i, p := range out {
		if i == 0 || p != out[i-1] {
			uniq = append(uniq, p)
		}
	}
	return uniq
}
