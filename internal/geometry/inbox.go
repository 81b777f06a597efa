package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// PointInBox reports whether p lies inside the oriented box. The vertical
// test is inclusive; the horizontal test is strict, matching the
// points-in-boxes kernel used when cropping object samples.
func PointInBox(p r3.Vector, b LidarBox) bool {
	if math.Abs(p.Z-b.Z) > b.H/2 {
		return false
	}
	cos, sin := math.Cos(-b.Yaw), math.Sin(-b.Yaw)
	dx, dy := p.X-b.X, p.Y-b.Y
	localX := dx*cos - dy*sin
	localY := dx*sin + dy*cos
	return localX > -b.L/2 && localX < b.L/2 && localY > -b.W/2 && localY < b.W/2
}

// PointsInBox returns a membership mask of pts against b.
func PointsInBox(pts []r3.Vector, b LidarBox) []bool {
	mask := make([]bool, len(pts))
	for i, p := range pts {
		mask[i] = PointInBox(p, b)
	}
	return mask
}

// boxFaces indexes the corner order produced by LidarBox.Corners.
var boxFaces = [6][3]int{
	{0, 1, 2}, // bottom
	{4, 5, 6}, // top
	{0, 1, 5}, // front
	{2, 3, 7}, // back
	{0, 3, 7}, // left
	{1, 2, 6}, // right
}

const hullTolerance = 1e-9

type halfSpace struct {
	origin r3.Vector
	normal r3.Vector
}

// InHull marks the points inside the convex hull spanned by box corners,
// boundary included. A degenerate box (any zero-area face, e.g. zero
// height) spans no volume and contains nothing.
func InHull(pts []r3.Vector, corners [8]r3.Vector) []bool {
	var centroid r3.Vector
	for _, c := range corners {
		centroid = centroid.Add(c)
	}
	centroid = centroid.Mul(1.0 / 8)

	planes := make([]halfSpace, 0, len(boxFaces))
	for _, f := range boxFaces {
		a, b, c := corners[f[0]], corners[f[1]], corners[f[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		norm := n.Norm()
		if norm == 0 {
			return make([]bool, len(pts))
		}
		n = n.Mul(1 / norm)
		if n.Dot(centroid.Sub(a)) > 0 {
			n = n.Mul(-1)
		}
		planes = append(planes, halfSpace{origin: a, normal: n})
	}

	mask := make([]bool, len(pts))
	for i, p := range pts {
		inside := true
		for _, h := range planes {
			if h.normal.Dot(p.Sub(h.origin)) > hullTolerance {
				inside = false
				break
			}
		}
		mask[i] = inside
	}
	return mask
}

// CountTrue returns the number of set entries in a mask.
func CountTrue(mask []bool) int {
	n := 0
	for _, v := range mask {
		if v {
			n++
		}
	}
	return n
}
