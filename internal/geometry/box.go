package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// CameraBox is a 3D box in the rectified camera convention: (X, Y, Z) is the
// bottom centre, dimensions are length-height-width and RY rotates about the
// camera's vertical axis.
type CameraBox struct {
	X, Y, Z float64
	L, H, W float64
	RY      float64
}

// LidarBox is a 3D box in the lidar convention: (X, Y, Z) is the gravity
// centre, dimensions are length-width-height and Yaw rotates about +Z.
type LidarBox struct {
	X, Y, Z float64
	L, W, H float64
	Yaw     float64
}

// Center returns the box centre.
func (b LidarBox) Center() r3.Vector { return r3.Vector{X: b.X, Y: b.Y, Z: b.Z} }

// Array returns [x, y, z, l, w, h, yaw], the gt_boxes_lidar row layout.
func (b LidarBox) Array() [7]float64 {
	return [7]float64{b.X, b.Y, b.Z, b.L, b.W, b.H, b.Yaw}
}

// LidarBoxFromArray is the inverse of LidarBox.Array.
func LidarBoxFromArray(a [7]float64) LidarBox {
	return LidarBox{X: a[0], Y: a[1], Z: a[2], L: a[3], W: a[4], H: a[5], Yaw: a[6]}
}

// CameraYawToLidar converts rotation_y to lidar yaw: -(pi/2 + ry).
func CameraYawToLidar(ry float64) float64 { return -(math.Pi/2 + ry) }

// LidarYawToCamera is the algebraic inverse of CameraYawToLidar.
func LidarYawToCamera(yaw float64) float64 { return -yaw - math.Pi/2 }

// CameraBoxToLidar converts one camera-frame box into the lidar convention.
func CameraBoxToLidar(b CameraBox, c *Calibration) LidarBox {
	return CameraBoxesToLidar([]CameraBox{b}, c)[0]
}

// LidarBoxToCamera converts one lidar-frame box into the camera convention.
func LidarBoxToCamera(b LidarBox, c *Calibration) CameraBox {
	return LidarBoxesToCamera([]LidarBox{b}, c)[0]
}

// CameraBoxesToLidar converts camera boxes to lidar boxes. The bottom centre
// is mapped to the lidar frame and then lifted by half the height.
func CameraBoxesToLidar(boxes []CameraBox, c *Calibration) []LidarBox {
	locs := make([]r3.Vector, len(boxes))
	for i, b := range boxes {
		locs[i] = r3.Vector{X: b.X, Y: b.Y, Z: b.Z}
	}
	lidar := c.RectToLidar(locs)

	out := make([]LidarBox, len(boxes))
	for i, b := range boxes {
		out[i] = LidarBox{
			X:   lidar[i].X,
			Y:   lidar[i].Y,
			Z:   lidar[i].Z + b.H/2,
			L:   b.L,
			W:   b.W,
			H:   b.H,
			Yaw: CameraYawToLidar(b.RY),
		}
	}
	return out
}

// LidarBoxesToCamera converts lidar boxes to camera boxes.
func LidarBoxesToCamera(boxes []LidarBox, c *Calibration) []CameraBox {
	bottoms := make([]r3.Vector, len(boxes))
	for i, b := range boxes {
		bottoms[i] = r3.Vector{X: b.X, Y: b.Y, Z: b.Z - b.H/2}
	}
	rect := c.LidarToRect(bottoms)

	out := make([]CameraBox, len(boxes))
	for i, b := range boxes {
		out[i] = CameraBox{
			X:  rect[i].X,
			Y:  rect[i].Y,
			Z:  rect[i].Z,
			L:  b.L,
			H:  b.H,
			W:  b.W,
			RY: LidarYawToCamera(b.Yaw),
		}
	}
	return out
}

// lidarCornerTemplate orders corners bottom face first (counter-clockwise
// from front-left), then the top face in the same order.
var lidarCornerTemplate = [8][3]float64{
	{1, 1, -1}, {1, -1, -1}, {-1, -1, -1}, {-1, 1, -1},
	{1, 1, 1}, {1, -1, 1}, {-1, -1, 1}, {-1, 1, 1},
}

// Corners returns the 8 box corners in the lidar frame.
func (b LidarBox) Corners() [8]r3.Vector {
	cos, sin := math.Cos(b.Yaw), math.Sin(b.Yaw)
	var out [8]r3.Vector
	for i, t := range lidarCornerTemplate {
		x := t[0] * b.L / 2
		y := t[1] * b.W / 2
		z := t[2] * b.H / 2
		out[i] = r3.Vector{
			X: x*cos - y*sin + b.X,
			Y: x*sin + y*cos + b.Y,
			Z: z + b.Z,
		}
	}
	return out
}

// Corners returns the 8 box corners in the rectified camera frame. The
// location is the bottom centre, so the top face sits at Y - H.
func (b CameraBox) Corners() [8]r3.Vector {
	l, h, w := b.L/2, b.H, b.W/2
	xs := [8]float64{l, l, -l, -l, l, l, -l, -l}
	ys := [8]float64{0, 0, 0, 0, -h, -h, -h, -h}
	zs := [8]float64{w, -w, -w, w, w, -w, -w, w}

	cos, sin := math.Cos(b.RY), math.Sin(b.RY)
	var out [8]r3.Vector
	for i := range out {
		out[i] = r3.Vector{
			X: xs[i]*cos + zs[i]*sin + b.X,
			Y: ys[i] + b.Y,
			Z: -xs[i]*sin + zs[i]*cos + b.Z,
		}
	}
	return out
}

// CameraBoxesToImageBoxes projects each box's corners into the image and
// returns the enclosing [x1, y1, x2, y2]. When shape is non-nil the result
// is clipped to [0, width-1] x [0, height-1].
func CameraBoxesToImageBoxes(boxes []CameraBox, c *Calibration, shape *ImageShape) [][4]float64 {
	out := make([][4]float64, len(boxes))
	for i, b := range boxes {
		corners := b.Corners()
		uv, _ := c.RectToImage(corners[:])

		x1, y1 := math.Inf(1), math.Inf(1)
		x2, y2 := math.Inf(-1), math.Inf(-1)
		for _, p := range uv {
			x1 = math.Min(x1, p.X)
			y1 = math.Min(y1, p.Y)
			x2 = math.Max(x2, p.X)
			y2 = math.Max(y2, p.Y)
		}
		if shape != nil {
			maxX := float64(shape.Width - 1)
			maxY := float64(shape.Height - 1)
			x1, x2 = clamp(x1, 0, maxX), clamp(x2, 0, maxX)
			y1, y2 = clamp(y1, 0, maxY), clamp(y2, 0, maxY)
		}
		out[i] = [4]float64{x1, y1, x2, y2}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
