package geometry

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Mat4 is a row-major 4x4 homogeneous matrix as persisted in info records.
type Mat4 [4][4]float64

// ImageShape is the pixel size of a camera image. It serialises as
// [height, width] to match the image_shape field of info records.
type ImageShape struct {
	Height int
	Width  int
}

// MarshalJSON encodes the shape as [height, width].
func (s ImageShape) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Height, s.Width})
}

// UnmarshalJSON decodes a [height, width] pair.
func (s *ImageShape) UnmarshalJSON(data []byte) error {
	var hw [2]int
	if err := json.Unmarshal(data, &hw); err != nil {
		return fmt.Errorf("image shape: %w", err)
	}
	s.Height, s.Width = hw[0], hw[1]
	return nil
}

// Calibration holds the per-frame camera projection (P2, 3x4), the
// rectification rotation (R0, 3x3) and the lidar-to-camera rigid transform
// (V2C, 3x4). A Calibration is immutable once built.
type Calibration struct {
	P2  *mat.Dense
	R0  *mat.Dense
	V2C *mat.Dense

	lidarToRect [3][4]float64
	rectToLidar [3][4]float64
	proj        [3][4]float64
}

// NewCalibration validates matrix shapes and precomputes the composed
// lidar->rect transform and its inverse.
func NewCalibration(p2, r0, v2c *mat.Dense) (*Calibration, error) {
	if r, c := p2.Dims(); r != 3 || c != 4 {
		return nil, fmt.Errorf("P2 must be 3x4, got %dx%d", r, c)
	}
	if r, c := r0.Dims(); r != 3 || c != 3 {
		return nil, fmt.Errorf("R0 must be 3x3, got %dx%d", r, c)
	}
	if r, c := v2c.Dims(); r != 3 || c != 4 {
		return nil, fmt.Errorf("Tr_velo_to_cam must be 3x4, got %dx%d", r, c)
	}

	cal := &Calibration{
		P2:  mat.DenseCopyOf(p2),
		R0:  mat.DenseCopyOf(r0),
		V2C: mat.DenseCopyOf(v2c),
	}

	r0Ext := padDense(cal.R0)
	v2cExt := padDense(cal.V2C)

	composed := mat.NewDense(4, 4, nil)
	composed.Mul(r0Ext, v2cExt)

	inv := mat.NewDense(4, 4, nil)
	if err := inv.Inverse(composed); err != nil {
		// A Condition error still carries a usable inverse unless the matrix
		// is exactly singular.
		if c, ok := err.(mat.Condition); !ok || math.IsInf(float64(c), 1) {
			inv = mat.NewDense(4, 4, nanSlice(16))
		}
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			cal.lidarToRect[i][j] = composed.At(i, j)
			cal.rectToLidar[i][j] = inv.At(i, j)
			cal.proj[i][j] = cal.P2.At(i, j)
		}
	}
	return cal, nil
}

// CalibrationFromHomogeneous rebuilds a Calibration from the padded 4x4
// matrices stored in an info record.
func CalibrationFromHomogeneous(p2, r0, v2c Mat4) (*Calibration, error) {
	p := mat.NewDense(3, 4, nil)
	r := mat.NewDense(3, 3, nil)
	v := mat.NewDense(3, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			p.Set(i, j, p2[i][j])
			v.Set(i, j, v2c[i][j])
			if j < 3 {
				r.Set(i, j, r0[i][j])
			}
		}
	}
	return NewCalibration(p, r, v)
}

// Homogeneous returns P2, R0 and V2C expanded to 4x4 with a [0 0 0 1]
// bottom row.
func (c *Calibration) Homogeneous() (p2, r0, v2c Mat4) {
	return toMat4(padDense(c.P2)), toMat4(padDense(c.R0)), toMat4(padDense(c.V2C))
}

// LidarToRect maps lidar-frame points into the rectified camera frame.
func (c *Calibration) LidarToRect(pts []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = apply(&c.lidarToRect, p)
	}
	return out
}

// RectToLidar maps rectified camera points back into the lidar frame.
func (c *Calibration) RectToLidar(pts []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = apply(&c.rectToLidar, p)
	}
	return out
}

// RectToImage projects rectified camera points to pixel coordinates. The
// returned depth is the projected z minus P2[2][3], so it is the distance
// along the optical axis for a standard projection matrix.
func (c *Calibration) RectToImage(pts []r3.Vector) ([]r2.Point, []float64) {
	uv := make([]r2.Point, len(pts))
	depth := make([]float64, len(pts))
	for i, p := range pts {
		h := apply(&c.proj, p)
		uv[i] = r2.Point{X: h.X / p.Z, Y: h.Y / p.Z}
		depth[i] = h.Z - c.proj[2][3]
	}
	return uv, depth
}

// LidarToImage composes LidarToRect and RectToImage.
func (c *Calibration) LidarToImage(pts []r3.Vector) ([]r2.Point, []float64) {
	return c.RectToImage(c.LidarToRect(pts))
}

func apply(m *[3][4]float64, p r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}
}

// padDense embeds a 3x3 or 3x4 matrix into a 4x4 homogeneous one.
func padDense(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(4, 4, nil)
	out.Set(3, 3, 1)
	for i := 0; i < r && i < 4; i++ {
		for j := 0; j < c && j < 4; j++ {
			out.Set(i, j, m.At(i, j))
		}
	}
	return out
}

func toMat4(m *mat.Dense) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
