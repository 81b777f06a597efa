package kitti

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r3"
)

// PointStride is the number of float32 values per point: x, y, z, intensity.
const PointStride = 4

const pointBytes = PointStride * 4

// Point is one lidar return.
type Point struct {
	X, Y, Z   float32
	Intensity float32
}

// XYZ returns the point position in float64.
func (p Point) XYZ() r3.Vector {
	return r3.Vector{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// Positions returns the positions of pts.
func Positions(pts []Point) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = p.XYZ()
	}
	return out
}

// SelectPoints keeps the points whose mask entry is set, preserving order.
func SelectPoints(pts []Point, mask []bool) []Point {
	out := make([]Point, 0, len(pts))
	for i, p := range pts {
		if mask[i] {
			out = append(out, p)
		}
	}
	return out
}

// DecodePoints parses a little-endian float32 blob with PointStride values
// per point.
func DecodePoints(blob []byte) ([]Point, error) {
	if len(blob)%pointBytes != 0 {
		return nil, fmt.Errorf("point blob length %d is not a multiple of %d", len(blob), pointBytes)
	}

	pts := make([]Point, len(blob)/pointBytes)
	for i := range pts {
		off := i * pointBytes
		pts[i] = Point{
			X:         math.Float32frombits(binary.LittleEndian.Uint32(blob[off:])),
			Y:         math.Float32frombits(binary.LittleEndian.Uint32(blob[off+4:])),
			Z:         math.Float32frombits(binary.LittleEndian.Uint32(blob[off+8:])),
			Intensity: math.Float32frombits(binary.LittleEndian.Uint32(blob[off+12:])),
		}
	}
	return pts, nil
}

// EncodePoints is the inverse of DecodePoints.
func EncodePoints(pts []Point) []byte {
	blob := make([]byte, len(pts)*pointBytes)
	for i, p := range pts {
		off := i * pointBytes
		binary.LittleEndian.PutUint32(blob[off:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(blob[off+4:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(blob[off+8:], math.Float32bits(p.Z))
		binary.LittleEndian.PutUint32(blob[off+12:], math.Float32bits(p.Intensity))
	}
	return blob
}

// ReadPoints reads a whole point blob from r.
func ReadPoints(r io.Reader) ([]Point, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read points: %w", err)
	}
	return DecodePoints(blob)
}

// WritePoints writes pts to w in the blob layout.
func WritePoints(w io.Writer, pts []Point) error {
	if _, err := w.Write(EncodePoints(pts)); err != nil {
		return fmt.Errorf("write points: %w", err)
	}
	return nil
}
