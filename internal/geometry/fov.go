package geometry

import "github.com/golang/geo/r3"

// Margins used by the two FOV consumers. Info building keeps only points that
// land on the image; prediction filtering tolerates detections whose centre
// falls just outside it.
const (
	InfoFOVMargin       = 0.0
	PredictionFOVMargin = 5.0
)

// FOVMask projects rect-frame points into the image and marks those with
// pixel x in [-margin, width+margin), y in [-margin, height+margin) and
// non-negative depth. The mask is aligned 1:1 with pts.
func FOVMask(pts []r3.Vector, shape ImageShape, c *Calibration, margin float64) []bool {
	uv, depth := c.RectToImage(pts)
	w, h := float64(shape.Width), float64(shape.Height)

	mask := make([]bool, len(pts))
	for i, p := range uv {
		inX := p.X >= -margin && p.X < w+margin
		inY := p.Y >= -margin && p.Y < h+margin
		mask[i] = inX && inY && depth[i] >= 0
	}
	return mask
}
