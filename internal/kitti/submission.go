package kitti

import (
	"bufio"
	"fmt"
	"io"
)

// Detection is one row of a submission file. Dimensions are in the camera
// length-height-width order used by annotations; they are written as
// height, width, length.
type Detection struct {
	Name       string
	Alpha      float64
	BBox       [4]float64
	Dimensions [3]float64
	Location   [3]float64
	RotationY  float64
	Score      float64
}

// FormatDetection renders d in the KITTI detection layout:
//
//	name -1 -1 alpha x1 y1 x2 y2 h w l x y z ry score
//
// with every float at four decimals.
func FormatDetection(d Detection) string {
	return fmt.Sprintf("%s -1 -1 %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f",
		d.Name, d.Alpha,
		d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3],
		d.Dimensions[1], d.Dimensions[2], d.Dimensions[0],
		d.Location[0], d.Location[1], d.Location[2],
		d.RotationY, d.Score)
}

// WriteDetections writes one line per detection.
func WriteDetections(w io.Writer, dets []Detection) error {
	bw := bufio.NewWriter(w)
	for _, d := range dets {
		if _, err := fmt.Fprintln(bw, FormatDetection(d)); err != nil {
			return fmt.Errorf("write detection: %w", err)
		}
	}
	return bw.Flush()
}
