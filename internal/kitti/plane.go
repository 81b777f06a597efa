package kitti

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// planeLine is the zero-based line holding the a b c d coefficients.
const planeLine = 3

// ParseRoadPlane reads ground-plane coefficients (a, b, c, d). The normal is
// flipped to face up in the rectified camera frame (b <= 0) and the whole
// plane is scaled so the normal has unit length.
func ParseRoadPlane(r io.Reader) ([4]float64, error) {
	var plane [4]float64

	sc := bufio.NewScanner(r)
	for i := 0; sc.Scan(); i++ {
		if i != planeLine {
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 4 {
			return plane, fmt.Errorf("plane line needs 4 coefficients, got %d", len(fields))
		}
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return plane, fmt.Errorf("plane coefficient %d: %w", j, err)
			}
			plane[j] = v
		}

		if plane[1] > 0 {
			for j := range plane {
				plane[j] = -plane[j]
			}
		}
		norm := math.Sqrt(plane[0]*plane[0] + plane[1]*plane[1] + plane[2]*plane[2])
		for j := range plane {
			plane[j] /= norm
		}
		return plane, nil
	}
	if err := sc.Err(); err != nil {
		return plane, fmt.Errorf("read plane: %w", err)
	}
	return plane, fmt.Errorf("plane record has fewer than %d lines", planeLine+1)
}
