package kitti

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/coda-infos/internal/geometry"
)

// Camera projection keys in lookup order. CODa ships a single camera as P0
// while KITTI-format exports carry the left colour camera as P2.
var projectionKeys = []string{"P2", "P0"}

// ParseCalibration reads a "KEY: v1 v2 ..." calibration record.
func ParseCalibration(r io.Reader) (*geometry.Calibration, error) {
	values := make(map[string][]float64)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed calibration line %q", line)
		}
		fields := strings.Fields(rest)
		nums := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("calibration %s[%d]: %w", key, i, err)
			}
			nums[i] = v
		}
		values[strings.TrimSpace(key)] = nums
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}

	var proj []float64
	for _, k := range projectionKeys {
		if v, ok := values[k]; ok {
			proj = v
			break
		}
	}
	if len(proj) != 12 {
		return nil, fmt.Errorf("calibration needs a 12-value P2 or P0 entry, got %d values", len(proj))
	}

	r0 := values["R0_rect"]
	if len(r0) != 9 {
		return nil, fmt.Errorf("calibration R0_rect needs 9 values, got %d", len(r0))
	}
	v2c := values["Tr_velo_to_cam"]
	if len(v2c) != 12 {
		return nil, fmt.Errorf("calibration Tr_velo_to_cam needs 12 values, got %d", len(v2c))
	}

	return geometry.NewCalibration(
		mat.NewDense(3, 4, proj),
		mat.NewDense(3, 3, r0),
		mat.NewDense(3, 4, v2c),
	)
}
