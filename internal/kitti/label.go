package kitti

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/coda-infos/internal/geometry"
)

// KITTI difficulty levels.
const (
	LevelUnknown  = -1
	LevelEasy     = 0
	LevelModerate = 1
	LevelHard     = 2
)

// Object3D is one parsed label line.
type Object3D struct {
	Type       string
	Truncation float64
	Occlusion  float64
	Alpha      float64
	Box2D      [4]float64 // x1, y1, x2, y2
	H, W, L    float64
	Loc        [3]float64 // bottom centre, rect camera frame
	RY         float64
	Score      float64
}

// CameraBox returns the object's 3D box in the camera convention.
func (o Object3D) CameraBox() geometry.CameraBox {
	return geometry.CameraBox{X: o.Loc[0], Y: o.Loc[1], Z: o.Loc[2], L: o.L, H: o.H, W: o.W, RY: o.RY}
}

// Level returns the KITTI difficulty from 2D box height, truncation and
// occlusion.
func (o Object3D) Level() int {
	height := o.Box2D[3] - o.Box2D[1] + 1
	switch {
	case height >= 40 && o.Truncation <= 0.15 && o.Occlusion <= 0:
		return LevelEasy
	case height >= 25 && o.Truncation <= 0.3 && o.Occlusion <= 1:
		return LevelModerate
	case height >= 25 && o.Truncation <= 0.5 && o.Occlusion <= 2:
		return LevelHard
	default:
		return LevelUnknown
	}
}

// ParseLabels reads one object per non-empty line. Lines carry 15 fields,
// or 16 when a detection score is present; without one Score is -1.
func ParseLabels(r io.Reader) ([]Object3D, error) {
	objs := make([]Object3D, 0)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 15 && len(fields) != 16 {
			return nil, fmt.Errorf("label line %d: expected 15 or 16 fields, got %d", lineNo, len(fields))
		}

		nums := make([]float64, len(fields)-1)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("label line %d field %d: %w", lineNo, i+1, err)
			}
			nums[i] = v
		}

		o := Object3D{
			Type:       fields[0],
			Truncation: nums[0],
			Occlusion:  nums[1],
			Alpha:      nums[2],
			Box2D:      [4]float64{nums[3], nums[4], nums[5], nums[6]},
			H:          nums[7],
			W:          nums[8],
			L:          nums[9],
			Loc:        [3]float64{nums[10], nums[11], nums[12]},
			RY:         nums[13],
			Score:      -1,
		}
		if len(nums) == 15 {
			o.Score = nums[14]
		}
		objs = append(objs, o)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return objs, nil
}
