package coda

import (
	"fmt"

	"github.com/banshee-data/coda-infos/internal/geometry"
	"github.com/banshee-data/coda-infos/internal/kitti"
)

// IgnoreClass is the label name kept in the raw annotation arrays but left
// out of index, gt_boxes_lidar and point counting.
const IgnoreClass = "DontCare"

// NumPointFeatures is the stride of every point blob: x, y, z, intensity.
const NumPointFeatures = kitti.PointStride

// PointCount is the number of lidar points inside a ground-truth box.
// PointsNotComputed marks entries that were never counted, which is every
// ignore-class entry.
type PointCount int32

const PointsNotComputed PointCount = -1

// Computed reports whether c holds a real count.
func (c PointCount) Computed() bool { return c >= 0 }

// InfoRecord is the persisted metadata of one frame.
type InfoRecord struct {
	PointCloud PointCloudInfo `json:"point_cloud"`
	Image      ImageInfo      `json:"image"`
	Calib      CalibInfo      `json:"calib"`

	// Annos is nil for frames built without labels.
	Annos *Annotations `json:"annos,omitempty"`
}

// FrameID returns the frame identifier shared by all of the record's files.
func (r InfoRecord) FrameID() string { return r.PointCloud.LidarIdx }

type PointCloudInfo struct {
	LidarIdx    string `json:"lidar_idx"`
	NumFeatures int    `json:"num_features"`
}

type ImageInfo struct {
	ImageIdx   string              `json:"image_idx"`
	ImageShape geometry.ImageShape `json:"image_shape"`
}

// CalibInfo stores the frame calibration in 4x4 homogeneous form.
type CalibInfo struct {
	P2          geometry.Mat4 `json:"P2"`
	R0Rect      geometry.Mat4 `json:"R0_rect"`
	TrVeloToCam geometry.Mat4 `json:"Tr_velo_to_cam"`
}

// NewCalibInfo pads c into homogeneous form.
func NewCalibInfo(c *geometry.Calibration) CalibInfo {
	p2, r0, v2c := c.Homogeneous()
	return CalibInfo{P2: p2, R0Rect: r0, TrVeloToCam: v2c}
}

// Calibration rebuilds the transform from the stored matrices.
func (c CalibInfo) Calibration() (*geometry.Calibration, error) {
	return geometry.CalibrationFromHomogeneous(c.P2, c.R0Rect, c.TrVeloToCam)
}

// Annotations holds the per-object arrays of one frame. Every field except
// Index and GTBoxesLidar has one entry per raw label; Index lists the raw
// positions of non-ignored labels and GTBoxesLidar is aligned with Index.
// NumPointsInGT is nil when points were not counted.
type Annotations struct {
	Name       []string     `json:"name"`
	Truncated  []float64    `json:"truncated"`
	Occluded   []float64    `json:"occluded"`
	Alpha      []float64    `json:"alpha"`
	BBox       [][4]float64 `json:"bbox"`
	Dimensions [][3]float64 `json:"dimensions"` // l, h, w (camera)
	Location   [][3]float64 `json:"location"`
	RotationY  []float64    `json:"rotation_y"`
	Score      []float64    `json:"score"`
	Difficulty []int32      `json:"difficulty"`
	Index      []int32      `json:"index"`
	GTBoxes    [][7]float64 `json:"gt_boxes_lidar"`
	NumPoints  []PointCount `json:"num_points_in_gt"`
}

// NewAnnotations returns empty, non-nil arrays sized for n objects.
func NewAnnotations(n int) *Annotations {
	return &Annotations{
		Name:       make([]string, 0, n),
		Truncated:  make([]float64, 0, n),
		Occluded:   make([]float64, 0, n),
		Alpha:      make([]float64, 0, n),
		BBox:       make([][4]float64, 0, n),
		Dimensions: make([][3]float64, 0, n),
		Location:   make([][3]float64, 0, n),
		RotationY:  make([]float64, 0, n),
		Score:      make([]float64, 0, n),
		Difficulty: make([]int32, 0, n),
		Index:      make([]int32, 0, n),
		GTBoxes:    make([][7]float64, 0, n),
	}
}

// Len returns the number of raw labels.
func (a *Annotations) Len() int { return len(a.Name) }

// append adds one raw label. Index and GTBoxes are maintained separately.
func (a *Annotations) append(o kitti.Object3D) {
	a.Name = append(a.Name, o.Type)
	a.Truncated = append(a.Truncated, o.Truncation)
	a.Occluded = append(a.Occluded, o.Occlusion)
	a.Alpha = append(a.Alpha, o.Alpha)
	a.BBox = append(a.BBox, o.Box2D)
	a.Dimensions = append(a.Dimensions, [3]float64{o.L, o.H, o.W})
	a.Location = append(a.Location, o.Loc)
	a.RotationY = append(a.RotationY, o.RY)
	a.Score = append(a.Score, o.Score)
	a.Difficulty = append(a.Difficulty, int32(o.Level()))
}

// CameraBoxes returns the raw labels as camera-convention boxes.
func (a *Annotations) CameraBoxes() []geometry.CameraBox {
	boxes := make([]geometry.CameraBox, a.Len())
	for i := range boxes {
		loc, dim := a.Location[i], a.Dimensions[i]
		boxes[i] = geometry.CameraBox{
			X: loc[0], Y: loc[1], Z: loc[2],
			L: dim[0], H: dim[1], W: dim[2],
			RY: a.RotationY[i],
		}
	}
	return boxes
}

// Validate checks the parallel-array invariant.
func (a *Annotations) Validate(frameID string) error {
	n := a.Len()
	lengths := []struct {
		field string
		n     int
	}{
		{"truncated", len(a.Truncated)},
		{"occluded", len(a.Occluded)},
		{"alpha", len(a.Alpha)},
		{"bbox", len(a.BBox)},
		{"dimensions", len(a.Dimensions)},
		{"location", len(a.Location)},
		{"rotation_y", len(a.RotationY)},
		{"score", len(a.Score)},
		{"difficulty", len(a.Difficulty)},
	}
	for _, l := range lengths {
		if l.n != n {
			return &SchemaMismatchError{FrameID: frameID, Field: l.field, Got: l.n, Want: n}
		}
	}
	if a.NumPoints != nil && len(a.NumPoints) != n {
		return &SchemaMismatchError{FrameID: frameID, Field: "num_points_in_gt", Got: len(a.NumPoints), Want: n}
	}
	if len(a.GTBoxes) != len(a.Index) {
		return &SchemaMismatchError{FrameID: frameID, Field: "gt_boxes_lidar", Got: len(a.GTBoxes), Want: len(a.Index)}
	}
	for _, idx := range a.Index {
		if idx < 0 || int(idx) >= n {
			return fmt.Errorf("frame %s: annotation index %d out of range [0, %d)", frameID, idx, n)
		}
	}
	return nil
}

// WithoutClass returns a copy of a with every label named name removed.
// Index is remapped to the new raw positions and GTBoxes follows it.
func (a *Annotations) WithoutClass(name string) *Annotations {
	keep := make([]int, 0, a.Len())
	newPos := make([]int32, a.Len())
	for i, n := range a.Name {
		if n == name {
			newPos[i] = -1
			continue
		}
		newPos[i] = int32(len(keep))
		keep = append(keep, i)
	}

	out := NewAnnotations(len(keep))
	for _, i := range keep {
		out.Name = append(out.Name, a.Name[i])
		out.Truncated = append(out.Truncated, a.Truncated[i])
		out.Occluded = append(out.Occluded, a.Occluded[i])
		out.Alpha = append(out.Alpha, a.Alpha[i])
		out.BBox = append(out.BBox, a.BBox[i])
		out.Dimensions = append(out.Dimensions, a.Dimensions[i])
		out.Location = append(out.Location, a.Location[i])
		out.RotationY = append(out.RotationY, a.RotationY[i])
		out.Score = append(out.Score, a.Score[i])
		out.Difficulty = append(out.Difficulty, a.Difficulty[i])
	}
	if a.NumPoints != nil {
		out.NumPoints = make([]PointCount, 0, len(keep))
		for _, i := range keep {
			out.NumPoints = append(out.NumPoints, a.NumPoints[i])
		}
	}
	for k, idx := range a.Index {
		if p := newPos[idx]; p >= 0 {
			out.Index = append(out.Index, p)
			out.GTBoxes = append(out.GTBoxes, a.GTBoxes[k])
		}
	}
	return out
}

// HasClass reports whether any raw label is named name.
func (a *Annotations) HasClass(name string) bool {
	for _, n := range a.Name {
		if n == name {
			return true
		}
	}
	return false
}
