package coda

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"github.com/banshee-data/coda-infos/internal/geometry"
	"github.com/banshee-data/coda-infos/internal/kitti"
)

// BatchMeta carries the per-frame context of a prediction batch.
type BatchMeta struct {
	FrameIDs    []string
	Calibs      []*geometry.Calibration
	ImageShapes []geometry.ImageShape
}

// Prediction is the raw model output for one frame. Labels are 1-based
// positions in the class name list; 0 is reserved.
type Prediction struct {
	Boxes  []geometry.LidarBox
	Scores []float64
	Labels []int
}

// PredictionRecord is one frame's detections in annotation form.
type PredictionRecord struct {
	FrameID string       `json:"frame_id"`
	Annos   *Annotations `json:"annos"`
	// BoxesLidar holds the surviving boxes in the unshifted lidar frame.
	BoxesLidar [][7]float64 `json:"boxes_lidar"`
}

// GeneratePredictionDicts converts each frame's predictions into annotation
// form. When outputDir is not empty one submission file per frame,
// <outputDir>/<frame id>.txt, is written alongside.
func (d *Dataset) GeneratePredictionDicts(batch BatchMeta, preds []Prediction, classNames []string, outputDir string) ([]PredictionRecord, error) {
	if len(batch.FrameIDs) != len(preds) || len(batch.Calibs) != len(preds) || len(batch.ImageShapes) != len(preds) {
		return nil, fmt.Errorf("batch meta for %d frames does not match %d predictions", len(batch.FrameIDs), len(preds))
	}

	if outputDir != "" {
		if err := d.fs.MkdirAll(outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", outputDir, err)
		}
	}

	records := make([]PredictionRecord, len(preds))
	for i, p := range preds {
		rec, err := d.predictionRecord(batch.FrameIDs[i], batch.Calibs[i], batch.ImageShapes[i], p, classNames)
		if err != nil {
			return nil, err
		}
		records[i] = rec

		if outputDir != "" {
			path := filepath.Join(outputDir, rec.FrameID+".txt")
			if err := d.writeSubmission(path, rec.Annos); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

func (d *Dataset) predictionRecord(id string, cal *geometry.Calibration, shape geometry.ImageShape, p Prediction, classNames []string) (PredictionRecord, error) {
	n := len(p.Scores)
	if len(p.Boxes) != n || len(p.Labels) != n {
		return PredictionRecord{}, &SchemaMismatchError{FrameID: id, Field: "pred_boxes", Got: len(p.Boxes), Want: n}
	}
	rec := PredictionRecord{FrameID: id, Annos: NewAnnotations(0), BoxesLidar: [][7]float64{}}
	if n == 0 {
		return rec, nil
	}

	boxes := make([]geometry.LidarBox, n)
	copy(boxes, p.Boxes)
	if s := d.opts.ShiftCoor; s != nil {
		for i := range boxes {
			boxes[i].X -= s.X
			boxes[i].Y -= s.Y
			boxes[i].Z -= s.Z
		}
	}

	scores, labels := p.Scores, p.Labels
	if d.opts.FOVFilterPredictions {
		centres := make([]r3.Vector, n)
		for i, b := range boxes {
			centres[i] = b.Center()
		}
		mask := geometry.FOVMask(cal.LidarToRect(centres), shape, cal, d.opts.PredictionFOVMargin)
		boxes, scores, labels = filterPredictions(mask, boxes, scores, labels)
		tracef("frame %s: %d of %d predictions inside FOV", id, len(boxes), n)
	}

	cams := geometry.LidarBoxesToCamera(boxes, cal)
	imgs := geometry.CameraBoxesToImageBoxes(cams, cal, &shape)

	annos := NewAnnotations(len(boxes))
	for i, cam := range cams {
		label := labels[i]
		if label < 1 || label > len(classNames) {
			return PredictionRecord{}, fmt.Errorf("frame %s: prediction label %d outside [1, %d]", id, label, len(classNames))
		}
		annos.Name = append(annos.Name, classNames[label-1])
		annos.Truncated = append(annos.Truncated, 0)
		annos.Occluded = append(annos.Occluded, 0)
		annos.Alpha = append(annos.Alpha, -math.Atan2(-boxes[i].Y, boxes[i].X)+cam.RY)
		annos.BBox = append(annos.BBox, imgs[i])
		annos.Dimensions = append(annos.Dimensions, [3]float64{cam.L, cam.H, cam.W})
		annos.Location = append(annos.Location, [3]float64{cam.X, cam.Y, cam.Z})
		annos.RotationY = append(annos.RotationY, cam.RY)
		annos.Score = append(annos.Score, scores[i])
		annos.Difficulty = append(annos.Difficulty, 0)
		rec.BoxesLidar = append(rec.BoxesLidar, boxes[i].Array())
	}
	rec.Annos = annos
	return rec, nil
}

func filterPredictions(mask []bool, boxes []geometry.LidarBox, scores []float64, labels []int) ([]geometry.LidarBox, []float64, []int) {
	var (
		kb []geometry.LidarBox
		ks []float64
		kl []int
	)
	for i, keep := range mask {
		if keep {
			kb = append(kb, boxes[i])
			ks = append(ks, scores[i])
			kl = append(kl, labels[i])
		}
	}
	return kb, ks, kl
}

// SubmissionDetections flattens annos into submission rows.
func SubmissionDetections(annos *Annotations) []kitti.Detection {
	dets := make([]kitti.Detection, annos.Len())
	for i := range dets {
		dets[i] = kitti.Detection{
			Name:       annos.Name[i],
			Alpha:      annos.Alpha[i],
			BBox:       annos.BBox[i],
			Dimensions: annos.Dimensions[i],
			Location:   annos.Location[i],
			RotationY:  annos.RotationY[i],
			Score:      annos.Score[i],
		}
	}
	return dets
}

func (d *Dataset) writeSubmission(path string, annos *Annotations) (err error) {
	w, err := d.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { err = multierr.Append(err, w.Close()) }()
	return kitti.WriteDetections(w, SubmissionDetections(annos))
}
