package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/banshee-data/coda-infos/internal/coda"
	"github.com/banshee-data/coda-infos/internal/geometry"
)

// framePrediction is one frame of model output as written by the
// inference job: lidar boxes as x, y, z, l, w, h, yaw with 1-based labels.
type framePrediction struct {
	FrameID    string       `json:"frame_id"`
	BoxesLidar [][7]float64 `json:"boxes_lidar"`
	Scores     []float64    `json:"scores"`
	Labels     []int        `json:"labels"`
}

func readPredictions(path string) ([]framePrediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read predictions: %w", err)
	}
	var preds []framePrediction
	if err := json.Unmarshal(data, &preds); err != nil {
		return nil, fmt.Errorf("parse predictions %s: %w", path, err)
	}
	for _, p := range preds {
		if len(p.Scores) != len(p.BoxesLidar) || len(p.Labels) != len(p.BoxesLidar) {
			return nil, fmt.Errorf("frame %s: %d boxes, %d scores, %d labels",
				p.FrameID, len(p.BoxesLidar), len(p.Scores), len(p.Labels))
		}
	}
	return preds, nil
}

// alignBatch orders preds by the dataset's infos. A frame without a
// prediction gets an empty one; a prediction for an unknown frame is an
// error.
func alignBatch(infos []coda.InfoRecord, preds []framePrediction) (coda.BatchMeta, []coda.Prediction, error) {
	byID := make(map[string]framePrediction, len(preds))
	for _, p := range preds {
		if _, dup := byID[p.FrameID]; dup {
			return coda.BatchMeta{}, nil, fmt.Errorf("frame %s predicted twice", p.FrameID)
		}
		byID[p.FrameID] = p
	}

	var batch coda.BatchMeta
	out := make([]coda.Prediction, len(infos))
	for i, info := range infos {
		id := info.FrameID()
		cal, err := info.Calib.Calibration()
		if err != nil {
			return coda.BatchMeta{}, nil, fmt.Errorf("frame %s: %w", id, err)
		}
		batch.FrameIDs = append(batch.FrameIDs, id)
		batch.Calibs = append(batch.Calibs, cal)
		batch.ImageShapes = append(batch.ImageShapes, info.Image.ImageShape)

		p, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)
		boxes := make([]geometry.LidarBox, len(p.BoxesLidar))
		for j, b := range p.BoxesLidar {
			boxes[j] = geometry.LidarBoxFromArray(b)
		}
		out[i] = coda.Prediction{Boxes: boxes, Scores: p.Scores, Labels: p.Labels}
	}
	if len(byID) > 0 {
		unknown := slices.Sorted(maps.Keys(byID))
		return coda.BatchMeta{}, nil, fmt.Errorf("predictions for frames not in the split: %v", unknown)
	}
	return batch, out, nil
}
