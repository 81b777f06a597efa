// Package eval scores detections against ground truth with the KITTI
// object benchmark protocol on 2D image boxes.
//
// For every class and difficulty, detections are greedily matched to
// ground-truth boxes above a class overlap threshold. Each true-positive
// score is tried as a confidence cut-off, and AP is the mean interpolated
// precision at the 40 recall positions 1/40 .. 1 (the R40 variant).
package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/coda-infos/internal/coda"
)

// Difficulty levels in report order. Each level includes the previous one.
var difficulties = []string{"easy", "moderate", "hard"}

// Per-difficulty limits for ground truth to count.
var (
	minHeight     = [3]float64{40, 25, 25}
	maxOcclusion  = [3]float64{0, 1, 2}
	maxTruncation = [3]float64{0.15, 0.3, 0.5}
)

const numSamplePoints = 41

// DefaultMinOverlap is the IoU needed for a match when a class has no
// entry in MinOverlap.
const DefaultMinOverlap = 0.5

// vehicleOverlap applies to the rigid vehicle classes.
const vehicleOverlap = 0.7

var vehicleClasses = []string{"Car", "PickupTruck", "DeliveryTruck", "ServiceVehicle", "UtilityVehicle", "Bus"}

// neighbours are classes that neither count as misses nor as false
// positives for the keyed class.
var neighbours = map[string]string{
	"car":        "van",
	"pedestrian": "person_sitting",
}

// KITTIEvaluator implements coda.Evaluator.
type KITTIEvaluator struct {
	// MinOverlap maps a class name to its match threshold.
	MinOverlap map[string]float64
}

// NewKITTIEvaluator returns an evaluator with 0.7 overlap for vehicles and
// DefaultMinOverlap for everything else.
func NewKITTIEvaluator() *KITTIEvaluator {
	m := make(map[string]float64, len(vehicleClasses))
	for _, c := range vehicleClasses {
		m[c] = vehicleOverlap
	}
	return &KITTIEvaluator{MinOverlap: m}
}

var _ coda.Evaluator = (*KITTIEvaluator)(nil)

// MetricKey names the AP of class at difficulty in the metric map.
func MetricKey(class, difficulty string) string {
	return fmt.Sprintf("%s_image/%s_R40", class, difficulty)
}

// Evaluate returns a text report and the AP of every class and difficulty,
// in percent.
func (e *KITTIEvaluator) Evaluate(gt, det []*coda.Annotations, classNames []string) (string, map[string]float64, error) {
	if len(gt) != len(det) {
		return "", nil, fmt.Errorf("%d ground-truth frames but %d detection frames", len(gt), len(det))
	}

	overlaps := make([][][]float64, len(gt))
	dcOverlaps := make([][][]float64, len(gt))
	for f := range gt {
		overlaps[f] = boxOverlaps(det[f].BBox, gt[f].BBox)
		dcOverlaps[f] = boxOverlaps(det[f].BBox, dontCareBoxes(gt[f]))
	}

	var report strings.Builder
	metrics := make(map[string]float64, len(classNames)*len(difficulties))
	for _, class := range classNames {
		thr := e.minOverlap(class)
		aps := make([]float64, len(difficulties))
		for d, name := range difficulties {
			aps[d] = averagePrecision(gt, det, overlaps, dcOverlaps, class, d, thr)
			metrics[MetricKey(class, name)] = aps[d]
		}
		fmt.Fprintf(&report, "%s AP_R40@%.2f:\n", class, thr)
		fmt.Fprintf(&report, "bbox AP:%.4f, %.4f, %.4f\n", aps[0], aps[1], aps[2])
	}
	return report.String(), metrics, nil
}

func (e *KITTIEvaluator) minOverlap(class string) float64 {
	if v, ok := e.MinOverlap[class]; ok {
		return v
	}
	return DefaultMinOverlap
}

// Box states for one class and difficulty.
const (
	stateOther   = -1 // different class, skipped entirely
	stateValid   = 0
	stateIgnored = 1 // neither a hit nor a miss
)

type frameState struct {
	gt, det []int
	numGT   int
}

func classify(gt, det *coda.Annotations, class string, d int) frameState {
	cls := strings.ToLower(class)
	st := frameState{gt: make([]int, gt.Len()), det: make([]int, det.Len())}

	for i, name := range gt.Name {
		name = strings.ToLower(name)
		height := gt.BBox[i][3] - gt.BBox[i][1]
		hard := gt.Occluded[i] > maxOcclusion[d] || gt.Truncated[i] > maxTruncation[d] || height <= minHeight[d]
		switch {
		case name == cls && !hard:
			st.gt[i] = stateValid
			st.numGT++
		case name == cls, neighbours[cls] == name:
			st.gt[i] = stateIgnored
		default:
			st.gt[i] = stateOther
		}
	}
	for i, name := range det.Name {
		height := det.BBox[i][3] - det.BBox[i][1]
		switch {
		case height < minHeight[d]:
			st.det[i] = stateIgnored
		case strings.ToLower(name) == cls:
			st.det[i] = stateValid
		default:
			st.det[i] = stateOther
		}
	}
	return st
}

type counts struct {
	tp, fp, fn int
}

// match assigns detections scoring at least thresh to ground truth. With
// computeFP unset it returns the scores of the detections that would count
// as true positives, which seed the recall thresholds.
func match(st frameState, scores []float64, overlaps, dc [][]float64, minOverlap, thresh float64, computeFP bool) (counts, []float64) {
	const noDetection = -1e7
	var c counts
	var tpScores []float64
	assigned := make([]bool, len(st.det))
	below := make([]bool, len(st.det))
	if computeFP {
		for j, s := range scores {
			below[j] = s < thresh
		}
	}

	for i, gs := range st.gt {
		if gs == stateOther {
			continue
		}
		detIdx := -1
		valid := noDetection
		maxOverlap := 0.0
		assignedIgnored := false
		for j, ds := range st.det {
			if ds == stateOther || assigned[j] || below[j] {
				continue
			}
			o := overlaps[j][i]
			switch {
			case !computeFP && o > minOverlap && scores[j] > valid:
				detIdx, valid = j, scores[j]
			case computeFP && o > minOverlap && (o > maxOverlap || assignedIgnored) && ds == stateValid:
				maxOverlap, detIdx, valid, assignedIgnored = o, j, 1, false
			case computeFP && o > minOverlap && valid == noDetection && ds == stateIgnored:
				detIdx, valid, assignedIgnored = j, 1, true
			}
		}

		switch {
		case valid == noDetection && gs == stateValid:
			c.fn++
		case valid != noDetection && (gs == stateIgnored || st.det[detIdx] == stateIgnored):
			assigned[detIdx] = true
		case valid != noDetection:
			c.tp++
			tpScores = append(tpScores, scores[detIdx])
			assigned[detIdx] = true
		}
	}

	if computeFP {
		for j, ds := range st.det {
			if !assigned[j] && ds == stateValid && !below[j] {
				c.fp++
			}
		}
		// Unmatched detections on DontCare regions are not penalised.
		for k := range dcRange(dc) {
			for j, ds := range st.det {
				if assigned[j] || ds != stateValid || below[j] {
					continue
				}
				if dc[j][k] > minOverlap {
					assigned[j] = true
					c.fp--
				}
			}
		}
	}
	return c, tpScores
}

func dcRange(dc [][]float64) int {
	if len(dc) == 0 {
		return 0
	}
	return len(dc[0])
}

func averagePrecision(gt, det []*coda.Annotations, overlaps, dcOverlaps [][][]float64, class string, d int, minOverlap float64) float64 {
	states := make([]frameState, len(gt))
	numGT := 0
	var scores []float64
	for f := range gt {
		states[f] = classify(gt[f], det[f], class, d)
		numGT += states[f].numGT
		_, s := match(states[f], det[f].Score, overlaps[f], dcOverlaps[f], minOverlap, 0, false)
		scores = append(scores, s...)
	}
	if numGT == 0 {
		return 0
	}

	type point struct{ recall, precision float64 }
	var curve []point
	for _, thresh := range scoreThresholds(scores) {
		var total counts
		for f := range gt {
			c, _ := match(states[f], det[f].Score, overlaps[f], dcOverlaps[f], minOverlap, thresh, true)
			total.tp += c.tp
			total.fp += c.fp
			total.fn += c.fn
		}
		if total.tp+total.fp == 0 || total.tp+total.fn == 0 {
			continue
		}
		curve = append(curve, point{
			recall:    float64(total.tp) / float64(total.tp+total.fn),
			precision: float64(total.tp) / float64(total.tp+total.fp),
		})
	}

	// Interpolated precision at recall k/40, k = 1..40.
	sum := 0.0
	for k := 1; k < numSamplePoints; k++ {
		r := float64(k) / float64(numSamplePoints-1)
		best := 0.0
		for _, p := range curve {
			if p.recall >= r-1e-9 {
				best = max(best, p.precision)
			}
		}
		sum += best
	}
	return sum / float64(numSamplePoints-1) * 100
}

// scoreThresholds returns the distinct scores, highest first.
func scoreThresholds(scores []float64) []float64 {
	sorted := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	var out []float64
	for _, s := range sorted {
		if len(out) == 0 || s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

func dontCareBoxes(a *coda.Annotations) [][4]float64 {
	var boxes [][4]float64
	for i, name := range a.Name {
		if strings.EqualFold(name, coda.IgnoreClass) {
			boxes = append(boxes, a.BBox[i])
		}
	}
	return boxes
}

// boxOverlaps returns IoU[i][j] between boxes a[i] and b[j].
func boxOverlaps(a, b [][4]float64) [][]float64 {
	out := make([][]float64, len(a))
	for i := range a {
		out[i] = make([]float64, len(b))
		for j := range b {
			out[i][j] = IoU(a[i], b[j])
		}
	}
	return out
}

// IoU is the intersection over union of two x1, y1, x2, y2 boxes.
func IoU(a, b [4]float64) float64 {
	iw := min(a[2], b[2]) - max(a[0], b[0])
	ih := min(a[3], b[3]) - max(a[1], b[1])
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
