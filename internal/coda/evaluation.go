package coda

import "fmt"

// Evaluator scores detections against ground truth. gt and det are aligned
// frame by frame.
type Evaluator interface {
	Evaluate(gt, det []*Annotations, classNames []string) (report string, metrics map[string]float64, err error)
}

// EvalResult is the outcome of Dataset.Evaluation. Available is false when
// the dataset holds no ground truth to compare against.
type EvalResult struct {
	Available bool
	Report    string
	Metrics   map[string]float64
}

// Evaluation compares det against the dataset's ground truth, one
// prediction record per loaded info in the same order.
func (d *Dataset) Evaluation(ev Evaluator, det []PredictionRecord, classNames []string) (EvalResult, error) {
	if len(d.infos) == 0 || d.infos[0].Annos == nil {
		diagf("evaluation: %s has no ground-truth annotations", d.split)
		return EvalResult{Metrics: map[string]float64{}}, nil
	}
	if len(det) != len(d.infos) {
		return EvalResult{}, fmt.Errorf("evaluation: %d prediction records for %d ground-truth frames", len(det), len(d.infos))
	}

	gt := make([]*Annotations, len(d.infos))
	dt := make([]*Annotations, len(det))
	for i := range d.infos {
		gt[i] = d.infos[i].Annos
		if gt[i] == nil {
			gt[i] = NewAnnotations(0)
		}
		dt[i] = det[i].Annos
		if dt[i] == nil {
			dt[i] = NewAnnotations(0)
		}
	}

	report, metrics, err := ev.Evaluate(gt, dt, classNames)
	if err != nil {
		return EvalResult{}, fmt.Errorf("evaluation: %w", err)
	}
	return EvalResult{Available: true, Report: report, Metrics: metrics}, nil
}
