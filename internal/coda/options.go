package coda

import (
	"github.com/golang/geo/r3"

	"github.com/banshee-data/coda-infos/internal/geometry"
)

// Mode selects which data split and info files a Dataset loads.
type Mode string

const (
	ModeTrain Mode = "train"
	ModeTest  Mode = "test"
)

// Options is the fully resolved dataset configuration. Every recognised
// option is present with its effective value; see config.DatasetConfig for
// the on-disk form and defaults.
type Options struct {
	// DataSplit maps a mode to the split it reads.
	DataSplit map[Mode]string
	// InfoPath lists info files, relative to the root, per split key
	// ("train", "test", "val").
	InfoPath map[string][]string

	// FOVPointsOnly keeps only points that project onto the image.
	FOVPointsOnly bool
	// ShiftCoor is added to points and boxes when loading and subtracted
	// from predictions. Nil disables the shift.
	ShiftCoor *r3.Vector

	// FOVFilterPredictions drops predicted boxes whose centre falls
	// outside the image grown by PredictionFOVMargin pixels.
	FOVFilterPredictions bool
	PredictionFOVMargin  float64

	UsePseudoLabel     bool
	BalancedResampling bool
	RemoveOriginGTs    bool
	UseSortedImageset  bool

	Workers           int
	CountInsidePoints bool

	MergeAllItersToOneEpoch bool
	TotalEpochs             int

	// Seed fixes the resampling source. Nil seeds from the runtime.
	Seed *uint64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		DataSplit: map[Mode]string{ModeTrain: "train", ModeTest: "val"},
		InfoPath: map[string][]string{
			"train": {InfoFileName("train")},
			"test":  {InfoFileName("val")},
			"val":   {InfoFileName("val")},
		},
		FOVPointsOnly:        true,
		FOVFilterPredictions: true,
		PredictionFOVMargin:  geometry.PredictionFOVMargin,
		Workers:              DefaultWorkers,
		CountInsidePoints:    true,
		TotalEpochs:          1,
	}
}

// split returns the data split for mode, defaulting to the mode name.
func (o Options) split(mode Mode) string {
	if s, ok := o.DataSplit[mode]; ok && s != "" {
		return s
	}
	return string(mode)
}
