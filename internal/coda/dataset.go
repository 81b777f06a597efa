package coda

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/coda-infos/internal/fsutil"
	"github.com/banshee-data/coda-infos/internal/geometry"
	"github.com/banshee-data/coda-infos/internal/kitti"
)

// sortedIndexSplits is the concatenation order of the cross-split index.
var sortedIndexSplits = []string{"train", "test", "val"}

// Sample is one frame as handed to the training pipeline.
type Sample struct {
	FrameID    string
	Points     []kitti.Point
	Calib      *geometry.Calibration
	ImageShape geometry.ImageShape

	// HasAnnotations is false for records built without labels; GTNames
	// and GTBoxes are then empty.
	HasAnnotations bool
	GTNames        []string
	// GTBoxes is nil when pseudo labels replace the ground truth.
	GTBoxes   []geometry.LidarBox
	RoadPlane *[4]float64
}

// Preparer is the downstream augmentation and collation stage.
type Preparer interface {
	Prepare(s *Sample) (*Sample, error)
}

// PseudoLabelFiller attaches stored pseudo labels to a training sample.
type PseudoLabelFiller interface {
	FillPseudoLabels(s *Sample) error
}

// DatasetOption customises a Dataset.
type DatasetOption func(*Dataset)

// WithPreparer sets the stage Item hands samples to.
func WithPreparer(p Preparer) DatasetOption {
	return func(d *Dataset) { d.preparer = p }
}

// WithPseudoLabels sets the pseudo-label source used when UsePseudoLabel
// is enabled for training.
func WithPseudoLabels(f PseudoLabelFiller) DatasetOption {
	return func(d *Dataset) { d.pseudo = f }
}

// Dataset is a loaded view of one mode's infos. It is immutable after
// NewDataset returns and safe for concurrent Item calls.
type Dataset struct {
	opts       Options
	classNames []string
	training   bool
	mode       Mode
	split      string
	root       string
	fs         fsutil.FileSystem

	src       *FrameSource
	sampleIDs []string
	infos     []InfoRecord
	sorted    *SortedIndex

	preparer Preparer
	pseudo   PseudoLabelFiller
}

// NewDataset loads the info files of the training or test mode. Missing
// info files are skipped. Balanced resampling applies to training only.
func NewDataset(opts Options, classNames []string, training bool, root string, fsys fsutil.FileSystem, extra ...DatasetOption) (*Dataset, error) {
	mode := ModeTest
	if training {
		mode = ModeTrain
	}
	d := &Dataset{
		opts:       opts,
		classNames: classNames,
		training:   training,
		mode:       mode,
		split:      opts.split(mode),
		root:       root,
		fs:         fsys,
	}
	for _, o := range extra {
		o(d)
	}
	d.src = NewFrameSource(fsys, root, d.split)

	ids, err := d.src.SampleIDs()
	if err != nil {
		return nil, err
	}
	d.sampleIDs = ids

	diagf("Loading CODa dataset")
	for _, rel := range opts.InfoPath[string(mode)] {
		path := filepath.Join(root, rel)
		if !fsys.Exists(path) {
			continue
		}
		infos, err := LoadInfos(fsys, path)
		if err != nil {
			return nil, err
		}
		d.infos = append(d.infos, infos...)
	}
	diagf("Total samples for CODa dataset: %d", len(d.infos))

	if training && opts.BalancedResampling {
		var rng *rand.Rand
		if opts.Seed != nil {
			rng = rand.New(rand.NewPCG(*opts.Seed, *opts.Seed))
		}
		d.infos = BalancedResample(d.infos, classNames, rng)
	}

	if opts.UseSortedImageset {
		if err := d.loadSortedIndex(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dataset) loadSortedIndex() error {
	var splits []SplitInfos
	for _, key := range sortedIndexSplits {
		split := d.opts.split(Mode(key))
		for _, rel := range d.opts.InfoPath[key] {
			infos, err := LoadInfos(d.fs, filepath.Join(d.root, rel))
			if err != nil {
				return fmt.Errorf("sorted index: %w", err)
			}
			splits = append(splits, SplitInfos{Split: split, Infos: infos})
		}
	}
	idx, err := BuildSortedIndex(splits)
	if err != nil {
		return err
	}
	d.sorted = idx
	d.infos = idx.Infos
	d.src = d.src.WithSubdirs(idx.Subdirs)
	return nil
}

// Split returns the data split the dataset reads.
func (d *Dataset) Split() string { return d.split }

// SampleIDs returns the split's image set, or nil when it has none.
func (d *Dataset) SampleIDs() []string { return d.sampleIDs }

// Infos returns the loaded records. Callers must not modify them.
func (d *Dataset) Infos() []InfoRecord { return d.infos }

// Source returns the frame reader for the dataset's split.
func (d *Dataset) Source() *FrameSource { return d.src }

// Len returns the number of items per epoch, multiplied by the epoch count
// when all iterations are merged into one epoch.
func (d *Dataset) Len() int {
	if d.opts.MergeAllItersToOneEpoch {
		return len(d.infos) * d.opts.TotalEpochs
	}
	return len(d.infos)
}

// Item loads frame i with its ground truth in the lidar frame and hands it
// to the Preparer.
func (d *Dataset) Item(i int) (*Sample, error) {
	if len(d.infos) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", d.split)
	}
	if d.opts.MergeAllItersToOneEpoch {
		i %= len(d.infos)
	}
	if i < 0 || i >= len(d.infos) {
		return nil, fmt.Errorf("item %d out of range [0, %d)", i, len(d.infos))
	}

	info := &d.infos[i]
	if d.sorted != nil {
		info = d.sorted.At(i)
	}
	id := info.FrameID()

	pts, err := d.src.Lidar(id)
	if err != nil {
		return nil, err
	}
	cal, err := d.src.Calibration(id)
	if err != nil {
		return nil, err
	}
	shape := info.Image.ImageShape

	if d.opts.FOVPointsOnly {
		mask := geometry.FOVMask(cal.LidarToRect(kitti.Positions(pts)), shape, cal, geometry.InfoFOVMargin)
		pts = kitti.SelectPoints(pts, mask)
	}
	if s := d.opts.ShiftCoor; s != nil {
		for j := range pts {
			pts[j].X += float32(s.X)
			pts[j].Y += float32(s.Y)
			pts[j].Z += float32(s.Z)
		}
	}

	sample := &Sample{FrameID: id, Points: pts, Calib: cal, ImageShape: shape}

	if info.Annos != nil {
		annos := info.Annos.WithoutClass(IgnoreClass)
		boxes := geometry.CameraBoxesToLidar(annos.CameraBoxes(), cal)
		if s := d.opts.ShiftCoor; s != nil {
			for j := range boxes {
				boxes[j].X += s.X
				boxes[j].Y += s.Y
				boxes[j].Z += s.Z
			}
		}
		sample.HasAnnotations = true
		sample.GTNames = annos.Name
		sample.GTBoxes = boxes

		if d.opts.RemoveOriginGTs && d.training {
			sample.Points = removePointsInBoxes(sample.Points, boxes)
			sample.GTNames = []string{}
			sample.GTBoxes = []geometry.LidarBox{}
		}
		if d.opts.UsePseudoLabel && d.training {
			sample.GTBoxes = nil
		}

		plane, err := d.src.RoadPlane(id)
		if err != nil {
			return nil, err
		}
		sample.RoadPlane = plane
	}

	if d.opts.UsePseudoLabel && d.training && d.pseudo != nil {
		if err := d.pseudo.FillPseudoLabels(sample); err != nil {
			return nil, fmt.Errorf("frame %s: pseudo labels: %w", id, err)
		}
	}
	if d.preparer == nil {
		return sample, nil
	}
	return d.preparer.Prepare(sample)
}

// removePointsInBoxes drops every point inside any of boxes.
func removePointsInBoxes(pts []kitti.Point, boxes []geometry.LidarBox) []kitti.Point {
	out := make([]kitti.Point, 0, len(pts))
	for _, p := range pts {
		xyz := p.XYZ()
		if !inAnyBox(xyz, boxes) {
			out = append(out, p)
		}
	}
	return out
}

func inAnyBox(p r3.Vector, boxes []geometry.LidarBox) bool {
	for _, b := range boxes {
		if geometry.PointInBox(p, b) {
			return true
		}
	}
	return false
}
