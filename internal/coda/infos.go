package coda

import (
	"context"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/coda-infos/internal/geometry"
	"github.com/banshee-data/coda-infos/internal/kitti"
)

// DefaultWorkers is the info-building pool size when none is configured.
const DefaultWorkers = 4

// InfoOptions controls one BuildInfos batch.
type InfoOptions struct {
	Workers           int
	HasLabel          bool
	CountInsidePoints bool
}

// InfoBuilder turns frame ids into InfoRecords.
type InfoBuilder struct {
	src *FrameSource
}

// NewInfoBuilder returns a builder reading frames from src.
func NewInfoBuilder(src *FrameSource) *InfoBuilder {
	return &InfoBuilder{src: src}
}

// BuildInfos builds one record per id on a bounded worker pool. Output
// position i always holds the record for ids[i]. The first failing frame
// cancels the batch and its error is returned with no records.
func (b *InfoBuilder) BuildInfos(ctx context.Context, ids []string, opts InfoOptions) ([]InfoRecord, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	infos := make([]InfoRecord, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := b.BuildInfo(id, opts)
			if err != nil {
				return err
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		opsf("%s infos: batch of %d frames aborted: %v", b.src.Split(), len(ids), err)
		return nil, err
	}
	diagf("%s infos: built %d frames", b.src.Split(), len(infos))
	return infos, nil
}

// BuildInfo builds the record for a single frame.
func (b *InfoBuilder) BuildInfo(id string, opts InfoOptions) (InfoRecord, error) {
	tracef("%s sample_idx: %s", b.src.Split(), id)

	shape, err := b.src.ImageShape(id)
	if err != nil {
		return InfoRecord{}, err
	}
	cal, err := b.src.Calibration(id)
	if err != nil {
		return InfoRecord{}, err
	}

	info := InfoRecord{
		PointCloud: PointCloudInfo{LidarIdx: id, NumFeatures: NumPointFeatures},
		Image:      ImageInfo{ImageIdx: id, ImageShape: shape},
		Calib:      NewCalibInfo(cal),
	}
	if !opts.HasLabel {
		return info, nil
	}

	objs, err := b.src.Labels(id)
	if err != nil {
		return InfoRecord{}, err
	}
	annos := buildAnnotations(objs, cal)
	if err := annos.Validate(id); err != nil {
		return InfoRecord{}, err
	}

	if opts.CountInsidePoints {
		pts, err := b.src.Lidar(id)
		if err != nil {
			return InfoRecord{}, err
		}
		annos.NumPoints = countPointsInBoxes(pts, annos, shape, cal)
	}

	info.Annos = annos
	return info, nil
}

// buildAnnotations fills the raw arrays from objs and derives the lidar
// boxes of every non-ignored object.
func buildAnnotations(objs []kitti.Object3D, cal *geometry.Calibration) *Annotations {
	annos := NewAnnotations(len(objs))
	cams := make([]geometry.CameraBox, 0, len(objs))
	for i, o := range objs {
		annos.append(o)
		if o.Type == IgnoreClass {
			continue
		}
		annos.Index = append(annos.Index, int32(i))
		cams = append(cams, o.CameraBox())
	}
	for _, box := range geometry.CameraBoxesToLidar(cams, cal) {
		annos.GTBoxes = append(annos.GTBoxes, box.Array())
	}
	return annos
}

// countPointsInBoxes counts FOV points inside each indexed box. Entries past
// the indexed objects stay PointsNotComputed.
func countPointsInBoxes(pts []kitti.Point, annos *Annotations, shape geometry.ImageShape, cal *geometry.Calibration) []PointCount {
	lidar := kitti.Positions(pts)
	mask := geometry.FOVMask(cal.LidarToRect(lidar), shape, cal, geometry.InfoFOVMargin)
	fov := make([]r3.Vector, 0, len(lidar))
	for i, keep := range mask {
		if keep {
			fov = append(fov, lidar[i])
		}
	}

	counts := make([]PointCount, annos.Len())
	for i := range counts {
		counts[i] = PointsNotComputed
	}
	for k, box := range annos.GTBoxes {
		corners := geometry.LidarBoxFromArray(box).Corners()
		counts[k] = PointCount(geometry.CountTrue(geometry.InHull(fov, corners)))
	}
	return counts
}
