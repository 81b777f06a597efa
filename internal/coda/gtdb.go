package coda

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/coda-infos/internal/fsutil"
	"github.com/banshee-data/coda-infos/internal/geometry"
	"github.com/banshee-data/coda-infos/internal/kitti"
)

// GTEntry describes one cropped object in the ground-truth database.
type GTEntry struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"` // relative to the dataset root
	ImageIdx   string     `json:"image_idx"`
	GTIdx      int        `json:"gt_idx"`
	Box3DLidar [7]float64 `json:"box3d_lidar"`
	NumPoints  int        `json:"num_points_in_gt"`
	Difficulty int32      `json:"difficulty"`
	BBox       [4]float64 `json:"bbox"`
	Score      float64    `json:"score"`
}

// GTIndex groups database entries by class name. Each list is in discovery
// order: frame order, then object order within the frame.
type GTIndex map[string][]GTEntry

// Classes returns the index's class names, sorted.
func (idx GTIndex) Classes() []string {
	names := make([]string, 0, len(idx))
	for name := range idx {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DatabaseDir returns the blob directory for split, relative to the root.
func DatabaseDir(split string) string {
	if split == "train" {
		return "gt_database"
	}
	return "gt_database_" + split
}

// DBInfoFileName returns the index file name for split.
func DBInfoFileName(split string) string {
	return fmt.Sprintf("coda_dbinfos_%s.json", split)
}

// GTDatabaseOptions controls one database build.
type GTDatabaseOptions struct {
	Split string
	// UsedClasses limits which classes are indexed. Points of every object
	// are written regardless. Nil indexes all classes.
	UsedClasses []string
	Workers     int
}

// GTDatabaseBuilder crops the points of every labelled box into its own
// blob and indexes the blobs by class.
type GTDatabaseBuilder struct {
	src *FrameSource
	fs  fsutil.FileSystem
}

// NewGTDatabaseBuilder returns a builder reading points from src and
// writing blobs under src's root.
func NewGTDatabaseBuilder(src *FrameSource, fsys fsutil.FileSystem) *GTDatabaseBuilder {
	return &GTDatabaseBuilder{src: src, fs: fsys}
}

// Build writes one blob per indexed object of infos and returns the class
// index. Frames are cropped in parallel; each frame's entries are merged in
// frame order once all frames succeed.
func (b *GTDatabaseBuilder) Build(ctx context.Context, infos []InfoRecord, opts GTDatabaseOptions) (GTIndex, error) {
	split := opts.Split
	if split == "" {
		split = "train"
	}
	dir := DatabaseDir(split)
	if err := b.fs.MkdirAll(filepath.Join(b.src.Root(), dir), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	perFrame := make([][]GTEntry, len(infos))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for k := range infos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tracef("gt_database sample: %d/%d", k+1, len(infos))
			entries, err := b.cropFrame(&infos[k], dir, opts.UsedClasses)
			if err != nil {
				return err
			}
			perFrame[k] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		opsf("gt_database %s: aborted: %v", split, err)
		return nil, err
	}

	index := make(GTIndex)
	for _, entries := range perFrame {
		for _, e := range entries {
			index[e.Name] = append(index[e.Name], e)
		}
	}
	for _, name := range index.Classes() {
		diagf("Database %s: %d", name, len(index[name]))
	}
	return index, nil
}

// cropFrame writes the blobs of one frame and returns the entries to index.
func (b *GTDatabaseBuilder) cropFrame(info *InfoRecord, dir string, used []string) ([]GTEntry, error) {
	id := info.FrameID()
	annos := info.Annos
	if annos == nil {
		return nil, fmt.Errorf("frame %s: info has no annotations", id)
	}

	pts, err := b.src.Lidar(id)
	if err != nil {
		return nil, err
	}
	positions := kitti.Positions(pts)

	var entries []GTEntry
	for i, arr := range annos.GTBoxes {
		raw := annos.Index[i]
		name := annos.Name[raw]
		box := geometry.LidarBoxFromArray(arr)

		mask := geometry.PointsInBox(positions, box)
		cropped := kitti.SelectPoints(pts, mask)
		for j := range cropped {
			cropped[j].X -= float32(box.X)
			cropped[j].Y -= float32(box.Y)
			cropped[j].Z -= float32(box.Z)
		}

		rel := filepath.Join(dir, fmt.Sprintf("%s_%s_%d.bin", id, name, i))
		if err := b.writeBlob(filepath.Join(b.src.Root(), rel), cropped); err != nil {
			return nil, fmt.Errorf("frame %s object %d: %w", id, i, err)
		}

		if used != nil && !slices.Contains(used, name) {
			continue
		}
		entries = append(entries, GTEntry{
			Name:       name,
			Path:       rel,
			ImageIdx:   id,
			GTIdx:      i,
			Box3DLidar: arr,
			NumPoints:  len(cropped),
			Difficulty: annos.Difficulty[raw],
			BBox:       annos.BBox[raw],
			Score:      annos.Score[raw],
		})
	}
	return entries, nil
}

func (b *GTDatabaseBuilder) writeBlob(path string, pts []kitti.Point) (err error) {
	w, err := b.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { err = multierr.Append(err, w.Close()) }()
	return kitti.WritePoints(w, pts)
}
