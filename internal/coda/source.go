package coda

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/banshee-data/coda-infos/internal/fsutil"
	"github.com/banshee-data/coda-infos/internal/geometry"
	"github.com/banshee-data/coda-infos/internal/kitti"
)

// Per-frame subdirectories and extensions.
const (
	lidarDir = "velodyne"
	imageDir = "image_0"
	labelDir = "label_0"
	calibDir = "calib"
	planeDir = "planes"

	imageSetDir = "ImageSets"
)

// SplitDir returns the top-level directory holding split's frames.
func SplitDir(split string) string {
	if split == "test" {
		return "testing"
	}
	return "training"
}

// FrameSource reads the raw files of one split.
type FrameSource struct {
	fs    fsutil.FileSystem
	root  string
	split string

	// subdirs overrides SplitDir per frame; set from a SortedIndex.
	subdirs map[string]string
}

// NewFrameSource returns a reader for split under root.
func NewFrameSource(fsys fsutil.FileSystem, root, split string) *FrameSource {
	return &FrameSource{fs: fsys, root: root, split: split}
}

// Split returns the split name the source reads.
func (s *FrameSource) Split() string { return s.split }

// Root returns the dataset root.
func (s *FrameSource) Root() string { return s.root }

// WithSplit returns a source for another split of the same root.
func (s *FrameSource) WithSplit(split string) *FrameSource {
	return &FrameSource{fs: s.fs, root: s.root, split: split, subdirs: s.subdirs}
}

// WithSubdirs returns a source that resolves each frame's top-level
// directory from subdirs, falling back to the split's own directory.
func (s *FrameSource) WithSubdirs(subdirs map[string]string) *FrameSource {
	return &FrameSource{fs: s.fs, root: s.root, split: s.split, subdirs: subdirs}
}

func (s *FrameSource) path(id, dir, ext string) string {
	top := SplitDir(s.split)
	if d, ok := s.subdirs[id]; ok {
		top = d
	}
	return filepath.Join(s.root, top, dir, id+ext)
}

func (s *FrameSource) read(id, resource, path string) ([]byte, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingFileError{FrameID: id, Resource: resource, Path: path, Err: err}
		}
		return nil, fmt.Errorf("frame %s: read %s: %w", id, resource, err)
	}
	return data, nil
}

// Lidar returns the frame's point cloud.
func (s *FrameSource) Lidar(id string) ([]kitti.Point, error) {
	data, err := s.read(id, "lidar", s.path(id, lidarDir, ".bin"))
	if err != nil {
		return nil, err
	}
	pts, err := kitti.DecodePoints(data)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", id, err)
	}
	return pts, nil
}

// ImageShape returns the frame image's height and width.
func (s *FrameSource) ImageShape(id string) (geometry.ImageShape, error) {
	path := s.path(id, imageDir, ".jpg")
	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return geometry.ImageShape{}, &MissingFileError{FrameID: id, Resource: "image", Path: path, Err: err}
		}
		return geometry.ImageShape{}, fmt.Errorf("frame %s: open image: %w", id, err)
	}
	defer f.Close()

	shape, err := kitti.ReadImageShape(f)
	if err != nil {
		return geometry.ImageShape{}, fmt.Errorf("frame %s: %w", id, err)
	}
	return shape, nil
}

// Labels returns the frame's raw label objects.
func (s *FrameSource) Labels(id string) ([]kitti.Object3D, error) {
	data, err := s.read(id, "label", s.path(id, labelDir, ".txt"))
	if err != nil {
		return nil, err
	}
	objs, err := kitti.ParseLabels(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", id, err)
	}
	return objs, nil
}

// Calibration returns the frame's calibration.
func (s *FrameSource) Calibration(id string) (*geometry.Calibration, error) {
	data, err := s.read(id, "calib", s.path(id, calibDir, ".txt"))
	if err != nil {
		return nil, err
	}
	cal, err := kitti.ParseCalibration(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", id, err)
	}
	return cal, nil
}

// RoadPlane returns the frame's ground plane, or nil when the frame has none.
func (s *FrameSource) RoadPlane(id string) (*[4]float64, error) {
	path := s.path(id, planeDir, ".txt")
	if !s.fs.Exists(path) {
		return nil, nil
	}
	data, err := s.read(id, "plane", path)
	if err != nil {
		return nil, err
	}
	plane, err := kitti.ParseRoadPlane(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", id, err)
	}
	return &plane, nil
}

// SampleIDs returns the ids listed in ImageSets/<split>.txt, or nil when
// the split has no image set.
func (s *FrameSource) SampleIDs() ([]string, error) {
	path := filepath.Join(s.root, imageSetDir, s.split+".txt")
	if !s.fs.Exists(path) {
		return nil, nil
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image set %s: %w", path, err)
	}

	ids := make([]string, 0)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read image set %s: %w", path, err)
	}
	return ids, nil
}
