// Package testutil builds synthetic dataset frames for tests.
//
// Frames are written in the on-disk layout the dataset readers expect
// (velodyne, image_0, label_0, calib, planes) into any fsutil.FileSystem,
// usually an fsutil.MemoryFileSystem.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/coda-infos/internal/fsutil"
	"github.com/banshee-data/coda-infos/internal/kitti"
)

// Image size used by every synthetic frame.
const (
	ImageWidth  = 64
	ImageHeight = 48
)

// CalibText maps lidar X forward to camera Z, lidar Y left to camera -X and
// lidar Z up to camera -Y, with a 100px focal length centred on the image.
const CalibText = `P0: 100 0 32 0 0 100 24 0 0 0 1 0
R0_rect: 1 0 0 0 1 0 0 0 1
Tr_velo_to_cam: 0 -1 0 0 0 0 -1 0 1 0 0 0
`

// Frame describes one synthetic capture. Skip flags leave the matching file
// out so tests can exercise missing-file handling.
type Frame struct {
	ID      string
	Objects []kitti.Object3D
	Points  []kitti.Point
	Plane   string

	SkipLabel bool
	SkipImage bool
	SkipCalib bool
	SkipLidar bool
}

// SplitDir returns the top-level directory for split.
func SplitDir(split string) string {
	if split == "test" {
		return "testing"
	}
	return "training"
}

// WriteFrame writes every file of f under root for split.
func WriteFrame(t *testing.T, fsys fsutil.FileSystem, root, split string, f Frame) {
	t.Helper()
	dir := filepath.Join(root, SplitDir(split))

	if !f.SkipLidar {
		write(t, fsys, filepath.Join(dir, "velodyne", f.ID+".bin"), kitti.EncodePoints(f.Points))
	}
	if !f.SkipImage {
		write(t, fsys, filepath.Join(dir, "image_0", f.ID+".jpg"), JPEG(t, ImageWidth, ImageHeight))
	}
	if !f.SkipCalib {
		write(t, fsys, filepath.Join(dir, "calib", f.ID+".txt"), []byte(CalibText))
	}
	if !f.SkipLabel {
		var b strings.Builder
		for _, o := range f.Objects {
			b.WriteString(LabelLine(o))
			b.WriteByte('\n')
		}
		write(t, fsys, filepath.Join(dir, "label_0", f.ID+".txt"), []byte(b.String()))
	}
	if f.Plane != "" {
		write(t, fsys, filepath.Join(dir, "planes", f.ID+".txt"), []byte(f.Plane))
	}
}

// WriteImageSet writes ImageSets/<split>.txt listing ids.
func WriteImageSet(t *testing.T, fsys fsutil.FileSystem, root, split string, ids []string) {
	t.Helper()
	write(t, fsys, filepath.Join(root, "ImageSets", split+".txt"), []byte(strings.Join(ids, "\n")+"\n"))
}

// LabelLine renders o as a 15-field label line, or 16 fields when o has a
// non-negative score.
func LabelLine(o kitti.Object3D) string {
	line := fmt.Sprintf("%s %g %g %g %g %g %g %g %g %g %g %g %g %g %g",
		o.Type, o.Truncation, o.Occlusion, o.Alpha,
		o.Box2D[0], o.Box2D[1], o.Box2D[2], o.Box2D[3],
		o.H, o.W, o.L, o.Loc[0], o.Loc[1], o.Loc[2], o.RY)
	if o.Score >= 0 {
		line += fmt.Sprintf(" %g", o.Score)
	}
	return line
}

// CarAt returns a 4m x 2m x 2m box whose lidar-frame centre is (x, y, z)
// with zero lidar yaw, expressed as a label in the CalibText camera frame.
func CarAt(x, y, z float64) kitti.Object3D {
	const l, w, h = 4.0, 2.0, 2.0
	return kitti.Object3D{
		Type:  "Car",
		Box2D: [4]float64{10, 10, 40, 60},
		H:     h, W: w, L: l,
		// Bottom centre: lidar (x, y, z-h/2) in camera axes.
		Loc:   [3]float64{-y, -(z - h/2), x},
		RY:    -math.Pi / 2,
		Score: -1,
	}
}

// DontCare returns an ignore-class label.
func DontCare() kitti.Object3D {
	return kitti.Object3D{
		Type:       "DontCare",
		Truncation: -1, Occlusion: -1, Alpha: -10,
		Box2D: [4]float64{1, 1, 5, 5},
		H:     -1, W: -1, L: -1,
		Loc:   [3]float64{-1000, -1000, -1000},
		RY:    -10,
		Score: -1,
	}
}

// JPEG encodes a blank w x h image.
func JPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func write(t *testing.T, fsys fsutil.FileSystem, path string, data []byte) {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := fsys.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
