package coda

import (
	"testing"

	"github.com/banshee-data/coda-infos/internal/fsutil"
	"github.com/banshee-data/coda-infos/internal/kitti"
	"github.com/banshee-data/coda-infos/internal/testutil"
)

const testRoot = "/data"

// Points used by the fixture frames. Three fall inside a car at (10, 0, 0),
// two inside a car at (20, 2, 0), one lies in view but in no box, one lies
// behind the camera and one sits inside a car at (2, 1.5, 0) but outside
// the image.
var (
	pointsCarNear = []kitti.Point{
		{X: 10, Y: 0, Z: 0, Intensity: 0.1},
		{X: 11, Y: 0.5, Z: 0.5, Intensity: 0.2},
		{X: 9, Y: -0.5, Z: -0.5, Intensity: 0.3},
	}
	pointsCarFar = []kitti.Point{
		{X: 20, Y: 2, Z: 0, Intensity: 0.4},
		{X: 21, Y: 2.5, Z: 0, Intensity: 0.5},
	}
	pointInViewOnly = kitti.Point{X: 30, Y: 0, Z: 0, Intensity: 0.6}
	pointBehind     = kitti.Point{X: -5, Y: 0, Z: 0, Intensity: 0.7}
	pointOutOfView  = kitti.Point{X: 1, Y: 2, Z: 0, Intensity: 0.8}
)

func allFixturePoints() []kitti.Point {
	pts := append([]kitti.Point{}, pointsCarNear...)
	pts = append(pts, pointsCarFar...)
	return append(pts, pointInViewOnly, pointBehind, pointOutOfView)
}

// standardFrame has two cars with a DontCare label between them.
func standardFrame(id string) testutil.Frame {
	return testutil.Frame{
		ID:      id,
		Objects: []kitti.Object3D{testutil.CarAt(10, 0, 0), testutil.DontCare(), testutil.CarAt(20, 2, 0)},
		Points:  allFixturePoints(),
	}
}

func emptyFrame(id string) testutil.Frame {
	return testutil.Frame{ID: id, Points: allFixturePoints()}
}

func newFixture(t *testing.T, split string, frames ...testutil.Frame) *fsutil.MemoryFileSystem {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	addFrames(t, fsys, split, frames...)
	return fsys
}

func addFrames(t *testing.T, fsys *fsutil.MemoryFileSystem, split string, frames ...testutil.Frame) {
	t.Helper()
	ids := make([]string, len(frames))
	for i, f := range frames {
		testutil.WriteFrame(t, fsys, testRoot, split, f)
		ids[i] = f.ID
	}
	testutil.WriteImageSet(t, fsys, testRoot, split, ids)
}
