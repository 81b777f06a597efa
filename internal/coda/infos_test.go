package coda

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coda-infos/internal/geometry"
	"github.com/banshee-data/coda-infos/internal/kitti"
	"github.com/banshee-data/coda-infos/internal/testutil"
)

var fullInfoOptions = InfoOptions{Workers: 4, HasLabel: true, CountInsidePoints: true}

func TestBuildInfos_PreservesInputOrder(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("1"), emptyFrame("2"), standardFrame("3"))
	b := NewInfoBuilder(NewFrameSource(fsys, testRoot, "train"))

	infos, err := b.BuildInfos(context.Background(), []string{"3", "1", "2"}, fullInfoOptions)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	got := []string{infos[0].FrameID(), infos[1].FrameID(), infos[2].FrameID()}
	assert.Equal(t, []string{"3", "1", "2"}, got)
	assert.Equal(t, "3", infos[0].Image.ImageIdx)
	assert.Equal(t, 0, infos[2].Annos.Len())

	for _, workers := range []int{1, 2, 8} {
		again, err := b.BuildInfos(context.Background(), []string{"3", "1", "2"}, InfoOptions{Workers: workers, HasLabel: true, CountInsidePoints: true})
		require.NoError(t, err)
		if diff := cmp.Diff(infos, again); diff != "" {
			t.Errorf("workers=%d: infos differ (-want +got):\n%s", workers, diff)
		}
	}
}

func TestBuildInfo_Annotations(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("7"))
	info, err := NewInfoBuilder(NewFrameSource(fsys, testRoot, "train")).BuildInfo("7", fullInfoOptions)
	require.NoError(t, err)

	assert.Equal(t, PointCloudInfo{LidarIdx: "7", NumFeatures: 4}, info.PointCloud)
	assert.Equal(t, geometry.ImageShape{Height: testutil.ImageHeight, Width: testutil.ImageWidth}, info.Image.ImageShape)
	assert.Equal(t, [4]float64{0, 0, 0, 1}, info.Calib.P2[3])
	assert.Equal(t, [4]float64{0, 0, 0, 1}, info.Calib.R0Rect[3])
	assert.Equal(t, [4]float64{0, 0, 0, 1}, info.Calib.TrVeloToCam[3])

	a := info.Annos
	require.NotNil(t, a)
	require.NoError(t, a.Validate("7"))
	assert.Equal(t, []string{"Car", IgnoreClass, "Car"}, a.Name)
	assert.Equal(t, []int32{0, 2}, a.Index)
	assert.Equal(t, [3]float64{4, 2, 2}, a.Dimensions[0], "l, h, w")
	assert.Equal(t, []int32{int32(kitti.LevelEasy), int32(kitti.LevelUnknown), int32(kitti.LevelEasy)}, a.Difficulty)

	require.Len(t, a.GTBoxes, 2)
	want := [][7]float64{{10, 0, 0, 4, 2, 2, 0}, {20, 2, 0, 4, 2, 2, 0}}
	for k := range want {
		for j := range want[k] {
			assert.InDelta(t, want[k][j], a.GTBoxes[k][j], 1e-9, "box %d field %d", k, j)
		}
	}

	assert.Equal(t, []PointCount{3, 2, PointsNotComputed}, a.NumPoints)
}

func TestBuildInfo_CountsOnlyPointsInView(t *testing.T) {
	f := testutil.Frame{
		ID:      "8",
		Objects: []kitti.Object3D{testutil.CarAt(2, 1.5, 0)},
		Points:  allFixturePoints(),
	}
	fsys := newFixture(t, "train", f)
	info, err := NewInfoBuilder(NewFrameSource(fsys, testRoot, "train")).BuildInfo("8", fullInfoOptions)
	require.NoError(t, err)
	assert.Equal(t, []PointCount{0}, info.Annos.NumPoints)
}

func TestBuildInfo_EmptyFrame(t *testing.T) {
	fsys := newFixture(t, "train", emptyFrame("0"))
	info, err := NewInfoBuilder(NewFrameSource(fsys, testRoot, "train")).BuildInfo("0", fullInfoOptions)
	require.NoError(t, err)

	a := info.Annos
	require.NotNil(t, a)
	require.NoError(t, a.Validate("0"))
	assert.NotNil(t, a.Name)
	assert.NotNil(t, a.BBox)
	assert.NotNil(t, a.Dimensions)
	assert.NotNil(t, a.Location)
	assert.NotNil(t, a.Difficulty)
	assert.NotNil(t, a.Index)
	assert.NotNil(t, a.GTBoxes)
	assert.NotNil(t, a.NumPoints)
	assert.Empty(t, a.NumPoints)
}

func TestBuildInfo_Options(t *testing.T) {
	fsys := newFixture(t, "train", testutil.Frame{ID: "1", Objects: []kitti.Object3D{testutil.CarAt(10, 0, 0)}, SkipLidar: true})
	b := NewInfoBuilder(NewFrameSource(fsys, testRoot, "train"))

	info, err := b.BuildInfo("1", InfoOptions{})
	require.NoError(t, err)
	assert.Nil(t, info.Annos)

	info, err = b.BuildInfo("1", InfoOptions{HasLabel: true})
	require.NoError(t, err)
	require.NotNil(t, info.Annos)
	assert.Nil(t, info.Annos.NumPoints)

	_, err = b.BuildInfo("1", fullInfoOptions)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestBuildInfos_FailsFast(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("1"), testutil.Frame{ID: "2", SkipCalib: true}, standardFrame("3"))
	b := NewInfoBuilder(NewFrameSource(fsys, testRoot, "train"))

	infos, err := b.BuildInfos(context.Background(), []string{"1", "2", "3"}, fullInfoOptions)
	assert.Nil(t, infos)

	var missing *MissingFileError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "2", missing.FrameID)
	assert.Equal(t, "calib", missing.Resource)
}

func TestBuildInfo_YawConvention(t *testing.T) {
	car := testutil.CarAt(10, 0, 0)
	car.RY = 0
	fsys := newFixture(t, "train", testutil.Frame{ID: "1", Objects: []kitti.Object3D{car}})
	info, err := NewInfoBuilder(NewFrameSource(fsys, testRoot, "train")).BuildInfo("1", InfoOptions{HasLabel: true})
	require.NoError(t, err)
	assert.InDelta(t, -math.Pi/2, info.Annos.GTBoxes[0][6], 1e-12)
}
