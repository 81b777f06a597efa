package coda

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coda-infos/internal/fsutil"
	"github.com/banshee-data/coda-infos/internal/kitti"
	"github.com/banshee-data/coda-infos/internal/testutil"
)

func buildTrainInfos(t *testing.T, fsys fsutil.FileSystem, ids ...string) []InfoRecord {
	t.Helper()
	infos, err := NewInfoBuilder(NewFrameSource(fsys, testRoot, "train")).BuildInfos(context.Background(), ids, fullInfoOptions)
	require.NoError(t, err)
	return infos
}

func readBlob(t *testing.T, fsys fsutil.FileSystem, rel string) []kitti.Point {
	t.Helper()
	data, err := fsys.ReadFile(filepath.Join(testRoot, rel))
	require.NoError(t, err)
	pts, err := kitti.DecodePoints(data)
	require.NoError(t, err)
	return pts
}

func TestGTDatabase_RecentresCroppedPoints(t *testing.T) {
	f := testutil.Frame{
		ID:      "000001",
		Objects: []kitti.Object3D{testutil.CarAt(10, 5, 2)},
		Points: []kitti.Point{
			{X: 11, Y: 5, Z: 2, Intensity: 0.25},
			{X: 30, Y: 5, Z: 2, Intensity: 0.5},
		},
	}
	fsys := newFixture(t, "train", f)
	infos := buildTrainInfos(t, fsys, "000001")

	index, err := NewGTDatabaseBuilder(NewFrameSource(fsys, testRoot, "train"), fsys).
		Build(context.Background(), infos, GTDatabaseOptions{Split: "train"})
	require.NoError(t, err)

	require.Len(t, index["Car"], 1)
	e := index["Car"][0]
	assert.Equal(t, "gt_database/000001_Car_0.bin", e.Path)
	assert.Equal(t, "000001", e.ImageIdx)
	assert.Equal(t, 0, e.GTIdx)
	assert.Equal(t, 1, e.NumPoints)
	assert.InDelta(t, 10, e.Box3DLidar[0], 1e-9)
	assert.InDelta(t, 5, e.Box3DLidar[1], 1e-9)
	assert.InDelta(t, 2, e.Box3DLidar[2], 1e-9)

	pts := readBlob(t, fsys, e.Path)
	require.Len(t, pts, 1)
	assert.InDelta(t, 1, pts[0].X, 1e-6)
	assert.InDelta(t, 0, pts[0].Y, 1e-6)
	assert.InDelta(t, 0, pts[0].Z, 1e-6)
	assert.Equal(t, float32(0.25), pts[0].Intensity)
}

func TestGTDatabase_IgnoresFOVAndSkipsDontCare(t *testing.T) {
	f := testutil.Frame{
		ID:      "4",
		Objects: []kitti.Object3D{testutil.DontCare(), testutil.CarAt(2, 1.5, 0)},
		Points:  allFixturePoints(),
	}
	fsys := newFixture(t, "train", f)
	infos := buildTrainInfos(t, fsys, "4")
	require.Equal(t, []PointCount{0, PointsNotComputed}, infos[0].Annos.NumPoints)

	index, err := NewGTDatabaseBuilder(NewFrameSource(fsys, testRoot, "train"), fsys).
		Build(context.Background(), infos, GTDatabaseOptions{})
	require.NoError(t, err)

	assert.NotContains(t, index, IgnoreClass)
	require.Len(t, index["Car"], 1)
	e := index["Car"][0]
	assert.Equal(t, "gt_database/4_Car_0.bin", e.Path)
	assert.Equal(t, infos[0].Annos.Difficulty[1], e.Difficulty)
	assert.Equal(t, infos[0].Annos.BBox[1], e.BBox)
	assert.Equal(t, 1, e.NumPoints, "cropping uses every point, not only those in view")
}

func TestGTDatabase_DiscoveryOrder(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("1"), standardFrame("2"), standardFrame("3"))
	infos := buildTrainInfos(t, fsys, "2", "3", "1")

	index, err := NewGTDatabaseBuilder(NewFrameSource(fsys, testRoot, "train"), fsys).
		Build(context.Background(), infos, GTDatabaseOptions{Workers: 8})
	require.NoError(t, err)

	var got []string
	for _, e := range index["Car"] {
		got = append(got, filepath.Base(e.Path))
	}
	assert.Equal(t, []string{
		"2_Car_0.bin", "2_Car_1.bin",
		"3_Car_0.bin", "3_Car_1.bin",
		"1_Car_0.bin", "1_Car_1.bin",
	}, got)
	assert.Equal(t, 3, index["Car"][0].NumPoints)
	assert.Equal(t, 2, index["Car"][1].NumPoints)
	assert.Equal(t, []string{"Car"}, index.Classes())
}

func TestGTDatabase_UsedClassesStillWritesBlobs(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("1"))
	infos := buildTrainInfos(t, fsys, "1")

	index, err := NewGTDatabaseBuilder(NewFrameSource(fsys, testRoot, "train"), fsys).
		Build(context.Background(), infos, GTDatabaseOptions{Split: "val", UsedClasses: []string{"Pedestrian"}})
	require.NoError(t, err)

	assert.Empty(t, index)
	assert.True(t, fsys.Exists("/data/gt_database_val/1_Car_0.bin"))
	assert.True(t, fsys.Exists("/data/gt_database_val/1_Car_1.bin"))
}

func TestGTDatabase_Errors(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("1"))
	b := NewGTDatabaseBuilder(NewFrameSource(fsys, testRoot, "train"), fsys)

	_, err := b.Build(context.Background(), []InfoRecord{{PointCloud: PointCloudInfo{LidarIdx: "1"}}}, GTDatabaseOptions{})
	assert.ErrorContains(t, err, "no annotations")

	infos := buildTrainInfos(t, fsys, "1")
	infos[0].PointCloud.LidarIdx = "99"
	_, err = b.Build(context.Background(), infos, GTDatabaseOptions{})
	var missing *MissingFileError
	assert.ErrorAs(t, err, &missing)
}

func TestDatabaseNames(t *testing.T) {
	assert.Equal(t, "gt_database", DatabaseDir("train"))
	assert.Equal(t, "gt_database_val", DatabaseDir("val"))
	assert.Equal(t, "coda_dbinfos_train.json", DBInfoFileName("train"))
	assert.Equal(t, "coda_infos_trainval.json", InfoFileName("trainval"))
}
