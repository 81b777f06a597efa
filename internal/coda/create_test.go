package coda

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coda-infos/internal/fsutil"
	"github.com/banshee-data/coda-infos/internal/testutil"
)

type recordingCatalog struct {
	split string
	index GTIndex
}

func (c *recordingCatalog) InsertIndex(_ context.Context, split string, index GTIndex) error {
	c.split, c.index = split, index
	return nil
}

func datasetTree(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	fsys := newFixture(t, "train", standardFrame("1"), emptyFrame("2"))
	addFrames(t, fsys, "val", standardFrame("3"))
	addFrames(t, fsys, "test", standardFrame("4"))
	return fsys
}

func TestCreateInfos(t *testing.T) {
	fsys := datasetTree(t)
	catalog := &recordingCatalog{}

	sum, err := CreateInfos(context.Background(), CreateParams{
		FS:       fsys,
		DataPath: testRoot,
		SavePath: "/data/infos",
		Workers:  2,
		Catalog:  catalog,

		CountInsidePoints: true,
	})
	require.NoError(t, err)
	require.NotNil(t, sum.Infos["train"][0].Annos)
	assert.Len(t, sum.Infos["train"][0].Annos.NumPoints, 3)

	for split, want := range map[string][]string{
		"train":    {"1", "2"},
		"val":      {"3"},
		"trainval": {"1", "2", "3"},
		"test":     {"4"},
	} {
		infos, err := LoadInfos(fsys, "/data/infos/"+InfoFileName(split))
		require.NoError(t, err, split)
		assert.Equal(t, want, frameIDs(infos), split)
		assert.Equal(t, want, frameIDs(sum.Infos[split]), split)
	}

	index, err := LoadGTIndex(fsys, "/data/coda_dbinfos_train.json")
	require.NoError(t, err)
	require.Len(t, index["Car"], 2)
	assert.True(t, fsys.Exists("/data/gt_database/1_Car_1.bin"))
	assert.False(t, fsys.Exists("/data/gt_database/3_Car_0.bin"), "only the train split is cropped")

	assert.Equal(t, "train", catalog.split)
	assert.Equal(t, index, catalog.index)
	assert.Equal(t, index, sum.GTIndex)
}

func TestCreateInfos_WithoutPointCounts(t *testing.T) {
	fsys := datasetTree(t)
	sum, err := CreateInfos(context.Background(), CreateParams{FS: fsys, DataPath: testRoot, SavePath: testRoot})
	require.NoError(t, err)

	for _, split := range []string{"train", "val", "test"} {
		infos, err := LoadInfos(fsys, "/data/"+InfoFileName(split))
		require.NoError(t, err, split)
		for _, info := range append(infos, sum.Infos[split]...) {
			require.NotNil(t, info.Annos, split)
			assert.Nil(t, info.Annos.NumPoints, "%s frame %s", split, info.PointCloud.LidarIdx)
		}
	}
	index, err := LoadGTIndex(fsys, "/data/coda_dbinfos_train.json")
	require.NoError(t, err)
	assert.Len(t, index["Car"], 2, "the database still crops every box")
}

func TestCreateInfos_FailedSplitWritesNothing(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("1"))
	addFrames(t, fsys, "val", testutil.Frame{ID: "3", SkipLabel: true})
	addFrames(t, fsys, "test", standardFrame("4"))

	_, err := CreateInfos(context.Background(), CreateParams{FS: fsys, DataPath: testRoot, SavePath: testRoot})
	var missing *MissingFileError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "3", missing.FrameID)

	assert.True(t, fsys.Exists("/data/coda_infos_train.json"))
	assert.False(t, fsys.Exists("/data/coda_infos_val.json"))
	assert.False(t, fsys.Exists("/data/coda_infos_trainval.json"))
	assert.False(t, fsys.Exists("/data/coda_dbinfos_train.json"))
}

func TestCreateInfos_MissingImageSet(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("1"))
	_, err := CreateInfos(context.Background(), CreateParams{FS: fsys, DataPath: testRoot, SavePath: testRoot})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "ImageSets/val.txt")
}
