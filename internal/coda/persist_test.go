package coda

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coda-infos/internal/fsutil"
)

func TestSaveLoadInfos(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("1"), emptyFrame("2"))
	infos := buildTrainInfos(t, fsys, "1", "2")
	infos = append(infos, InfoRecord{PointCloud: PointCloudInfo{LidarIdx: "3", NumFeatures: 4}})

	path := "/out/coda_infos_train.json"
	require.NoError(t, SaveInfos(fsys, path, infos))

	got, err := LoadInfos(fsys, path)
	require.NoError(t, err)
	if diff := cmp.Diff(infos, got); diff != "" {
		t.Errorf("infos differ after reload (-want +got):\n%s", diff)
	}
	assert.Nil(t, got[2].Annos)
}

func TestSaveInfos_Empty(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, SaveInfos(fsys, "/x.json", nil))

	data, err := fsys.ReadFile("/x.json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestLoadInfos_RejectsMismatchedArrays(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	bad := `[{"point_cloud":{"lidar_idx":"9","num_features":4},"image":{"image_idx":"9","image_shape":[48,64]},
"calib":{"P2":[[1,0,0,0],[0,1,0,0],[0,0,1,0],[0,0,0,1]],"R0_rect":[[1,0,0,0],[0,1,0,0],[0,0,1,0],[0,0,0,1]],"Tr_velo_to_cam":[[1,0,0,0],[0,1,0,0],[0,0,1,0],[0,0,0,1]]},
"annos":{"name":["Car"],"truncated":[],"occluded":[0],"alpha":[0],"bbox":[[0,0,1,1]],"dimensions":[[1,1,1]],"location":[[0,0,0]],"rotation_y":[0],"score":[-1],"difficulty":[0],"index":[0],"gt_boxes_lidar":[[0,0,0,1,1,1,0]],"num_points_in_gt":[0]}}]`
	require.NoError(t, fsys.WriteFile("/bad.json", []byte(bad), 0o644))

	_, err := LoadInfos(fsys, "/bad.json")
	var schema *SchemaMismatchError
	require.ErrorAs(t, err, &schema)
	assert.Equal(t, "9", schema.FrameID)
	assert.Equal(t, "truncated", schema.Field)
}

func TestLoadInfos_Missing(t *testing.T) {
	_, err := LoadInfos(fsutil.NewMemoryFileSystem(), "/nope.json")
	assert.Error(t, err)
}

func TestSaveLoadGTIndex(t *testing.T) {
	fsys := newFixture(t, "train", standardFrame("1"))
	infos := buildTrainInfos(t, fsys, "1")
	index, err := NewGTDatabaseBuilder(NewFrameSource(fsys, testRoot, "train"), fsys).
		Build(context.Background(), infos, GTDatabaseOptions{})
	require.NoError(t, err)

	require.NoError(t, SaveGTIndex(fsys, "/data/coda_dbinfos_train.json", index))
	got, err := LoadGTIndex(fsys, "/data/coda_dbinfos_train.json")
	require.NoError(t, err)
	if diff := cmp.Diff(index, got); diff != "" {
		t.Errorf("index differs after reload (-want +got):\n%s", diff)
	}
}
