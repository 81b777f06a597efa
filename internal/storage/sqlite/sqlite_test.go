package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coda-infos/internal/coda"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_MigratesToLatest(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.MigrateUp())
}

func sampleIndex() coda.GTIndex {
	return coda.GTIndex{
		"Car": {
			{Name: "Car", Path: "gt_database/1_Car_0.bin", ImageIdx: "1", GTIdx: 0,
				Box3DLidar: [7]float64{10, 0, 0, 4, 2, 2, 0}, NumPoints: 3, BBox: [4]float64{10, 10, 40, 60}, Score: -1},
			{Name: "Car", Path: "gt_database/1_Car_2.bin", ImageIdx: "1", GTIdx: 2,
				Box3DLidar: [7]float64{20, 2, 0, 4, 2, 2, 0}, NumPoints: 2, Difficulty: 1, BBox: [4]float64{1, 2, 3, 4}, Score: -1},
		},
		"Pedestrian": {
			{Name: "Pedestrian", Path: "gt_database/2_Pedestrian_0.bin", ImageIdx: "2", NumPoints: 7},
		},
	}
}

func TestGTEntryStore_InsertAndList(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).GTEntries()
	idx := sampleIndex()

	require.NoError(t, store.InsertIndex(ctx, "train", idx))

	cars, err := store.ListByClass(ctx, "train", "Car")
	require.NoError(t, err)
	if diff := cmp.Diff(idx["Car"], cars); diff != "" {
		t.Errorf("Car entries mismatch (-want +got):\n%s", diff)
	}

	counts, err := store.ClassCounts(ctx, "train")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Car": 2, "Pedestrian": 1}, counts)

	none, err := store.ListByClass(ctx, "val", "Car")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGTEntryStore_InsertReplacesSplit(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).GTEntries()

	require.NoError(t, store.InsertIndex(ctx, "train", sampleIndex()))
	require.NoError(t, store.InsertIndex(ctx, "val", sampleIndex()))
	require.NoError(t, store.InsertIndex(ctx, "train", coda.GTIndex{"Car": sampleIndex()["Car"][:1]}))

	train, err := store.ClassCounts(ctx, "train")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Car": 1}, train)

	val, err := store.ClassCounts(ctx, "val")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Car": 2, "Pedestrian": 1}, val)
}

func TestGTEntryStore_InsertRejectsUnencodableBox(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).GTEntries()
	require.NoError(t, store.InsertIndex(ctx, "train", sampleIndex()))

	bad := sampleIndex()
	bad["Car"][1].Box3DLidar[6] = math.NaN()
	err := store.InsertIndex(ctx, "train", bad)
	assert.ErrorContains(t, err, "encode Car entry 1 box")

	counts, err := store.ClassCounts(ctx, "train")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Car": 2, "Pedestrian": 1}, counts, "a failed insert leaves the split untouched")
}

func TestEvaluationStore(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Evaluations()

	first := NewEvaluation("val", []string{"Car"}, 10, coda.EvalResult{
		Available: true,
		Report:    "Car AP_R40@0.70:\n",
		Metrics:   map[string]float64{"Car_image/easy_R40": 87.5},
	})
	first.CreatedAt = 100
	require.NoError(t, store.Insert(ctx, first))
	assert.NotEmpty(t, first.EvaluationID)

	second := NewEvaluation("test", []string{"Car", "Pedestrian"}, 4, coda.EvalResult{})
	second.CreatedAt = 200
	require.NoError(t, store.Insert(ctx, second))

	got, err := store.Get(ctx, first.EvaluationID)
	require.NoError(t, err)
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("evaluation mismatch (-want +got):\n%s", diff)
	}

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.EvaluationID, all[0].EvaluationID, "newest first")
	assert.False(t, all[0].Available)
	assert.Nil(t, all[0].Metrics)

	val, err := store.List(ctx, "val")
	require.NoError(t, err)
	require.Len(t, val, 1)
	assert.Equal(t, first.EvaluationID, val[0].EvaluationID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrEvaluationNotFound)
}
