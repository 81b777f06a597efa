package coda

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/banshee-data/coda-infos/internal/fsutil"
)

// GTCatalog records a built ground-truth database index.
type GTCatalog interface {
	InsertIndex(ctx context.Context, split string, index GTIndex) error
}

// CreateParams configures CreateInfos.
type CreateParams struct {
	FS       fsutil.FileSystem
	DataPath string
	SavePath string
	Workers  int

	// CountInsidePoints fills num_points_in_gt on labelled infos.
	CountInsidePoints bool
	// UsedClasses limits the database index; nil indexes every class.
	UsedClasses []string
	// Catalog, when set, receives the train database index.
	Catalog GTCatalog
}

// CreateSummary reports what CreateInfos produced.
type CreateSummary struct {
	Infos   map[string][]InfoRecord
	GTIndex GTIndex
}

// CreateInfos builds the train, val and test infos, writes
// coda_infos_{train,val,trainval,test}.json under SavePath and then builds
// the train ground-truth database under DataPath. Each file is written
// only after its batch has fully succeeded.
func CreateInfos(ctx context.Context, p CreateParams) (*CreateSummary, error) {
	src := NewFrameSource(p.FS, p.DataPath, "train")
	opts := InfoOptions{Workers: p.Workers, HasLabel: true, CountInsidePoints: p.CountInsidePoints}
	sum := &CreateSummary{Infos: make(map[string][]InfoRecord)}

	diagf("---------------Start to generate data infos---------------")
	for _, split := range []string{"train", "val"} {
		infos, err := buildSplit(ctx, src.WithSplit(split), opts)
		if err != nil {
			return nil, err
		}
		if err := saveSplit(p, split, infos); err != nil {
			return nil, err
		}
		sum.Infos[split] = infos
	}

	trainval := make([]InfoRecord, 0, len(sum.Infos["train"])+len(sum.Infos["val"]))
	trainval = append(trainval, sum.Infos["train"]...)
	trainval = append(trainval, sum.Infos["val"]...)
	if err := saveSplit(p, "trainval", trainval); err != nil {
		return nil, err
	}
	sum.Infos["trainval"] = trainval

	test, err := buildSplit(ctx, src.WithSplit("test"), opts)
	if err != nil {
		return nil, err
	}
	if err := saveSplit(p, "test", test); err != nil {
		return nil, err
	}
	sum.Infos["test"] = test

	diagf("---------------Start create groundtruth database for data augmentation---------------")
	builder := NewGTDatabaseBuilder(src, p.FS)
	index, err := builder.Build(ctx, sum.Infos["train"], GTDatabaseOptions{
		Split:       "train",
		UsedClasses: p.UsedClasses,
		Workers:     p.Workers,
	})
	if err != nil {
		return nil, err
	}
	dbPath := filepath.Join(p.DataPath, DBInfoFileName("train"))
	if err := SaveGTIndex(p.FS, dbPath, index); err != nil {
		return nil, err
	}
	sum.GTIndex = index

	if p.Catalog != nil {
		if err := p.Catalog.InsertIndex(ctx, "train", index); err != nil {
			return nil, fmt.Errorf("catalog gt database: %w", err)
		}
	}
	diagf("---------------Data preparation Done---------------")
	return sum, nil
}

func buildSplit(ctx context.Context, src *FrameSource, opts InfoOptions) ([]InfoRecord, error) {
	ids, err := src.SampleIDs()
	if err != nil {
		return nil, err
	}
	if ids == nil {
		return nil, &MissingFileError{
			FrameID:  "-",
			Resource: "image set",
			Path:     filepath.Join(src.Root(), imageSetDir, src.Split()+".txt"),
			Err:      fmt.Errorf("split %s has no image set: %w", src.Split(), fs.ErrNotExist),
		}
	}
	return NewInfoBuilder(src).BuildInfos(ctx, ids, opts)
}

func saveSplit(p CreateParams, split string, infos []InfoRecord) error {
	path := filepath.Join(p.SavePath, InfoFileName(split))
	if err := p.FS.MkdirAll(p.SavePath, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", p.SavePath, err)
	}
	if err := SaveInfos(p.FS, path, infos); err != nil {
		return err
	}
	diagf("CODa info %s file is saved to %s", split, path)
	return nil
}
