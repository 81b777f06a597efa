package coda

import (
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	"github.com/banshee-data/coda-infos/internal/fsutil"
)

// InfoFileName returns the info file name for split.
func InfoFileName(split string) string {
	return fmt.Sprintf("coda_infos_%s.json", split)
}

// SaveInfos writes infos to path as a JSON array.
func SaveInfos(fsys fsutil.FileSystem, path string, infos []InfoRecord) error {
	if infos == nil {
		infos = []InfoRecord{}
	}
	return writeJSON(fsys, path, infos)
}

// LoadInfos reads a JSON info file and validates every annotation set.
func LoadInfos(fsys fsutil.FileSystem, path string) ([]InfoRecord, error) {
	var infos []InfoRecord
	if err := readJSON(fsys, path, &infos); err != nil {
		return nil, err
	}
	for i := range infos {
		if a := infos[i].Annos; a != nil {
			if err := a.Validate(infos[i].FrameID()); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	return infos, nil
}

// SaveGTIndex writes the database index to path.
func SaveGTIndex(fsys fsutil.FileSystem, path string, index GTIndex) error {
	return writeJSON(fsys, path, index)
}

// LoadGTIndex reads a database index written by SaveGTIndex.
func LoadGTIndex(fsys fsutil.FileSystem, path string) (GTIndex, error) {
	var index GTIndex
	if err := readJSON(fsys, path, &index); err != nil {
		return nil, err
	}
	return index, nil
}

func writeJSON(fsys fsutil.FileSystem, path string, v any) (err error) {
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { err = multierr.Append(err, w.Close()) }()

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func readJSON(fsys fsutil.FileSystem, path string, v any) error {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
