package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/coda-infos/internal/coda"
)

// DatasetConfig is the on-disk dataset configuration. Every field is
// optional; the Get* accessors supply the default for anything unset.
type DatasetConfig struct {
	DataSplit *SplitConfig `json:"data_split,omitempty"`
	// InfoPath lists info files per split key: "train", "test" or "val".
	InfoPath map[string][]string `json:"info_path,omitempty"`

	FOVPointsOnly *bool       `json:"fov_points_only,omitempty"`
	ShiftCoor     *[3]float64 `json:"shift_coor,omitempty"`
	Test          *TestConfig `json:"test,omitempty"`

	UsePseudoLabel     *bool `json:"use_pseudo_label,omitempty"`
	BalancedResampling *bool `json:"balanced_resampling,omitempty"`
	RemoveOriginGTs    *bool `json:"remove_origin_gts,omitempty"`
	UseSortedImageset  *bool `json:"use_sorted_imageset,omitempty"`

	Workers        *int  `json:"workers,omitempty"`
	CountInsidePts *bool `json:"count_inside_pts,omitempty"`

	ClassNames []string `json:"class_names,omitempty"`

	// GTDatabaseClasses limits the ground-truth database index; unset
	// indexes every class found in the train split.
	GTDatabaseClasses []string `json:"gt_database_classes,omitempty"`

	MergeAllItersToOneEpoch *bool   `json:"merge_all_iters_to_one_epoch,omitempty"`
	TotalEpochs             *int    `json:"total_epochs,omitempty"`
	Seed                    *uint64 `json:"seed,omitempty"`
}

// SplitConfig names the split read in each mode.
type SplitConfig struct {
	Train *string `json:"train,omitempty"`
	Test  *string `json:"test,omitempty"`
}

// TestConfig holds evaluation-time options.
type TestConfig struct {
	BoxFilter *BoxFilterConfig `json:"box_filter,omitempty"`
}

// BoxFilterConfig controls which predicted boxes are kept.
type BoxFilterConfig struct {
	FOVFilter *bool    `json:"fov_filter,omitempty"`
	FOVMargin *float64 `json:"fov_margin,omitempty"`
}

// DefaultClassNames are the classes used when class_names is unset.
var DefaultClassNames = []string{"Car", "Pedestrian", "Cyclist"}

var infoPathKeys = map[string]bool{"train": true, "test": true, "val": true}

func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// LoadDatasetConfig loads a DatasetConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadDatasetConfig(path string) (*DatasetConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &DatasetConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *DatasetConfig) Validate() error {
	if c.DataSplit != nil {
		if c.DataSplit.Train != nil && *c.DataSplit.Train == "" {
			return fmt.Errorf("data_split.train must not be empty")
		}
		if c.DataSplit.Test != nil && *c.DataSplit.Test == "" {
			return fmt.Errorf("data_split.test must not be empty")
		}
	}
	for key := range c.InfoPath {
		if !infoPathKeys[key] {
			return fmt.Errorf("info_path key %q is not one of train, test, val", key)
		}
	}
	if m := c.Test; m != nil && m.BoxFilter != nil && m.BoxFilter.FOVMargin != nil && *m.BoxFilter.FOVMargin < 0 {
		return fmt.Errorf("test.box_filter.fov_margin must be non-negative, got %f", *m.BoxFilter.FOVMargin)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.TotalEpochs != nil && *c.TotalEpochs < 1 {
		return fmt.Errorf("total_epochs must be at least 1, got %d", *c.TotalEpochs)
	}
	if err := validateNames("class_names", c.ClassNames); err != nil {
		return err
	}
	return validateNames("gt_database_classes", c.GTDatabaseClasses)
}

func validateNames(field string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("%s must not contain an empty name", field)
		}
		if seen[name] {
			return fmt.Errorf("%s lists %q twice", field, name)
		}
		seen[name] = true
	}
	return nil
}

// GetDataSplit returns the split read in mode.
func (c *DatasetConfig) GetDataSplit(mode coda.Mode) string {
	def := coda.DefaultOptions().DataSplit[mode]
	if c.DataSplit == nil {
		return def
	}
	var v *string
	switch mode {
	case coda.ModeTrain:
		v = c.DataSplit.Train
	case coda.ModeTest:
		v = c.DataSplit.Test
	}
	if v == nil {
		return def
	}
	return *v
}

// GetInfoPath returns the info files for a split key.
func (c *DatasetConfig) GetInfoPath(key string) []string {
	if paths, ok := c.InfoPath[key]; ok {
		return paths
	}
	return coda.DefaultOptions().InfoPath[key]
}

// GetFOVPointsOnly returns the fov_points_only value or the default.
func (c *DatasetConfig) GetFOVPointsOnly() bool {
	if c.FOVPointsOnly == nil {
		return true
	}
	return *c.FOVPointsOnly
}

// GetShiftCoor returns the coordinate shift, or nil when none is set.
func (c *DatasetConfig) GetShiftCoor() *r3.Vector {
	if c.ShiftCoor == nil {
		return nil
	}
	s := *c.ShiftCoor
	return &r3.Vector{X: s[0], Y: s[1], Z: s[2]}
}

func (c *DatasetConfig) boxFilter() *BoxFilterConfig {
	if c.Test == nil || c.Test.BoxFilter == nil {
		return &BoxFilterConfig{}
	}
	return c.Test.BoxFilter
}

// GetFOVFilter returns test.box_filter.fov_filter or the default.
func (c *DatasetConfig) GetFOVFilter() bool {
	if v := c.boxFilter().FOVFilter; v != nil {
		return *v
	}
	return true
}

// GetFOVMargin returns test.box_filter.fov_margin or the default.
func (c *DatasetConfig) GetFOVMargin() float64 {
	if v := c.boxFilter().FOVMargin; v != nil {
		return *v
	}
	return 5
}

func getBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// GetWorkers returns the workers value or the default.
func (c *DatasetConfig) GetWorkers() int {
	if c.Workers == nil {
		return coda.DefaultWorkers
	}
	return *c.Workers
}

// GetTotalEpochs returns the total_epochs value or the default.
func (c *DatasetConfig) GetTotalEpochs() int {
	if c.TotalEpochs == nil {
		return 1
	}
	return *c.TotalEpochs
}

// GetClassNames returns class_names or DefaultClassNames.
func (c *DatasetConfig) GetClassNames() []string {
	if len(c.ClassNames) == 0 {
		return append([]string(nil), DefaultClassNames...)
	}
	return append([]string(nil), c.ClassNames...)
}

// GetGTDatabaseClasses returns gt_database_classes, or nil when every
// class goes into the database.
func (c *DatasetConfig) GetGTDatabaseClasses() []string {
	if len(c.GTDatabaseClasses) == 0 {
		return nil
	}
	return append([]string(nil), c.GTDatabaseClasses...)
}

// ResolvedConfig is a DatasetConfig with every option fixed.
type ResolvedConfig struct {
	Options    coda.Options
	ClassNames []string
	// GTDatabaseClasses is nil when the database indexes every class.
	GTDatabaseClasses []string
}

// Resolve fixes every option to its configured or default value.
func (c *DatasetConfig) Resolve() ResolvedConfig {
	opts := coda.Options{
		DataSplit: map[coda.Mode]string{
			coda.ModeTrain: c.GetDataSplit(coda.ModeTrain),
			coda.ModeTest:  c.GetDataSplit(coda.ModeTest),
		},
		InfoPath:                make(map[string][]string, len(infoPathKeys)),
		FOVPointsOnly:           c.GetFOVPointsOnly(),
		ShiftCoor:               c.GetShiftCoor(),
		FOVFilterPredictions:    c.GetFOVFilter(),
		PredictionFOVMargin:     c.GetFOVMargin(),
		UsePseudoLabel:          getBool(c.UsePseudoLabel, false),
		BalancedResampling:      getBool(c.BalancedResampling, false),
		RemoveOriginGTs:         getBool(c.RemoveOriginGTs, false),
		UseSortedImageset:       getBool(c.UseSortedImageset, false),
		Workers:                 c.GetWorkers(),
		CountInsidePoints:       getBool(c.CountInsidePts, true),
		MergeAllItersToOneEpoch: getBool(c.MergeAllItersToOneEpoch, false),
		TotalEpochs:             c.GetTotalEpochs(),
	}
	for key := range infoPathKeys {
		opts.InfoPath[key] = c.GetInfoPath(key)
	}
	if c.Seed != nil {
		seed := *c.Seed
		opts.Seed = &seed
	}
	return ResolvedConfig{
		Options:           opts,
		ClassNames:        c.GetClassNames(),
		GTDatabaseClasses: c.GetGTDatabaseClasses(),
	}
}
