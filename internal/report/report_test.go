package report

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlotClassDistribution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dist.png")

	err := PlotClassDistribution(path, "train",
		Series{Label: "before", Counts: map[string]int{"Car": 120, "Pedestrian": 30}},
		Series{Label: "after", Counts: map[string]int{"Car": 118, "Pedestrian": 95, "Bike": 4}},
	)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Positive(t, cfg.Width)
	assert.Positive(t, cfg.Height)
}

func TestPlotClassDistribution_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, PlotClassDistribution(filepath.Join(dir, "a.png"), "empty"))
	assert.Error(t, PlotClassDistribution(filepath.Join(dir, "b.png"), "empty", Series{Label: "x"}))
	assert.Error(t, PlotClassDistribution(filepath.Join(dir, "c.unknown"), "t",
		Series{Counts: map[string]int{"Car": 1}}))
}

func TestClassNames(t *testing.T) {
	got := classNames([]Series{
		{Counts: map[string]int{"Pedestrian": 1, "Car": 2}},
		{Counts: map[string]int{"Bike": 3, "Car": 4}},
	})
	assert.Equal(t, []string{"Bike", "Car", "Pedestrian"}, got)
}
