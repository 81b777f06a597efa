package geometry

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func originProjection(t *testing.T) *Calibration {
	t.Helper()
	p2 := mat.NewDense(3, 4, []float64{
		100, 0, 0, 0,
		0, 100, 0, 0,
		0, 0, 1, 0,
	})
	eye := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	v2c := mat.NewDense(3, 4, []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0})
	cal, err := NewCalibration(p2, eye, v2c)
	require.NoError(t, err)
	return cal
}

func TestFOVMask(t *testing.T) {
	cal := originProjection(t)
	shape := ImageShape{Height: 100, Width: 200}

	pts := []r3.Vector{
		{X: 0, Y: 0, Z: 5},     // pixel (0,0), in front: included
		{X: 0, Y: 0, Z: -5},    // behind the camera: excluded
		{X: 9.9, Y: 4.9, Z: 5}, // pixel (198,98)
		{X: 10, Y: 0, Z: 5},    // pixel (200,0): width is exclusive
		{X: -0.1, Y: 0, Z: 5},  // pixel (-2,0)
	}

	mask := FOVMask(pts, shape, cal, InfoFOVMargin)
	assert.Equal(t, []bool{true, false, true, false, false}, mask)

	wide := FOVMask(pts, shape, cal, PredictionFOVMargin)
	assert.Equal(t, []bool{true, false, true, true, true}, wide)
}

func TestFOVMask_Empty(t *testing.T) {
	cal := originProjection(t)
	mask := FOVMask(nil, ImageShape{Height: 10, Width: 10}, cal, 0)
	assert.NotNil(t, mask)
	assert.Empty(t, mask)
}
