package kitti

import (
	"bytes"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsRoundTrip(t *testing.T) {
	pts := []Point{
		{X: 1.5, Y: -2.25, Z: 0.125, Intensity: 0.5},
		{X: 100, Y: 0, Z: -1.75, Intensity: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePoints(&buf, pts))
	assert.Equal(t, 32, buf.Len())

	got, err := ReadPoints(&buf)
	require.NoError(t, err)
	assert.Equal(t, pts, got)
}

func TestDecodePoints_BadLength(t *testing.T) {
	_, err := DecodePoints(make([]byte, 17))
	assert.Error(t, err)
}

func TestDecodePoints_Empty(t *testing.T) {
	pts, err := DecodePoints(nil)
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestSelectAndPositions(t *testing.T) {
	pts := []Point{{X: 1}, {X: 2}, {X: 3}}
	kept := SelectPoints(pts, []bool{true, false, true})
	assert.Equal(t, []Point{{X: 1}, {X: 3}}, kept)
	assert.Equal(t, []r3.Vector{{X: 1}, {X: 3}}, Positions(kept))
}
