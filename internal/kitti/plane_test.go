package kitti

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoadPlane(t *testing.T) {
	in := "# Plane\nWidth 4\nHeight 1\n0.0 2.0 0.0 -3.4\n"
	plane, err := ParseRoadPlane(strings.NewReader(in))
	require.NoError(t, err)

	// b > 0 is flipped, then normalised by |(a,b,c)| = 2.
	assert.InDelta(t, 0, plane[0], 1e-12)
	assert.InDelta(t, -1, plane[1], 1e-12)
	assert.InDelta(t, 0, plane[2], 1e-12)
	assert.InDelta(t, 1.7, plane[3], 1e-12)
}

func TestParseRoadPlane_AlreadyUp(t *testing.T) {
	in := "a\nb\nc\n0.03 -0.99 0.01 1.65\n"
	plane, err := ParseRoadPlane(strings.NewReader(in))
	require.NoError(t, err)

	assert.Less(t, plane[1], 0.0)
	n := math.Sqrt(plane[0]*plane[0] + plane[1]*plane[1] + plane[2]*plane[2])
	assert.InDelta(t, 1, n, 1e-12)
	assert.Greater(t, plane[3], 0.0)
}

func TestParseRoadPlane_Errors(t *testing.T) {
	_, err := ParseRoadPlane(strings.NewReader("a\nb\n"))
	assert.Error(t, err)

	_, err = ParseRoadPlane(strings.NewReader("a\nb\nc\n1 2 3\n"))
	assert.Error(t, err)
}
