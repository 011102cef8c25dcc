package raster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRGBToHSV(t *testing.T) {
	// Pure red: hue 0, full saturation and value.
	h, s, v := RGBToHSV(255, 0, 0)
	require.EqualValues(t, 0, h)
	require.EqualValues(t, 255, s)
	require.EqualValues(t, 255, v)

	// Pure green: hue 120 degrees = 60 in half-degree units.
	h, s, v = RGBToHSV(0, 255, 0)
	require.EqualValues(t, 60, h)
	require.EqualValues(t, 255, s)
	require.EqualValues(t, 255, v)

	// Pure blue: hue 240 degrees = 120 half-degrees.
	h, _, _ = RGBToHSV(0, 0, 255)
	require.EqualValues(t, 120, h)

	// Gray has zero saturation.
	_, s, v = RGBToHSV(128, 128, 128)
	require.EqualValues(t, 0, s)
	require.EqualValues(t, 128, v)

	// Dark forest green lands inside the vegetation hue band.
	h, s, v = RGBToHSV(34, 85, 34)
	require.EqualValues(t, 60, h)
	require.Greater(t, int(s), 100)
	require.EqualValues(t, 85, v)
}

func TestRGBToLAB(t *testing.T) {
	// Neutral gray: a and b sit at the 128 offset.
	l, a, b := RGBToLAB(128, 128, 128)
	require.InDelta(t, 137, int(l), 3)
	require.InDelta(t, 128, int(a), 1)
	require.InDelta(t, 128, int(b), 1)

	// Green vegetation: a below neutral (green axis), b above (yellow axis).
	_, a, b = RGBToLAB(34, 85, 34)
	require.Less(t, int(a), 125)
	require.Greater(t, int(b), 128)

	// Black and white stay neutral in a/b.
	l, a, b = RGBToLAB(0, 0, 0)
	require.EqualValues(t, 0, l)
	require.InDelta(t, 128, int(a), 1)
	l, a, b = RGBToLAB(255, 255, 255)
	require.EqualValues(t, 255, l)
	require.InDelta(t, 128, int(a), 1)
	require.InDelta(t, 128, int(b), 1)
}

func TestVegetationFormulas(t *testing.T) {
	require.EqualValues(t, 102, ExcessGreen(34, 85, 34))
	require.EqualValues(t, 0, ExcessGreen(100, 100, 100))
	require.Less(t, float32(0.4), GreenRedRatio(34, 85))
	require.EqualValues(t, 0, GreenRedRatio(0, 0))
	require.Less(t, GreenRedRatio(200, 50), float32(0))
}
