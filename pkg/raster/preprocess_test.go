package raster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreprocessUniformStaysUniform(t *testing.T) {
	// Contrast stretching must not invent spread where there is none.
	img := NewUniform(16, 16, 34, 85, 34, 10)
	out := Preprocess(img, SpectrumNaturalColor)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			r, g, b := out.RGB(x, y)
			require.EqualValues(t, 34, r)
			require.EqualValues(t, 85, g)
			require.EqualValues(t, 34, b)
		}
	}
}

func TestPreprocessDoesNotModifyInput(t *testing.T) {
	img := NewUniform(8, 8, 200, 90, 80, 10)
	before := append([]byte{}, img.Pixels...)
	Preprocess(img, SpectrumFalseColor)
	require.Equal(t, before, img.Pixels)
}

func TestPreprocessMixedSceneKeepsForestColor(t *testing.T) {
	// Half dark forest green, half bright bare ground. Equalization runs over
	// luminance only, so the dark half keeps its hue instead of being crushed
	// toward black by the bright half.
	img := NewImage(100, 100, 3, 10)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if x < 50 {
				img.SetRGB(x, y, 34, 85, 34)
			} else {
				img.SetRGB(x, y, 255, 255, 255)
			}
		}
	}
	out := Preprocess(img, SpectrumNaturalColor)

	r, g, b := out.RGB(10, 10)
	require.Equal(t, r, b)
	require.InDelta(t, 85, int(g), 10)
	require.Greater(t, int(g)-int(r), 30)

	r, g, b = out.RGB(90, 10)
	require.GreaterOrEqual(t, int(r), 250)
	require.GreaterOrEqual(t, int(g), 250)
	require.GreaterOrEqual(t, int(b), 250)
}

func TestPreprocessFalseColorTurnsVegetationGreen(t *testing.T) {
	// Bright NIR in the red channel must come out green-dominant.
	img := NewUniform(8, 8, 220, 90, 60, 10)
	out := Preprocess(img, SpectrumFalseColor)
	r, g, _ := out.RGB(4, 4)
	require.Greater(t, int(g), int(r))
	require.Greater(t, int(g), 150)
}

func TestPreprocessIndexRamp(t *testing.T) {
	high := Preprocess(NewUniform(8, 8, 230, 230, 230, 10), SpectrumVegetationIndex)
	low := Preprocess(NewUniform(8, 8, 20, 20, 20, 10), SpectrumVegetationIndex)
	_, gHigh, _ := high.RGB(0, 0)
	_, gLow, _ := low.RGB(0, 0)
	require.Greater(t, int(gHigh), 200)
	require.Less(t, int(gLow), 40)
}
