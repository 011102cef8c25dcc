package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/verdantmrv/canopy/pkg/mask"
	"github.com/verdantmrv/canopy/pkg/raster"
)

// failingDetector always errors, to exercise the ensemble's skip path.
type failingDetector struct{}

func (d *failingDetector) Name() string { return "failing" }

func (d *failingDetector) Detect(ctx context.Context, img *raster.Image) (*mask.Mask, *mask.ConfidenceMap, error) {
	return nil, nil, errors.New("model not loaded")
}

// fullDetector marks every pixel as forest.
type fullDetector struct{}

func (d *fullDetector) Name() string { return "full" }

func (d *fullDetector) Detect(ctx context.Context, img *raster.Image) (*mask.Mask, *mask.ConfidenceMap, error) {
	m := mask.NewFilled(img.Width, img.Height)
	c := mask.NewConfidenceMap(img.Width, img.Height)
	for i := range c.Values {
		c.Values[i] = 1
	}
	return m, c, nil
}

func TestEnsembleUniformForest(t *testing.T) {
	// Uniform dark green: the color and index detectors all fire, so the
	// combined mask covers the whole image.
	img := raster.NewUniform(100, 100, 34, 85, 34, 10)
	e := NewEnsemble(logs.NewTestingLog(t), DefaultEnsembleConfig())
	result, err := e.Run(context.Background(), img)
	require.NoError(t, err)
	require.False(t, result.Relaxed)
	require.Equal(t, 100*100, result.Mask.CountOn())
	require.InDelta(t, 100.0, result.Mask.AreaHa(10), 1e-9)
}

func TestEnsembleAllWhite(t *testing.T) {
	// No detector fires on a blank image. The ensemble relaxes once and then
	// returns an empty mask, never fabricating area.
	img := raster.NewUniform(100, 100, 255, 255, 255, 10)
	e := NewEnsemble(logs.NewTestingLog(t), DefaultEnsembleConfig())
	result, err := e.Run(context.Background(), img)
	require.NoError(t, err)
	require.True(t, result.Relaxed)
	require.Equal(t, 0, result.Mask.CountOn())
}

func TestEnsembleDeterministic(t *testing.T) {
	img := raster.NewUniform(60, 60, 50, 110, 45, 5)
	e := NewEnsemble(logs.NewTestingLog(t), DefaultEnsembleConfig())
	a, err := e.Run(context.Background(), img)
	require.NoError(t, err)
	b, err := e.Run(context.Background(), img)
	require.NoError(t, err)
	require.True(t, a.Mask.Equal(b.Mask))
	require.Equal(t, a.Confidence.Values, b.Confidence.Values)
}

func TestEnsembleSkipsFailingDetector(t *testing.T) {
	cfg := DefaultEnsembleConfig()
	cfg.Detectors = append(cfg.Detectors, WeightedDetector{&failingDetector{}, 0.35})
	img := raster.NewUniform(50, 50, 34, 85, 34, 10)
	e := NewEnsemble(logs.NewTestingLog(t), cfg)
	result, err := e.Run(context.Background(), img)
	require.NoError(t, err)
	require.NotContains(t, result.Methods, "failing")
	require.Equal(t, 50*50, result.Mask.CountOn())
}

func TestEnsembleAllDetectorsFail(t *testing.T) {
	cfg := EnsembleConfig{
		Detectors:     []WeightedDetector{{&failingDetector{}, 1}},
		ThresholdFew:  0.5,
		ThresholdMany: 0.4,
	}
	img := raster.NewUniform(10, 10, 34, 85, 34, 10)
	e := NewEnsemble(logs.NewTestingLog(t), cfg)
	_, err := e.Run(context.Background(), img)
	require.Error(t, err)
}

func TestEnsembleAgreementWeighting(t *testing.T) {
	// A single full-coverage detector with weight 1 yields confidence 1 on
	// every pixel.
	cfg := EnsembleConfig{
		Detectors:     []WeightedDetector{{&fullDetector{}, 1}},
		ThresholdFew:  0.5,
		ThresholdMany: 0.4,
	}
	img := raster.NewUniform(20, 20, 0, 0, 0, 10)
	e := NewEnsemble(logs.NewTestingLog(t), cfg)
	result, err := e.Run(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, 20*20, result.Mask.CountOn())
	require.InDelta(t, 1.0, result.Confidence.MeanUnder(result.Mask), 1e-6)
}
