package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/cyclopcam/logs"

	"github.com/verdantmrv/canopy/pkg/mask"
	"github.com/verdantmrv/canopy/pkg/raster"
)

// EnsembleConfig is the explicit detector configuration for one run. There is
// no process-wide detector state; callers construct a config (usually
// DefaultEnsembleConfig) and hand it to NewEnsemble.
type EnsembleConfig struct {
	Detectors []WeightedDetector

	// Vote threshold on the weighted agreement sum. The lower threshold
	// applies when more than two detectors contribute.
	ThresholdFew  float32
	ThresholdMany float32

	// If the combined mask covers less than this fraction of the image, the
	// threshold is relaxed once (multiplied by RelaxFactor) and the vote is
	// re-taken. An empty result after that is returned as-is.
	MinCoverage float64
	RelaxFactor float32

	MorphIterations    int // close/open iterations for speckle cleanup
	MinComponentPixels int // connected components below this are removed
}

// DefaultEnsembleConfig returns the traditional four-detector ensemble with
// the reference weights.
func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		Detectors: []WeightedDetector{
			{&hsvGreenDetector{}, 0.30},
			{&labDetector{}, 0.25},
			{&textureDetector{minStdDev: 5, maxStdDev: 50}, 0.20},
			{&indexDetector{exgThreshold: 20, grrThreshold: 0.05}, 0.25},
		},
		ThresholdFew:       0.5,
		ThresholdMany:      0.4,
		MinCoverage:        0.01,
		RelaxFactor:        0.75,
		MorphIterations:    2,
		MinComponentPixels: 100,
	}
}

// EnsembleResult is the combined vote of all detectors that ran.
type EnsembleResult struct {
	Mask       *mask.Mask
	Confidence *mask.ConfidenceMap
	Methods    []string // names of the detectors that contributed
	Relaxed    bool     // true if the threshold had to be relaxed
}

// Method returns a descriptor of the combined detection method.
func (r *EnsembleResult) Method() string {
	return "ensemble(" + strings.Join(r.Methods, ",") + ")"
}

// Ensemble combines several weighted detectors into one forest mask by
// normalized weighted voting.
type Ensemble struct {
	log logs.Log
	cfg EnsembleConfig
}

func NewEnsemble(logger logs.Log, cfg EnsembleConfig) *Ensemble {
	return &Ensemble{log: logger, cfg: cfg}
}

// Run executes every detector and combines the votes. A detector that fails
// is logged and skipped; the run only fails if no detector at all produced a
// mask.
func (e *Ensemble) Run(ctx context.Context, img *raster.Image) (*EnsembleResult, error) {
	type vote struct {
		m      *mask.Mask
		conf   *mask.ConfidenceMap
		weight float64
		name   string
	}
	votes := []vote{}
	for _, wd := range e.cfg.Detectors {
		m, conf, err := wd.Detector.Detect(ctx, img)
		if err != nil {
			// Degraded-detection condition, not fatal (external classifiers
			// especially must never take the traditional path down).
			e.log.Warnf("Detector %v failed, continuing without it: %v", wd.Detector.Name(), err)
			continue
		}
		if m.Width != img.Width || m.Height != img.Height {
			e.log.Warnf("Detector %v returned a %vx%v mask for a %vx%v image, ignoring it",
				wd.Detector.Name(), m.Width, m.Height, img.Width, img.Height)
			continue
		}
		votes = append(votes, vote{m, conf, wd.Weight, wd.Detector.Name()})
	}
	if len(votes) == 0 {
		return nil, fmt.Errorf("no detector produced a mask")
	}

	// Weighted agreement per pixel, normalized to [0, 1].
	agreement := mask.NewConfidenceMap(img.Width, img.Height)
	totalWeight := 0.0
	methods := make([]string, 0, len(votes))
	for _, v := range votes {
		totalWeight += v.weight
		methods = append(methods, v.name)
		w := float32(v.weight)
		for i, on := range v.m.Pix {
			if on != 0 {
				agreement.Values[i] += w * v.conf.Values[i]
			}
		}
	}
	for i := range agreement.Values {
		agreement.Values[i] /= float32(totalWeight)
	}

	threshold := e.cfg.ThresholdFew
	if len(votes) > 2 {
		threshold = e.cfg.ThresholdMany
	}

	combined := e.vote(agreement, threshold)
	relaxed := false
	if combined.Coverage() < e.cfg.MinCoverage {
		// All detectors under-triggered. Relax once and retry; if the scene
		// genuinely has no forest the result stays empty, which is correct.
		relaxed = true
		relaxedThreshold := threshold * e.cfg.RelaxFactor
		e.log.Infof("Ensemble coverage %.2f%% below floor, relaxing threshold %.2f -> %.2f",
			combined.Coverage()*100, threshold, relaxedThreshold)
		combined = e.vote(agreement, relaxedThreshold)
	}

	return &EnsembleResult{
		Mask:       combined,
		Confidence: agreement,
		Methods:    methods,
		Relaxed:    relaxed,
	}, nil
}

// vote thresholds the agreement map and cleans the result up.
func (e *Ensemble) vote(agreement *mask.ConfidenceMap, threshold float32) *mask.Mask {
	m := mask.New(agreement.Width, agreement.Height)
	for i, v := range agreement.Values {
		if v >= threshold {
			m.Pix[i] = mask.On
		}
	}
	if e.cfg.MorphIterations > 0 {
		m = m.Close(e.cfg.MorphIterations).Open(1)
	}
	if e.cfg.MinComponentPixels > 0 {
		m = m.RemoveSmallComponents(e.cfg.MinComponentPixels)
	}
	return m
}
