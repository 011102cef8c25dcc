package detect

import (
	"context"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/verdantmrv/canopy/pkg/mask"
	"github.com/verdantmrv/canopy/pkg/raster"
)

// MethodologyVersion identifies the detection methodology in result records,
// for audit trails.
const MethodologyVersion = "canopy-detect/1"

// ResultVersion is bumped whenever the Result record layout changes.
const ResultVersion = 1

// Options configures a single detection run. The zero value runs the default
// traditional ensemble over all registry signatures.
type Options struct {
	// ForestType restricts classification to a single named signature.
	ForestType string

	// Augmenters are external classifiers merged into the ensemble.
	// Each failing or timing out degrades the run, never fails it.
	Augmenters []MaskDetector

	// AugmenterTimeout bounds each external classifier call.
	// Zero uses DefaultAugmenterTimeout.
	AugmenterTimeout time.Duration

	// AugmenterWeight is the ensemble weight per augmenter.
	// Zero uses DefaultAugmenterWeight.
	AugmenterWeight float64

	// Ensemble overrides the detector ensemble configuration.
	// Nil uses DefaultEnsembleConfig.
	Ensemble *EnsembleConfig
}

// Result is the immutable output of one detection run: a flat, versioned
// record with all areas in hectares.
type Result struct {
	Version               int               `json:"version"`
	ImageWidth            int               `json:"imageWidth"`
	ImageHeight           int               `json:"imageHeight"`
	MetersPerPixel        float64           `json:"metersPerPixel"`
	Spectrum              raster.Spectrum   `json:"spectrum"`
	ForestPixels          int               `json:"forestPixels"`
	TotalPixels           int               `json:"totalPixels"`
	CoveragePercent       float64           `json:"coveragePercent"`
	TotalAreaHa           float64           `json:"totalAreaHa"`
	Types                 []TypeDetection   `json:"forestTypes"`
	WeightedCarbonDensity float64           `json:"weightedCarbonDensityTCHa"`
	Indices               VegetationIndices `json:"vegetationIndices"`
	Texture               TextureMetrics    `json:"texture"`
	Confidence            float64           `json:"confidence"` // overall, area-weighted across types
	Uncertainty           Uncertainty       `json:"uncertainty"`
	DetectionMethod       string            `json:"detectionMethod"`
	MethodologyVersion    string            `json:"methodologyVersion"`
	Degraded              bool              `json:"degraded"` // threshold relaxation or type fallback occurred

	// Mask is the combined forest mask, kept for rendering and composition.
	// Not part of the serialized record.
	Mask *mask.Mask `json:"-"`
}

// Detector runs the full detection pipeline: spectrum classification,
// preprocessing, the mask ensemble, type classification, vegetation and
// texture analysis, and the uncertainty assessment.
type Detector struct {
	log      logs.Log
	registry *Registry
}

func NewDetector(logger logs.Log, registry *Registry) *Detector {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Detector{log: logger, registry: registry}
}

// Detect analyzes one image. The image is owned by this call and is not
// modified. The traditional path is deterministic: two calls over the same
// image and registry produce identical results.
func (d *Detector) Detect(ctx context.Context, img *raster.Image, opts Options) (*Result, error) {
	spectrum, specStats, err := raster.ClassifySpectrum(img)
	if err != nil {
		return nil, err
	}
	d.log.Infof("Image %vx%v classified as %v (exg %.1f, g/r %.2f)",
		img.Width, img.Height, spectrum, specStats.ExcessGreen, specStats.GreenRedRatio)

	prepped := raster.Preprocess(img, spectrum)

	cfg := DefaultEnsembleConfig()
	if opts.Ensemble != nil {
		cfg = *opts.Ensemble
	}
	for _, aug := range opts.Augmenters {
		weight := opts.AugmenterWeight
		if weight <= 0 {
			weight = DefaultAugmenterWeight
		}
		cfg.Detectors = append(cfg.Detectors, WeightedDetector{
			Detector: NewAugmenter(aug, opts.AugmenterTimeout),
			Weight:   weight,
		})
	}

	ensemble := NewEnsemble(d.log, cfg)
	vote, err := ensemble.Run(ctx, prepped)
	if err != nil {
		return nil, err
	}

	// Classification and the index/texture analysis read the original image:
	// preprocessing exists to help the detectors, not to shift the colors the
	// signatures were calibrated against.
	types, err := d.classifyTypes(img, spectrum, vote.Mask, opts.ForestType)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Version:            ResultVersion,
		ImageWidth:         img.Width,
		ImageHeight:        img.Height,
		MetersPerPixel:     img.MetersPerPixel,
		Spectrum:           spectrum,
		ForestPixels:       vote.Mask.CountOn(),
		TotalPixels:        img.PixelCount(),
		CoveragePercent:    vote.Mask.Coverage() * 100,
		TotalAreaHa:        vote.Mask.AreaHa(img.MetersPerPixel),
		Types:              types,
		Indices:            ComputeIndices(img, vote.Mask),
		Texture:            AnalyzeTexture(img, vote.Mask),
		DetectionMethod:    vote.Method(),
		MethodologyVersion: MethodologyVersion,
		Degraded:           vote.Relaxed,
		Mask:               vote.Mask,
	}
	for _, t := range types {
		if t.Degraded {
			result.Degraded = true
		}
	}
	result.Confidence = overallConfidence(types, vote.Confidence, vote.Mask)
	result.WeightedCarbonDensity = weightedCarbonDensity(types)
	result.Uncertainty = AssessUncertainty(result.Confidence, result.TotalAreaHa)

	d.log.Infof("Detected %.2f ha forest (%.1f%% coverage, %v types, confidence %.2f, uncertainty %v)",
		result.TotalAreaHa, result.CoveragePercent, len(types), result.Confidence, result.Uncertainty.Tier)
	return result, nil
}

// classifyTypes runs the type classifier. On a vegetation-index product the
// original colors carry no type signal, so classification happens on the
// green-remapped image instead, flagged degraded.
func (d *Detector) classifyTypes(img *raster.Image, spectrum raster.Spectrum, combined *mask.Mask, forced string) ([]TypeDetection, error) {
	source := img
	if spectrum != raster.SpectrumNaturalColor {
		source = raster.Preprocess(img, spectrum)
	}
	classifier := NewTypeClassifier(d.log, d.registry)
	types, err := classifier.Classify(source, combined, forced)
	if err != nil {
		return nil, err
	}
	if spectrum != raster.SpectrumNaturalColor {
		for i := range types {
			types[i].Degraded = true
		}
	}
	return types, nil
}

// overallConfidence is the area-weighted mean of the per-type confidences.
// With no type breakdown it falls back to the mean ensemble agreement under
// the combined mask.
func overallConfidence(types []TypeDetection, agreement *mask.ConfidenceMap, combined *mask.Mask) float64 {
	totalArea := 0.0
	weighted := 0.0
	for _, t := range types {
		totalArea += t.AreaHa
		weighted += t.AreaHa * t.Confidence
	}
	if totalArea > 0 {
		return weighted / totalArea
	}
	return agreement.MeanUnder(combined)
}

// weightedCarbonDensity is the area-weighted mean carbon density across the
// type breakdown, in tC/ha. Zero when no types were identified.
func weightedCarbonDensity(types []TypeDetection) float64 {
	totalArea := 0.0
	weighted := 0.0
	for _, t := range types {
		totalArea += t.AreaHa
		weighted += t.AreaHa * t.CarbonDensity
	}
	if totalArea == 0 {
		return 0
	}
	return weighted / totalArea
}
