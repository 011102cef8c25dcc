package detect

import (
	"fmt"
	"sort"

	"github.com/cyclopcam/logs"
	"gonum.org/v1/gonum/stat"

	"github.com/verdantmrv/canopy/pkg/gen"
	"github.com/verdantmrv/canopy/pkg/mask"
	"github.com/verdantmrv/canopy/pkg/raster"
)

// TypeDetection is one forest type's share of the detected forest.
// Type masks may overlap each other in the breakdown; the detection result's
// total area always comes from the unique combined mask.
type TypeDetection struct {
	Type           string  `json:"type"`
	AreaHa         float64 `json:"areaHa"`
	Fraction       float64 `json:"fraction"` // share of the combined forest mask
	Confidence     float64 `json:"confidence"`
	CarbonDensity  float64 `json:"carbonDensityTCHa"`
	BiomassDensity float64 `json:"biomassDensityTHa"`
	Degraded       bool    `json:"degraded,omitempty"` // fell back to the combined mask
}

// Floors for a type to appear in the breakdown.
const (
	MinTypeConfidence = 0.3
	MinTypeAreaHa     = 0.01
	// A forced type whose signature intersection covers less than this
	// fraction of the image falls back to the combined mask.
	forcedTypeFloor = 0.001
)

// Confidence blend weights: color consistency, spatial coherence,
// color-centroid fit.
const (
	confWeightConsistency = 0.4
	confWeightCoherence   = 0.3
	confWeightCentroid    = 0.3
)

// TypeClassifier partitions a combined forest mask into per-type sub-masks
// using the signature registry.
type TypeClassifier struct {
	log      logs.Log
	registry *Registry
}

func NewTypeClassifier(logger logs.Log, registry *Registry) *TypeClassifier {
	return &TypeClassifier{log: logger, registry: registry}
}

// Classify breaks the combined mask down by forest type. If forcedType is
// non-empty, only that signature is considered; if its intersection with the
// combined mask is below the floor, the classification degrades to the
// combined mask itself (logged, not an error). An unknown forcedType is an
// input error.
func (c *TypeClassifier) Classify(img *raster.Image, combined *mask.Mask, forcedType string) ([]TypeDetection, error) {
	hectaresPerPixel := img.HectaresPerPixel()
	combinedOn := combined.CountOn()
	if combinedOn == 0 {
		return nil, nil
	}

	if forcedType != "" {
		sig := c.registry.Get(forcedType)
		if sig == nil {
			return nil, fmt.Errorf("unknown forest type %q", forcedType)
		}
		typeMask := c.signatureMask(img, combined, sig)
		degraded := false
		if float64(typeMask.CountOn()) < forcedTypeFloor*float64(img.PixelCount()) {
			c.log.Warnf("Forced type %v matched %v px (< %.2f%% of image), degrading to combined mask",
				sig.Name, typeMask.CountOn(), forcedTypeFloor*100)
			typeMask = combined
			degraded = true
		}
		det := c.describe(img, typeMask, sig, combinedOn, hectaresPerPixel)
		det.Degraded = degraded
		return []TypeDetection{det}, nil
	}

	// Score every signature on its full (possibly overlapping) mask first.
	type candidate struct {
		det TypeDetection
		m   *mask.Mask
	}
	candidates := []candidate{}
	for _, sig := range c.registry.All() {
		typeMask := c.signatureMask(img, combined, sig)
		det := c.describe(img, typeMask, sig, combinedOn, hectaresPerPixel)
		if det.Confidence > MinTypeConfidence {
			candidates = append(candidates, candidate{det, typeMask})
		}
	}

	// Overlapping signatures all stay in the breakdown, but each pixel's
	// area is attributed to one type only (highest confidence first), so
	// that per-type areas never sum past the combined mask.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].det.Confidence > candidates[j].det.Confidence
	})
	claimed := mask.New(img.Width, img.Height)
	out := []TypeDetection{}
	for _, cand := range candidates {
		exclusive := cand.m.AndNot(claimed)
		cand.det.AreaHa = float64(exclusive.CountOn()) * hectaresPerPixel
		cand.det.Fraction = float64(exclusive.CountOn()) / float64(combinedOn)
		if cand.det.AreaHa > MinTypeAreaHa {
			claimed = claimed.Or(exclusive)
			out = append(out, cand.det)
		}
	}
	return out, nil
}

// signatureMask returns the pixels of the combined mask whose HSV color falls
// in any of the signature's ranges and whose excess-green clears the
// signature's index threshold.
func (c *TypeClassifier) signatureMask(img *raster.Image, combined *mask.Mask, sig *Signature) *mask.Mask {
	out := mask.New(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if !combined.Get(x, y) {
				continue
			}
			r, g, b := img.RGB(x, y)
			if raster.ExcessGreen(r, g, b) < sig.IndexThreshold {
				continue
			}
			h, s, v := raster.RGBToHSV(r, g, b)
			for _, rg := range sig.HSVRanges {
				if h >= rg.MinH && h <= rg.MaxH && s >= rg.MinS && s <= rg.MaxS && v >= rg.MinV && v <= rg.MaxV {
					out.Set(x, y, true)
					break
				}
			}
		}
	}
	return out
}

// describe computes the area and blended confidence of one type mask.
func (c *TypeClassifier) describe(img *raster.Image, typeMask *mask.Mask, sig *Signature, combinedOn int, hectaresPerPixel float64) TypeDetection {
	on := typeMask.CountOn()
	det := TypeDetection{
		Type:           sig.Name,
		AreaHa:         float64(on) * hectaresPerPixel,
		CarbonDensity:  sig.CarbonDensity,
		BiomassDensity: sig.BiomassDensity,
	}
	if on == 0 {
		return det
	}
	det.Fraction = float64(on) / float64(combinedOn)

	consistency, centroid := c.colorScores(img, typeMask, sig)
	coherence := typeMask.LargestComponentFraction()
	det.Confidence = gen.Clamp(
		confWeightConsistency*consistency+confWeightCoherence*coherence+confWeightCentroid*centroid,
		0, 1)
	return det
}

// colorScores returns (colorConsistency, centroidFit) over the masked pixels.
// Consistency is the inverse of hue spread; centroid fit is the closeness of
// the mean HSV to the signature range midpoint, normalized by half-width.
func (c *TypeClassifier) colorScores(img *raster.Image, m *mask.Mask, sig *Signature) (float64, float64) {
	hues := make([]float64, 0, m.CountOn())
	var sumH, sumS, sumV float64
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if !m.Get(x, y) {
				continue
			}
			h, s, v := raster.RGBToHSV(img.RGB(x, y))
			hues = append(hues, float64(h))
			sumH += float64(h)
			sumS += float64(s)
			sumV += float64(v)
		}
	}
	if len(hues) == 0 {
		return 0, 0
	}
	n := float64(len(hues))
	hueStd := stat.StdDev(hues, nil)
	if len(hues) == 1 {
		hueStd = 0
	}
	// Hue spans 0..179; a spread of 45 half-degrees or more means no
	// consistency at all.
	consistency := gen.Clamp(1-hueStd/45.0, 0, 1)

	meanH, meanS, meanV := sumH/n, sumS/n, sumV/n
	best := 0.0
	for _, rg := range sig.HSVRanges {
		fit := (centroidAxisFit(meanH, float64(rg.MinH), float64(rg.MaxH)) +
			centroidAxisFit(meanS, float64(rg.MinS), float64(rg.MaxS)) +
			centroidAxisFit(meanV, float64(rg.MinV), float64(rg.MaxV))) / 3
		best = gen.Max(best, fit)
	}
	return consistency, best
}

// centroidAxisFit is 1 at the middle of [lo, hi] and falls linearly to 0 at
// the edges and beyond.
func centroidAxisFit(v, lo, hi float64) float64 {
	half := (hi - lo) / 2
	if half <= 0 {
		if v == lo {
			return 1
		}
		return 0
	}
	mid := (lo + hi) / 2
	return gen.Clamp(1-gen.Abs(v-mid)/half, 0, 1)
}
