package detect

import (
	"context"

	"github.com/verdantmrv/canopy/pkg/mask"
	"github.com/verdantmrv/canopy/pkg/raster"
)

// MaskDetector is the capability that the ensemble aggregates: given an
// image, produce a forest mask and a matching confidence map. Built-in
// color/index/texture detectors implement it, and so do injected external
// classifiers (see Augmenter).
type MaskDetector interface {
	// Name identifies the method in result records and logs.
	Name() string

	// Detect returns a 0/255 forest mask and a per-pixel confidence map,
	// both sized like the image.
	Detect(ctx context.Context, img *raster.Image) (*mask.Mask, *mask.ConfidenceMap, error)
}

// WeightedDetector pairs a detector with its reliability weight in the
// ensemble vote.
type WeightedDetector struct {
	Detector MaskDetector
	Weight   float64
}

// hsvRange is a closed interval test in 8-bit HSV (H in 0..179).
type hsvRange struct {
	minH, maxH byte
	minS, maxS byte
	minV, maxV byte
}

func (r hsvRange) contains(h, s, v byte) bool {
	return h >= r.minH && h <= r.maxH &&
		s >= r.minS && s <= r.maxS &&
		v >= r.minV && v <= r.maxV
}

// hsvGreenDetector tests three stacked HSV ranges: typical green vegetation,
// dark dense forest, and yellowish dry-season green.
type hsvGreenDetector struct{}

var hsvGreenRanges = []hsvRange{
	{35, 85, 30, 255, 20, 255},  // typical green
	{40, 80, 20, 255, 10, 150},  // dark green (dense canopy)
	{25, 40, 30, 255, 30, 255},  // yellowish green (dry season)
}

func (d *hsvGreenDetector) Name() string { return "hsv-green" }

func (d *hsvGreenDetector) Detect(ctx context.Context, img *raster.Image) (*mask.Mask, *mask.ConfidenceMap, error) {
	m := mask.New(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			h, s, v := raster.RGBToHSV(img.RGB(x, y))
			for _, rg := range hsvGreenRanges {
				if rg.contains(h, s, v) {
					m.Set(x, y, true)
					break
				}
			}
		}
	}
	return m, onPixelConfidence(m), nil
}

// labDetector tests for vegetation in 8-bit CIELAB: green pixels sit below
// the a=128 midpoint and above the b=128 midpoint, at moderate lightness.
type labDetector struct{}

func (d *labDetector) Name() string { return "lab-vegetation" }

func (d *labDetector) Detect(ctx context.Context, img *raster.Image) (*mask.Mask, *mask.ConfidenceMap, error) {
	m := mask.New(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			l, a, b := raster.RGBToLAB(img.RGB(x, y))
			if a < 125 && b > 128 && l > 30 && l < 200 {
				m.Set(x, y, true)
			}
		}
	}
	return m, onPixelConfidence(m), nil
}

// indexDetector thresholds two RGB vegetation indices: excess green and the
// green-red ratio.
type indexDetector struct {
	exgThreshold float32 // minimum 2G-R-B
	grrThreshold float32 // minimum (G-R)/(G+R)
}

func (d *indexDetector) Name() string { return "vegetation-index" }

func (d *indexDetector) Detect(ctx context.Context, img *raster.Image) (*mask.Mask, *mask.ConfidenceMap, error) {
	m := mask.New(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.RGB(x, y)
			if raster.ExcessGreen(r, g, b) > d.exgThreshold || raster.GreenRedRatio(r, g) > d.grrThreshold {
				m.Set(x, y, true)
			}
		}
	}
	return m, onPixelConfidence(m), nil
}

// textureDetector marks pixels whose local intensity variation falls in the
// band typical of canopy texture: neither flat (water, roads) nor extreme
// (built-up edges).
type textureDetector struct {
	minStdDev float32
	maxStdDev float32
}

func (d *textureDetector) Name() string { return "texture-band" }

func (d *textureDetector) Detect(ctx context.Context, img *raster.Image) (*mask.Mask, *mask.ConfidenceMap, error) {
	gray := grayscale(img)
	std := localStdDev(gray, img.Width, img.Height, 2)
	m := mask.New(img.Width, img.Height)
	for i, s := range std {
		if s > d.minStdDev && s < d.maxStdDev {
			m.Pix[i] = mask.On
		}
	}
	return m, onPixelConfidence(m), nil
}

// onPixelConfidence gives full confidence to set pixels and zero elsewhere.
// The ensemble derives the blended per-pixel confidence from agreement.
func onPixelConfidence(m *mask.Mask) *mask.ConfidenceMap {
	c := mask.NewConfidenceMap(m.Width, m.Height)
	for i, v := range m.Pix {
		if v != 0 {
			c.Values[i] = 1
		}
	}
	return c
}
