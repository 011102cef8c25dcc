package raster

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/verdantmrv/canopy/pkg/gen"
)

// Spectrum identifies what kind of product the raster is, so that the
// detection ensemble can pick the right preprocessing path.
type Spectrum string

const (
	// SpectrumNaturalColor is a true-color RGB product.
	SpectrumNaturalColor Spectrum = "natural_color"
	// SpectrumFalseColor is a false-color composite, typically with
	// near-infrared substituted into the red channel. Vegetation renders red.
	SpectrumFalseColor Spectrum = "false_color"
	// SpectrumVegetationIndex is a pre-computed single-band index product
	// (NDVI or similar) stored as a grayscale ramp.
	SpectrumVegetationIndex Spectrum = "vegetation_index"
)

// SpectrumStats carries the channel statistics the classifier decided on.
type SpectrumStats struct {
	Mean              [3]float64 `json:"mean"`
	StdDev            [3]float64 `json:"stdDev"`
	ExcessGreen       float64    `json:"excessGreen"`       // mean 2G-R-B
	GreenRedRatio     float64    `json:"greenRedRatio"`     // mean (G-R)/(G+R)
	GrayscaleLikeness float64    `json:"grayscaleLikeness"` // fraction of pixels with near-equal channels
}

// Classifier thresholds. An image is treated as false color when the red
// channel clearly dominates green, and as an index product when almost every
// pixel is achromatic but the band still carries structure.
const (
	falseColorRedDominance = 1.15
	grayscalePixelDelta    = 8
	grayscaleFraction      = 0.95
	indexMinStdDev         = 4.0
)

// ClassifySpectrum inspects channel statistics and decides which spectrum
// class the image belongs to. Pure function over the image.
func ClassifySpectrum(img *Image) (Spectrum, SpectrumStats, error) {
	if img.NChan < 3 {
		return "", SpectrumStats{}, fmt.Errorf("%w (got %v channels)", ErrUnsupportedImageFormat, img.NChan)
	}

	n := img.PixelCount()
	chans := [3][]float64{
		make([]float64, 0, n),
		make([]float64, 0, n),
		make([]float64, 0, n),
	}
	exgSum := 0.0
	grrSum := 0.0
	grayish := 0
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.RGB(x, y)
			chans[0] = append(chans[0], float64(r))
			chans[1] = append(chans[1], float64(g))
			chans[2] = append(chans[2], float64(b))
			exgSum += float64(ExcessGreen(r, g, b))
			grrSum += float64(GreenRedRatio(r, g))
			if gen.Abs(int(r)-int(g)) <= grayscalePixelDelta && gen.Abs(int(g)-int(b)) <= grayscalePixelDelta && gen.Abs(int(r)-int(b)) <= grayscalePixelDelta {
				grayish++
			}
		}
	}

	st := SpectrumStats{
		ExcessGreen:       exgSum / float64(n),
		GreenRedRatio:     grrSum / float64(n),
		GrayscaleLikeness: float64(grayish) / float64(n),
	}
	for c := 0; c < 3; c++ {
		mean, std := stat.MeanStdDev(chans[c], nil)
		st.Mean[c] = mean
		st.StdDev[c] = std
	}

	// A pre-computed index product is effectively a grayscale ramp with real
	// structure in it. A blank (all-one-shade) image is not an index product.
	if st.GrayscaleLikeness >= grayscaleFraction {
		if st.StdDev[1] >= indexMinStdDev {
			return SpectrumVegetationIndex, st, nil
		}
		return SpectrumNaturalColor, st, nil
	}

	// NIR-in-red false color: red dominates both green and blue across the scene.
	if st.Mean[0] > st.Mean[1]*falseColorRedDominance && st.Mean[0] > st.Mean[2]*falseColorRedDominance {
		return SpectrumFalseColor, st, nil
	}

	return SpectrumNaturalColor, st, nil
}
