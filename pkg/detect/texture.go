package detect

import (
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/stat"

	"github.com/verdantmrv/canopy/pkg/mask"
	"github.com/verdantmrv/canopy/pkg/raster"
)

// Canopy density tiers derived from local texture variation, and health
// tiers derived from color balance. The texture breakpoints are empirical;
// higher local variation generally means denser canopy.

type CanopyTier string

const (
	CanopySparse CanopyTier = "sparse"
	CanopyMedium CanopyTier = "medium"
	CanopyDense  CanopyTier = "dense"
)

type HealthTier string

const (
	HealthHealthy  HealthTier = "healthy"
	HealthStressed HealthTier = "stressed"
	HealthDegraded HealthTier = "degraded"
)

// TextureMetrics summarizes texture and color-balance statistics over the
// masked region.
type TextureMetrics struct {
	GradientVariance float64    `json:"gradientVariance"`
	EdgeDensity      float64    `json:"edgeDensity"` // edge pixels / total pixels
	MeanLocalStdDev  float64    `json:"meanLocalStdDev"`
	CanopyDensity    float64    `json:"canopyDensity"` // 0..1
	CanopyTier       CanopyTier `json:"canopyTier"`
	GreenDominance   float64    `json:"greenDominance"`
	BrownFraction    float64    `json:"brownFraction"`
	HealthTier       HealthTier `json:"healthTier"`
}

const edgeGradientThreshold = 40.0

// AnalyzeTexture computes texture and health statistics over the set pixels
// of m. An empty mask yields zero metrics with the most conservative tiers.
func AnalyzeTexture(img *raster.Image, m *mask.Mask) TextureMetrics {
	out := TextureMetrics{CanopyTier: CanopySparse, HealthTier: HealthDegraded}
	if m.CountOn() == 0 {
		return out
	}

	gray := grayscale(img)
	grad := gradientMagnitude(gray, img.Width, img.Height)
	local := localStdDev(gray, img.Width, img.Height, 2)

	gradSamples := make([]float64, 0, m.CountOn())
	localSum := 0.0
	edges := 0
	var sumR, sumG, sumB float64
	brown := 0
	n := 0
	for i, v := range m.Pix {
		if v == 0 {
			continue
		}
		gradSamples = append(gradSamples, float64(grad[i]))
		localSum += float64(local[i])
		if float64(grad[i]) > edgeGradientThreshold {
			edges++
		}
		r := float64(img.Pixels[i*img.NChan])
		g := float64(img.Pixels[i*img.NChan+1])
		b := float64(img.Pixels[i*img.NChan+2])
		sumR += r
		sumG += g
		sumB += b
		if r > g && g > b && r > 60 {
			brown++
		}
		n++
	}

	out.GradientVariance = stat.Variance(gradSamples, nil)
	out.EdgeDensity = float64(edges) / float64(len(m.Pix))
	out.MeanLocalStdDev = localSum / float64(n)
	out.CanopyDensity, out.CanopyTier = canopyFromTexture(out.MeanLocalStdDev)
	out.GreenDominance = 2 * sumG / (sumR + sumB + 1)
	out.BrownFraction = float64(brown) / float64(n)
	out.HealthTier = healthFromColor(out.GreenDominance, out.BrownFraction)
	return out
}

// canopyFromTexture maps mean local standard deviation to a density value
// and tier.
func canopyFromTexture(meanStd float64) (float64, CanopyTier) {
	var density float64
	switch {
	case meanStd < 5:
		density = 0.3
	case meanStd < 15:
		density = 0.5
	case meanStd < 25:
		density = 0.7
	case meanStd < 35:
		density = 0.85
	default:
		density = 0.95
	}
	switch {
	case density < 0.5:
		return density, CanopySparse
	case density < 0.85:
		return density, CanopyMedium
	default:
		return density, CanopyDense
	}
}

func healthFromColor(greenDominance, brownFraction float64) HealthTier {
	switch {
	case greenDominance > 1.05 && brownFraction < 0.15:
		return HealthHealthy
	case greenDominance > 0.9 && brownFraction < 0.4:
		return HealthStressed
	default:
		return HealthDegraded
	}
}

// grayscale returns the luminance plane as float32.
func grayscale(img *raster.Image) []float32 {
	out := make([]float32, img.PixelCount())
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.RGB(x, y)
			out[y*img.Width+x] = 0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)
		}
	}
	return out
}

// gradientMagnitude computes a central-difference gradient magnitude per
// pixel. Border pixels use the one-sided difference.
func gradientMagnitude(gray []float32, width, height int) []float32 {
	out := make([]float32, len(gray))
	at := func(x, y int) float32 {
		if x < 0 {
			x = 0
		}
		if y < 0 {
			y = 0
		}
		if x >= width {
			x = width - 1
		}
		if y >= height {
			y = height - 1
		}
		return gray[y*width+x]
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := at(x+1, y) - at(x-1, y)
			gy := at(x, y+1) - at(x, y-1)
			out[y*width+x] = math32.Hypot(gx, gy)
		}
	}
	return out
}

// localStdDev computes the standard deviation of the (2r+1)x(2r+1)
// neighborhood around each pixel.
func localStdDev(gray []float32, width, height, radius int) []float32 {
	out := make([]float32, len(gray))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum, sumSq float32
			n := 0
			for dy := -radius; dy <= radius; dy++ {
				yy := y + dy
				if yy < 0 || yy >= height {
					continue
				}
				for dx := -radius; dx <= radius; dx++ {
					xx := x + dx
					if xx < 0 || xx >= width {
						continue
					}
					v := gray[yy*width+xx]
					sum += v
					sumSq += v * v
					n++
				}
			}
			mean := sum / float32(n)
			variance := sumSq/float32(n) - mean*mean
			if variance < 0 {
				variance = 0
			}
			out[y*width+x] = math32.Sqrt(variance)
		}
	}
	return out
}
