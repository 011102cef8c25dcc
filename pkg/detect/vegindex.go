package detect

import (
	"github.com/verdantmrv/canopy/pkg/mask"
	"github.com/verdantmrv/canopy/pkg/raster"
)

// VegetationIndices are mean RGB-derived vegetation indices over the masked
// region. Pixels with a zero denominator are excluded from the mean, not
// counted as zero.
type VegetationIndices struct {
	VARI    float64 `json:"vari"`    // (G-R)/(G+R-B)
	ExG     float64 `json:"exg"`     // 2G-R-B
	GLI     float64 `json:"gli"`     // (2G-R-B)/(2G+R+B)
	NDVIRGB float64 `json:"ndviRGB"` // (G-R)/(G+R), RGB approximation of NDVI
}

// ComputeIndices calculates the indices over the set pixels of m.
// An empty mask yields all zeros.
func ComputeIndices(img *raster.Image, m *mask.Mask) VegetationIndices {
	var sumVARI, sumExG, sumGLI, sumNDVI float64
	var nVARI, nExG, nGLI, nNDVI int

	for i, on := range m.Pix {
		if on == 0 {
			continue
		}
		r := float64(img.Pixels[i*img.NChan])
		g := float64(img.Pixels[i*img.NChan+1])
		b := float64(img.Pixels[i*img.NChan+2])

		sumExG += 2*g - r - b
		nExG++

		if den := g + r - b; den != 0 {
			sumVARI += (g - r) / den
			nVARI++
		}
		if den := 2*g + r + b; den > 0 {
			sumGLI += (2*g - r - b) / den
			nGLI++
		}
		if den := g + r; den > 0 {
			sumNDVI += (g - r) / den
			nNDVI++
		}
	}

	out := VegetationIndices{}
	if nVARI > 0 {
		out.VARI = sumVARI / float64(nVARI)
	}
	if nExG > 0 {
		out.ExG = sumExG / float64(nExG)
	}
	if nGLI > 0 {
		out.GLI = sumGLI / float64(nGLI)
	}
	if nNDVI > 0 {
		out.NDVIRGB = sumNDVI / float64(nNDVI)
	}
	return out
}
