package raster

import (
	"github.com/chewxy/math32"

	"github.com/verdantmrv/canopy/pkg/gen"
)

// Preprocess returns a new image prepared for the detection ensemble,
// according to the spectrum class of the input:
//   - natural color: 3x3 box blur followed by a luminance equalization that
//     leaves chroma untouched
//   - false color: NIR (stored in red) is remapped into the green channel so
//     that the green-range detectors see vegetation, plus mild gamma
//   - vegetation index: the index value becomes a green pseudo-color ramp
//
// The input image is never modified.
func Preprocess(img *Image, class Spectrum) *Image {
	switch class {
	case SpectrumFalseColor:
		return remapFalseColor(img)
	case SpectrumVegetationIndex:
		return remapIndex(img)
	default:
		out := boxBlur3(img)
		equalizeLuminance(out)
		return out
	}
}

// boxBlur3 applies a 3x3 mean filter per channel. Edge pixels average over
// the neighbors that exist.
func boxBlur3(img *Image) *Image {
	out := NewImage(img.Width, img.Height, 3, img.MetersPerPixel)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			var sum [3]int
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx, yy := x+dx, y+dy
					if xx < 0 || yy < 0 || xx >= img.Width || yy >= img.Height {
						continue
					}
					r, g, b := img.RGB(xx, yy)
					sum[0] += int(r)
					sum[1] += int(g)
					sum[2] += int(b)
					n++
				}
			}
			out.SetRGB(x, y, byte(sum[0]/n), byte(sum[1]/n), byte(sum[2]/n))
		}
	}
	return out
}

// equalizeLuminance runs a clip-limited histogram equalization over the HSV
// value channel, in place. Only luminance changes: every pixel's channels are
// scaled by a common factor, so hue and saturation survive and the color
// detectors see the same colors at better contrast. A stretch applied per
// channel would shift hue, turning dark vegetation black whenever the scene
// also contains bright ground.
//
// Images with no luminance spread are left untouched so that a uniform image
// stays uniform.
func equalizeLuminance(img *Image) {
	var hist [256]int
	lo, hi := 255, 0
	n := 0
	for i := 0; i < len(img.Pixels); i += img.NChan {
		v := int(gen.Max(img.Pixels[i], gen.Max(img.Pixels[i+1], img.Pixels[i+2])))
		hist[v]++
		lo = gen.Min(lo, v)
		hi = gen.Max(hi, v)
		n++
	}
	if hi-lo < 16 {
		return
	}

	// Clip the histogram so a dominant region cannot crush the rest of the
	// range, and spread the excess evenly over all bins.
	clip := 4 * n / 256
	excess := 0
	for v := range hist {
		if hist[v] > clip {
			excess += hist[v] - clip
			hist[v] = clip
		}
	}
	bump := excess / 256

	var lut [256]byte
	cdf := 0
	for v := range hist {
		cdf += hist[v] + bump
		lut[v] = byte(gen.Clamp(float32(cdf)*255/float32(n), 0, 255))
	}

	for i := 0; i < len(img.Pixels); i += img.NChan {
		r, g, b := img.Pixels[i], img.Pixels[i+1], img.Pixels[i+2]
		v := gen.Max(r, gen.Max(g, b))
		if v == 0 {
			continue
		}
		scale := float32(lut[v]) / float32(v)
		img.Pixels[i] = byte(gen.Clamp(float32(r)*scale, 0, 255))
		img.Pixels[i+1] = byte(gen.Clamp(float32(g)*scale, 0, 255))
		img.Pixels[i+2] = byte(gen.Clamp(float32(b)*scale, 0, 255))
	}
}

// remapFalseColor swaps NIR (red channel) into green with a mild gamma lift,
// keeping the original green as red. Vegetation, bright in NIR, becomes
// green-dominant.
func remapFalseColor(img *Image) *Image {
	out := NewImage(img.Width, img.Height, 3, img.MetersPerPixel)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.RGB(x, y)
			nir := math32.Pow(float32(r)/255, 0.9) * 255
			out.SetRGB(x, y, g, byte(gen.Clamp(nir, 0, 255)), b)
		}
	}
	return out
}

// remapIndex turns a grayscale index band into a green ramp: high index
// values become saturated green, low values stay dark and red-shifted.
func remapIndex(img *Image) *Image {
	out := NewImage(img.Width, img.Height, 3, img.MetersPerPixel)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			_, g, _ := img.RGB(x, y)
			out.SetRGB(x, y, 255-g, g, g/4)
		}
	}
	return out
}
