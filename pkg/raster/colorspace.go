package raster

import (
	"github.com/chewxy/math32"
)

// Color conversions use the OpenCV 8-bit conventions (Hue 0..179, L 0..255,
// a/b offset by 128), because the reference forest signatures are expressed
// in those ranges.

// RGBToHSV converts one pixel to 8-bit HSV. H is in half-degrees (0..179).
func RGBToHSV(r, g, b byte) (h, s, v byte) {
	rf, gf, bf := float32(r), float32(g), float32(b)
	maxC := math32.Max(rf, math32.Max(gf, bf))
	minC := math32.Min(rf, math32.Min(gf, bf))
	v = byte(maxC)
	delta := maxC - minC
	if maxC > 0 {
		s = byte(255*delta/maxC + 0.5)
	}
	if delta == 0 {
		return 0, s, v
	}
	var hue float32
	switch maxC {
	case rf:
		hue = 60 * (gf - bf) / delta
	case gf:
		hue = 60 * (2 + (bf-rf)/delta)
	default:
		hue = 60 * (4 + (rf-gf)/delta)
	}
	if hue < 0 {
		hue += 360
	}
	return byte(hue/2 + 0.5), s, v
}

// RGBToLAB converts one pixel to 8-bit CIELAB: L scaled to 0..255,
// a and b offset by 128.
func RGBToLAB(r, g, b byte) (l, a, bb byte) {
	// sRGB to linear
	lin := func(c byte) float32 {
		cf := float32(c) / 255
		if cf <= 0.04045 {
			return cf / 12.92
		}
		return math32.Pow((cf+0.055)/1.055, 2.4)
	}
	rl, gl, bl := lin(r), lin(g), lin(b)

	// Linear RGB to XYZ (D65), normalized to the white point
	x := (0.412453*rl + 0.357580*gl + 0.180423*bl) / 0.950456
	y := 0.212671*rl + 0.715160*gl + 0.072169*bl
	z := (0.019334*rl + 0.119193*gl + 0.950227*bl) / 1.088754

	f := func(t float32) float32 {
		if t > 0.008856 {
			return math32.Cbrt(t)
		}
		return 7.787*t + 16.0/116.0
	}
	fx, fy, fz := f(x), f(y), f(z)

	var lf float32
	if y > 0.008856 {
		lf = 116*fy - 16
	} else {
		lf = 903.3 * y
	}
	af := 500 * (fx - fy)
	bf := 200 * (fy - fz)

	clampByte := func(v float32) byte {
		if v < 0 {
			return 0
		}
		if v > 255 {
			return 255
		}
		return byte(v + 0.5)
	}
	return clampByte(lf * 255 / 100), clampByte(af + 128), clampByte(bf + 128)
}

// ExcessGreen computes 2G-R-B for one pixel. Positive for green-dominated pixels.
func ExcessGreen(r, g, b byte) float32 {
	return 2*float32(g) - float32(r) - float32(b)
}

// GreenRedRatio computes (G-R)/(G+R), or 0 when the denominator is zero.
func GreenRedRatio(r, g byte) float32 {
	den := float32(g) + float32(r)
	if den == 0 {
		return 0
	}
	return (float32(g) - float32(r)) / den
}
