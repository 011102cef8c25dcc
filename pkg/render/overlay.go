// Package render draws validation overlays for detection results, so a
// reviewer can see which pixels the analysis attributed to forest.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/verdantmrv/canopy/pkg/detect"
	"github.com/verdantmrv/canopy/pkg/mask"
	"github.com/verdantmrv/canopy/pkg/raster"
)

// maskTint is the color painted over detected forest pixels.
var maskTint = color.NRGBA{R: 40, G: 220, B: 90, A: 110}

// Overlay renders the source image with the forest mask tinted on top and a
// small caption summarizing the detection, and writes it to outPath as PNG.
func Overlay(img *raster.Image, m *mask.Mask, result *detect.Result, outPath string) error {
	if m.Width != img.Width || m.Height != img.Height {
		return fmt.Errorf("mask size %vx%v does not match image %vx%v", m.Width, m.Height, img.Width, img.Height)
	}
	dc := gg.NewContext(img.Width, img.Height)
	dc.DrawImage(img.ToImage(), 0, 0)
	dc.DrawImage(tintLayer(m), 0, 0)

	if result != nil {
		caption := fmt.Sprintf("%.1f%% forest, %.2f ha, confidence %.2f",
			result.CoveragePercent, result.TotalAreaHa, result.Confidence)
		drawCaption(dc, caption)
	}
	if err := dc.SavePNG(outPath); err != nil {
		return fmt.Errorf("failed to write overlay %v: %w", outPath, err)
	}
	return nil
}

func tintLayer(m *mask.Mask) image.Image {
	layer := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Get(x, y) {
				layer.SetNRGBA(x, y, maskTint)
			}
		}
	}
	return layer
}

func drawCaption(dc *gg.Context, caption string) {
	w, h := dc.MeasureString(caption)
	pad := 6.0
	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawRectangle(0, 0, w+2*pad, h+2*pad)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawString(caption, pad, pad+h)
}
