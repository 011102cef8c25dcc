package raster

import (
	"errors"
	"fmt"
	"image"

	"github.com/bmharper/cimg/v2"
)

// Package raster holds the image model that a detection run operates on.
// An Image is loaded once, owned by a single run, and never mutated after
// construction. Preprocessing produces new images.

var (
	// ErrUnsupportedImageFormat indicates an image with fewer than 3 channels.
	ErrUnsupportedImageFormat = errors.New("unsupported image format: need at least 3 channels")

	// ErrImageDecode indicates that the raster could not be decoded at all.
	ErrImageDecode = errors.New("image decode failure")
)

// SquareMetersPerHectare converts square meters to hectares.
const SquareMetersPerHectare = 10000.0

// Image is a packed 8-bit raster with 3 or more channels, plus the ground
// scale at which it was captured (meters per pixel edge).
type Image struct {
	Width          int
	Height         int
	NChan          int    // Number of channels (3 for RGB, 4 for RGBA)
	Pixels         []byte // Packed rows, stride = Width * NChan
	MetersPerPixel float64
}

// NewImage creates a zeroed image.
func NewImage(width, height, nchan int, metersPerPixel float64) *Image {
	return &Image{
		Width:          width,
		Height:         height,
		NChan:          nchan,
		Pixels:         make([]byte, width*height*nchan),
		MetersPerPixel: metersPerPixel,
	}
}

// NewUniform creates an image filled with a single RGB color.
func NewUniform(width, height int, r, g, b byte, metersPerPixel float64) *Image {
	img := NewImage(width, height, 3, metersPerPixel)
	for i := 0; i < len(img.Pixels); i += 3 {
		img.Pixels[i] = r
		img.Pixels[i+1] = g
		img.Pixels[i+2] = b
	}
	return img
}

// FromCImage wraps a decoded cimg image.
// Fails with ErrUnsupportedImageFormat if the image has fewer than 3 channels.
func FromCImage(im *cimg.Image, metersPerPixel float64) (*Image, error) {
	if im.NChan() < 3 {
		return nil, fmt.Errorf("%w (got %v channels)", ErrUnsupportedImageFormat, im.NChan())
	}
	return &Image{
		Width:          im.Width,
		Height:         im.Height,
		NChan:          im.NChan(),
		Pixels:         im.Pixels,
		MetersPerPixel: metersPerPixel,
	}, nil
}

// ReadFile decodes an image file (JPEG/PNG) into an Image.
func ReadFile(filename string, metersPerPixel float64) (*Image, error) {
	im, err := cimg.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrImageDecode, filename, err)
	}
	return FromCImage(im, metersPerPixel)
}

// RGB returns the color of the pixel at (x, y).
func (img *Image) RGB(x, y int) (r, g, b byte) {
	i := (y*img.Width + x) * img.NChan
	return img.Pixels[i], img.Pixels[i+1], img.Pixels[i+2]
}

// SetRGB sets the color of the pixel at (x, y).
func (img *Image) SetRGB(x, y int, r, g, b byte) {
	i := (y*img.Width + x) * img.NChan
	img.Pixels[i] = r
	img.Pixels[i+1] = g
	img.Pixels[i+2] = b
}

// PixelCount returns the number of pixels in the image.
func (img *Image) PixelCount() int {
	return img.Width * img.Height
}

// HectaresPerPixel returns the ground area covered by one pixel, in hectares.
func (img *Image) HectaresPerPixel() float64 {
	return img.MetersPerPixel * img.MetersPerPixel / SquareMetersPerHectare
}

// AreaHa returns the ground area covered by the whole image, in hectares.
func (img *Image) AreaHa() float64 {
	return float64(img.PixelCount()) * img.HectaresPerPixel()
}

// Clone returns a deep copy. The copy shares no pixel memory with the original.
func (img *Image) Clone() *Image {
	c := *img
	c.Pixels = make([]byte, len(img.Pixels))
	copy(c.Pixels, img.Pixels)
	return &c
}

// ToImage converts to a stdlib RGBA image, for rendering overlays.
func (img *Image) ToImage() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.RGB(x, y)
			i := out.PixOffset(x, y)
			out.Pix[i] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = 255
		}
	}
	return out
}
