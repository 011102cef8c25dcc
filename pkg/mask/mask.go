package mask

// Package mask holds the binary detection masks and per-pixel confidence maps
// that the ensemble and classifiers produce. Masks are never mutated once a
// pipeline step has emitted them; steps compose existing masks into new ones.

const (
	// On is the value of a set mask pixel.
	On = 255
)

// Mask is a width*height grid of 0/255 bytes.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// New creates an empty (all-off) mask.
func New(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// NewFilled creates an all-on mask.
func NewFilled(width, height int) *Mask {
	m := New(width, height)
	for i := range m.Pix {
		m.Pix[i] = On
	}
	return m
}

// Get returns true if the pixel at (x, y) is on.
func (m *Mask) Get(x, y int) bool {
	return m.Pix[y*m.Width+x] != 0
}

// Set turns the pixel at (x, y) on or off.
func (m *Mask) Set(x, y int, on bool) {
	if on {
		m.Pix[y*m.Width+x] = On
	} else {
		m.Pix[y*m.Width+x] = 0
	}
}

// CountOn returns the number of set pixels.
func (m *Mask) CountOn() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Coverage returns the fraction of set pixels, in [0, 1].
func (m *Mask) Coverage() float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	return float64(m.CountOn()) / float64(len(m.Pix))
}

// AreaHa returns the ground area of the set pixels in hectares, for the given
// scale factor (meters per pixel edge).
func (m *Mask) AreaHa(metersPerPixel float64) float64 {
	return float64(m.CountOn()) * metersPerPixel * metersPerPixel / 10000.0
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	c := New(m.Width, m.Height)
	copy(c.Pix, m.Pix)
	return c
}

// And returns a new mask with pixels set where both masks are set.
func (m *Mask) And(other *Mask) *Mask {
	out := New(m.Width, m.Height)
	for i := range m.Pix {
		if m.Pix[i] != 0 && other.Pix[i] != 0 {
			out.Pix[i] = On
		}
	}
	return out
}

// Or returns a new mask with pixels set where either mask is set.
func (m *Mask) Or(other *Mask) *Mask {
	out := New(m.Width, m.Height)
	for i := range m.Pix {
		if m.Pix[i] != 0 || other.Pix[i] != 0 {
			out.Pix[i] = On
		}
	}
	return out
}

// AndNot returns a new mask with pixels set where m is set and other is not.
func (m *Mask) AndNot(other *Mask) *Mask {
	out := New(m.Width, m.Height)
	for i := range m.Pix {
		if m.Pix[i] != 0 && other.Pix[i] == 0 {
			out.Pix[i] = On
		}
	}
	return out
}

// Equal returns true if both masks have identical dimensions and pixels.
func (m *Mask) Equal(other *Mask) bool {
	if m.Width != other.Width || m.Height != other.Height {
		return false
	}
	for i := range m.Pix {
		if (m.Pix[i] != 0) != (other.Pix[i] != 0) {
			return false
		}
	}
	return true
}
