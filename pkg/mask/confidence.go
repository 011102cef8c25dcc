package mask

import (
	"github.com/chewxy/math32"
)

// ConfidenceMap is a per-pixel confidence grid, values in [0, 1].
// Every mask emitted by the pipeline is paired with one of these.
type ConfidenceMap struct {
	Width  int
	Height int
	Values []float32
}

// NewConfidenceMap creates a zeroed confidence map.
func NewConfidenceMap(width, height int) *ConfidenceMap {
	return &ConfidenceMap{
		Width:  width,
		Height: height,
		Values: make([]float32, width*height),
	}
}

// NewUniformConfidence creates a map with every value set to v.
func NewUniformConfidence(width, height int, v float32) *ConfidenceMap {
	c := NewConfidenceMap(width, height)
	v = math32.Max(0, math32.Min(1, v))
	for i := range c.Values {
		c.Values[i] = v
	}
	return c
}

// Get returns the confidence at (x, y).
func (c *ConfidenceMap) Get(x, y int) float32 {
	return c.Values[y*c.Width+x]
}

// Set stores a confidence at (x, y), clamped to [0, 1].
func (c *ConfidenceMap) Set(x, y int, v float32) {
	c.Values[y*c.Width+x] = math32.Max(0, math32.Min(1, v))
}

// MeanUnder returns the mean confidence over the set pixels of m,
// or 0 if the mask is empty.
func (c *ConfidenceMap) MeanUnder(m *Mask) float64 {
	sum := 0.0
	n := 0
	for i, v := range m.Pix {
		if v != 0 {
			sum += float64(c.Values[i])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Clone returns a deep copy.
func (c *ConfidenceMap) Clone() *ConfidenceMap {
	out := NewConfidenceMap(c.Width, c.Height)
	copy(out.Values, c.Values)
	return out
}
