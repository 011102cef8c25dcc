package mask

// Morphology with a 3x3 square structuring element. Pixels outside the image
// are treated as off, which matches the behavior the detection pipeline wants
// at image borders.

// Dilate returns a new mask where a pixel is on if any pixel in its 3x3
// neighborhood was on. Applied 'iterations' times.
func (m *Mask) Dilate(iterations int) *Mask {
	cur := m
	for it := 0; it < iterations; it++ {
		out := New(cur.Width, cur.Height)
		for y := 0; y < cur.Height; y++ {
			for x := 0; x < cur.Width; x++ {
				if neighborhoodAny(cur, x, y) {
					out.Pix[y*cur.Width+x] = On
				}
			}
		}
		cur = out
	}
	if cur == m {
		return m.Clone()
	}
	return cur
}

// Erode returns a new mask where a pixel is on only if every pixel in its
// 3x3 neighborhood was on. Applied 'iterations' times.
func (m *Mask) Erode(iterations int) *Mask {
	cur := m
	for it := 0; it < iterations; it++ {
		out := New(cur.Width, cur.Height)
		for y := 0; y < cur.Height; y++ {
			for x := 0; x < cur.Width; x++ {
				if neighborhoodAll(cur, x, y) {
					out.Pix[y*cur.Width+x] = On
				}
			}
		}
		cur = out
	}
	if cur == m {
		return m.Clone()
	}
	return cur
}

// Close fills small gaps: dilate then erode.
func (m *Mask) Close(iterations int) *Mask {
	return m.Dilate(iterations).Erode(iterations)
}

// Open removes speckle: erode then dilate.
func (m *Mask) Open(iterations int) *Mask {
	return m.Erode(iterations).Dilate(iterations)
}

func neighborhoodAny(m *Mask, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		yy := y + dy
		if yy < 0 || yy >= m.Height {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			xx := x + dx
			if xx < 0 || xx >= m.Width {
				continue
			}
			if m.Pix[yy*m.Width+xx] != 0 {
				return true
			}
		}
	}
	return false
}

func neighborhoodAll(m *Mask, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		yy := y + dy
		for dx := -1; dx <= 1; dx++ {
			xx := x + dx
			if xx < 0 || yy < 0 || xx >= m.Width || yy >= m.Height {
				// Neighbors outside the image are ignored, so erosion does
				// not eat a 1px rim off full-coverage masks.
				continue
			}
			if m.Pix[yy*m.Width+xx] == 0 {
				return false
			}
		}
	}
	return true
}

// components labels 8-connected components and returns the label grid and
// per-label pixel counts. Label 0 means off.
func (m *Mask) components() (labels []int32, sizes []int) {
	labels = make([]int32, len(m.Pix))
	sizes = []int{0} // index 0 unused
	queue := make([]int32, 0, 256)
	next := int32(1)
	for start := range m.Pix {
		if m.Pix[start] == 0 || labels[start] != 0 {
			continue
		}
		label := next
		next++
		count := 0
		queue = append(queue[:0], int32(start))
		labels[start] = label
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			count++
			x := int(i) % m.Width
			y := int(i) / m.Width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx, yy := x+dx, y+dy
					if xx < 0 || yy < 0 || xx >= m.Width || yy >= m.Height {
						continue
					}
					j := yy*m.Width + xx
					if m.Pix[j] != 0 && labels[j] == 0 {
						labels[j] = label
						queue = append(queue, int32(j))
					}
				}
			}
		}
		sizes = append(sizes, count)
	}
	return labels, sizes
}

// RemoveSmallComponents returns a new mask with every 8-connected component
// smaller than minPixels removed.
func (m *Mask) RemoveSmallComponents(minPixels int) *Mask {
	labels, sizes := m.components()
	out := New(m.Width, m.Height)
	for i, l := range labels {
		if l != 0 && sizes[l] >= minPixels {
			out.Pix[i] = On
		}
	}
	return out
}

// LargestComponentFraction returns the size of the largest 8-connected
// component as a fraction of all set pixels, or 0 for an empty mask.
// Used as the spatial-coherence term of type confidence.
func (m *Mask) LargestComponentFraction() float64 {
	_, sizes := m.components()
	total := 0
	largest := 0
	for _, s := range sizes[1:] {
		total += s
		if s > largest {
			largest = s
		}
	}
	if total == 0 {
		return 0
	}
	return float64(largest) / float64(total)
}
