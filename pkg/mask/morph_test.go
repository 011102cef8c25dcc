package mask

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseFillsHoles(t *testing.T) {
	m := NewFilled(20, 20)
	m.Set(10, 10, false)
	closed := m.Close(1)
	require.True(t, closed.Get(10, 10))
	require.Equal(t, m.Width*m.Height, closed.CountOn())
}

func TestOpenRemovesSpeckle(t *testing.T) {
	m := New(20, 20)
	m.Set(5, 5, true)
	m.Set(14, 3, true)
	opened := m.Open(1)
	require.Equal(t, 0, opened.CountOn())
}

func TestMorphologyPreservesFullMask(t *testing.T) {
	// Erosion ignores out-of-bounds neighbors, so a full-coverage mask must
	// survive a close/open cycle intact.
	m := NewFilled(30, 30)
	out := m.Close(2).Open(1)
	require.Equal(t, 30*30, out.CountOn())
}

func TestDilateGrowsBlock(t *testing.T) {
	m := New(10, 10)
	m.Set(5, 5, true)
	d := m.Dilate(1)
	require.Equal(t, 9, d.CountOn())
	require.True(t, d.Get(4, 4))
	require.True(t, d.Get(6, 6))
	require.False(t, d.Get(3, 5))
}

func TestRemoveSmallComponents(t *testing.T) {
	m := New(30, 30)
	// A 5x5 block and a lone pixel.
	for y := 2; y < 7; y++ {
		for x := 2; x < 7; x++ {
			m.Set(x, y, true)
		}
	}
	m.Set(20, 20, true)
	out := m.RemoveSmallComponents(10)
	require.Equal(t, 25, out.CountOn())
	require.False(t, out.Get(20, 20))
}

func TestLargestComponentFraction(t *testing.T) {
	m := New(30, 30)
	for y := 0; y < 5; y++ {
		for x := 0; x < 10; x++ {
			m.Set(x, y, true) // 50 pixels
		}
	}
	for y := 20; y < 25; y++ {
		for x := 20; x < 22; x++ {
			m.Set(x, y, true) // 10 pixels
		}
	}
	require.InDelta(t, 50.0/60.0, m.LargestComponentFraction(), 1e-9)
	require.EqualValues(t, 0, New(5, 5).LargestComponentFraction())
}

func TestMaskComposition(t *testing.T) {
	a := New(4, 4)
	b := New(4, 4)
	a.Set(0, 0, true)
	a.Set(1, 1, true)
	b.Set(1, 1, true)
	b.Set(2, 2, true)

	require.Equal(t, 1, a.And(b).CountOn())
	require.Equal(t, 3, a.Or(b).CountOn())
	diff := a.AndNot(b)
	require.Equal(t, 1, diff.CountOn())
	require.True(t, diff.Get(0, 0))
}

func TestMaskAreaHa(t *testing.T) {
	m := NewFilled(100, 100)
	// 10 m/px: each pixel covers 100 m2, the full mask 100 ha.
	require.InDelta(t, 100.0, m.AreaHa(10), 1e-9)
	require.InDelta(t, 1.0, m.Coverage(), 1e-12)
}
