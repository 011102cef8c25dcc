// Package gen holds small generic helpers shared by the pixel loops, where
// the operands are a mix of byte, int and float32.
package gen

type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

type Float interface {
	~float32 | ~float64
}

type Ordered interface {
	Integer | Float | ~string
}

// Min returns the smaller of a and b.
func Min[T Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Abs returns the absolute value of a.
func Abs[T Integer | Float](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// Clamp limits v to the range [min, max].
func Clamp[T Ordered](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
