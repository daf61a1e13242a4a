// Package mathx has the small generic helpers the peripherals share.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return Min(Max(v, lo), hi)
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Saturate narrows v to the width of a smaller unsigned type, pinning
// out-of-range values at its maximum instead of wrapping.
func Saturate[To constraints.Unsigned, From constraints.Unsigned](v From, max To) To {
	if v > From(max) {
		return max
	}
	return To(v)
}
