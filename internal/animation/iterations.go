package animation

import (
	"fmt"
	"math"
)

// iterationKind separates the three iteration states an effect can be in.
type iterationKind uint8

const (
	iterationsUnshowable iterationKind = iota
	iterationsFinite
	iterationsInfinite
)

// Iterations is the derived repeat count of an effect.
//
// Unshowable marks a zero-length effect (no delay, end delay or duration) that
// has nothing to display. Infinite marks an effect that repeats forever.
// Everything else is a finite, possibly fractional, count.
type Iterations struct {
	kind  iterationKind
	count float64
}

// Unshowable returns the iteration state of a zero-length effect.
func Unshowable() Iterations { return Iterations{kind: iterationsUnshowable} }

// Infinite returns the iteration state of an endlessly repeating effect.
func Infinite() Iterations { return Iterations{kind: iterationsInfinite} }

// Finite returns a finite iteration count. Non-positive and non-finite counts
// are treated as infinite, matching how the protocol reports them.
func Finite(n float64) Iterations {
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Infinite()
	}
	return Iterations{kind: iterationsFinite, count: n}
}

func (i Iterations) IsUnshowable() bool { return i.kind == iterationsUnshowable }
func (i Iterations) IsInfinite() bool   { return i.kind == iterationsInfinite }
func (i Iterations) IsFinite() bool     { return i.kind == iterationsFinite }

// Count returns the numeric repeat count: 0 for unshowable, +Inf for infinite.
func (i Iterations) Count() float64 {
	switch i.kind {
	case iterationsFinite:
		return i.count
	case iterationsInfinite:
		return math.Inf(1)
	default:
		return 0
	}
}

// Capped returns the count limited to limit. Unshowable stays 0.
func (i Iterations) Capped(limit float64) float64 {
	return math.Min(i.Count(), limit)
}

func (i Iterations) String() string {
	switch i.kind {
	case iterationsFinite:
		return fmt.Sprintf("%g", i.count)
	case iterationsInfinite:
		return "infinite"
	default:
		return "unshowable"
	}
}
