// Package generator implements the schema-directed value generator of
// spec.md §4.1: one walker shared by the realistic and aggressive phases.
package generator

import "math/rand/v2"

// rngType is the concrete RNG type Walker embeds. Aliased so the rest of
// this package can refer to it without importing math/rand/v2 directly.
type rngType = rand.Rand

// newRNG returns a deterministic generator seeded from the TestCase seed.
// PCG is stdlib (math/rand/v2); no third-party RNG appears anywhere in the
// retrieved pack, so there is nothing to adopt here (see DESIGN.md).
func newRNG(seed uint64) *rngType {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (w *Walker) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(w.rng.IntN(n))
}

func (w *Walker) float64() float64 { return w.rng.Float64() }

func (w *Walker) boolean() bool { return w.rng.IntN(2) == 0 }

// intRange returns a uniform int64 in [lo, hi].
func (w *Walker) intRange(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	span := hi - lo + 1
	if span <= 0 || span > (1<<62) {
		return lo
	}
	return lo + int64(w.rng.Uint64N(uint64(span)))
}

func (w *Walker) floatRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + w.rng.Float64()*(hi-lo)
}
