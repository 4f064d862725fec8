package mesh

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// openRing converts a closed input ring to an orb.LineString without the
// duplicated closing point. Rings that are not explicitly closed are taken
// as they are.
func openRing(ring [][2]float64) orb.LineString {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	ls := make(orb.LineString, n)
	for i := 0; i < n; i++ {
		ls[i] = orb.Point(ring[i])
	}
	return ls
}

// simplifyRing reduces the ring with Douglas-Peucker at tolerance (degrees).
// A tolerance of zero or less returns the ring unchanged, so LOD 0 is exact.
// Consecutive duplicate points are removed in both cases.
func simplifyRing(ls orb.LineString, tolerance float64) orb.LineString {
	if tolerance > 0 && len(ls) > 2 {
		// The simplifier works in place.
		ls = simplify.DouglasPeucker(tolerance).LineString(ls.Clone())
	}
	return dedupe(ls)
}

// dedupe drops consecutive equal points, including a trailing point equal
// to the first one.
func dedupe(ls orb.LineString) orb.LineString {
	if len(ls) == 0 {
		return ls
	}
	out := ls[:1]
	for _, p := range ls[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	for len(out) > 1 && out[len(out)-1] == out[0] {
		out = out[:len(out)-1]
	}
	return out
}
