// Package interval implements a disjoint-range set of integers, used for
// explicit variable domains (spec §3, §4.4.6 "Domain constraints").
package interval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/potassco/clingcon-core/pkg/intval"
)

// Range is a half-open interval [Lo, Hi) of CP values: it contains every
// value v with Lo <= v < Hi.
type Range struct {
	Lo, Hi intval.Val
}

// Empty reports whether the range contains no values.
func (r Range) Empty() bool { return r.Hi <= r.Lo }

// String renders the range as "lo..hi-1", matching the inclusive notation
// of the theory grammar's dom_term (spec §6).
func (r Range) String() string {
	return fmt.Sprintf("%d..%d", r.Lo, r.Hi-1)
}

// Set is a sorted sequence of disjoint, non-adjacent Ranges: a finite-domain
// representation suitable for the explicit domains the &dom/0 theory atom
// introduces. Values may span the full [MinVal, MaxVal] problem range, so
// Set is range-based rather than bitset-based (contrast
// gitrdm-gokando/pkg/minikanren.BitSetDomain, whose bit-per-value
// representation only fits domains of a few hundred values).
type Set struct {
	ranges []Range
}

// New builds a normalized Set from the given ranges: overlapping or
// touching ranges are merged and the result is sorted ascending.
func New(ranges ...Range) Set {
	var filtered []Range
	for _, r := range ranges {
		if !r.Empty() {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Lo < filtered[j].Lo })

	var merged []Range
	for _, r := range filtered {
		if n := len(merged); n > 0 && r.Lo <= merged[n-1].Hi {
			if r.Hi > merged[n-1].Hi {
				merged[n-1].Hi = r.Hi
			}
			continue
		}
		merged = append(merged, r)
	}
	return Set{ranges: merged}
}

// Ranges returns the normalized, sorted, disjoint ranges backing s. Callers
// must not mutate the returned slice.
func (s Set) Ranges() []Range { return s.ranges }

// Empty reports whether s contains no values.
func (s Set) Empty() bool { return len(s.ranges) == 0 }

// Min returns the smallest value in s. Panics if s is empty.
func (s Set) Min() intval.Val { return s.ranges[0].Lo }

// Max returns the largest value in s (inclusive). Panics if s is empty.
func (s Set) Max() intval.Val { return s.ranges[len(s.ranges)-1].Hi - 1 }

// Contains reports whether v falls in s.
func (s Set) Contains(v intval.Val) bool {
	i := sort.Search(len(s.ranges), func(i int) bool { return s.ranges[i].Hi > v })
	return i < len(s.ranges) && s.ranges[i].Lo <= v
}

// Intersect returns the set of values present in both s and bounds
// [lo, hi] (inclusive), used to restrict a domain to a variable's current
// bounds before propagation.
func (s Set) Intersect(lo, hi intval.Val) Set {
	var out []Range
	for _, r := range s.ranges {
		l, h := r.Lo, r.Hi
		if l < lo {
			l = lo
		}
		if h > hi+1 {
			h = hi + 1
		}
		if l < h {
			out = append(out, Range{Lo: l, Hi: h})
		}
	}
	return Set{ranges: out}
}

// Union returns the set of values present in either s or other.
func (s Set) Union(other Set) Set {
	combined := make([]Range, 0, len(s.ranges)+len(other.ranges))
	combined = append(combined, s.ranges...)
	combined = append(combined, other.ranges...)
	return New(combined...)
}

// Iterate calls f for each value in s, in ascending order. f returning false
// stops iteration early.
func (s Set) Iterate(f func(v intval.Val) bool) {
	for _, r := range s.ranges {
		for v := r.Lo; v < r.Hi; v++ {
			if !f(v) {
				return
			}
		}
	}
}

// Gaps returns the ranges strictly between consecutive intervals of s — the
// values &dom/0's chain encoding (spec §4.4.6) must forbid.
func (s Set) Gaps() []Range {
	var gaps []Range
	for i := 1; i < len(s.ranges); i++ {
		gaps = append(gaps, Range{Lo: s.ranges[i-1].Hi, Hi: s.ranges[i].Lo})
	}
	return gaps
}

// String renders the set as a comma-separated list of ranges, e.g.
// "1..3,7..9".
func (s Set) String() string {
	parts := make([]string, len(s.ranges))
	for i, r := range s.ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
