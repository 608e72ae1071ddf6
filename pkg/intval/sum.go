package intval

import (
	"math"
	"math/big"

	"github.com/pkg/errors"
)

// Sum64 accumulates a linear combination of Val coefficients and bounds in a
// 64-bit accumulator, wide enough that no single coefficient*bound product
// or running sum over a problem-sized constraint can silently wrap, while
// still being checked against int64 range before it is ever narrowed back
// down to a Val for comparison against a right-hand side.
type Sum64 struct {
	v int64
}

// NewSum64 creates an accumulator starting at zero.
func NewSum64() *Sum64 { return &Sum64{} }

// AddTerm adds coeff*bound to the accumulator, checked against int64
// overflow (coeff and bound are each bounded by [MinInt32, MaxInt32], so
// their product always fits in int64; only the running sum can overflow a
// pathologically large constraint).
func (s *Sum64) AddTerm(coeff, bound Val) error {
	term := int64(coeff) * int64(bound)
	next := s.v + term
	// Overflow check: if both operands share a sign but the result doesn't,
	// or if we cross int64 bounds.
	if term > 0 && s.v > math.MaxInt64-term {
		return errors.Wrap(ErrOverflow, "sum64: accumulator overflow")
	}
	if term < 0 && s.v < math.MinInt64-term {
		return errors.Wrap(ErrUnderflow, "sum64: accumulator underflow")
	}
	s.v = next
	return nil
}

// Value returns the current accumulated sum.
func (s *Sum64) Value() int64 { return s.v }

// CompareVal compares the accumulated sum against a Val right-hand side.
func (s *Sum64) CompareVal(rhs Val) int {
	switch {
	case s.v < int64(rhs):
		return -1
	case s.v > int64(rhs):
		return 1
	default:
		return 0
	}
}

// ToVal narrows the accumulator back to a Val, checked against int32 range
// only; it does not check the narrower [MinVal, MaxVal] problem domain.
func (s *Sum64) ToVal() (Val, error) {
	if s.v > int64(math.MaxInt32) || s.v < int64(math.MinInt32) {
		if s.v > 0 {
			return 0, ErrOverflow
		}
		return 0, ErrUnderflow
	}
	return Val(s.v), nil
}

// Sum128 accumulates the partial sums of non-linear (product) terms, which
// can exceed 64 bits once two Val-range factors are each multiplied by a
// Val-range coefficient and summed across many terms. Backed by math/big,
// the only widening-integer facility in the retrieved corpus that isn't
// itself a cryptography-specific bignum (see DESIGN.md).
type Sum128 struct {
	v *big.Int
}

// NewSum128 creates an accumulator starting at zero.
func NewSum128() *Sum128 {
	return &Sum128{v: new(big.Int)}
}

// AddProduct adds coeffAB*va*vb to the accumulator.
func (s *Sum128) AddProduct(coeffAB, va, vb Val) {
	t := big.NewInt(int64(coeffAB))
	t.Mul(t, big.NewInt(int64(va)))
	t.Mul(t, big.NewInt(int64(vb)))
	s.v.Add(s.v, t)
}

// AddTerm adds coeff*bound to the accumulator.
func (s *Sum128) AddTerm(coeff, bound Val) {
	t := big.NewInt(int64(coeff))
	t.Mul(t, big.NewInt(int64(bound)))
	s.v.Add(s.v, t)
}

// CompareVal compares the accumulated sum against a Val right-hand side.
func (s *Sum128) CompareVal(rhs Val) int {
	return s.v.Cmp(big.NewInt(int64(rhs)))
}

// CompareSum compares two accumulators.
func (s *Sum128) CompareSum(other *Sum128) int {
	return s.v.Cmp(other.v)
}

// Clone returns an independent copy of the accumulator.
func (s *Sum128) Clone() *Sum128 {
	return &Sum128{v: new(big.Int).Set(s.v)}
}

// Negate flips the accumulator's sign in place.
func (s *Sum128) Negate() {
	s.v.Neg(s.v)
}

// ToVal narrows the accumulator back to a Val, checked against int32 range.
func (s *Sum128) ToVal() (Val, error) {
	if !s.v.IsInt64() {
		if s.v.Sign() > 0 {
			return 0, ErrOverflow
		}
		return 0, ErrUnderflow
	}
	i := s.v.Int64()
	if i > int64(math.MaxInt32) {
		return 0, ErrOverflow
	}
	if i < int64(math.MinInt32) {
		return 0, ErrUnderflow
	}
	return Val(i), nil
}
