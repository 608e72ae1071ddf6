// Package intval provides checked arithmetic over the fixed-width integer
// domain used by the CP propagator: values clamped to [MinVal, MaxVal] so
// that the full range plus a coefficient product always fits in 64 bits.
package intval

import (
	"math"

	"github.com/pkg/errors"
)

// Val is a CP integer value or coefficient. It is always kept within
// [math.MinInt32, math.MaxInt32] by the checked operations in this package;
// callers that need the narrower problem-domain range call CheckValid.
type Val int32

const (
	// MinVal is the smallest value a CP variable may take. It leaves one
	// slot below it (MinVal-1) for the permanently-false order literal.
	MinVal Val = -(1 << 30) + 1
	// MaxVal is the largest value a CP variable may take, reserved as the
	// permanently-true order literal.
	MaxVal Val = (1 << 30) - 1
)

// ErrOverflow is returned when an operation's result exceeds MaxInt32.
var ErrOverflow = errors.New("intval: overflow")

// ErrUnderflow is returned when an operation's result is below MinInt32.
var ErrUnderflow = errors.New("intval: underflow")

func clamp(v int64) (Val, error) {
	if v > math.MaxInt32 {
		return 0, ErrOverflow
	}
	if v < math.MinInt32 {
		return 0, ErrUnderflow
	}
	return Val(v), nil
}

// Add returns a+b, checked against int32 range.
func Add(a, b Val) (Val, error) {
	return clamp(int64(a) + int64(b))
}

// Sub returns a-b, checked against int32 range.
func Sub(a, b Val) (Val, error) {
	return clamp(int64(a) - int64(b))
}

// Mul returns a*b, checked against int32 range.
func Mul(a, b Val) (Val, error) {
	return clamp(int64(a) * int64(b))
}

// Neg returns -a, checked against int32 range (MinInt32 has no positive
// counterpart).
func Neg(a Val) (Val, error) {
	return clamp(-int64(a))
}

// Div returns the truncated-toward-negative-infinity quotient a/b, checked
// against int32 range and against division by zero.
func Div(a, b Val) (Val, error) {
	if b == 0 {
		return 0, errors.New("intval: division by zero")
	}
	q := floorDiv(int64(a), int64(b))
	return clamp(q)
}

// Mod returns the floored modulo a mod b (result has the sign of b, or is
// zero), checked against division by zero.
func Mod(a, b Val) (Val, error) {
	if b == 0 {
		return 0, errors.New("intval: modulo by zero")
	}
	q := floorDiv(int64(a), int64(b))
	r := int64(a) - q*int64(b)
	return clamp(r)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// CheckValid returns an error if v falls outside [MinVal, MaxVal], the
// range CP variables and constants are actually allowed to take (as opposed
// to the wider [MinInt32, MaxInt32] range the checked arithmetic above
// operates in before clamping to the narrower problem domain).
func CheckValid(v Val) error {
	if v > MaxVal {
		return errors.Wrapf(ErrOverflow, "value %d exceeds MaxVal %d", v, MaxVal)
	}
	if v < MinVal {
		return errors.Wrapf(ErrUnderflow, "value %d below MinVal %d", v, MinVal)
	}
	return nil
}

// Clamp forces v into [MinVal, MaxVal], used for order-literal bounds where
// values beyond the configured range should collapse to the permanent
// true/false sentinels rather than erroring.
func Clamp(v Val) Val {
	if v > MaxVal {
		return MaxVal
	}
	if v < MinVal {
		return MinVal
	}
	return v
}

// Midpoint returns the integer midpoint of [lo, hi], rounded toward lo, used
// by the decision heuristic (spec §4.4.4) to pick a branching value.
func Midpoint(lo, hi Val) Val {
	// (lo+hi) computed in int64 to avoid overflow even though lo, hi are
	// individually in-range.
	return Val((int64(lo) + int64(hi)) >> 1)
}
