package intval

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOverflow(t *testing.T) {
	v, err := Add(1, 2)
	require.NoError(t, err)
	assert.Equal(t, Val(3), v)

	_, err = Add(math.MaxInt32, 1)
	assert.True(t, errors.Is(err, ErrOverflow))

	_, err = Add(math.MinInt32, -1)
	assert.True(t, errors.Is(err, ErrUnderflow))
}

func TestSub(t *testing.T) {
	v, err := Sub(3, 5)
	require.NoError(t, err)
	assert.Equal(t, Val(-2), v)

	_, err = Sub(math.MinInt32, 1)
	assert.True(t, errors.Is(err, ErrUnderflow))
}

func TestMulOverflow(t *testing.T) {
	v, err := Mul(-4, 5)
	require.NoError(t, err)
	assert.Equal(t, Val(-20), v)

	_, err = Mul(math.MaxInt32, 2)
	assert.True(t, errors.Is(err, ErrOverflow))
}

func TestNeg(t *testing.T) {
	v, err := Neg(7)
	require.NoError(t, err)
	assert.Equal(t, Val(-7), v)

	_, err = Neg(math.MinInt32)
	assert.True(t, errors.Is(err, ErrOverflow))
}

func TestDivFloors(t *testing.T) {
	cases := []struct {
		a, b, want Val
	}{
		{7, 2, 3},
		{-7, 2, -4},
		{7, -2, -4},
		{-7, -2, 3},
	}
	for _, c := range cases {
		v, err := Div(c.a, c.b)
		require.NoError(t, err)
		assert.Equal(t, c.want, v, "%d / %d", c.a, c.b)
	}
	_, err := Div(1, 0)
	assert.Error(t, err)
}

func TestModFloored(t *testing.T) {
	v, err := Mod(7, 3)
	require.NoError(t, err)
	assert.Equal(t, Val(1), v)

	v, err = Mod(-7, 3)
	require.NoError(t, err)
	assert.Equal(t, Val(2), v)

	_, err = Mod(1, 0)
	assert.Error(t, err)
}

func TestCheckValid(t *testing.T) {
	assert.NoError(t, CheckValid(MaxVal))
	assert.NoError(t, CheckValid(MinVal))
	assert.True(t, errors.Is(CheckValid(MaxVal+1), ErrOverflow))
	assert.True(t, errors.Is(CheckValid(MinVal-1), ErrUnderflow))
}

func TestMidpoint(t *testing.T) {
	assert.Equal(t, Val(0), Midpoint(-3, 3))
	assert.Equal(t, Val(1), Midpoint(0, 3))
	assert.Equal(t, Val(-2), Midpoint(-3, 0))
	assert.Equal(t, Val(5), Midpoint(5, 5))
}

func TestSum64(t *testing.T) {
	s := NewSum64()
	require.NoError(t, s.AddTerm(2, 10))
	require.NoError(t, s.AddTerm(-1, 5))
	assert.Equal(t, int64(15), s.Value())
	assert.Equal(t, 1, s.CompareVal(14))
	assert.Equal(t, 0, s.CompareVal(15))
	assert.Equal(t, -1, s.CompareVal(16))

	v, err := s.ToVal()
	require.NoError(t, err)
	assert.Equal(t, Val(15), v)
}

func TestSum64Overflow(t *testing.T) {
	s := NewSum64()
	for i := 0; i < 5; i++ {
		err := s.AddTerm(math.MaxInt32, math.MaxInt32)
		if err != nil {
			assert.True(t, errors.Is(err, ErrOverflow))
			return
		}
	}
	// 5 products of ~2^62 must have tripped the accumulator check.
	t.Fatal("expected overflow")
}

func TestSum128(t *testing.T) {
	s := NewSum128()
	s.AddProduct(2, MaxVal, MaxVal)
	assert.Equal(t, 1, s.CompareVal(MaxVal))
	_, err := s.ToVal()
	assert.True(t, errors.Is(err, ErrOverflow))

	n := s.Clone()
	n.Negate()
	assert.Equal(t, -1, n.CompareVal(0))
	assert.Equal(t, 1, s.CompareSum(n))
}
