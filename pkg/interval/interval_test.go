package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/potassco/clingcon-core/pkg/intval"
)

func TestNewMergesOverlapping(t *testing.T) {
	s := New(Range{Lo: 5, Hi: 8}, Range{Lo: 1, Hi: 3}, Range{Lo: 2, Hi: 6})
	assert.Equal(t, []Range{{Lo: 1, Hi: 8}}, s.Ranges())
}

func TestNewMergesTouching(t *testing.T) {
	s := New(Range{Lo: 1, Hi: 3}, Range{Lo: 3, Hi: 5})
	assert.Equal(t, []Range{{Lo: 1, Hi: 5}}, s.Ranges())
}

func TestNewDropsEmpty(t *testing.T) {
	s := New(Range{Lo: 3, Hi: 3}, Range{Lo: 5, Hi: 4})
	assert.True(t, s.Empty())
}

func TestContains(t *testing.T) {
	s := New(Range{Lo: 1, Hi: 3}, Range{Lo: 7, Hi: 10})
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(3))
	assert.False(t, s.Contains(5))
	assert.True(t, s.Contains(9))
	assert.False(t, s.Contains(10))
}

func TestMinMax(t *testing.T) {
	s := New(Range{Lo: 1, Hi: 3}, Range{Lo: 7, Hi: 10})
	assert.Equal(t, intval.Val(1), s.Min())
	assert.Equal(t, intval.Val(9), s.Max())
}

func TestIntersect(t *testing.T) {
	s := New(Range{Lo: 1, Hi: 5}, Range{Lo: 8, Hi: 12})
	i := s.Intersect(3, 9)
	assert.Equal(t, []Range{{Lo: 3, Hi: 5}, {Lo: 8, Hi: 10}}, i.Ranges())

	assert.True(t, s.Intersect(5, 7).Empty())
}

func TestUnion(t *testing.T) {
	a := New(Range{Lo: 1, Hi: 3})
	b := New(Range{Lo: 2, Hi: 6})
	assert.Equal(t, []Range{{Lo: 1, Hi: 6}}, a.Union(b).Ranges())
}

func TestGaps(t *testing.T) {
	s := New(Range{Lo: 1, Hi: 3}, Range{Lo: 5, Hi: 6}, Range{Lo: 9, Hi: 11})
	assert.Equal(t, []Range{{Lo: 3, Hi: 5}, {Lo: 6, Hi: 9}}, s.Gaps())
	assert.Empty(t, New(Range{Lo: 1, Hi: 3}).Gaps())
}

func TestIterate(t *testing.T) {
	s := New(Range{Lo: 1, Hi: 3}, Range{Lo: 5, Hi: 6})
	var got []intval.Val
	s.Iterate(func(v intval.Val) bool {
		got = append(got, v)
		return true
	})
	assert.Equal(t, []intval.Val{1, 2, 5}, got)
}

func TestString(t *testing.T) {
	s := New(Range{Lo: 1, Hi: 4}, Range{Lo: 7, Hi: 10})
	assert.Equal(t, "1..3,7..9", s.String())
}
