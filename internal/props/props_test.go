package props

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGet(t *testing.T) {
	s := New()
	k := NewKey[int]("count")

	_, ok := Get(s, k)
	assert.False(t, ok)

	Set(s, k, 42)
	v, ok := Get(s, k)
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestDistinctKeysSameType(t *testing.T) {
	s := New()
	a := NewKey[int]("a")
	b := NewKey[int]("b")

	Set(s, a, 1)
	Set(s, b, 2)

	va, _ := Get(s, a)
	vb, _ := Get(s, b)
	assert.Equal(t, 1, va)
	assert.Equal(t, 2, vb)
}

func TestRemove(t *testing.T) {
	s := New()
	k := NewKey[string]("label")
	Set(s, k, "x")
	Remove(s, k)
	_, ok := Get(s, k)
	assert.False(t, ok)
}

type closeTracker struct{ closed *bool }

func (c closeTracker) Close() error {
	*c.closed = true
	return nil
}

func TestSetReplacesAndClosesPrior(t *testing.T) {
	s := New()
	k := NewKey[closeTracker]("resource")

	closed1 := false
	Set(s, k, closeTracker{closed: &closed1})

	closed2 := false
	Set(s, k, closeTracker{closed: &closed2})
	assert.True(t, closed1, "prior owned value should be closed on overwrite")
	assert.False(t, closed2)

	Remove(s, k)
	assert.True(t, closed2, "owned value should be closed on Remove")
}

func TestMustGetPanicsWhenAbsent(t *testing.T) {
	s := New()
	k := NewKey[int]("missing")
	assert.Panics(t, func() { MustGet(s, k) })
}

func TestHas(t *testing.T) {
	s := New()
	k := NewKey[bool]("flag")
	assert.False(t, Has(s, k))
	Set(s, k, true)
	assert.True(t, Has(s, k))
}
