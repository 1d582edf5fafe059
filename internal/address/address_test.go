package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullParticipatesInNoInterval(t *testing.T) {
	a := NewArea(0x1000, 0x100)
	assert.False(t, a.Contains(Null))
}

func TestAreaContainsHalfOpen(t *testing.T) {
	a := NewArea(0x1000, 0x10)
	assert.True(t, a.Contains(0x1000))
	assert.True(t, a.Contains(0x100f))
	assert.False(t, a.Contains(0x1010))
}

func TestAreaMeet(t *testing.T) {
	a := NewArea(0x1000, 0x10)
	b := NewArea(0x1008, 0x10)
	c := NewArea(0x2000, 0x10)
	assert.True(t, a.Meet(b))
	assert.False(t, a.Meet(c))
}

func TestEmptyArea(t *testing.T) {
	a := NewArea(0x1000, 0)
	assert.True(t, a.Empty())
	assert.False(t, a.Contains(0x1000))
}
