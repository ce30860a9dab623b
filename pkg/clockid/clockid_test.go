package clockid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNowIsNonDecreasing(t *testing.T) {
	c := New()
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		next := c.Now()
		assert.True(t, next.After(prev) || next.Equal(prev))
		assert.True(t, next.After(prev), "successive Now() calls must strictly advance")
		prev = next
	}
}

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 36)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := NewID()
		assert.False(t, seen[id], "collision at iteration %d", i)
		seen[id] = true
	}
}
