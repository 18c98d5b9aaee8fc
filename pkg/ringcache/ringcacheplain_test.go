package ringcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingCachePlain(t *testing.T) {
	rc := NewRingCache[int](10)
	for i := 0; i < 11; i++ {
		rc.Put(i)
	}

	res := make([]int, 0, 11)
	for {
		val, ok := rc.Get()
		if !ok {
			break
		}
		res = append(res, val)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, res)
	assert.EqualValues(t, 1, rc.Dropped())
}

func TestRingCache_Put(t *testing.T) {
	rc := NewRingCache[string](2)

	_, drop := rc.Put("a")
	assert.False(t, drop)
	rc.Put("b")

	old, drop := rc.Put("c")
	assert.True(t, drop)
	assert.Equal(t, "a", old)
	assert.Equal(t, 2, rc.Len())
}

func TestRingCache_Drain(t *testing.T) {
	rc := NewRingCache[int](3)
	assert.Empty(t, rc.Drain())

	for i := range 5 {
		rc.Put(i)
	}
	assert.Equal(t, []int{2, 3, 4}, rc.Drain())
	assert.Equal(t, 0, rc.Len())

	rc.Put(9)
	assert.Equal(t, []int{9}, rc.Drain())
}

func TestRingCache_ZeroCapacity(t *testing.T) {
	rc := NewRingCache[int](0)
	rc.Put(1)
	rc.Put(2)

	v, ok := rc.Get()
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
