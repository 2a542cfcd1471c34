package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeededSourceIsDeterministic(t *testing.T) {
	a, b := NewSeeded(42), NewSeeded(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestNewSourceRange(t *testing.T) {
	src := New()
	for i := 0; i < 1000; i++ {
		v := src.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestShuffleKeepsElements(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	require.NoError(t, Shuffle(items))
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, items)
}

func TestIntn(t *testing.T) {
	src := NewSeeded(7)
	for i := 0; i < 500; i++ {
		n := Intn(src, 6)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 6)
	}
	assert.Equal(t, 0, Intn(src, 0))
}

func TestPick(t *testing.T) {
	v, err := Pick([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	_, err = Pick([]string{})
	assert.Error(t, err)
}
