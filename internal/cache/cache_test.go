package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRU_AddAndGet(t *testing.T) {
	c, err := New[string, int](2)
	require.NoError(t, err)

	c.Add("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New[string, int](2)
	require.NoError(t, err)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Get("a") // touch a, making b the least recently used
	c.Add("c", 3)

	_, ok := c.Get("b")
	require.False(t, ok)

	_, ok = c.Get("a")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}

func TestLRU_DefaultSize(t *testing.T) {
	c, err := New[string, int](0)
	require.NoError(t, err)
	for i := 0; i < DefaultSize+10; i++ {
		c.Add(fmt.Sprintf("key-%d", i), i)
	}
	require.LessOrEqual(t, c.Len(), DefaultSize)
}

func TestLRU_RemoveAndPurge(t *testing.T) {
	c, err := New[string, int](5)
	require.NoError(t, err)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Remove("a")

	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	c.Purge()
	require.Equal(t, 0, c.Len())
}
