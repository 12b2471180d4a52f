package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopK(t *testing.T) {
	t.Run("KeepsBest", func(t *testing.T) {
		q := NewTopK(3)
		scores := []float32{0.1, 0.9, 0.5, 0.3, 0.8, 0.2}
		for i, s := range scores {
			q.Push(uint32(i), s)
		}
		require.Equal(t, 3, q.Len())

		items := q.Drain()
		require.Len(t, items, 3)
		assert.Equal(t, uint32(1), items[0].ID)
		assert.Equal(t, uint32(4), items[1].ID)
		assert.Equal(t, uint32(2), items[2].ID)
		assert.Equal(t, 0, q.Len())
	})

	t.Run("FewerThanK", func(t *testing.T) {
		q := NewTopK(10)
		q.Push(7, 0.5)
		q.Push(3, 0.7)

		items := q.Drain()
		require.Len(t, items, 2)
		assert.Equal(t, uint32(3), items[0].ID)
		assert.Equal(t, uint32(7), items[1].ID)
	})

	t.Run("TiesPreferLowerID", func(t *testing.T) {
		q := NewTopK(2)
		q.Push(5, 1)
		q.Push(2, 1)
		q.Push(9, 1)

		items := q.Drain()
		require.Len(t, items, 2)
		assert.Equal(t, uint32(2), items[0].ID)
		assert.Equal(t, uint32(5), items[1].ID)
	})

	t.Run("Threshold", func(t *testing.T) {
		q := NewTopK(2)
		_, ok := q.Threshold()
		assert.False(t, ok)

		q.Push(0, 0.4)
		q.Push(1, 0.6)
		th, ok := q.Threshold()
		require.True(t, ok)
		assert.Equal(t, float32(0.4), th)

		assert.False(t, q.Push(2, 0.3))
		assert.True(t, q.Push(3, 0.5))
	})

	t.Run("ZeroK", func(t *testing.T) {
		q := NewTopK(0)
		assert.False(t, q.Push(1, 1))
		assert.Empty(t, q.Drain())
	})
}
