package flat

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/testutil"
)

func newFlat(t *testing.T, dim int) *Flat {
	t.Helper()
	f, err := New(func(o *Options) { o.Dimension = dim })
	require.NoError(t, err)
	return f
}

func TestFlat(t *testing.T) {
	ctx := context.Background()

	t.Run("Add", func(t *testing.T) {
		f := newFlat(t, 3)
		require.NoError(t, f.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}}))
		assert.Equal(t, 2, f.Len())
		assert.True(t, f.IsTrained())

		err := f.Add(ctx, [][]float32{{1, 0, 0}, {1, 2}})
		require.Error(t, err)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
		assert.Equal(t, 2, f.Len(), "failed add must not partially apply")
	})

	t.Run("Search", func(t *testing.T) {
		f := newFlat(t, 3)
		require.NoError(t, f.Add(ctx, [][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.6, 0.8, 0},
		}))

		res, err := f.Search(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, int64(0), res[0].ID)
		assert.InDelta(t, 1.0, res[0].Score, 1e-6)
		assert.Equal(t, int64(2), res[1].ID)
		assert.InDelta(t, 0.6, res[1].Score, 1e-6)
	})

	t.Run("KExceedsLen", func(t *testing.T) {
		f := newFlat(t, 2)
		require.NoError(t, f.Add(ctx, [][]float32{{1, 0}, {0, 1}}))

		for _, k := range []int{5, math.MaxInt} {
			res, err := f.Search(ctx, []float32{1, 0}, k)
			require.NoError(t, err)
			require.Len(t, res, 2)
			assert.Equal(t, int64(0), res[0].ID)
			assert.Equal(t, int64(1), res[1].ID)
		}
	})

	t.Run("InvalidQuery", func(t *testing.T) {
		f := newFlat(t, 2)
		_, err := f.Search(ctx, []float32{1, 0}, 0)
		assert.ErrorIs(t, err, index.ErrInvalidK)

		_, err = f.Search(ctx, []float32{1}, 1)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
	})

	t.Run("InvalidDimension", func(t *testing.T) {
		_, err := New()
		assert.Error(t, err)
	})
}

func TestFlat_Binary(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(4711)
	vectors := rng.UnitVectors(50, 8)

	f := newFlat(t, 8)
	require.NoError(t, f.Add(ctx, vectors))

	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	loaded, err := index.Load(index.TypeFlat, &buf)
	require.NoError(t, err)
	require.Equal(t, 50, loaded.Len())
	require.Equal(t, 8, loaded.Dimension())

	for i, v := range vectors {
		res, err := loaded.Search(ctx, v, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(i), res[0].ID)
		assert.InDelta(t, 1.0, res[0].Score, 1e-5)
	}

	v, ok := loaded.(*Flat).Vector(3)
	require.True(t, ok)
	assert.Equal(t, vectors[3], v)
}
