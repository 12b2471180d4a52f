package indexer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecrag/blobstore"
	"github.com/hupe1980/vecrag/distance"
	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/persistence"
	"github.com/hupe1980/vecrag/testutil"
)

// plainStore hides the Committer implementation of the wrapped store.
type plainStore struct {
	blobstore.BlobStore
}

// failCurrentStore fails every write of the CURRENT pointer.
type failCurrentStore struct {
	blobstore.BlobStore
}

func (s failCurrentStore) Put(ctx context.Context, name string, data []byte) error {
	if name == blobstore.CurrentName {
		return errors.New("pointer write failed")
	}
	return s.BlobStore.Put(ctx, name, data)
}

type buildObserver struct {
	vectors int
	err     error
	calls   int
}

func (o *buildObserver) RecordBuild(vectors int, _ time.Duration, err error) {
	o.calls++
	o.vectors = vectors
	o.err = err
}

func corpus(n, dim int, seed int64) map[string][]float32 {
	rng := testutil.NewRNG(seed)
	vectors := rng.UniformVectors(n, dim)
	data := make(map[string][]float32, n)
	for i, v := range vectors {
		for j := range v {
			v[j] = v[j]*4 - 2
		}
		data[fmt.Sprintf("doc-%04d", i)] = v
	}
	return data
}

func TestBuild_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	data := corpus(200, 16, 1)

	obs := &buildObserver{}
	require.NoError(t, Build(ctx, data, dir, WithObserver(obs)))
	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, 200, obs.vectors)
	assert.NoError(t, obs.err)

	art, err := Load(ctx, blobstore.NewLocalStore(dir))
	require.NoError(t, err)
	require.NoError(t, art.Validate())
	assert.Equal(t, index.TypeFlat, art.Index.Type())
	assert.Equal(t, 200, art.Index.Len())
	assert.Empty(t, art.Generation)
	assert.IsNonDecreasing(t, art.Names)

	for _, id := range []int{0, 42, 199} {
		name := art.Names[id]
		q, ok := distance.NormalizeL2Copy(data[name])
		require.True(t, ok)

		res, err := art.Index.Search(ctx, q, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(id), res[0].ID)
		assert.InDelta(t, 1.0, res[0].Score, 1e-4)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	ctx := context.Background()
	data := corpus(50, 8, 2)

	dirA, dirB := t.TempDir(), t.TempDir()
	require.NoError(t, Build(ctx, data, dirA))
	require.NoError(t, Build(ctx, data, dirB))

	a, err := Load(ctx, blobstore.NewLocalStore(dirA))
	require.NoError(t, err)
	b, err := Load(ctx, blobstore.NewLocalStore(dirB))
	require.NoError(t, err)

	assert.Equal(t, a.Index.Len(), b.Index.Len())
	assert.Equal(t, a.Names, b.Names)

	for _, q := range testutil.NewRNG(3).UnitVectors(5, 8) {
		ra, err := a.Index.Search(ctx, q, 5)
		require.NoError(t, err)
		rb, err := b.Index.Search(ctx, q, 5)
		require.NoError(t, err)
		assert.Equal(t, ra, rb)
	}
}

func TestBuild_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyCorpus", func(t *testing.T) {
		err := Build(ctx, nil, t.TempDir())
		assert.ErrorIs(t, err, ErrEmptyCorpus)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		data := map[string][]float32{
			"a": {1, 0, 0},
			"b": {0, 1},
		}
		err := Build(ctx, data, t.TempDir())
		var dimErr *index.ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 3, dimErr.Expected)
		assert.Equal(t, 2, dimErr.Actual)
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := Build(cctx, corpus(10, 4, 1), t.TempDir())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBuild_IVFAboveThreshold(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	data := corpus(300, 8, 5)

	require.NoError(t, Build(ctx, data, dir, WithFlatThreshold(100), WithNumLists(4), WithNProbe(4)))

	art, err := Load(ctx, blobstore.NewLocalStore(dir))
	require.NoError(t, err)
	require.NoError(t, art.Validate())
	assert.Equal(t, index.TypeIVF, art.Index.Type())
	assert.Equal(t, uint8(index.TypeIVF), art.Header.IndexType)

	name := art.Names[7]
	q, _ := distance.NormalizeL2Copy(data[name])
	res, err := art.Index.Search(ctx, q, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res[0].ID)
}

func TestBuild_Compression(t *testing.T) {
	for _, c := range []persistence.Compression{persistence.CompressionLZ4, persistence.CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			store := blobstore.NewMemoryStore()
			require.NoError(t, BuildTo(ctx, corpus(40, 8, 6), store, WithCompression(c)))

			art, err := Load(ctx, store)
			require.NoError(t, err)
			require.NoError(t, art.Validate())
			assert.Equal(t, uint8(c), art.Header.Compression)
		})
	}
}

func TestBuildTo_Generations(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	store := plainStore{mem}

	require.NoError(t, BuildTo(ctx, corpus(10, 4, 1), store))
	first, err := Load(ctx, store)
	require.NoError(t, err)
	require.NotEmpty(t, first.Generation)
	assert.Equal(t, 10, first.Index.Len())

	require.NoError(t, BuildTo(ctx, corpus(20, 4, 2), store))
	second, err := Load(ctx, store)
	require.NoError(t, err)
	assert.NotEqual(t, first.Generation, second.Generation)
	assert.Equal(t, 20, second.Index.Len())

	// The superseded generation stays readable for open searchers.
	names, err := mem.List(ctx, first.Generation)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		path.Join(first.Generation, IndexFileName),
		path.Join(first.Generation, MappingFileName),
	}, names)
}

func TestBuildTo_FailedPublishKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()

	require.NoError(t, BuildTo(ctx, corpus(10, 4, 1), plainStore{mem}))

	err := BuildTo(ctx, corpus(30, 4, 2), failCurrentStore{mem})
	require.Error(t, err)

	art, err := Load(ctx, plainStore{mem})
	require.NoError(t, err)
	assert.Equal(t, 10, art.Index.Len())
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(ctx, blobstore.NewLocalStore(t.TempDir()))
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("BadPointer", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte("../escape")))
		_, err := Load(ctx, store)
		assert.Error(t, err)
	})

	t.Run("CorruptIndex", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, BuildTo(ctx, corpus(10, 4, 1), store))
		raw, err := blobstore.Get(ctx, store, IndexFileName)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0xFF
		require.NoError(t, store.Put(ctx, IndexFileName, raw))

		_, err = Load(ctx, store)
		var mismatch *persistence.ChecksumMismatchError
		assert.ErrorAs(t, err, &mismatch)
	})
}

func TestArtifacts_Validate(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, BuildTo(ctx, corpus(10, 4, 1), store))

	t.Run("MappingSwapped", func(t *testing.T) {
		other := blobstore.NewMemoryStore()
		require.NoError(t, BuildTo(ctx, corpus(10, 4, 9), other))
		mapping, err := blobstore.Get(ctx, other, MappingFileName)
		require.NoError(t, err)

		// Same length, different names: only the checksum catches it.
		names := []byte(`["x0","x1","x2","x3","x4","x5","x6","x7","x8","x9"]`)
		require.NotEqual(t, mapping, names)
		require.NoError(t, store.Put(ctx, MappingFileName, names))

		art, err := Load(ctx, store)
		require.NoError(t, err)
		assert.ErrorContains(t, art.Validate(), "checksum")
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, MappingFileName, []byte(`["only"]`)))
		art, err := Load(ctx, store)
		require.NoError(t, err)
		assert.ErrorContains(t, art.Validate(), "1 names")
	})
}

func TestEncode(t *testing.T) {
	blobs, err := Encode(context.Background(), map[string][]float32{
		"<b>": {3, 4},
		"a":   {1, 0},
	})
	require.NoError(t, err)
	require.Contains(t, blobs, IndexFileName)
	assert.Equal(t, `["<b>","a"]`, string(blobs[MappingFileName]))
}
