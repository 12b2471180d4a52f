package searcher

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecrag/blobstore"
	"github.com/hupe1980/vecrag/embedding"
	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/indexer"
	"github.com/hupe1980/vecrag/testutil"
)

var texts = []string{"alpha", "bravo", "charlie", "delta"}

func buildOneHot(t *testing.T) (string, *testutil.OneHotGateway) {
	t.Helper()
	gw := testutil.NewOneHotGateway(texts)
	data := make(map[string][]float32, len(texts))
	for _, s := range texts {
		v := gw.Vector(s)
		// Unnormalized on purpose.
		for i := range v {
			v[i] *= 3
		}
		data[s] = v
	}
	dir := t.TempDir()
	require.NoError(t, indexer.Build(context.Background(), data, dir))
	return dir, gw
}

type searchObserver struct {
	mu    sync.Mutex
	calls int
	errs  int
}

func (o *searchObserver) RecordSearch(_ int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if err != nil {
		o.errs++
	}
}

func TestSearcher_Search(t *testing.T) {
	ctx := context.Background()
	dir, gw := buildOneHot(t)

	obs := &searchObserver{}
	s, err := Open(ctx, dir, WithObserver(obs))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, gw.Dimension(), s.Dimension())

	q := gw.Vector("charlie")
	q[0] = 0.5 // closer to charlie, then alpha

	ids, err := s.Search(ctx, q, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie", "alpha"}, ids)

	hits, err := s.SearchWithScores(ctx, q, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.InDelta(t, 0.894, hits[0].Score, 1e-3)

	assert.Equal(t, 2, obs.calls)
	assert.Zero(t, obs.errs)
}

func TestSearcher_TopKBeyondCorpus(t *testing.T) {
	ctx := context.Background()
	dir, gw := buildOneHot(t)
	s, err := Open(ctx, dir)
	require.NoError(t, err)

	for _, k := range []int{10, 100_000_000, math.MaxInt} {
		ids, err := s.Search(ctx, gw.Vector("alpha"), k)
		require.NoError(t, err)
		assert.Len(t, ids, 4)
		assert.Equal(t, "alpha", ids[0])
		assert.ElementsMatch(t, texts, ids)
	}

	hits, err := s.SearchWithScores(ctx, gw.Vector("bravo"), math.MaxInt)
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, "bravo", hits[0].ID)
}

func TestSearcher_InvalidQuery(t *testing.T) {
	ctx := context.Background()
	dir, _ := buildOneHot(t)
	obs := &searchObserver{}
	s, err := Open(ctx, dir, WithObserver(obs))
	require.NoError(t, err)

	_, err = s.Search(ctx, []float32{1, 0, 0, 0, 0}, 0)
	assert.ErrorIs(t, err, index.ErrInvalidK)

	_, err = s.Search(ctx, []float32{1, 0}, 1)
	var dimErr *index.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)

	assert.Equal(t, 2, obs.errs)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing", func(t *testing.T) {
		_, err := Open(ctx, t.TempDir())
		assert.ErrorIs(t, err, ErrMalformedIndex)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("MappingLength", func(t *testing.T) {
		dir, _ := buildOneHot(t)
		store := blobstore.NewLocalStore(dir)
		require.NoError(t, store.Put(ctx, indexer.MappingFileName, []byte(`["alpha"]`)))

		_, err := Open(ctx, dir)
		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.ErrorIs(t, err, ErrMalformedIndex)
	})

	t.Run("MappingNotJSON", func(t *testing.T) {
		dir, _ := buildOneHot(t)
		store := blobstore.NewLocalStore(dir)
		require.NoError(t, store.Put(ctx, indexer.MappingFileName, []byte(`{not json`)))

		_, err := Open(ctx, dir)
		assert.ErrorIs(t, err, ErrMalformedIndex)
	})
}

func TestSearcher_SearchByText(t *testing.T) {
	ctx := context.Background()
	dir, gw := buildOneHot(t)
	s, err := Open(ctx, dir, WithQueryCache(8))
	require.NoError(t, err)

	ids, err := s.SearchByText(ctx, gw, "delta", "m", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"delta"}, ids)

	_, err = s.SearchByText(ctx, gw, "delta", "m", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gw.Calls())

	hits, misses := s.CacheStats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	// A different model is a different cache key.
	_, err = s.SearchByText(ctx, gw, "delta", "other", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gw.Calls())
}

func TestSearcher_SearchByTextErrors(t *testing.T) {
	ctx := context.Background()
	dir, _ := buildOneHot(t)
	s, err := Open(ctx, dir)
	require.NoError(t, err)

	boom := errors.New("provider down")
	failing := embedding.GatewayFunc(func(context.Context, string, []string) (*embedding.Response, error) {
		return nil, boom
	})
	_, err = s.SearchByText(ctx, failing, "alpha", "m", 1)
	assert.ErrorIs(t, err, boom)

	_, err = s.SearchByText(ctx, testutil.EmptyGateway{}, "alpha", "m", 1)
	var empty *embedding.EmptyResponseError
	assert.ErrorAs(t, err, &empty)
}

func TestSearcher_Concurrent(t *testing.T) {
	ctx := context.Background()
	dir, gw := buildOneHot(t)
	s, err := Open(ctx, dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := texts[i%len(texts)]
			ids, err := s.Search(ctx, gw.Vector(want), 1)
			assert.NoError(t, err)
			assert.Equal(t, []string{want}, ids)
		}()
	}
	wg.Wait()
}

func TestOpenStore_Generations(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	store := struct{ blobstore.BlobStore }{mem}

	require.NoError(t, indexer.BuildTo(ctx, map[string][]float32{"x": {1, 0}, "y": {0, 1}}, store))
	s, err := OpenStore(ctx, store)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Generation())

	ids, err := s.Search(ctx, []float32{0, 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, ids)
}
