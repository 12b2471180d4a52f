package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecrag/codec"
	"github.com/hupe1980/vecrag/embedding"
	"github.com/hupe1980/vecrag/embedding/openai"
	"github.com/hupe1980/vecrag/testutil"
)

// fast keeps the dispenser out of the way.
var fast = WithTokensPerMinute(60_000_000)

func chunks(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("chunk-%02d", i)
	}
	return out
}

type countingObserver struct {
	mu      sync.Mutex
	embeds  int
	failed  int
	splits  []int
	vectors int
}

func (o *countingObserver) RecordEmbed(_ int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.embeds++
	if err != nil {
		o.failed++
	}
}

func (o *countingObserver) RecordBatchSplit(size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.splits = append(o.splits, size)
}

func (o *countingObserver) RecordVectors(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.vectors += n
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	in := chunks(23)
	gw := testutil.NewOneHotGateway(in)

	out, err := Run(ctx, in, gw, nil, fast, WithBatchLines(5), WithConsumers(3))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for _, c := range in {
		assert.Equal(t, gw.Vector(c), out[c], c)
	}
	assert.Equal(t, int64(5), gw.Calls())
}

func TestRun_DuplicateChunks(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b", "a"}
	gw := testutil.NewOneHotGateway(in)

	out, err := Run(context.Background(), in, gw, nil, fast, WithBatchLines(2))
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestRun_Empty(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewJSONSink(&buf)
	require.NoError(t, err)

	out, err := Run(context.Background(), nil, testutil.NewOneHotGateway(nil), sink, fast)
	require.NoError(t, err)
	assert.Empty(t, out)
	require.NoError(t, sink.Close())
	assert.Equal(t, "{\n}", buf.String())
}

func TestRun_SplitsFailedBatches(t *testing.T) {
	in := chunks(10)
	gw := &testutil.FlakyGateway{Next: testutil.NewOneHotGateway(in), MaxBatch: 1}
	obs := &countingObserver{}

	out, err := Run(context.Background(), in, gw, nil, fast,
		WithBatchLines(4),
		WithConsumers(2),
		WithObserver(obs),
	)
	require.NoError(t, err)
	assert.Len(t, out, len(in))

	// Batches of 4, 4 and 2 fail once each and are split into singles.
	assert.Equal(t, 3, gw.Failures())
	assert.ElementsMatch(t, []int{4, 4, 2}, obs.splits)
	assert.Equal(t, 3, obs.failed)
	assert.Equal(t, 13, obs.embeds)
	assert.Equal(t, 10, obs.vectors)

	ones := 0
	for _, n := range gw.BatchSizes() {
		if n == 1 {
			ones++
		}
	}
	assert.Equal(t, 10, ones)
}

func TestRun_RetriesSingleChunk(t *testing.T) {
	in := chunks(3)
	gw := &testutil.FlakyGateway{Next: testutil.NewOneHotGateway(in), FailFirst: 4}

	out, err := Run(context.Background(), in, gw, nil, fast, WithBatchLines(1), WithConsumers(1))
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, 4, gw.Failures())
}

func TestRun_MaxAttempts(t *testing.T) {
	in := chunks(6)
	gw := &testutil.FailingGateway{Next: testutil.NewOneHotGateway(in), Poison: in[2]}

	_, err := Run(context.Background(), in, gw, nil, fast,
		WithBatchLines(3),
		WithMaxAttempts(3),
	)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, testutil.ErrInjected)
	// One failure as part of the batch, three as a single chunk.
	assert.Equal(t, int64(4), gw.PoisonAttempts())
}

func TestRun_PoisonDoesNotTerminateWithoutCeiling(t *testing.T) {
	in := chunks(4)
	gw := &testutil.FailingGateway{Next: testutil.NewOneHotGateway(in), Poison: in[0]}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, in, gw, nil, fast, WithBatchLines(2))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, gw.PoisonAttempts(), int64(3))
}

func TestRun_EmptyResponseAborts(t *testing.T) {
	_, err := Run(context.Background(), chunks(5), testutil.EmptyGateway{}, nil, fast)

	var empty *embedding.EmptyResponseError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, 5, empty.Inputs)
}

func TestRun_SplitsRejectedBatches(t *testing.T) {
	in := chunks(6)
	hot := testutil.NewOneHotGateway(in)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		body, _ := io.ReadAll(r.Body)
		var req openai.Request
		if err := codec.Default.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Input) > 1 {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		resp := embedding.Response{Data: []embedding.Item{{Index: 0, Embedding: hot.Vector(req.Input[0])}}}
		out, _ := codec.Default.Marshal(resp)
		_, _ = w.Write(out)
	}))
	defer srv.Close()

	obs := &countingObserver{}
	client := openai.NewClient("k", openai.WithBaseURL(srv.URL))
	out, err := Run(context.Background(), in, client, nil, fast, WithBatchLines(3), WithObserver(obs))
	require.NoError(t, err)

	require.Len(t, out, len(in))
	for _, c := range in {
		assert.Equal(t, hot.Vector(c), out[c])
	}
	assert.ElementsMatch(t, []int{3, 3}, obs.splits)
	// Two rejected batches, then one request per chunk.
	assert.Equal(t, int32(8), requests.Load())
}

func TestRun_SplitsMismatchedResponses(t *testing.T) {
	in := chunks(4)
	hot := testutil.NewOneHotGateway(in)
	gw := embedding.GatewayFunc(func(ctx context.Context, model string, inputs []string) (*embedding.Response, error) {
		resp, err := hot.Embed(ctx, model, inputs)
		if err != nil {
			return nil, err
		}
		resp.Data = resp.Data[:1]
		return resp, nil
	})

	obs := &countingObserver{}
	out, err := Run(context.Background(), in, gw, nil, fast, WithBatchLines(2), WithObserver(obs))
	require.NoError(t, err)
	assert.Len(t, out, 4)
	assert.ElementsMatch(t, []int{2, 2}, obs.splits)
}

func TestRun_RejectedChunkExhaustsAttempts(t *testing.T) {
	boom := errors.New("bad request")
	gw := embedding.GatewayFunc(func(context.Context, string, []string) (*embedding.Response, error) {
		return nil, boom
	})

	_, err := Run(context.Background(), chunks(3), gw, nil, fast, WithMaxAttempts(2))
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, boom)
}

type failingSink struct{ err error }

func (s failingSink) Write(Record) error { return s.err }

func TestRun_SinkErrorAborts(t *testing.T) {
	boom := errors.New("disk full")
	in := chunks(5)

	_, err := Run(context.Background(), in, testutil.NewOneHotGateway(in), failingSink{boom}, fast)
	assert.ErrorIs(t, err, boom)
}

func TestRun_StreamsToSink(t *testing.T) {
	in := chunks(12)
	var buf bytes.Buffer
	sink, err := NewJSONSink(&buf)
	require.NoError(t, err)

	out, err := Run(context.Background(), in, testutil.NewOneHotGateway(in), sink, fast, WithBatchLines(5))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	var decoded map[string][]float32
	require.NoError(t, codec.GoJSON{}.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, out, decoded)
}

func TestRun_PassesModel(t *testing.T) {
	var (
		mu     sync.Mutex
		models []string
	)
	in := chunks(3)
	next := testutil.NewOneHotGateway(in)
	gw := embedding.GatewayFunc(func(ctx context.Context, model string, inputs []string) (*embedding.Response, error) {
		mu.Lock()
		models = append(models, model)
		mu.Unlock()
		return next.Embed(ctx, model, inputs)
	})

	_, err := Run(context.Background(), in, gw, nil, fast, WithModel("text-embedding-v4"))
	require.NoError(t, err)
	for _, m := range models {
		assert.Equal(t, "text-embedding-v4", m)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	gw := testutil.NewOneHotGateway(nil)
	ctx := context.Background()

	_, err := Run(ctx, nil, gw, nil, WithConsumers(0))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = Run(ctx, nil, gw, nil, WithBatchLines(0))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = Run(ctx, nil, gw, nil, WithTokensPerMinute(0))
	assert.Error(t, err)
}
