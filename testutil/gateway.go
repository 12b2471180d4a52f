package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecrag/embedding"
)

// ErrInjected is the cause wrapped by injected transient failures.
var ErrInjected = errors.New("testutil: injected failure")

// OneHotGateway maps every known text to its own axis. Unknown texts share
// the last axis. Items are returned in reverse order so that callers must
// sort by Index.
type OneHotGateway struct {
	axes  map[string]int
	dim   int
	calls atomic.Int64
}

// NewOneHotGateway creates a gateway whose vocabulary is texts.
func NewOneHotGateway(texts []string) *OneHotGateway {
	axes := make(map[string]int, len(texts))
	for _, t := range texts {
		if _, ok := axes[t]; !ok {
			axes[t] = len(axes)
		}
	}
	return &OneHotGateway{axes: axes, dim: len(axes) + 1}
}

// Dimension returns the embedding size.
func (g *OneHotGateway) Dimension() int { return g.dim }

// Vector returns the embedding of text.
func (g *OneHotGateway) Vector(text string) []float32 {
	v := make([]float32, g.dim)
	axis, ok := g.axes[text]
	if !ok {
		axis = g.dim - 1
	}
	v[axis] = 1
	return v
}

// Calls returns the number of Embed calls.
func (g *OneHotGateway) Calls() int64 { return g.calls.Load() }

// Embed implements embedding.Gateway.
func (g *OneHotGateway) Embed(ctx context.Context, model string, inputs []string) (*embedding.Response, error) {
	g.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := make([]embedding.Item, len(inputs))
	for i, text := range inputs {
		data[len(inputs)-1-i] = embedding.Item{Index: i, Embedding: g.Vector(text)}
	}
	return &embedding.Response{Data: data, Model: model}, nil
}

// FlakyGateway fails transiently for every batch larger than MaxBatch and
// for the first FailFirst calls, then delegates to Next.
type FlakyGateway struct {
	Next      embedding.Gateway
	MaxBatch  int
	FailFirst int

	mu       sync.Mutex
	calls    int
	failures int
	sizes    []int
}

// Embed implements embedding.Gateway.
func (g *FlakyGateway) Embed(ctx context.Context, model string, inputs []string) (*embedding.Response, error) {
	g.mu.Lock()
	g.calls++
	g.sizes = append(g.sizes, len(inputs))
	fail := g.calls <= g.FailFirst || (g.MaxBatch > 0 && len(inputs) > g.MaxBatch)
	if fail {
		g.failures++
	}
	g.mu.Unlock()

	if fail {
		return nil, &embedding.TransientError{StatusCode: 503, Err: ErrInjected}
	}
	return g.Next.Embed(ctx, model, inputs)
}

// Failures returns the number of injected failures.
func (g *FlakyGateway) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// BatchSizes returns the size of every batch seen, in call order.
func (g *FlakyGateway) BatchSizes() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.sizes)
}

// FailingGateway fails transiently, forever, for any batch that contains
// Poison and delegates every other batch to Next.
type FailingGateway struct {
	Next   embedding.Gateway
	Poison string

	attempts atomic.Int64
}

// Embed implements embedding.Gateway.
func (g *FailingGateway) Embed(ctx context.Context, model string, inputs []string) (*embedding.Response, error) {
	if slices.Contains(inputs, g.Poison) {
		g.attempts.Add(1)
		return nil, &embedding.TransientError{StatusCode: 429, Err: ErrInjected}
	}
	return g.Next.Embed(ctx, model, inputs)
}

// PoisonAttempts returns how often a poisoned batch was rejected.
func (g *FailingGateway) PoisonAttempts() int64 { return g.attempts.Load() }

// EmptyGateway answers every batch with zero embeddings.
type EmptyGateway struct{}

// Embed implements embedding.Gateway.
func (EmptyGateway) Embed(context.Context, string, []string) (*embedding.Response, error) {
	return &embedding.Response{}, nil
}
