package embedding

import (
	"context"
	"fmt"
	"slices"
)

// Gateway turns a batch of texts into embeddings.
type Gateway interface {
	Embed(ctx context.Context, model string, inputs []string) (*Response, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, model string, inputs []string) (*Response, error)

// Embed implements Gateway.
func (f GatewayFunc) Embed(ctx context.Context, model string, inputs []string) (*Response, error) {
	return f(ctx, model, inputs)
}

// Item is one embedding of a response. Index refers to the position of the
// input it belongs to.
type Item struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// Response is the result of one Embed call.
type Response struct {
	Data  []Item `json:"data"`
	Model string `json:"model,omitempty"`
	Usage Usage  `json:"usage"`
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Vectors returns the embeddings ordered by Index. Providers are free to
// return items in any order.
//
// It returns *EmptyResponseError when the response holds no items for a
// non-empty batch, and ErrResponseMismatch when the item count differs from
// want.
func (r *Response) Vectors(want int) ([][]float32, error) {
	if r == nil || len(r.Data) == 0 {
		if want == 0 {
			return nil, nil
		}
		return nil, &EmptyResponseError{Inputs: want}
	}
	if len(r.Data) != want {
		return nil, fmt.Errorf("%w: %d inputs, %d embeddings", ErrResponseMismatch, want, len(r.Data))
	}

	items := slices.Clone(r.Data)
	slices.SortStableFunc(items, func(a, b Item) int { return a.Index - b.Index })

	out := make([][]float32, len(items))
	for i, it := range items {
		out[i] = it.Embedding
	}
	return out, nil
}

// First returns the embedding with the lowest Index.
func (r *Response) First() ([]float32, error) {
	if r == nil || len(r.Data) == 0 {
		return nil, &EmptyResponseError{Inputs: 1}
	}
	best := r.Data[0]
	for _, it := range r.Data[1:] {
		if it.Index < best.Index {
			best = it
		}
	}
	return best.Embedding, nil
}
