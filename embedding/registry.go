package embedding

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// ProviderConfig is the provider-independent configuration handed to a
// Factory.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	RetryCount int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Factory builds a Gateway for one provider type.
type Factory func(cfg ProviderConfig) (Gateway, error)

// Registry maps provider types to factories. The zero value is empty.
// A Registry is immutable after NewRegistry returns.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds a registry from the given provider factories. Keys are
// matched case-insensitively.
func NewRegistry(factories map[string]Factory) *Registry {
	r := &Registry{factories: make(map[string]Factory, len(factories))}
	for k, f := range factories {
		r.factories[strings.ToLower(k)] = f
	}
	return r
}

// New builds the gateway for providerType, wrapped with WithRetry when
// cfg.RetryCount asks for more than one attempt.
func (r *Registry) New(providerType string, cfg ProviderConfig) (Gateway, error) {
	f, ok := r.factories[strings.ToLower(providerType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownProvider, providerType, strings.Join(r.Types(), ", "))
	}
	gw, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding: build %s provider: %w", providerType, err)
	}
	return WithRetry(DefaultRetryPolicy(cfg.RetryCount, cfg.RetryDelay), gw), nil
}

// Types returns the registered provider types in sorted order.
func (r *Registry) Types() []string {
	return slices.Sorted(maps.Keys(r.factories))
}
