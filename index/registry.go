package index

import (
	"fmt"
	"io"
	"sync"
)

// Loader constructs an index from its serialized payload, as produced by
// Index.WriteTo.
type Loader func(r io.Reader) (Index, error)

var (
	loaderMu sync.RWMutex
	loaders  = map[Type]Loader{}
)

// RegisterLoader registers a loader for a specific on-disk index type.
//
// Index implementations should call this from an init() function.
func RegisterLoader(t Type, loader Loader) {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	loaders[t] = loader
}

// Load reads an index payload of type t from r.
func Load(t Type, r io.Reader) (Index, error) {
	loaderMu.RLock()
	loader, ok := loaders[t]
	loaderMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
	return loader(r)
}
