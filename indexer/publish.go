package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/vecrag/blobstore"
	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/persistence"
)

// Publish makes blobs visible in store as one unit and returns the
// generation they were written under.
//
// A store implementing blobstore.Committer replaces the blobs in place and
// the generation is empty. Any other store receives the blobs under a fresh
// generation prefix, followed by a single write of the CURRENT pointer. The
// previous generation stays readable until CURRENT moves.
func Publish(ctx context.Context, store blobstore.BlobStore, blobs map[string][]byte) (string, error) {
	if c, ok := store.(blobstore.Committer); ok {
		if err := c.Commit(ctx, blobs); err != nil {
			return "", fmt.Errorf("indexer: commit: %w", err)
		}
		return "", nil
	}

	generation := uuid.NewString()
	for name, data := range blobs {
		if err := store.Put(ctx, path.Join(generation, name), data); err != nil {
			return "", fmt.Errorf("indexer: write %s: %w", name, err)
		}
	}
	if err := store.Put(ctx, blobstore.CurrentName, []byte(generation)); err != nil {
		return "", fmt.Errorf("indexer: publish %s: %w", generation, err)
	}
	return generation, nil
}

// Artifacts is a loaded index with its mapping.
type Artifacts struct {
	Header persistence.FileHeader
	Index  index.Index
	Names  []string

	// MappingChecksum is the CRC32 of the mapping bytes as read.
	MappingChecksum uint32

	// Generation is the published generation, empty for committed stores.
	Generation string
}

// Load reads the published index from store. It follows CURRENT when the
// store has one and otherwise reads the blobs at the root.
//
// Load does not cross-check the two blobs; see Artifacts.Validate.
func Load(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*Artifacts, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	generation, err := currentGeneration(ctx, store)
	if err != nil {
		return nil, err
	}

	raw, err := blobstore.Get(ctx, store, path.Join(generation, IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("indexer: read %s: %w", IndexFileName, err)
	}
	mapping, err := blobstore.Get(ctx, store, path.Join(generation, MappingFileName))
	if err != nil {
		return nil, fmt.Errorf("indexer: read %s: %w", MappingFileName, err)
	}

	hdr, payload, err := persistence.DecodeBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("indexer: decode %s: %w", IndexFileName, err)
	}
	idx, err := index.Load(index.Type(hdr.IndexType), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("indexer: load %s: %w", IndexFileName, err)
	}

	var names []string
	if err := opts.codec.Unmarshal(mapping, &names); err != nil {
		return nil, fmt.Errorf("indexer: decode %s: %w", MappingFileName, err)
	}

	return &Artifacts{
		Header:          *hdr,
		Index:           idx,
		Names:           names,
		MappingChecksum: persistence.Checksum(mapping),
		Generation:      generation,
	}, nil
}

// Validate checks that the index and mapping belong together.
func (a *Artifacts) Validate() error {
	if len(a.Names) != a.Index.Len() {
		return fmt.Errorf("mapping has %d names, index has %d vectors", len(a.Names), a.Index.Len())
	}
	if a.Header.MappingChecksum != a.MappingChecksum {
		return fmt.Errorf("mapping checksum 0x%08x, header records 0x%08x", a.MappingChecksum, a.Header.MappingChecksum)
	}
	if int(a.Header.VectorCount) != a.Index.Len() { //nolint:gosec // compared, not indexed
		return fmt.Errorf("header records %d vectors, index has %d", a.Header.VectorCount, a.Index.Len())
	}
	if int(a.Header.Dimension) != a.Index.Dimension() {
		return fmt.Errorf("header records dimension %d, index has %d", a.Header.Dimension, a.Index.Dimension())
	}
	return nil
}

func currentGeneration(ctx context.Context, store blobstore.BlobStore) (string, error) {
	ptr, err := blobstore.Get(ctx, store, blobstore.CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("indexer: read %s: %w", blobstore.CurrentName, err)
	}
	generation := strings.TrimSpace(string(ptr))
	if generation == "" || strings.Contains(generation, "..") || strings.HasPrefix(generation, "/") {
		return "", fmt.Errorf("indexer: invalid %s pointer %q", blobstore.CurrentName, generation)
	}
	return generation, nil
}
