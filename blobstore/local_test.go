package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	blobName := "gen/index.vidx"
	data := []byte("hello world, this is a test blob for vecrag")

	w, err := store.Create(ctx, blobName)
	require.NoError(t, err)
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names, "blob is invisible until Close")

	require.NoError(t, w.Close())
	require.Error(t, w.Close())

	_, err = os.Stat(filepath.Join(tmpDir, "gen", "index.vidx"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	all, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, data, all)
	require.NoError(t, blob.Close())

	require.NoError(t, store.Put(ctx, "CURRENT", []byte("gen")))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CURRENT", "gen/index.vidx"}, names)

	names, err = store.List(ctx, "gen/")
	require.NoError(t, err)
	assert.Equal(t, []string{"gen/index.vidx"}, names)

	require.NoError(t, store.Delete(ctx, blobName))
	require.NoError(t, store.Delete(ctx, blobName), "deleting twice is fine")

	_, err = store.Open(ctx, blobName)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBlobStore_Abort(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	w, err := store.Create(ctx, "x.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalBlobStore_Commit(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, map[string][]byte{
		"index.vidx":      []byte("index-v1"),
		"id_mapping.json": []byte(`["v1"]`),
	}))

	got, err := Get(ctx, store, "index.vidx")
	require.NoError(t, err)
	assert.Equal(t, "index-v1", string(got))

	require.NoError(t, store.Commit(ctx, map[string][]byte{
		"index.vidx":      []byte("index-v2"),
		"id_mapping.json": []byte(`["v2"]`),
	}))

	got, err = Get(ctx, store, "id_mapping.json")
	require.NoError(t, err)
	assert.Equal(t, `["v2"]`, string(got))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id_mapping.json", "index.vidx"}, names, "no backups or temps left behind")
}

func TestLocalBlobStore_CommitFailureKeepsPrevious(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, map[string][]byte{
		"index.vidx":      []byte("index-v1"),
		"id_mapping.json": []byte(`["v1"]`),
	}))

	// "blocker" is a regular file, so staging "blocker/x" cannot create its parent.
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "blocker"), []byte("f"), 0o600))

	err := store.Commit(ctx, map[string][]byte{
		"index.vidx":      []byte("index-v2"),
		"id_mapping.json": []byte(`["v2"]`),
		"blocker/x":       []byte("x"),
	})
	require.Error(t, err)

	got, err := Get(ctx, store, "index.vidx")
	require.NoError(t, err)
	assert.Equal(t, "index-v1", string(got))
	got, err = Get(ctx, store, "id_mapping.json")
	require.NoError(t, err)
	assert.Equal(t, `["v1"]`, string(got))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"blocker", "id_mapping.json", "index.vidx"}, names)
}

func TestLocalBlobStore_EmptyBlob(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "empty", nil))
	got, err := Get(ctx, store, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}
