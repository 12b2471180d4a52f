// Package blobstore provides the storage abstraction for persisted indexes.
//
// An index directory is a small set of named blobs: index.vidx,
// id_mapping.json and optional debug artifacts. Implementations must be safe
// for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with mmap reads and rename-based writes
//   - MemoryStore: in-process map, for tests
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3, optionally paired with a DynamoDB commit store
//
// # Publishing Several Blobs Together
//
// Stores that implement Committer replace a set of blobs as one unit. Other
// stores are published through a generation prefix and a CURRENT pointer blob
// (see the indexer package).
package blobstore
