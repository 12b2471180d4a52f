// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object store. This package uses the MinIO Go
// client and works with any S3-compatible service (Ceph, SeaweedFS, Garage)
// without pulling in AWS credentials resolution.
//
// # Basic Usage
//
//	store, err := minio.Dial(ctx, "localhost:9000", "indexes", func(o *minio.Options) {
//	    o.AccessKey = "minioadmin"
//	    o.SecretKey = "minioadmin"
//	    o.Prefix = "docs"
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = indexer.BuildTo(ctx, vectors, store)
//
// The store has no multi-object commit, so builds are published through the
// generation prefix and CURRENT pointer protocol of package indexer.
package minio
