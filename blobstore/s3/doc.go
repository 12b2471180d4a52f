// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    func(o *s3.Options) {
//	        o.Prefix = "indexes/docs"
//	        o.Region = "eu-central-1"
//	    },
//	)
//
//	err = indexer.BuildTo(ctx, vectors, store)
//
// Blob stores have no multi-object rename, so a build is written under a
// fresh generation prefix and published with a single write of the CURRENT
// pointer. Plain S3 makes that write last-writer-wins; DDBCommitStore turns
// it into a conditional DynamoDB write so that concurrent builders cannot
// silently overwrite each other.
//
// # Features
//
//   - Range reads
//   - Multipart uploads for large index blobs
//   - Automatic pagination for listing
//   - Configurable prefix to share one bucket between several indexes
package s3
