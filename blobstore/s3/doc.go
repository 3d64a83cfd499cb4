// Package s3 provides an S3 implementation of the blobstore.Store
// interface, plus a DynamoDB-backed version store for atomic snapshot
// commits.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := s3blob.NewStore(s3.NewFromConfig(cfg), "my-bucket", "snapshots/")
//	rc, size, err := store.Open(ctx, "orders/000042.snap")
//
// # Features
//
//   - Streaming multipart uploads for large snapshots
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - Optional DynamoDB version store for safe concurrent publishers
package s3
