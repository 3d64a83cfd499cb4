// Package blobstore provides storage backends for published index
// snapshots.
//
// A Store holds named, immutable blobs. The registry writes a snapshot
// blob per index generation and a small version marker naming the
// current one; warming an index reads the snapshot back. Because blobs
// are immutable, stores never need to coordinate readers and writers
// beyond atomic publication.
//
// # Implementations
//
// Two implementations live in this package:
//
//   - Local stores blobs as plain files under a root directory.
//   - Memory keeps blobs in a map, for tests.
//
// Remote backends live in subpackages (s3, minio) so their SDKs are
// only linked when used.
//
// # Caching
//
// CachingStore decorates a remote store with a read-through spool on
// local disk, so repeated warms of the same snapshot hit the network
// once:
//
//	store := blobstore.NewCachingStore(remote, "/var/cache/joingo")
//	rc, size, err := store.Open(ctx, "orders/000042.snap")
//
// # Errors
//
// Missing blobs are reported with an error satisfying
// errors.Is(err, blobstore.ErrNotFound) across all implementations.
package blobstore
