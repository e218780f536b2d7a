package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/suistorage/suis3/blob"
	"github.com/suistorage/suis3/txn"
	"github.com/suistorage/suis3/uri"
)

// Metadata is the transaction-builder surface the gateway composes. One
// method per logical metadata operation; every call is one atomic ledger
// transaction.
type Metadata interface {
	CreateBucket(ctx context.Context, name string) error
	ListBuckets(ctx context.Context) ([]txn.BucketInfo, error)
	DeleteBucket(ctx context.Context, name string) error
	TagBucket(ctx context.Context, name string, tags []string) error
	ListBucketTags(ctx context.Context, name string) ([]string, error)
	DeleteBucketTags(ctx context.Context, name string) error
	CreateObject(ctx context.Context, bucket, object string, size uint64, blobID string, epochTill uint64) error
	GetObjectBlobID(ctx context.Context, bucket, object string) (string, error)
	DeleteObject(ctx context.Context, bucket, object string) error
	TagObject(ctx context.Context, bucket, object string, tags []string) error
	ListObjectTags(ctx context.Context, bucket, object string) ([]string, error)
	DeleteObjectTags(ctx context.Context, bucket, object string) error
	ListObjects(ctx context.Context, bucket string) ([]txn.ObjectInfo, error)
}

// BlobStore is the blob substrate surface the gateway composes.
type BlobStore interface {
	Store(ctx context.Context, path string) (blob.Meta, error)
	Read(ctx context.Context, blobID, destPath string) error
	Status(ctx context.Context, blobID string) (uint64, error)
}

// OrphanedBlobError reports a put whose blob upload succeeded but whose
// metadata commit did not. The blob is persisted in the substrate until
// EpochTill with no metadata record pointing at it; the inconsistency is
// surfaced, never masked, so a caller can retry the commit or let the
// substrate expire the blob.
type OrphanedBlobError struct {
	BlobID    string
	EpochTill uint64
	Err       error
}

func (e *OrphanedBlobError) Error() string {
	return fmt.Sprintf("metadata commit failed, blob %s remains stored without a record until epoch %d: %v",
		e.BlobID, e.EpochTill, e.Err)
}

func (e *OrphanedBlobError) Unwrap() error {
	return e.Err
}

/*
Gateway is the orchestrator that makes the metadata ledger and the blob
substrate behave like one storage system.

Each operation is a single logical flow: resolve the URI, then for
content writes upload bytes before committing metadata, and for content
reads resolve metadata before downloading bytes. There is no client-side
cache and no concurrent in-flight work within one operation; consistency
across clients is entirely the ledger's concern.
*/
type Gateway struct {
	meta   Metadata
	blobs  BlobStore
	logger *slog.Logger
}

func New(logger *slog.Logger, meta Metadata, blobs BlobStore) *Gateway {
	return &Gateway{
		meta:   meta,
		blobs:  blobs,
		logger: logger.WithGroup("store"),
	}
}

// CreateBucket registers the bucket named by a bucket-only URI.
func (g *Gateway) CreateBucket(ctx context.Context, rawURI string) error {
	r, err := uri.ParseBucket(rawURI)
	if err != nil {
		return err
	}
	return g.meta.CreateBucket(ctx, r.Bucket)
}

func (g *Gateway) ListBuckets(ctx context.Context) ([]txn.BucketInfo, error) {
	return g.meta.ListBuckets(ctx)
}

func (g *Gateway) DeleteBucket(ctx context.Context, rawURI string) error {
	r, err := uri.ParseBucket(rawURI)
	if err != nil {
		return err
	}
	return g.meta.DeleteBucket(ctx, r.Bucket)
}

// ListObjects lists the metadata records of a bucket. The URI must be
// bucket-only; an object path here is a format error.
func (g *Gateway) ListObjects(ctx context.Context, rawURI string) ([]txn.ObjectInfo, error) {
	r, err := uri.ParseBucket(rawURI)
	if err != nil {
		return nil, err
	}
	return g.meta.ListObjects(ctx, r.Bucket)
}

// AddTags tags the bucket or the object the URI addresses. The branch is
// decided by the URI shape alone.
func (g *Gateway) AddTags(ctx context.Context, rawURI string, tags []string) error {
	r, err := uri.Parse(rawURI)
	if err != nil {
		return err
	}
	if r.BucketOnly() {
		return g.meta.TagBucket(ctx, r.Bucket, tags)
	}
	return g.meta.TagObject(ctx, r.Bucket, r.Object, tags)
}

func (g *Gateway) ListTags(ctx context.Context, rawURI string) ([]string, error) {
	r, err := uri.Parse(rawURI)
	if err != nil {
		return nil, err
	}
	if r.BucketOnly() {
		return g.meta.ListBucketTags(ctx, r.Bucket)
	}
	return g.meta.ListObjectTags(ctx, r.Bucket, r.Object)
}

func (g *Gateway) RemoveTags(ctx context.Context, rawURI string) error {
	r, err := uri.Parse(rawURI)
	if err != nil {
		return err
	}
	if r.BucketOnly() {
		return g.meta.DeleteBucketTags(ctx, r.Bucket)
	}
	return g.meta.DeleteObjectTags(ctx, r.Bucket, r.Object)
}

// Put uploads a local file and records it as an object. When the URI
// names no object (or only "/"), the object name derives from the source
// file's base name. The upload happens first; if the metadata commit then
// fails, the already-persisted blob is reported through
// *OrphanedBlobError rather than silently leaked.
func (g *Gateway) Put(ctx context.Context, localPath, rawURI string) (blob.Meta, error) {
	r, err := uri.Parse(rawURI)
	if err != nil {
		return blob.Meta{}, err
	}

	object := r.Object
	if r.BucketOnly() {
		object = "/" + filepath.Base(localPath)
	}

	meta, err := g.blobs.Store(ctx, localPath)
	if err != nil {
		return blob.Meta{}, err
	}

	g.logger.Debug("Blob uploaded, committing metadata",
		"bucket", r.Bucket, "object", object, "blob_id", meta.BlobID)

	if err := g.meta.CreateObject(ctx, r.Bucket, object, meta.Size, meta.BlobID, meta.EpochTill); err != nil {
		return blob.Meta{}, &OrphanedBlobError{
			BlobID:    meta.BlobID,
			EpochTill: meta.EpochTill,
			Err:       err,
		}
	}
	return meta, nil
}

// Get downloads an object. The URI must name an object. When destPath is
// empty the destination derives from the object path's base name, in the
// current directory. Returns the path written.
func (g *Gateway) Get(ctx context.Context, rawURI, destPath string) (string, error) {
	r, err := uri.ParseObject(rawURI)
	if err != nil {
		return "", err
	}
	if destPath == "" {
		destPath = filepath.Base(r.Object)
	}

	blobID, err := g.meta.GetObjectBlobID(ctx, r.Bucket, r.Object)
	if err != nil {
		return "", err
	}
	if err := g.blobs.Read(ctx, blobID, destPath); err != nil {
		return "", err
	}
	return destPath, nil
}

// Cat streams an object's content to w. The bytes land in a
// process-temporary file that is removed when the operation finishes,
// whether or not the read back succeeded.
func (g *Gateway) Cat(ctx context.Context, rawURI string, w io.Writer) error {
	r, err := uri.ParseObject(rawURI)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "suis3_*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	blobID, err := g.meta.GetObjectBlobID(ctx, r.Bucket, r.Object)
	if err != nil {
		return err
	}
	if err := g.blobs.Read(ctx, blobID, tmpPath); err != nil {
		return err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to open downloaded content: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to stream content: %w", err)
	}
	return nil
}

// Delete removes an object's metadata record. The blob itself stays in
// the substrate until its expiry epoch; the record is the unit of
// deletion here.
func (g *Gateway) Delete(ctx context.Context, rawURI string) error {
	r, err := uri.ParseObject(rawURI)
	if err != nil {
		return err
	}
	return g.meta.DeleteObject(ctx, r.Bucket, r.Object)
}

// BlobStatus queries the expiry epoch of a blob directly, bypassing
// metadata.
func (g *Gateway) BlobStatus(ctx context.Context, blobID string) (uint64, error) {
	return g.blobs.Status(ctx, blobID)
}
