package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suistorage/suis3/blob"
	"github.com/suistorage/suis3/txn"
	"github.com/suistorage/suis3/uri"
)

type fakeMetadata struct {
	createBucketName string
	taggedBucket     string
	taggedObject     [2]string
	tags             []string

	createdBucket string
	createdObject string
	createdSize   uint64
	createdBlobID string
	createdEpoch  uint64
	createErr     error

	blobID    string
	blobIDErr error

	deletedObject [2]string

	buckets []txn.BucketInfo
	objects []txn.ObjectInfo
	listed  string
}

func (m *fakeMetadata) CreateBucket(_ context.Context, name string) error {
	m.createBucketName = name
	return nil
}

func (m *fakeMetadata) ListBuckets(context.Context) ([]txn.BucketInfo, error) {
	return m.buckets, nil
}

func (m *fakeMetadata) DeleteBucket(context.Context, string) error { return nil }

func (m *fakeMetadata) TagBucket(_ context.Context, name string, tags []string) error {
	m.taggedBucket = name
	m.tags = tags
	return nil
}

func (m *fakeMetadata) ListBucketTags(context.Context, string) ([]string, error) {
	return m.tags, nil
}

func (m *fakeMetadata) DeleteBucketTags(context.Context, string) error { return nil }

func (m *fakeMetadata) CreateObject(
	_ context.Context,
	bucket, object string,
	size uint64,
	blobID string,
	epochTill uint64,
) error {
	m.createdBucket = bucket
	m.createdObject = object
	m.createdSize = size
	m.createdBlobID = blobID
	m.createdEpoch = epochTill
	return m.createErr
}

func (m *fakeMetadata) GetObjectBlobID(_ context.Context, bucket, object string) (string, error) {
	return m.blobID, m.blobIDErr
}

func (m *fakeMetadata) DeleteObject(_ context.Context, bucket, object string) error {
	m.deletedObject = [2]string{bucket, object}
	return nil
}

func (m *fakeMetadata) TagObject(_ context.Context, bucket, object string, tags []string) error {
	m.taggedObject = [2]string{bucket, object}
	m.tags = tags
	return nil
}

func (m *fakeMetadata) ListObjectTags(context.Context, string, string) ([]string, error) {
	return m.tags, nil
}

func (m *fakeMetadata) DeleteObjectTags(context.Context, string, string) error { return nil }

func (m *fakeMetadata) ListObjects(_ context.Context, bucket string) ([]txn.ObjectInfo, error) {
	m.listed = bucket
	return m.objects, nil
}

type fakeBlobStore struct {
	meta     blob.Meta
	storeErr error
	stored   string

	readBlobID string
	readDest   string
	readErr    error
	content    []byte

	epoch uint64
}

func (b *fakeBlobStore) Store(_ context.Context, path string) (blob.Meta, error) {
	b.stored = path
	return b.meta, b.storeErr
}

func (b *fakeBlobStore) Read(_ context.Context, blobID, destPath string) error {
	b.readBlobID = blobID
	b.readDest = destPath
	if b.readErr != nil {
		return b.readErr
	}
	return os.WriteFile(destPath, b.content, 0644)
}

func (b *fakeBlobStore) Status(context.Context, string) (uint64, error) {
	return b.epoch, nil
}

func newTestGateway(meta *fakeMetadata, blobs *fakeBlobStore) *Gateway {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), meta, blobs)
}

func TestPutDerivesObjectNameFromFile(t *testing.T) {
	meta := &fakeMetadata{}
	blobs := &fakeBlobStore{meta: blob.Meta{Size: 42, BlobID: "bid-1", EpochTill: 90}}
	g := newTestGateway(meta, blobs)

	got, err := g.Put(context.Background(), "/tmp/reports/q3.csv", "suis3://archive")
	require.NoError(t, err)
	require.Equal(t, "bid-1", got.BlobID)

	require.Equal(t, "/tmp/reports/q3.csv", blobs.stored)
	require.Equal(t, "archive", meta.createdBucket)
	require.Equal(t, "/q3.csv", meta.createdObject)
	require.Equal(t, uint64(42), meta.createdSize)
	require.Equal(t, "bid-1", meta.createdBlobID)
	require.Equal(t, uint64(90), meta.createdEpoch)
}

func TestPutExplicitObjectName(t *testing.T) {
	meta := &fakeMetadata{}
	blobs := &fakeBlobStore{meta: blob.Meta{Size: 7, BlobID: "bid-2", EpochTill: 12}}
	g := newTestGateway(meta, blobs)

	_, err := g.Put(context.Background(), "/tmp/a.bin", "suis3://archive/deep/path.bin")
	require.NoError(t, err)
	require.Equal(t, "/deep/path.bin", meta.createdObject)
}

func TestPutCommitFailureReportsOrphanedBlob(t *testing.T) {
	meta := &fakeMetadata{createErr: errors.New("gas exhausted")}
	blobs := &fakeBlobStore{meta: blob.Meta{Size: 7, BlobID: "bid-3", EpochTill: 55}}
	g := newTestGateway(meta, blobs)

	_, err := g.Put(context.Background(), "/tmp/a.bin", "suis3://archive")
	require.Error(t, err)

	var orphan *OrphanedBlobError
	require.ErrorAs(t, err, &orphan)
	require.Equal(t, "bid-3", orphan.BlobID)
	require.Equal(t, uint64(55), orphan.EpochTill)
	require.ErrorContains(t, err, "gas exhausted")
}

func TestPutUploadFailureSkipsCommit(t *testing.T) {
	meta := &fakeMetadata{}
	blobs := &fakeBlobStore{storeErr: errors.New("substrate down")}
	g := newTestGateway(meta, blobs)

	_, err := g.Put(context.Background(), "/tmp/a.bin", "suis3://archive")
	require.ErrorContains(t, err, "substrate down")
	require.Empty(t, meta.createdBucket)
}

func TestGetDefaultsDestinationToBaseName(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	meta := &fakeMetadata{blobID: "bid-4"}
	blobs := &fakeBlobStore{content: []byte("hello")}
	g := newTestGateway(meta, blobs)

	dest, err := g.Get(context.Background(), "suis3://archive/deep/q3.csv", "")
	require.NoError(t, err)
	require.Equal(t, "q3.csv", dest)
	require.Equal(t, "bid-4", blobs.readBlobID)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestGetExplicitDestination(t *testing.T) {
	meta := &fakeMetadata{blobID: "bid-5"}
	blobs := &fakeBlobStore{content: []byte("x")}
	g := newTestGateway(meta, blobs)

	dest := t.TempDir() + "/out.bin"
	got, err := g.Get(context.Background(), "suis3://archive/a", dest)
	require.NoError(t, err)
	require.Equal(t, dest, got)
}

func TestGetRequiresObjectURI(t *testing.T) {
	g := newTestGateway(&fakeMetadata{}, &fakeBlobStore{})

	_, err := g.Get(context.Background(), "suis3://archive", "")
	var ferr *uri.FormatError
	require.ErrorAs(t, err, &ferr)
}

func TestCatStreamsAndRemovesTempFile(t *testing.T) {
	meta := &fakeMetadata{blobID: "bid-6"}
	blobs := &fakeBlobStore{content: []byte("streamed content")}
	g := newTestGateway(meta, blobs)

	var out bytes.Buffer
	err := g.Cat(context.Background(), "suis3://archive/a.txt", &out)
	require.NoError(t, err)
	require.Equal(t, "streamed content", out.String())

	require.NotEmpty(t, blobs.readDest)
	_, statErr := os.Stat(blobs.readDest)
	require.True(t, os.IsNotExist(statErr))
}

func TestCatRemovesTempFileOnReadFailure(t *testing.T) {
	meta := &fakeMetadata{blobID: "bid-7"}
	blobs := &fakeBlobStore{readErr: errors.New("read failed")}
	g := newTestGateway(meta, blobs)

	var out bytes.Buffer
	err := g.Cat(context.Background(), "suis3://archive/a.txt", &out)
	require.ErrorContains(t, err, "read failed")

	require.NotEmpty(t, blobs.readDest)
	_, statErr := os.Stat(blobs.readDest)
	require.True(t, os.IsNotExist(statErr))
}

func TestListObjectsRejectsObjectURI(t *testing.T) {
	g := newTestGateway(&fakeMetadata{}, &fakeBlobStore{})

	_, err := g.ListObjects(context.Background(), "suis3://archive/a")
	var ferr *uri.FormatError
	require.ErrorAs(t, err, &ferr)
}

func TestListObjects(t *testing.T) {
	meta := &fakeMetadata{objects: []txn.ObjectInfo{{URI: "/a"}}}
	g := newTestGateway(meta, &fakeBlobStore{})

	got, err := g.ListObjects(context.Background(), "suis3://archive")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "archive", meta.listed)
}

func TestTagBranchesOnURIShape(t *testing.T) {
	meta := &fakeMetadata{}
	g := newTestGateway(meta, &fakeBlobStore{})

	require.NoError(t, g.AddTags(context.Background(), "suis3://archive", []string{"cold"}))
	require.Equal(t, "archive", meta.taggedBucket)
	require.Equal(t, []string{"cold"}, meta.tags)

	require.NoError(t, g.AddTags(context.Background(), "suis3://archive/a.txt", []string{"hot"}))
	require.Equal(t, [2]string{"archive", "/a.txt"}, meta.taggedObject)
	require.Equal(t, []string{"hot"}, meta.tags)
}

func TestDeleteRequiresObjectURI(t *testing.T) {
	meta := &fakeMetadata{}
	g := newTestGateway(meta, &fakeBlobStore{})

	err := g.Delete(context.Background(), "suis3://archive")
	var ferr *uri.FormatError
	require.ErrorAs(t, err, &ferr)

	require.NoError(t, g.Delete(context.Background(), "suis3://archive/a"))
	require.Equal(t, [2]string{"archive", "/a"}, meta.deletedObject)
}

func TestCreateBucket(t *testing.T) {
	meta := &fakeMetadata{}
	g := newTestGateway(meta, &fakeBlobStore{})

	require.NoError(t, g.CreateBucket(context.Background(), "suis3://archive"))
	require.Equal(t, "archive", meta.createBucketName)

	err := g.CreateBucket(context.Background(), "suis3://archive/a")
	var ferr *uri.FormatError
	require.ErrorAs(t, err, &ferr)
}
