package txn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/suistorage/suis3/gateway"
)

var (
	// ErrNothingReturned is reported when a read-style operation's
	// transaction emits zero events. An empty result set still emits an
	// event with an empty list; no event at all means the call itself was
	// wrong (bad bucket name, wrong coordinates), so it is never folded
	// into an empty success.
	ErrNothingReturned = errors.New("nothing returned, your command may be incorrect")

	// ErrEventDecode is reported when an event was emitted but its payload
	// does not decode into the expected shape. Kept distinct from
	// ErrNothingReturned so contract drift is diagnosable.
	ErrEventDecode = errors.New("failed to decode event payload")
)

// Gateway is the slice of the ledger gateway this package needs: a fresh
// object read for the registry root, and atomic transaction submission.
type Gateway interface {
	Read(ctx context.Context, id string) (gateway.ObjectRef, error)
	Submit(ctx context.Context, req *gateway.TransactionRequest) ([]gateway.Event, error)
}

// Coordinates pin the deployed metadata contract: the package, the module
// within it, the well-known bucket registry root, and the shared clock
// object used for trusted timestamps.
type Coordinates struct {
	Package             string
	Module              string
	BucketsRoot         string
	ClockID             string
	ClockInitialVersion uint64
	GasBudget           uint64
}

/*
Builder translates logical metadata operations into ledger transactions.

Every operation follows the same protocol: resolve the bucket registry
root fresh (never cached, so a concurrent writer's registry update is
always observed), build the ordered input list the contract function
expects, submit one atomic transaction, and for read-style operations
decode the first emitted event into a typed result.

Argument order is part of the contract. The input lists below mirror the
declared parameter order of each contract function and must not be
reordered.
*/
type Builder struct {
	gw     Gateway
	coords Coordinates
	logger *slog.Logger
}

func NewBuilder(gw Gateway, coords Coordinates, logger *slog.Logger) *Builder {
	return &Builder{
		gw:     gw,
		coords: coords,
		logger: logger.WithGroup("txn"),
	}
}

func pureInput(b []byte) gateway.Input {
	return gateway.Input{Kind: gateway.InputKindPure, Pure: b}
}

func (b *Builder) rootInput(ctx context.Context) (gateway.Input, error) {
	ref, err := b.gw.Read(ctx, b.coords.BucketsRoot)
	if err != nil {
		return gateway.Input{}, fmt.Errorf("failed to resolve buckets root: %w", err)
	}
	return gateway.Input{Kind: gateway.InputKindObject, Object: &ref}, nil
}

func (b *Builder) clockInput() gateway.Input {
	return gateway.Input{Kind: gateway.InputKindShared, Shared: &gateway.SharedRef{
		ID:             b.coords.ClockID,
		InitialVersion: b.coords.ClockInitialVersion,
		Mutable:        false,
	}}
}

func (b *Builder) submit(ctx context.Context, function string, inputs []gateway.Input) ([]gateway.Event, error) {
	b.logger.Debug("Submitting metadata transaction", "function", function, "inputs", len(inputs))
	return b.gw.Submit(ctx, &gateway.TransactionRequest{
		Inputs: inputs,
		Call: gateway.MoveCall{
			Package:  b.coords.Package,
			Module:   b.coords.Module,
			Function: function,
		},
		GasBudget: b.coords.GasBudget,
	})
}

// decodeFirstEvent enforces the read-result protocol: the first emitted
// event's payload is the result. Zero events and undecodable payloads are
// distinct failures.
func decodeFirstEvent(events []gateway.Event, target any) error {
	if len(events) == 0 {
		return ErrNothingReturned
	}
	if err := json.Unmarshal(events[0].ParsedJSON, target); err != nil {
		return fmt.Errorf("%w: %v", ErrEventDecode, err)
	}
	return nil
}

// CreateBucket registers a new bucket. Name uniqueness is enforced by the
// contract, not here.
func (b *Builder) CreateBucket(ctx context.Context, name string) error {
	root, err := b.rootInput(ctx)
	if err != nil {
		return err
	}
	inputs := []gateway.Input{
		root,
		b.clockInput(),
		pureInput(encodeString(name)),
		pureInput(encodeString("")),
	}
	_, err = b.submit(ctx, "create_bucket", inputs)
	return err
}

// ListBuckets returns every bucket registered under the root.
func (b *Builder) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	root, err := b.rootInput(ctx)
	if err != nil {
		return nil, err
	}
	events, err := b.submit(ctx, "ls_buckets", []gateway.Input{root})
	if err != nil {
		return nil, err
	}
	var ret bucketsList
	if err := decodeFirstEvent(events, &ret); err != nil {
		return nil, err
	}
	return ret.Buckets, nil
}

func (b *Builder) DeleteBucket(ctx context.Context, name string) error {
	root, err := b.rootInput(ctx)
	if err != nil {
		return err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(name)),
	}
	_, err = b.submit(ctx, "delete_bucket", inputs)
	return err
}

// TagBucket appends tags to a bucket. Tags are passed through unmodified;
// deduplication and ordering are the contract's concern.
func (b *Builder) TagBucket(ctx context.Context, name string, tags []string) error {
	root, err := b.rootInput(ctx)
	if err != nil {
		return err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(name)),
		pureInput(encodeStringVector(tags)),
	}
	_, err = b.submit(ctx, "tag_bucket", inputs)
	return err
}

func (b *Builder) ListBucketTags(ctx context.Context, name string) ([]string, error) {
	root, err := b.rootInput(ctx)
	if err != nil {
		return nil, err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(name)),
	}
	events, err := b.submit(ctx, "get_bucket_tags", inputs)
	if err != nil {
		return nil, err
	}
	var ret tagsList
	if err := decodeFirstEvent(events, &ret); err != nil {
		return nil, err
	}
	return ret.Tags, nil
}

func (b *Builder) DeleteBucketTags(ctx context.Context, name string) error {
	root, err := b.rootInput(ctx)
	if err != nil {
		return err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(name)),
	}
	_, err = b.submit(ctx, "delete_bucket_tags", inputs)
	return err
}

// CreateObject records an uploaded blob as an object in a bucket. The
// caller already holds the blob's identity and expiry from the upload; a
// repeated put to the same (bucket, object) overwrites the record.
func (b *Builder) CreateObject(ctx context.Context, bucket, object string, size uint64, blobID string, epochTill uint64) error {
	root, err := b.rootInput(ctx)
	if err != nil {
		return err
	}
	inputs := []gateway.Input{
		root,
		b.clockInput(),
		pureInput(encodeString(bucket)),
		pureInput(encodeString(object)),
		pureInput(encodeU64(size)),
		pureInput(encodeString(blobID)),
		pureInput(encodeU64(epochTill)),
		pureInput(encodeStringVector(nil)),
	}
	_, err = b.submit(ctx, "create_object", inputs)
	return err
}

// GetObjectBlobID looks up the blob identifier recorded for an object.
func (b *Builder) GetObjectBlobID(ctx context.Context, bucket, object string) (string, error) {
	root, err := b.rootInput(ctx)
	if err != nil {
		return "", err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(bucket)),
		pureInput(encodeString(object)),
	}
	events, err := b.submit(ctx, "get_object", inputs)
	if err != nil {
		return "", err
	}
	var ret objectMeta
	if err := decodeFirstEvent(events, &ret); err != nil {
		return "", err
	}
	return ret.BlobID, nil
}

func (b *Builder) DeleteObject(ctx context.Context, bucket, object string) error {
	root, err := b.rootInput(ctx)
	if err != nil {
		return err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(bucket)),
		pureInput(encodeString(object)),
	}
	_, err = b.submit(ctx, "delete_object", inputs)
	return err
}

func (b *Builder) TagObject(ctx context.Context, bucket, object string, tags []string) error {
	root, err := b.rootInput(ctx)
	if err != nil {
		return err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(bucket)),
		pureInput(encodeString(object)),
		pureInput(encodeStringVector(tags)),
	}
	_, err = b.submit(ctx, "tag_object", inputs)
	return err
}

func (b *Builder) ListObjectTags(ctx context.Context, bucket, object string) ([]string, error) {
	root, err := b.rootInput(ctx)
	if err != nil {
		return nil, err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(bucket)),
		pureInput(encodeString(object)),
	}
	events, err := b.submit(ctx, "get_object_tags", inputs)
	if err != nil {
		return nil, err
	}
	var ret tagsList
	if err := decodeFirstEvent(events, &ret); err != nil {
		return nil, err
	}
	return ret.Tags, nil
}

func (b *Builder) DeleteObjectTags(ctx context.Context, bucket, object string) error {
	root, err := b.rootInput(ctx)
	if err != nil {
		return err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(bucket)),
		pureInput(encodeString(object)),
	}
	_, err = b.submit(ctx, "delete_object_tags", inputs)
	return err
}

// ListObjects returns the full metadata records of every object in a
// bucket.
func (b *Builder) ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	root, err := b.rootInput(ctx)
	if err != nil {
		return nil, err
	}
	inputs := []gateway.Input{
		root,
		pureInput(encodeString(bucket)),
	}
	events, err := b.submit(ctx, "ls_bucket_objects", inputs)
	if err != nil {
		return nil, err
	}
	var ret objectsList
	if err := decodeFirstEvent(events, &ret); err != nil {
		return nil, err
	}
	return ret.Objects, nil
}
