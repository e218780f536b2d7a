package blob

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	fieldBlobID   = "Blob ID"
	fieldEndEpoch = "End epoch"
)

var (
	ErrNoBlobID   = errors.New("no blob id found in store report")
	ErrNoEndEpoch = errors.New("end epoch not found")
)

var (
	storeSchema  = reportSchema{required: []string{fieldBlobID}, optional: []string{fieldEndEpoch}}
	statusSchema = reportSchema{required: []string{fieldEndEpoch}}
)

// Meta is the transient result of an upload. It exists only long enough
// to be folded into the object-creating metadata transaction; it is not
// persisted by this layer.
type Meta struct {
	Size        uint64
	BlobID      string
	EpochTill   uint64
	Tags        []string
	LastWriteTS uint64
}

// runner executes one blocking substrate invocation and returns its
// stdout. A non-success exit must surface the substrate's diagnostic text
// verbatim in the returned error.
type runner interface {
	run(ctx context.Context, args ...string) ([]byte, error)
}

type execRunner struct {
	binary string
}

func (r execRunner) run(ctx context.Context, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if diag := strings.TrimSpace(stderr.String()); diag != "" {
			return nil, errors.New(diag)
		}
		return nil, errors.Wrapf(err, "%s %s failed", r.binary, args[0])
	}
	return stdout.Bytes(), nil
}

// Adapter bridges the blob substrate's command-style interface: store,
// read, and blob-status. Invocations are blocking and cancellable through
// the context; there is no retry layer here.
type Adapter struct {
	run    runner
	logger *slog.Logger
}

func New(binary string, logger *slog.Logger) *Adapter {
	return &Adapter{
		run:    execRunner{binary: binary},
		logger: logger.WithGroup("blob"),
	}
}

// Store uploads a local file and returns its blob identity. When the
// store report carries an identifier but no expiry epoch, exactly one
// status query recovers it; an identifier without a nonzero expiry is
// never an acceptable terminal state.
func (a *Adapter) Store(ctx context.Context, path string) (Meta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Meta{}, errors.Wrapf(err, "cannot stat %s", path)
	}

	out, err := a.run.run(ctx, "store", path)
	if err != nil {
		return Meta{}, err
	}

	fields, err := storeSchema.decode(out)
	if err != nil {
		return Meta{}, ErrNoBlobID
	}
	blobID := fields[fieldBlobID]
	if blobID == "" {
		return Meta{}, ErrNoBlobID
	}

	var epochTill uint64
	if raw, ok := fields[fieldEndEpoch]; ok {
		epochTill, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Meta{}, errors.Wrapf(err, "invalid end epoch %q in store report", raw)
		}
	}

	if epochTill == 0 {
		a.logger.Debug("Store report omitted end epoch, querying blob status", "blob_id", blobID)
		epochTill, err = a.Status(ctx, blobID)
		if err != nil {
			return Meta{}, err
		}
	}
	if epochTill == 0 {
		return Meta{}, ErrNoEndEpoch
	}

	a.logger.Debug("Blob stored", "blob_id", blobID, "size", info.Size(), "epoch_till", epochTill)

	return Meta{
		Size:      uint64(info.Size()),
		BlobID:    blobID,
		EpochTill: epochTill,
	}, nil
}

// Read downloads a blob to destPath.
func (a *Adapter) Read(ctx context.Context, blobID, destPath string) error {
	if blobID == "" {
		return errors.New("blob id cannot be empty")
	}
	_, err := a.run.run(ctx, "read", blobID, "--out", destPath)
	return err
}

// Status returns the expiry epoch currently recorded for a blob.
func (a *Adapter) Status(ctx context.Context, blobID string) (uint64, error) {
	if blobID == "" {
		return 0, errors.New("blob id cannot be empty")
	}
	out, err := a.run.run(ctx, "blob-status", "--blob-id", blobID)
	if err != nil {
		return 0, err
	}

	fields, err := statusSchema.decode(out)
	if err != nil {
		return 0, ErrNoEndEpoch
	}
	epochTill, err := strconv.ParseUint(fields[fieldEndEpoch], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid end epoch %q in status report", fields[fieldEndEpoch])
	}
	if epochTill == 0 {
		return 0, ErrNoEndEpoch
	}
	return epochTill, nil
}
