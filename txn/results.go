package txn

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Uint64String is a uint64 that the contract emits as a JSON string (the
// ledger's event encoding stringifies u64 to avoid precision loss in
// javascript consumers). Plain numbers are accepted too.
type Uint64String uint64

func (u *Uint64String) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty u64 value")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid u64 string %q: %w", s, err)
		}
		*u = Uint64String(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*u = Uint64String(v)
	return nil
}

func (u Uint64String) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}

// BucketInfo is one bucket registry entry. CreateTS is ledger milliseconds
// since epoch; conversion to a viewer's local time is presentation only.
type BucketInfo struct {
	Name     string       `json:"name"`
	CreateTS Uint64String `json:"create_ts"`
}

// ObjectInfo is the full metadata record of one stored object. BlobID is a
// foreign reference into the blob substrate; the ledger never validates
// that it exists.
type ObjectInfo struct {
	URI         string       `json:"uri"`
	Size        Uint64String `json:"size"`
	Tags        []string     `json:"tags"`
	LastWriteTS Uint64String `json:"last_write_ts"`
	BlobID      string       `json:"walrus_blob_id"`
	EpochTill   Uint64String `json:"walrus_epoch_till"`
}

// Event payload shapes, one per read-style contract function.

type bucketsList struct {
	Buckets []BucketInfo `json:"buckets"`
}

type tagsList struct {
	Tags []string `json:"tags"`
}

type objectsList struct {
	Objects []ObjectInfo `json:"objects"`
}

// objectMeta is the get_object event payload: an ObjectInfo without the
// uri field.
type objectMeta struct {
	Size        Uint64String `json:"size"`
	Tags        []string     `json:"tags"`
	LastWriteTS Uint64String `json:"last_write_ts"`
	BlobID      string       `json:"walrus_blob_id"`
	EpochTill   Uint64String `json:"walrus_epoch_till"`
}
