package uri

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		bucket string
		object string
	}{
		{"bucket only", "suis3://mybucket", "mybucket", ""},
		{"bucket with root slash", "suis3://mybucket/", "mybucket", "/"},
		{"object", "suis3://mybucket/report.csv", "mybucket", "/report.csv"},
		{"nested object", "suis3://b/a/b/c.txt", "b", "/a/b/c.txt"},
		{"scheme case insensitive", "SUIS3://mybucket/x", "mybucket", "/x"},
		{"mixed scheme case", "SuIs3://mybucket", "mybucket", ""},
		{"bucket charset", "suis3://my.bucket_name-2", "my.bucket_name-2", ""},
		{"object charset", "suis3://b/dir_1/file-2.0.bin", "b", "/dir_1/file-2.0.bin"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Parse(tc.raw)
			require.NoError(t, err)
			require.Equal(t, tc.bucket, r.Bucket)
			require.Equal(t, tc.object, r.Object)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no scheme", "mybucket/file"},
		{"wrong scheme", "s3://mybucket"},
		{"scheme only", "suis3://"},
		{"bad bucket char", "suis3://my bucket"},
		{"bad object char", "suis3://bucket/a b.txt"},
		{"percent encoding rejected", "suis3://bucket/a%20b"},
		{"trailing garbage", "suis3://bucket/file.txt?x=1"},
		{"leading space", " suis3://bucket"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			require.Error(t, err)
			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			require.Equal(t, "SUIS3 object format error", err.Error())
		})
	}
}

func TestBucketOnly(t *testing.T) {
	r, err := Parse("suis3://b")
	require.NoError(t, err)
	require.True(t, r.BucketOnly())

	r, err = Parse("suis3://b/")
	require.NoError(t, err)
	require.True(t, r.BucketOnly())

	r, err = Parse("suis3://b/x")
	require.NoError(t, err)
	require.False(t, r.BucketOnly())
}

func TestParseObject(t *testing.T) {
	_, err := ParseObject("suis3://b")
	var fe *FormatError
	require.True(t, errors.As(err, &fe))

	_, err = ParseObject("suis3://b/")
	require.True(t, errors.As(err, &fe))

	r, err := ParseObject("suis3://b/x")
	require.NoError(t, err)
	require.Equal(t, "/x", r.Object)
}

func TestParseBucket(t *testing.T) {
	_, err := ParseBucket("suis3://b/x")
	var fe *FormatError
	require.True(t, errors.As(err, &fe))

	r, err := ParseBucket("suis3://b")
	require.NoError(t, err)
	require.Equal(t, "b", r.Bucket)

	r, err = ParseBucket("suis3://b/")
	require.NoError(t, err)
	require.Equal(t, "b", r.Bucket)
}
