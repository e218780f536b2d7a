package blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportDecode(t *testing.T) {
	schema := reportSchema{required: []string{"Blob ID"}, optional: []string{"End epoch"}}

	out := []byte("Storing file...\nBlob ID: abc123\nEnd epoch: 120\nDone.\n")
	fields, err := schema.decode(out)
	require.NoError(t, err)
	require.Equal(t, "abc123", fields["Blob ID"])
	require.Equal(t, "120", fields["End epoch"])
}

func TestReportDecodeReordered(t *testing.T) {
	schema := reportSchema{required: []string{"Blob ID", "End epoch"}}

	out := []byte("End epoch: 7\nBlob ID: xyz\n")
	fields, err := schema.decode(out)
	require.NoError(t, err)
	require.Equal(t, "xyz", fields["Blob ID"])
	require.Equal(t, "7", fields["End epoch"])
}

func TestReportDecodeMissingRequired(t *testing.T) {
	schema := reportSchema{required: []string{"Blob ID"}}

	_, err := schema.decode([]byte("Something else: value\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Blob ID")
}

func TestReportDecodeOptionalAbsent(t *testing.T) {
	schema := reportSchema{required: []string{"Blob ID"}, optional: []string{"End epoch"}}

	fields, err := schema.decode([]byte("Blob ID: abc\n"))
	require.NoError(t, err)
	_, ok := fields["End epoch"]
	require.False(t, ok)
}

func TestReportDecodeUnknownKeysIgnored(t *testing.T) {
	schema := reportSchema{required: []string{"Blob ID"}}

	fields, err := schema.decode([]byte("Unencoded size: 9\nBlob ID: abc\nExtra: stuff\n"))
	require.NoError(t, err)
	require.Len(t, fields, 1)
}

func TestCutFieldTrimsWhitespace(t *testing.T) {
	v, ok := cutField("Blob ID:    padded-value  ", "Blob ID")
	require.True(t, ok)
	require.Equal(t, "padded-value", v)

	_, ok = cutField("Blob IDX: nope", "Blob ID")
	require.False(t, ok)
}
