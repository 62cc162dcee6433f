package cd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipray/zipray/blockio"
	"github.com/zipray/zipray/internal/testutil"
)

func source(t *testing.T, data []byte) Source {
	t.Helper()
	return blockio.New(bytes.NewReader(data), int64(len(data)))
}

// stdZip builds an archive with archive/zip containing the given name/content pairs.
func stdZip(t *testing.T, comment string, files ...string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	if comment != "" {
		require.NoError(t, zw.SetComment(comment))
	}
	for i := 0; i+1 < len(files); i += 2 {
		w, err := zw.Create(files[i])
		require.NoError(t, err)
		_, err = w.Write([]byte(files[i+1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestFindEOCD(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		files   []string
	}{
		{
			name:  "no comment",
			files: []string{"a.txt", "hello", "b.txt", "world"},
		},
		{
			name:    "short comment",
			comment: "an ordinary comment",
			files:   []string{"a.txt", "hello"},
		},
		{
			name:    "max comment",
			comment: strings.Repeat("x", 65535),
			files:   []string{"a.txt", "hello"},
		},
		{
			name: "zero entries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := stdZip(t, tt.comment, tt.files...)

			r, err := FindEOCD(context.Background(), source(t, data))
			require.NoError(t, err)
			assert.EqualValues(t, len(tt.files)/2, r.CDCount)
			assert.Equal(t, tt.comment, string(r.Comment))
		})
	}
}

func TestFindEOCD_CommentEmbedsSignature(t *testing.T) {
	// a comment that contains a fake EOCD record declaring a bogus entry count; the declared comment
	// length of the fake record does not match the bytes following it, so the real record must win.
	fake := make([]byte, eocdSize)
	binary.LittleEndian.PutUint32(fake[0:4], 0x06054b50)
	binary.LittleEndian.PutUint16(fake[10:12], 999)
	comment := append([]byte("prefix"), fake...)
	comment = append(comment, []byte("suffix")...)

	z := &testutil.RawZip{
		Entries: []testutil.RawEntry{{Name: "a.txt", Data: []byte("hi"), CRC32: crc32.ChecksumIEEE([]byte("hi")), UncompressedSize: 2}},
		Comment: comment,
	}
	data := z.Build()

	r, err := FindEOCD(context.Background(), source(t, data))
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.CDCount)
	assert.Equal(t, comment, r.Comment)
}

func TestFindEOCD_TrailingByte(t *testing.T) {
	z := &testutil.RawZip{
		Entries:  []testutil.RawEntry{{Name: "a.txt", Data: []byte("hi"), CRC32: crc32.ChecksumIEEE([]byte("hi")), UncompressedSize: 2}},
		Trailing: []byte{0x00},
	}
	data := z.Build()

	r, err := FindEOCD(context.Background(), source(t, data))
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.CDCount)
}

func TestFindEOCD_NotAZip(t *testing.T) {
	data := bytes.Repeat([]byte("definitely not a zip file. "), 100)

	_, err := FindEOCD(context.Background(), source(t, data))

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "EOCD not found", malformed.Reason)
}

func TestFindEOCD_TooSmall(t *testing.T) {
	_, err := FindEOCD(context.Background(), source(t, []byte("PK")))

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
}

func TestFindEOCD_Zip64Markers(t *testing.T) {
	var eocd [eocdSize]byte
	binary.LittleEndian.PutUint32(eocd[0:4], 0x06054b50)
	binary.LittleEndian.PutUint32(eocd[12:16], 0xffffffff)
	binary.LittleEndian.PutUint32(eocd[16:20], 0xffffffff)

	_, err := FindEOCD(context.Background(), source(t, eocd[:]))

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "ZIP64 not supported", malformed.Reason)
}

func TestFindEOCD_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FindEOCD(ctx, source(t, stdZip(t, "")))
	assert.ErrorIs(t, err, context.Canceled)
}
