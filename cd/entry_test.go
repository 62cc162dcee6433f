package cd

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipray/zipray/internal/testutil"
)

func parseAll(t *testing.T, data []byte) ([]Entry, error) {
	t.Helper()

	src := source(t, data)
	r, err := FindEOCD(context.Background(), src)
	require.NoError(t, err)

	return Parse(context.Background(), src, r)
}

func TestParse(t *testing.T) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "stored.txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("Hello, World!"))
	require.NoError(t, err)

	w, err = zw.CreateHeader(&zip.FileHeader{Name: "deflated.bin", Method: zip.Deflate})
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("abcd"), 256))
	require.NoError(t, err)

	require.NoError(t, zw.Close())

	entries, err := parseAll(t, buf.Bytes())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "stored.txt", entries[0].Name)
	assert.Equal(t, MethodStore, entries[0].Method)
	assert.EqualValues(t, 13, entries[0].CompressedSize)
	assert.EqualValues(t, 13, entries[0].UncompressedSize)
	assert.Equal(t, crc32.ChecksumIEEE([]byte("Hello, World!")), entries[0].CRC32)

	assert.Equal(t, "deflated.bin", entries[1].Name)
	assert.Equal(t, MethodDeflate, entries[1].Method)
	assert.EqualValues(t, 1024, entries[1].UncompressedSize)
	assert.Less(t, entries[1].CompressedSize, entries[1].UncompressedSize)
}

func TestParse_NameEncodings(t *testing.T) {
	t.Run("utf8 flag", func(t *testing.T) {
		data := stdZip(t, "", "héllo.txt", "content")

		entries, err := parseAll(t, data)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "héllo.txt", entries[0].Name)
	})

	t.Run("cp437 fallback", func(t *testing.T) {
		// 0x82 is é in code page 437.
		z := &testutil.RawZip{
			Entries: []testutil.RawEntry{{Name: "h\x82llo.txt", Data: []byte("x"), CRC32: crc32.ChecksumIEEE([]byte("x")), UncompressedSize: 1}},
		}

		entries, err := parseAll(t, z.Build())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "héllo.txt", entries[0].Name)
	})
}

func TestParse_TruncatedEntry(t *testing.T) {
	nameLen := uint16(0x7fff)
	z := &testutil.RawZip{
		Entries: []testutil.RawEntry{
			{Name: "ok.txt", Data: []byte("x"), CRC32: crc32.ChecksumIEEE([]byte("x")), UncompressedSize: 1},
			{Name: "bad.txt", Data: []byte("y"), CRC32: crc32.ChecksumIEEE([]byte("y")), UncompressedSize: 1},
		},
		LastNameLenOverride: &nameLen,
	}

	_, err := parseAll(t, z.Build())

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "CD entry truncated", malformed.Reason)
}

func TestParse_CountMismatch(t *testing.T) {
	count := uint16(2)
	z := &testutil.RawZip{
		Entries:         []testutil.RawEntry{{Name: "a.txt", Data: []byte("x"), CRC32: crc32.ChecksumIEEE([]byte("x")), UncompressedSize: 1}},
		CDCountOverride: &count,
	}

	_, err := parseAll(t, z.Build())

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "declares 2 entries, parsed 1")
}

func TestParse_MaxEntryCount(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a 65535-entry archive")
	}

	raw := make([]testutil.RawEntry, 65535)
	for i := range raw {
		raw[i] = testutil.RawEntry{
			Name:             fmt.Sprintf("f%05d", i),
			Data:             []byte("x"),
			CRC32:            crc32.ChecksumIEEE([]byte("x")),
			UncompressedSize: 1,
		}
	}

	entries, err := parseAll(t, (&testutil.RawZip{Entries: raw}).Build())
	require.NoError(t, err)
	assert.Len(t, entries, 65535)
}

func TestParse_EntryCountOverflows(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a 65536-entry archive")
	}

	// one entry past the classic format's limit wraps the declared count to zero, which can never match
	// the parsed record count.
	raw := make([]testutil.RawEntry, 65536)
	for i := range raw {
		raw[i] = testutil.RawEntry{
			Name:             fmt.Sprintf("f%05d", i),
			Data:             []byte("x"),
			CRC32:            crc32.ChecksumIEEE([]byte("x")),
			UncompressedSize: 1,
		}
	}

	_, err := parseAll(t, (&testutil.RawZip{Entries: raw}).Build())

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
}

func TestParse_ZeroEntries(t *testing.T) {
	entries, err := parseAll(t, stdZip(t, ""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
