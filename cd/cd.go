// Package cd reads the central directory of classic (non-ZIP64) ZIP archives.
//
// The package walks the archive from its tail: FindEOCD locates the end-of-central-directory record, Parse
// decodes the central directory into entries, and VerifyLocal cross-checks an entry against its local file
// header to produce the compressed-data byte range.
package cd

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	sigLFH  uint32 = 0x04034b50
	sigCDFH uint32 = 0x02014b50

	// lfhSize and cdfhSize are the fixed portions of the local and central file headers.
	lfhSize  = 30
	cdfhSize = 46

	// flagDataDescriptor is general-purpose bit 3: sizes and CRC follow the data in a descriptor and the
	// local header copies may be zero.
	flagDataDescriptor = 0x0008
	// flagUTF8 is general-purpose bit 11: the name and comment are UTF-8.
	flagUTF8 = 0x0800

	zip64Marker32 = 0xffffffff
)

// Source is the random-access view of the archive that this package reads from.
//
// *blockio.Reader satisfies it.
type Source interface {
	// ReadFull reads exactly len(p) bytes at off, failing rather than returning short data.
	ReadFull(ctx context.Context, p []byte, off int64) error
	// Tail returns the last n bytes of the source, or the entire source if shorter.
	Tail(ctx context.Context, n int64) ([]byte, error)
	// Size returns the total source size in bytes.
	Size() int64
}

// Method is a ZIP compression method code.
type Method uint16

const (
	// MethodStore is method 0, no compression.
	MethodStore Method = 0
	// MethodDeflate is method 8, RFC 1951 deflate.
	MethodDeflate Method = 8
)

// Supported reports whether entries with this method can be decoded for integrity checking.
func (m Method) Supported() bool {
	return m == MethodStore || m == MethodDeflate
}

func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	default:
		return fmt.Sprintf("method %d", uint16(m))
	}
}

// Entry is an immutable descriptor built from one central directory record.
type Entry struct {
	// Name is the entry name decoded per the UTF-8 flag (general-purpose bit 11), falling back to CP437.
	Name string
	// Method is the compression method code.
	Method Method
	// Flags is the general-purpose bit flag field.
	Flags uint16
	// Modified is the last-modified timestamp decoded from MS-DOS date and time.
	Modified time.Time
	// CRC32 is the claimed checksum of the uncompressed data.
	CRC32 uint32
	// CompressedSize and UncompressedSize are the claimed sizes in bytes.
	CompressedSize   uint32
	UncompressedSize uint32
	// Offset is the relative offset of the entry's local file header.
	Offset uint32
	// ExternalAttrs is the host-dependent external file attributes field.
	ExternalAttrs uint32
}

// DataDescriptor reports whether general-purpose bit 3 is set, in which case the local header's CRC and size
// fields may be zero and the central directory values are authoritative.
func (e *Entry) DataDescriptor() bool {
	return e.Flags&flagDataDescriptor != 0
}

// UTF8 reports whether general-purpose bit 11 is set.
func (e *Entry) UTF8() bool {
	return e.Flags&flagUTF8 != 0
}

// msDosTime converts an MS-DOS date and time pair to time.Time in UTC.
func msDosTime(d, t uint16) time.Time {
	return time.Date(
		int(d>>9)+1980,
		time.Month(d>>5&0xf),
		int(d&0x1f),
		int(t>>11),
		int(t>>5&0x3f),
		int(t&0x1f)*2,
		0,
		time.UTC,
	)
}

var le = binary.LittleEndian
