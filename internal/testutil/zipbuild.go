// Package testutil builds hand-crafted ZIP archives for tests that need byte-level control over headers.
package testutil

import (
	"bytes"
	"encoding/binary"
)

// RawEntry describes one member of a hand-built archive. Data holds the bytes exactly as stored in the
// archive; for method 0 that is the payload itself.
type RawEntry struct {
	Name             string
	Method           uint16
	Flags            uint16
	Data             []byte
	CRC32            uint32
	UncompressedSize uint32

	// LocalMethod and LocalCRC32 override the local file header copies only, leaving the central
	// directory canonical. ZeroLocal writes zero CRC and sizes in the local header the way archivers do
	// when deferring to a data descriptor.
	LocalMethod *uint16
	LocalCRC32  *uint32
	ZeroLocal   bool
}

// RawZip assembles archives byte by byte so tests can produce inputs that archive/zip refuses to write.
type RawZip struct {
	Entries []RawEntry
	Comment []byte

	// CDCountOverride replaces the entry count declared in the EOCD record.
	CDCountOverride *uint16
	// LastNameLenOverride corrupts the name-length field of the final central directory record.
	LastNameLenOverride *uint16
	// Trailing is appended verbatim after the EOCD record.
	Trailing []byte
}

// Build renders the archive.
func (z *RawZip) Build() []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian

	offsets := make([]uint32, len(z.Entries))
	for i, e := range z.Entries {
		offsets[i] = uint32(buf.Len())

		method, crc := e.Method, e.CRC32
		csize, usize := uint32(len(e.Data)), e.UncompressedSize
		if e.LocalMethod != nil {
			method = *e.LocalMethod
		}
		if e.LocalCRC32 != nil {
			crc = *e.LocalCRC32
		}
		if e.ZeroLocal {
			crc, csize, usize = 0, 0, 0
		}

		var hdr [30]byte
		le.PutUint32(hdr[0:4], 0x04034b50)
		le.PutUint16(hdr[4:6], 20)
		le.PutUint16(hdr[6:8], e.Flags)
		le.PutUint16(hdr[8:10], method)
		le.PutUint32(hdr[14:18], crc)
		le.PutUint32(hdr[18:22], csize)
		le.PutUint32(hdr[22:26], usize)
		le.PutUint16(hdr[26:28], uint16(len(e.Name)))
		buf.Write(hdr[:])
		buf.WriteString(e.Name)
		buf.Write(e.Data)
	}

	cdOffset := uint32(buf.Len())
	for i, e := range z.Entries {
		var hdr [46]byte
		le.PutUint32(hdr[0:4], 0x02014b50)
		le.PutUint16(hdr[4:6], 20)
		le.PutUint16(hdr[6:8], 20)
		le.PutUint16(hdr[8:10], e.Flags)
		le.PutUint16(hdr[10:12], e.Method)
		le.PutUint32(hdr[16:20], e.CRC32)
		le.PutUint32(hdr[20:24], uint32(len(e.Data)))
		le.PutUint32(hdr[24:28], e.UncompressedSize)
		nameLen := uint16(len(e.Name))
		if i == len(z.Entries)-1 && z.LastNameLenOverride != nil {
			nameLen = *z.LastNameLenOverride
		}
		le.PutUint16(hdr[28:30], nameLen)
		le.PutUint32(hdr[42:46], offsets[i])
		buf.Write(hdr[:])
		buf.WriteString(e.Name)
	}
	cdSize := uint32(buf.Len()) - cdOffset

	count := uint16(len(z.Entries))
	if z.CDCountOverride != nil {
		count = *z.CDCountOverride
	}

	var eocd [22]byte
	le.PutUint32(eocd[0:4], 0x06054b50)
	le.PutUint16(eocd[8:10], count)
	le.PutUint16(eocd[10:12], count)
	le.PutUint32(eocd[12:16], cdSize)
	le.PutUint32(eocd[16:20], cdOffset)
	le.PutUint16(eocd[20:22], uint16(len(z.Comment)))
	buf.Write(eocd[:])
	buf.Write(z.Comment)
	buf.Write(z.Trailing)

	return buf.Bytes()
}
