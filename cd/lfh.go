package cd

import (
	"context"
)

// VerifyLocal reads the entry's local file header and cross-checks it against the central directory record.
//
// Method, CRC-32, and both sizes must agree, except that an entry written with a data descriptor (general-
// purpose bit 3) may carry zeros in its local header; the central directory values are authoritative and the
// post-data descriptor is not read. Disagreement fails with *InconsistentEntryError; a wrong signature fails
// with *MalformedError.
//
// Returns the file offset of the entry's compressed data; the data occupies
// [dataStart, dataStart+e.CompressedSize).
func VerifyLocal(ctx context.Context, src Source, e *Entry, cdOffset uint32) (dataStart int64, err error) {
	var hdr [lfhSize]byte
	if err = src.ReadFull(ctx, hdr[:], int64(e.Offset)); err != nil {
		return 0, err
	}

	if le.Uint32(hdr[:4]) != sigLFH {
		return 0, &MalformedError{Reason: "LFH signature wrong"}
	}

	var (
		flags  = le.Uint16(hdr[6:8])
		method = Method(le.Uint16(hdr[8:10]))
		crc    = le.Uint32(hdr[14:18])
		csize  = le.Uint32(hdr[18:22])
		usize  = le.Uint32(hdr[22:26])
		n      = int64(le.Uint16(hdr[26:28]))
		x      = int64(le.Uint16(hdr[28:30]))
	)

	if method != e.Method {
		return 0, &InconsistentEntryError{Name: e.Name, Field: "method"}
	}

	// with bit 3 the local copies were written before the data existed and may be zero.
	descriptor := flags&flagDataDescriptor != 0
	switch {
	case descriptor && crc == 0 && csize == 0 && usize == 0:
	case crc != e.CRC32:
		return 0, &InconsistentEntryError{Name: e.Name, Field: "crc32"}
	case csize != e.CompressedSize:
		return 0, &InconsistentEntryError{Name: e.Name, Field: "compressed size"}
	case usize != e.UncompressedSize:
		return 0, &InconsistentEntryError{Name: e.Name, Field: "uncompressed size"}
	}

	dataStart = int64(e.Offset) + lfhSize + n + x
	if dataStart+int64(e.CompressedSize) > int64(cdOffset) {
		return 0, &MalformedError{Reason: "entry data overlaps central directory"}
	}

	return dataStart, nil
}
