package cd

import (
	"context"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// Parse reads the whole central directory described by the EOCD record and decodes it into entries.
//
// Parsing is strictly sequential because each record's length depends on its own variable-length fields. The
// declared record count must match the number of records parsed, and the records must consume exactly CDSize
// bytes; either mismatch fails with *MalformedError.
func Parse(ctx context.Context, src Source, r EOCDRecord) ([]Entry, error) {
	data := make([]byte, r.CDSize)
	if err := src.ReadFull(ctx, data, int64(r.CDOffset)); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, r.CDCount)
	for off := 0; off < len(data); {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if off+cdfhSize > len(data) {
			return nil, &MalformedError{Reason: "CD entry truncated"}
		}

		rec := data[off:]
		if le.Uint32(rec) != sigCDFH {
			return nil, &MalformedError{Reason: "CD signature wrong"}
		}

		n := int(le.Uint16(rec[28:30]))
		x := int(le.Uint16(rec[30:32]))
		c := int(le.Uint16(rec[32:34]))
		if off+cdfhSize+n+x+c > len(data) {
			return nil, &MalformedError{Reason: "CD entry truncated"}
		}

		e := Entry{
			Flags:            le.Uint16(rec[8:10]),
			Method:           Method(le.Uint16(rec[10:12])),
			Modified:         msDosTime(le.Uint16(rec[14:16]), le.Uint16(rec[12:14])),
			CRC32:            le.Uint32(rec[16:20]),
			CompressedSize:   le.Uint32(rec[20:24]),
			UncompressedSize: le.Uint32(rec[24:28]),
			ExternalAttrs:    le.Uint32(rec[38:42]),
			Offset:           le.Uint32(rec[42:46]),
		}
		e.Name = decodeName(rec[cdfhSize:cdfhSize+n], e.UTF8())

		if e.CompressedSize == zip64Marker32 || e.UncompressedSize == zip64Marker32 || e.Offset == zip64Marker32 {
			return nil, &MalformedError{Reason: "ZIP64 not supported"}
		}
		if int64(e.Offset) >= int64(r.CDOffset) {
			return nil, &MalformedError{Reason: fmt.Sprintf("entry %q starts inside central directory", e.Name)}
		}
		if int64(e.CompressedSize) > int64(r.CDOffset)-int64(e.Offset) {
			return nil, &MalformedError{Reason: fmt.Sprintf("entry %q overlaps central directory", e.Name)}
		}

		entries = append(entries, e)
		off += cdfhSize + n + x + c
	}

	if len(entries) != int(r.CDCount) {
		return nil, &MalformedError{Reason: fmt.Sprintf("CD declares %d entries, parsed %d", r.CDCount, len(entries))}
	}

	return entries, nil
}

// decodeName decodes an entry name as UTF-8 when general-purpose bit 11 is set and as CP437 otherwise.
func decodeName(b []byte, utf8Flag bool) string {
	if utf8Flag || isASCII(b) {
		return string(b)
	}

	s, err := charmap.CodePage437.NewDecoder().Bytes(b)
	if err != nil {
		// CP437 decoding is total over all byte values; keep the raw bytes if it somehow fails.
		return string(b)
	}
	return string(s)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
