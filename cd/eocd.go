package cd

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/valyala/bytebufferpool"
)

const (
	// eocdSize is the fixed portion of the end-of-central-directory record.
	eocdSize = 22
	// maxCommentLength bounds the variable comment that may follow the fixed portion.
	maxCommentLength = 0xffff
	// maxTail is the most data that can possibly hold the EOCD record.
	maxTail = eocdSize + maxCommentLength
)

var sigEOCD = make([]byte, 4)

func init() {
	binary.LittleEndian.PutUint32(sigEOCD, 0x06054b50)
}

// EOCDRecord is the end-of-central-directory record of a ZIP archive.
type EOCDRecord struct {
	// CDCount is the total number of central directory records.
	CDCount uint16
	// CDSize is the size of the central directory in bytes.
	CDSize uint32
	// CDOffset is the offset of the central directory from the start of the archive.
	CDOffset uint32
	// Comment is the archive comment.
	Comment []byte
}

// FindEOCD locates the end-of-central-directory record by scanning the source's tail backwards for its
// signature.
//
// A candidate signature is accepted only if its declared comment length matches the bytes that follow it; this
// disambiguates archives whose comment embeds the signature. Candidates closest to the end of the source win.
// If no candidate matches exactly, the last candidate whose declared comment fits within the remaining bytes is
// accepted, which tolerates trailing junk after the record.
func FindEOCD(ctx context.Context, src Source) (EOCDRecord, error) {
	tail, err := src.Tail(ctx, maxTail)
	if err != nil {
		return EOCDRecord{}, err
	}
	if len(tail) < eocdSize {
		return EOCDRecord{}, &MalformedError{Reason: "EOCD not found"}
	}

	// base is the file offset of tail[0].
	base := src.Size() - int64(len(tail))

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	bb.B = append(bb.B[:0], tail...)

	var loose *EOCDRecord
	var loosePos int64
	for hay := bb.B[:len(bb.B)-eocdSize+4]; ; {
		i := bytes.LastIndex(hay, sigEOCD)
		if i < 0 {
			break
		}
		hay = hay[:i]

		declared := int(le.Uint16(tail[i+20 : i+22]))
		remaining := len(tail) - i - eocdSize
		if declared > remaining {
			continue
		}

		r := EOCDRecord{
			CDCount:  le.Uint16(tail[i+10 : i+12]),
			CDSize:   le.Uint32(tail[i+12 : i+16]),
			CDOffset: le.Uint32(tail[i+16 : i+20]),
		}
		if declared > 0 {
			r.Comment = append([]byte(nil), tail[i+eocdSize:i+eocdSize+declared]...)
		}

		if declared == remaining {
			return validateEOCD(r, base+int64(i), src.Size())
		}
		if loose == nil {
			loose = &r
			loosePos = base + int64(i)
		}
	}

	if loose != nil {
		return validateEOCD(*loose, loosePos, src.Size())
	}

	return EOCDRecord{}, &MalformedError{Reason: "EOCD not found"}
}

// validateEOCD rejects ZIP64 markers and a central directory that does not fit before the record.
func validateEOCD(r EOCDRecord, pos, size int64) (EOCDRecord, error) {
	if r.CDSize == zip64Marker32 || r.CDOffset == zip64Marker32 {
		return r, &MalformedError{Reason: "ZIP64 not supported"}
	}

	if int64(r.CDOffset)+int64(r.CDSize) > pos {
		return r, &MalformedError{Reason: "central directory out of bounds"}
	}

	return r, nil
}
