package zipray

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/zipray/zipray/blockio"
	"github.com/zipray/zipray/bufpool"
	"github.com/zipray/zipray/cd"
	"github.com/zipray/zipray/stats"
	"github.com/zipray/zipray/util"
)

// worker runs the per-entry integrity pass: cross-check the local file header, then decode the entry's bytes
// (straight copy for Store, inflate for Deflate) while tracking CRC-32 and output length.
type worker struct {
	src      *blockio.Reader
	pool     *bufpool.Pool
	cdOffset uint32
	methods  map[uint16]bool
	bufSize  int
}

// verify produces the entry's result.
//
// A non-nil error is archive-level (wrong local header signature, memory budget starvation, cancellation) and
// aborts the run; everything attributable to the entry itself lands in the result instead.
func (w *worker) verify(ctx context.Context, e *cd.Entry) (stats.Result, error) {
	res := stats.Result{
		Name:           e.Name,
		Method:         uint16(e.Method),
		StoredSize:     uint64(e.UncompressedSize),
		CompressedSize: uint64(e.CompressedSize),
		CRCClaimed:     e.CRC32,
		Status:         stats.StatusOk,
	}

	if strings.IndexByte(e.Name, 0) >= 0 {
		res.Status, res.Kind, res.Detail = stats.StatusFailed, stats.KindInvalidName, "name contains NUL"
		return res, nil
	}

	if w.methods != nil && !w.methods[uint16(e.Method)] {
		res.Status, res.Kind = stats.StatusSkipped, stats.KindUnsupportedMethod
		res.Detail = fmt.Sprintf("method %d excluded by options", uint16(e.Method))
		return res, nil
	}

	if !e.Method.Supported() {
		res.Status, res.Kind = stats.StatusSkipped, stats.KindUnsupportedMethod
		res.Detail = fmt.Sprintf("method %d", uint16(e.Method))
		return res, nil
	}

	select {
	case <-ctx.Done():
		return res, ctx.Err()
	default:
	}

	dataStart, err := cd.VerifyLocal(ctx, w.src, e, w.cdOffset)
	if err != nil {
		var (
			inconsistent *cd.InconsistentEntryError
			ioErr        *blockio.IOError
		)
		switch {
		case errors.As(err, &inconsistent):
			res.Status, res.Kind, res.Detail = stats.StatusFailed, stats.KindInconsistent, inconsistent.Field
			return res, nil
		case errors.As(err, &ioErr):
			res.Status, res.Kind, res.Detail = stats.StatusFailed, stats.KindIO, err.Error()
			return res, nil
		default:
			return res, err
		}
	}

	if e.Method == cd.MethodStore && e.CompressedSize != e.UncompressedSize {
		res.Status, res.Kind = stats.StatusFailed, stats.KindSizeMismatch
		res.Detail = fmt.Sprintf("stored entry sizes differ: compressed %d, uncompressed %d", e.CompressedSize, e.UncompressedSize)
		return res, nil
	}

	lease, err := w.pool.Acquire(ctx, w.bufSize)
	if err != nil {
		return res, err
	}
	defer lease.Release()

	crc := crc32.NewIEEE()
	data := w.src.Section(ctx, dataStart, int64(e.CompressedSize))

	var observed int64
	switch e.Method {
	case cd.MethodStore:
		if observed, err = util.CopyBufferWithContext(ctx, crc, data, lease.Bytes()); err != nil {
			return failRead(res, err)
		}
	case cd.MethodDeflate:
		fr := flate.NewReader(data)
		observed, err = util.CopyBufferWithContext(ctx, crc, fr, lease.Bytes())
		if err == nil {
			err = fr.Close()
		}
		if err != nil {
			var ioErr *blockio.IOError
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return res, err
			case errors.As(err, &ioErr):
				res.Status, res.Kind, res.Detail = stats.StatusFailed, stats.KindIO, err.Error()
			default:
				res.Status, res.Kind, res.Detail = stats.StatusFailed, stats.KindDecodeError, err.Error()
			}
			return res, nil
		}
	}

	res.SizeObserved = uint64(observed)
	res.CRCObserved = crc.Sum32()

	switch {
	case res.SizeObserved != uint64(e.UncompressedSize):
		res.Status, res.Kind = stats.StatusFailed, stats.KindSizeMismatch
		res.Detail = fmt.Sprintf("claimed %d bytes, observed %d", e.UncompressedSize, observed)
	case res.CRCObserved != e.CRC32:
		res.Status, res.Kind = stats.StatusFailed, stats.KindCRCMismatch
		res.Detail = fmt.Sprintf("claimed %08X, observed %08X", e.CRC32, res.CRCObserved)
	}

	return res, nil
}

// failRead classifies a failed raw copy: cancellation propagates, anything else is an entry-level read error.
func failRead(res stats.Result, err error) (stats.Result, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return res, err
	}

	res.Status, res.Kind, res.Detail = stats.StatusFailed, stats.KindIO, err.Error()
	return res, nil
}
