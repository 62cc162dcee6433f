// Package blockio provides random-access reads over a ZIP archive with cancellation and optional bandwidth limiting.
package blockio

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/time/rate"
)

// DefaultBurst is the largest single read that is accounted against the rate limiter in one go.
const DefaultBurst = 1024 * 1024

// Options customises a Reader.
type Options struct {
	// MaxBytesInSecond is used to rate limit the amount of bytes that are read in one second.
	//
	// The zero-value indicates no limit. Must not be negative.
	MaxBytesInSecond int64
}

// Reader reads arbitrary ranges of a fixed-size source.
//
// All methods are safe for concurrent use; reads are issued with ReadAt semantics so no seek offset is shared.
type Reader struct {
	src     io.ReaderAt
	size    int64
	limiter *rate.Limiter
	closer  io.Closer
}

// Open opens the named file for reading.
//
// The file size is captured once at open; the file shrinking afterwards surfaces as an *IOError from the read
// methods, never as short data.
func Open(name string, optFns ...func(*Options)) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r := New(f, fi.Size(), optFns...)
	r.closer = f
	return r, nil
}

// New wraps the given io.ReaderAt and size.
func New(src io.ReaderAt, size int64, optFns ...func(*Options)) *Reader {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.MaxBytesInSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MaxBytesInSecond), DefaultBurst)
	}

	return &Reader{src: src, size: size, limiter: limiter}
}

// Size returns the total size of the source in bytes.
func (r *Reader) Size() int64 {
	return r.size
}

// ReadFull reads exactly len(p) bytes at the given offset.
//
// The context is checked before the read is issued. A read crossing the end of the source, or returning fewer
// bytes than requested, fails with *IOError.
func (r *Reader) ReadFull(ctx context.Context, p []byte, off int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if off < 0 || off+int64(len(p)) > r.size {
		return &IOError{Offset: off, Cause: io.ErrUnexpectedEOF}
	}

	// account against the limiter in burst-sized slices so a single huge read cannot exceed the burst.
	for n := int64(len(p)); n > 0; {
		m := min(n, int64(DefaultBurst))
		if err := r.limiter.WaitN(ctx, int(m)); err != nil {
			return err
		}
		n -= m
	}

	switch n, err := r.src.ReadAt(p, off); {
	case err != nil && !(err == io.EOF && n == len(p)):
		return &IOError{Offset: off, Cause: err}
	case n != len(p):
		return &IOError{Offset: off, Cause: io.ErrUnexpectedEOF}
	}

	return nil
}

// Tail returns the last n bytes of the source. If n exceeds the source size, the whole source is returned.
func (r *Reader) Tail(ctx context.Context, n int64) ([]byte, error) {
	n = min(n, r.size)

	p := make([]byte, n)
	if err := r.ReadFull(ctx, p, r.size-n); err != nil {
		return nil, err
	}

	return p, nil
}

// Section returns an io.Reader over the byte range [off, off+n).
//
// The returned reader is sequential and must not be shared between goroutines; the context is polled on every
// Read so long copies remain cancellable.
func (r *Reader) Section(ctx context.Context, off, n int64) io.Reader {
	return &sectionReader{ctx: ctx, r: r, off: off, remaining: n}
}

// Close closes the underlying file if the Reader came from Open; it is a no-op otherwise.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

type sectionReader struct {
	ctx       context.Context
	r         *Reader
	off       int64
	remaining int64
}

func (s *sectionReader) Read(p []byte) (int, error) {
	if s.remaining <= 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}

	if err := s.r.ReadFull(s.ctx, p, s.off); err != nil {
		return 0, err
	}

	s.off += int64(len(p))
	s.remaining -= int64(len(p))
	return len(p), nil
}

// IOError is a failed or short read at a known offset.
type IOError struct {
	Offset int64
	Cause  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read at offset %d error: %v", e.Offset, e.Cause)
}

func (e *IOError) Unwrap() error {
	return e.Cause
}
