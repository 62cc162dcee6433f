package zipray

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/zipray/zipray/blockio"
	"github.com/zipray/zipray/bufpool"
	"github.com/zipray/zipray/cd"
	"github.com/zipray/zipray/executor"
	"github.com/zipray/zipray/internal"
	"github.com/zipray/zipray/stats"
)

const (
	// MaxArchiveSize is the largest archive accepted, 4 GiB. Anything bigger needs ZIP64.
	MaxArchiveSize int64 = 4 << 30

	// DefaultMaxMemory is the default buffer pool budget, 1 GiB.
	DefaultMaxMemory int64 = 1 << 30
)

// Options customises an Analyze run.
type Options struct {
	// Threads is the number of decode workers.
	//
	// Defaults to the number of logical CPUs. Must be positive.
	Threads int

	// BufferSize is the per-worker copy buffer size in bytes.
	//
	// Defaults to bufpool.DefaultSmallSize.
	BufferSize int

	// MaxMemory is the buffer pool's total-bytes budget.
	//
	// Defaults to DefaultMaxMemory.
	MaxMemory int64

	// MaxBytesInSecond rate limits reads from the archive. The zero-value indicates no limit.
	MaxBytesInSecond int64

	// Methods restricts which method codes get their bytes decoded; entries with other methods are recorded
	// as Skipped without being read. The nil map decodes every supported method.
	Methods map[uint16]bool

	// OnProgress, if given, is called after each entry completes with the number of completed entries and
	// the total entry count. It is called from a single goroutine.
	OnProgress func(done, total int)
}

// Analysis is the result of a completed run.
type Analysis struct {
	// Path is the archive path as given to Analyze.
	Path string
	// Duration is the wall time the run took.
	Duration time.Duration
	// Stats is the aggregate snapshot the report is rendered from.
	Stats stats.Snapshot
	// PeakBufferBytes is the buffer pool's high-water mark.
	PeakBufferBytes int64
	// Comment is the archive comment from the end-of-central-directory record.
	Comment []byte
}

// Analyze opens the named archive and runs the full integrity analysis over it.
//
// Archive-level failures (no EOCD, malformed central directory, oversize archive) abort the run; per-entry
// failures are recorded in the snapshot's error list and do not. External cancellation surfaces as ctx's
// error with in-flight workers drained before return.
func Analyze(ctx context.Context, name string, optFns ...func(*Options)) (*Analysis, error) {
	opts := &Options{
		Threads:    runtime.NumCPU(),
		BufferSize: bufpool.DefaultSmallSize,
		MaxMemory:  DefaultMaxMemory,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	src, err := blockio.Open(name, func(o *blockio.Options) {
		o.MaxBytesInSecond = opts.MaxBytesInSecond
	})
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return analyze(ctx, src, name, opts)
}

func analyze(ctx context.Context, src *blockio.Reader, name string, opts *Options) (*Analysis, error) {
	start := time.Now()
	logger := internal.LoggerOrDiscard(ctx)

	if src.Size() > MaxArchiveSize {
		return nil, &SizeLimitError{Size: src.Size()}
	}

	eocd, err := cd.FindEOCD(ctx, src)
	if err != nil {
		return nil, err
	}

	entries, err := cd.Parse(ctx, src, eocd)
	if err != nil {
		return nil, err
	}
	logger.Printf("parsed central directory: %d entries", len(entries))

	agg := stats.NewAggregator()
	pool := bufpool.New(opts.MaxMemory, func(o *bufpool.Options) {
		o.SmallSize = opts.BufferSize
	})

	// rctx fans the single cancellation signal out to every stage; a worker that hits an archive-level
	// error cancels it with that error as the cause.
	rctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	w := &worker{
		src:      src,
		pool:     pool,
		cdOffset: eocd.CDOffset,
		methods:  opts.Methods,
		bufSize:  opts.BufferSize,
	}

	exec := executor.NewFixedPool(opts.Threads)
	results := make(chan stats.Result, opts.Threads)
	collected := make(chan struct{})
	total := len(entries)

	// single collector goroutine so progress callbacks never run concurrently.
	go func() {
		defer close(collected)

		done := 0
		for r := range results {
			agg.Record(r)

			done++
			if opts.OnProgress != nil {
				opts.OnProgress(done, total)
			}
		}
	}()

	// admit new work only while at least one medium buffer's worth of budget is free, so fan-out cannot
	// outrun the memory budget.
	threshold := min(int64(bufpool.MediumSize), opts.MaxMemory)

	for i := range entries {
		e := &entries[i]

		if err = pool.WaitFree(rctx, threshold); err != nil {
			break
		}

		if err = exec.Execute(rctx, func() {
			res, verr := w.verify(rctx, e)
			if verr != nil {
				if !errors.Is(verr, context.Canceled) {
					cancel(verr)
				}
				return
			}

			results <- res
		}); err != nil {
			break
		}
	}

	exec.Close()
	exec.Wait()
	close(results)
	<-collected

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cause := context.Cause(rctx); cause != nil {
		return nil, cause
	}

	a := &Analysis{
		Path:            name,
		Duration:        time.Since(start),
		Stats:           agg.Snapshot(),
		PeakBufferBytes: pool.Peak(),
		Comment:         eocd.Comment,
	}
	logger.Printf("analyzed %d entries in %s", a.Stats.Files, a.Duration)

	return a, nil
}
