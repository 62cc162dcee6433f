// Package stats collects per-entry analysis results into thread-safe aggregate state.
package stats

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// DefaultMaxErrors caps how many error records are retained; surplus errors are counted, not stored.
const DefaultMaxErrors = 10000

// Status is the outcome of analyzing one entry.
type Status int

const (
	StatusOk Status = iota
	StatusSkipped
	StatusFailed
)

// Kind classifies a Skipped or Failed result.
type Kind int

const (
	KindNone Kind = iota
	KindCRCMismatch
	KindSizeMismatch
	KindDecodeError
	KindUnsupportedMethod
	KindInvalidName
	KindInconsistent
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindCRCMismatch:
		return "CrcMismatch"
	case KindSizeMismatch:
		return "SizeMismatch"
	case KindDecodeError:
		return "DecodeError"
	case KindUnsupportedMethod:
		return "UnsupportedMethod"
	case KindInvalidName:
		return "InvalidName"
	case KindInconsistent:
		return "EntryInconsistent"
	case KindIO:
		return "IoError"
	default:
		return "None"
	}
}

// Result is the outcome of the integrity pass over a single entry.
type Result struct {
	Name           string
	Method         uint16
	StoredSize     uint64
	CompressedSize uint64
	CRCClaimed     uint32
	CRCObserved    uint32
	SizeObserved   uint64
	Status         Status
	Kind           Kind
	Detail         string
}

// StatusString renders the STATUS column of the detailed report: "Ok", "Skipped(kind)", or "Failed(kind)".
func (r Result) StatusString() string {
	switch r.Status {
	case StatusOk:
		return "Ok"
	case StatusSkipped:
		return fmt.Sprintf("Skipped(%s)", r.Kind)
	default:
		return fmt.Sprintf("Failed(%s)", r.Kind)
	}
}

// Error is one retained entry-level error.
type Error struct {
	Name   string
	Kind   Kind
	Detail string
}

// BucketCount is the number of fixed size-distribution buckets.
const BucketCount = 6

// bucketBounds are the inclusive upper bounds of the first five buckets; the sixth is unbounded.
var bucketBounds = [BucketCount - 1]uint64{1 << 10, 10 << 10, 100 << 10, 1 << 20, 10 << 20}

// BucketLabels are the report labels of the size buckets, in emission order.
var BucketLabels = [BucketCount]string{"<= 1 KiB", "<= 10 KiB", "<= 100 KiB", "<= 1 MiB", "<= 10 MiB", "> 10 MiB"}

func bucketIndex(size uint64) int {
	for i, bound := range bucketBounds {
		if size <= bound {
			return i
		}
	}
	return BucketCount - 1
}

// Options customises an Aggregator.
type Options struct {
	// MaxErrors caps the retained error records. Default to DefaultMaxErrors.
	MaxErrors int
}

// Aggregator is the shared sink that decode workers record into.
//
// Counters are lock-free; the method histogram takes a concurrent map with per-method atomic counters; results
// and errors take short critical sections. All methods are safe under concurrent callers.
type Aggregator struct {
	maxErrors int

	files      atomic.Int64
	stored     atomic.Uint64
	compressed atomic.Uint64
	buckets    [BucketCount]atomic.Int64
	methods    sync.Map // uint16 -> *atomic.Int64

	mu            sync.Mutex
	results       []Result
	errors        []Error
	errorsDropped int64
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(optFns ...func(*Options)) *Aggregator {
	opts := &Options{MaxErrors: DefaultMaxErrors}
	for _, fn := range optFns {
		fn(opts)
	}

	return &Aggregator{maxErrors: opts.MaxErrors}
}

// Record folds one entry result into the aggregate state.
//
// Every entry counts toward the totals and the histogram regardless of status; claimed sizes from the central
// directory are used so that failed entries still contribute, matching what the archive declares.
func (a *Aggregator) Record(r Result) {
	a.files.Add(1)
	a.stored.Add(r.StoredSize)
	a.compressed.Add(r.CompressedSize)
	a.buckets[bucketIndex(r.StoredSize)].Add(1)

	c, ok := a.methods.Load(r.Method)
	if !ok {
		c, _ = a.methods.LoadOrStore(r.Method, new(atomic.Int64))
	}
	c.(*atomic.Int64).Add(1)

	a.mu.Lock()
	a.results = append(a.results, r)
	if r.Status == StatusFailed {
		if len(a.errors) < a.maxErrors {
			a.errors = append(a.errors, Error{Name: r.Name, Kind: r.Kind, Detail: r.Detail})
		} else {
			a.errorsDropped++
		}
	}
	a.mu.Unlock()
}

// Snapshot is an immutable view of the aggregate state for the report emitter.
type Snapshot struct {
	Files           int64
	StoredBytes     uint64
	CompressedBytes uint64
	// Methods maps method code to entry count.
	Methods map[uint16]int64
	// Buckets holds per-bucket entry counts in BucketLabels order.
	Buckets [BucketCount]int64
	// Results is sorted lexicographically by entry name.
	Results []Result
	// Errors preserves recording order; ErrorsDropped counts records beyond the retention cap.
	Errors        []Error
	ErrorsDropped int64
}

// Snapshot copies the aggregate state. Intended for a single reader after the writers have quiesced, though it
// is safe to call at any time.
func (a *Aggregator) Snapshot() Snapshot {
	s := Snapshot{
		Files:           a.files.Load(),
		StoredBytes:     a.stored.Load(),
		CompressedBytes: a.compressed.Load(),
		Methods:         make(map[uint16]int64),
	}
	for i := range a.buckets {
		s.Buckets[i] = a.buckets[i].Load()
	}
	a.methods.Range(func(k, v any) bool {
		s.Methods[k.(uint16)] = v.(*atomic.Int64).Load()
		return true
	})

	a.mu.Lock()
	s.Results = append([]Result(nil), a.results...)
	s.Errors = append([]Error(nil), a.errors...)
	s.ErrorsDropped = a.errorsDropped
	a.mu.Unlock()

	sort.Slice(s.Results, func(i, j int) bool { return s.Results[i].Name < s.Results[j].Name })

	return s
}

// CompressionRatio returns (1 - compressed/stored) x 100, or 0 when nothing was stored.
func (s Snapshot) CompressionRatio() float64 {
	if s.StoredBytes == 0 {
		return 0
	}
	return (1 - float64(s.CompressedBytes)/float64(s.StoredBytes)) * 100
}
