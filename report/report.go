// Package report renders the deterministic text report and writes it to disk atomically.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zipray/zipray/cd"
	"github.com/zipray/zipray/stats"
)

// Meta is the run-level information that accompanies the aggregate snapshot.
type Meta struct {
	// Path is the analyzed archive path as given on the command line.
	Path string
	// Duration is how long the analysis took.
	Duration time.Duration
	// PeakBufferBytes is the buffer pool's high-water mark.
	PeakBufferBytes int64
	// Detailed enables the per-entry section.
	Detailed bool
}

// Render writes the text report to w.
//
// The output is byte-identical for the same snapshot and meta: methods are ordered by numeric code, size
// buckets are fixed rows, and the detailed section is sorted lexicographically by entry name.
func Render(w io.Writer, snap stats.Snapshot, meta Meta) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "zipray analysis report\n")
	fmt.Fprintf(bw, "archive: %s\n", meta.Path)
	fmt.Fprintf(bw, "duration: %d ms\n", meta.Duration.Milliseconds())
	fmt.Fprintf(bw, "entries: %d\n", snap.Files)

	fmt.Fprintf(bw, "\nstored bytes: %d (%s)\n", snap.StoredBytes, humanize.IBytes(snap.StoredBytes))
	fmt.Fprintf(bw, "compressed bytes: %d (%s)\n", snap.CompressedBytes, humanize.IBytes(snap.CompressedBytes))
	fmt.Fprintf(bw, "compression ratio: %.2f%%\n", snap.CompressionRatio())

	fmt.Fprintf(bw, "\nmethods:\n")
	codes := make([]int, 0, len(snap.Methods))
	for m := range snap.Methods {
		codes = append(codes, int(m))
	}
	sort.Ints(codes)
	for _, m := range codes {
		fmt.Fprintf(bw, "%d (%s): %d\n", m, cd.Method(m), snap.Methods[uint16(m)])
	}

	fmt.Fprintf(bw, "\nsize buckets:\n")
	for i, label := range stats.BucketLabels {
		fmt.Fprintf(bw, "%s: %d\n", label, snap.Buckets[i])
	}

	fmt.Fprintf(bw, "\nperformance:\n")
	fmt.Fprintf(bw, "throughput: %s/s\n", humanize.IBytes(throughput(snap.StoredBytes, meta.Duration)))
	fmt.Fprintf(bw, "peak buffer bytes: %d (%s)\n", meta.PeakBufferBytes, humanize.IBytes(uint64(max(meta.PeakBufferBytes, 0))))

	if meta.Detailed {
		fmt.Fprintf(bw, "\nentries:\n")
		for _, r := range snap.Results {
			fmt.Fprintf(bw, "%s\t%d\t%d\t%d\t%08X\t%s\n", r.Name, r.StoredSize, r.CompressedSize, r.Method, r.CRCClaimed, r.StatusString())
		}
	}

	if len(snap.Errors) > 0 || snap.ErrorsDropped > 0 {
		fmt.Fprintf(bw, "\nerrors:\n")
		for _, e := range snap.Errors {
			if e.Name != "" {
				fmt.Fprintf(bw, "%s: %s: %s\n", e.Name, e.Kind, e.Detail)
			} else {
				fmt.Fprintf(bw, "%s: %s\n", e.Kind, e.Detail)
			}
		}
		if snap.ErrorsDropped > 0 {
			fmt.Fprintf(bw, "(%d more errors not shown)\n", snap.ErrorsDropped)
		}
	}

	return bw.Flush()
}

// throughput returns stored bytes per second, rounding the duration up to a millisecond so short runs do not
// divide by zero.
func throughput(stored uint64, d time.Duration) uint64 {
	ms := max(d.Milliseconds(), 1)
	return stored * 1000 / uint64(ms)
}

// Write materializes the report at path atomically: the content goes to path.tmp, is fsynced, then renamed
// over path.
func Write(path string, snap stats.Snapshot, meta Meta) error {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create report error: %w", err)
	}

	if err = Render(f, snap, meta); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write report error: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename report error: %w", err)
	}

	return nil
}
