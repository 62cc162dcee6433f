package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipray/zipray/stats"
)

func helloSnapshot() stats.Snapshot {
	return stats.Snapshot{
		Files:           1,
		StoredBytes:     13,
		CompressedBytes: 13,
		Methods:         map[uint16]int64{0: 1},
		Buckets:         [stats.BucketCount]int64{1, 0, 0, 0, 0, 0},
		Results: []stats.Result{{
			Name:           "hello.txt",
			Method:         0,
			StoredSize:     13,
			CompressedSize: 13,
			CRCClaimed:     0xEC4AC3D0,
			CRCObserved:    0xEC4AC3D0,
			SizeObserved:   13,
			Status:         stats.StatusOk,
		}},
	}
}

func TestRender(t *testing.T) {
	buf := &bytes.Buffer{}
	err := Render(buf, helloSnapshot(), Meta{
		Path:            "testdata/hello.zip",
		Duration:        13 * time.Millisecond,
		PeakBufferBytes: 65536,
		Detailed:        true,
	})
	require.NoError(t, err)

	expected := `zipray analysis report
archive: testdata/hello.zip
duration: 13 ms
entries: 1

stored bytes: 13 (13 B)
compressed bytes: 13 (13 B)
compression ratio: 0.00%

methods:
0 (store): 1

size buckets:
<= 1 KiB: 1
<= 10 KiB: 0
<= 100 KiB: 0
<= 1 MiB: 0
<= 10 MiB: 0
> 10 MiB: 0

performance:
throughput: 1000 B/s
peak buffer bytes: 65536 (64 KiB)

entries:
hello.txt	13	13	0	EC4AC3D0	Ok
`
	assert.Equal(t, expected, buf.String())
}

func TestRender_MethodOrderAndErrors(t *testing.T) {
	snap := stats.Snapshot{
		Files:           3,
		StoredBytes:     300,
		CompressedBytes: 150,
		Methods:         map[uint16]int64{12: 1, 0: 1, 8: 1},
		Errors: []stats.Error{
			{Name: "bad.txt", Kind: stats.KindCRCMismatch, Detail: "claimed 00000000, observed EC4AC3D0"},
		},
		ErrorsDropped: 2,
	}

	buf := &bytes.Buffer{}
	require.NoError(t, Render(buf, snap, Meta{Path: "a.zip", Duration: time.Second}))

	out := buf.String()
	assert.Contains(t, out, "methods:\n0 (store): 1\n8 (deflate): 1\n12 (method 12): 1\n")
	assert.Contains(t, out, "errors:\nbad.txt: CrcMismatch: claimed 00000000, observed EC4AC3D0\n(2 more errors not shown)\n")
	assert.Contains(t, out, "compression ratio: 50.00%\n")
	assert.NotContains(t, out, "entries:\n")
}

func TestRender_Deterministic(t *testing.T) {
	meta := Meta{Path: "a.zip", Duration: 42 * time.Millisecond, PeakBufferBytes: 1024, Detailed: true}

	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	require.NoError(t, Render(a, helloSnapshot(), meta))
	require.NoError(t, Render(b, helloSnapshot(), meta))

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWrite_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")

	require.NoError(t, Write(path, helloSnapshot(), Meta{Path: "a.zip", Duration: time.Millisecond}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "zipray analysis report\n")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must not survive a successful write")
}
