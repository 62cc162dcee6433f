// Package config loads optional defaults from a ".zipray" INI file.
package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Config holds the defaults that a ".zipray" file can override. The zero value means "not set"; flag values
// and built-in defaults take over per field.
type Config struct {
	// Threads is the decode worker count.
	Threads int
	// BufferSizeKiB is the per-worker buffer size in KiB.
	BufferSizeKiB int
	// MaxMemoryMiB is the buffer pool budget in MiB.
	MaxMemoryMiB int64
	// MaxBytesInSecond rate limits archive reads.
	MaxBytesInSecond int64
}

// Load traverses the directory hierarchy upwards from the working directory to find the first ".zipray" file
// available and parses it.
//
// A missing file is not an error; the zero Config is returned.
func Load(ctx context.Context) (Config, error) {
	var c Config

	cur, err := os.Getwd()
	if err != nil {
		return c, err
	}

	var path string
	for {
		select {
		case <-ctx.Done():
			return c, ctx.Err()
		default:
		}

		candidate := filepath.Join(cur, ".zipray")
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			path = candidate
			break
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return c, nil
		}
		cur = parent
	}

	f, err := ini.Load(path)
	if err != nil {
		return c, err
	}

	s := f.Section("analyze")
	c.Threads = s.Key("threads").MustInt(0)
	c.BufferSizeKiB = s.Key("buffer-size").MustInt(0)
	c.MaxMemoryMiB = s.Key("max-memory").MustInt64(0)
	c.MaxBytesInSecond = s.Key("max-bps").MustInt64(0)
	return c, nil
}
