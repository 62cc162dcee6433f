// Package analyze implements the analyze command behind the zipray CLI.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/mholt/archives"
	"github.com/zipray/zipray"
	"github.com/zipray/zipray/cd"
	"github.com/zipray/zipray/internal"
	"github.com/zipray/zipray/internal/config"
	"github.com/zipray/zipray/report"
)

// Command analyzes one ZIP archive and writes its report.
type Command struct {
	Threads    int    `long:"threads" description:"number of decode workers, between 1 and 256. If not given, default to the number of logical CPUs." default:"0"`
	BufferSize int    `long:"buffer-size" description:"per-worker buffer size in KiB, between 1 and 1048576" default:"0"`
	MaxMemory  int64  `long:"max-memory" description:"total buffer memory budget in MiB, between 1 and 1048576" default:"0"`
	Methods    string `long:"methods" description:"comma-separated subset of {store, deflate}; entries using other methods are skipped before decode"`
	MaxBPS     int64  `long:"max-bps" description:"limit archive reads to this many bytes per second; 0 means no limit" default:"0"`
	Detailed   bool   `long:"detailed" description:"include a per-entry section in the report"`
	NoProgress bool   `long:"no-progress" description:"do not render the progress bar"`
	Verbose    bool   `short:"v" long:"verbose" description:"log analysis stages to stderr"`
	Args       struct {
		Input  flags.Filename `positional-arg-name:"archive" description:"the ZIP archive to analyze"`
		Output flags.Filename `positional-arg-name:"report" description:"the report file to write"`
	} `positional-args:"yes" required:"yes"`
}

// InputError marks argument and input-file problems so main can map them to their own exit code.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return e.Err.Error()
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func inputErrorf(format string, v ...any) error {
	return &InputError{Err: fmt.Errorf(format, v...)}
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return inputErrorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	input, output := string(c.Args.Input), string(c.Args.Output)
	if c.Verbose {
		ctx = internal.WithPrefixLogger(ctx, internal.Prefix(input))
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return inputErrorf("load config error: %w", err)
	}

	opts, err := c.resolve(cfg)
	if err != nil {
		return err
	}

	if err = preflight(ctx, input); err != nil {
		return err
	}

	bar := newProgressBar(c.NoProgress)
	defer func() {
		_ = bar.Close()
	}()

	analysis, err := zipray.Analyze(ctx, input, func(o *zipray.Options) {
		*o = *opts
		o.OnProgress = func(done, total int) {
			bar.ChangeMax(total)
			_ = bar.Set(done)
		}
	})
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return &InputError{Err: err}
		}
		return err
	}

	if err = report.Write(output, analysis.Stats, report.Meta{
		Path:            analysis.Path,
		Duration:        analysis.Duration,
		PeakBufferBytes: analysis.PeakBufferBytes,
		Detailed:        c.Detailed,
	}); err != nil {
		return err
	}

	internal.LoggerOrDiscard(ctx).Printf("report written to %s", output)
	return nil
}

// resolve folds flags, config-file defaults, and built-in defaults into the analysis options, validating the
// documented ranges.
func (c *Command) resolve(cfg config.Config) (*zipray.Options, error) {
	threads := c.Threads
	if threads == 0 {
		threads = cfg.Threads
	}
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	if threads < 1 || threads > 256 {
		return nil, inputErrorf("threads (%d) must be between 1 and 256", threads)
	}

	bufKiB := c.BufferSize
	if bufKiB == 0 {
		bufKiB = cfg.BufferSizeKiB
	}
	if bufKiB == 0 {
		bufKiB = 64
	}
	if bufKiB < 1 || bufKiB > 1048576 {
		return nil, inputErrorf("buffer-size (%d KiB) must be between 1 and 1048576", bufKiB)
	}

	memMiB := c.MaxMemory
	if memMiB == 0 {
		memMiB = cfg.MaxMemoryMiB
	}
	if memMiB == 0 {
		memMiB = 1024
	}
	if memMiB < 1 || memMiB > 1048576 {
		return nil, inputErrorf("max-memory (%d MiB) must be between 1 and 1048576", memMiB)
	}

	maxBPS := c.MaxBPS
	if maxBPS == 0 {
		maxBPS = cfg.MaxBytesInSecond
	}
	if maxBPS < 0 {
		return nil, inputErrorf("max-bps (%d) cannot be negative", maxBPS)
	}

	if int64(bufKiB)<<10 > memMiB<<20 {
		return nil, inputErrorf("buffer-size (%d KiB) cannot exceed max-memory (%d MiB)", bufKiB, memMiB)
	}

	methods, err := parseMethods(c.Methods)
	if err != nil {
		return nil, err
	}

	return &zipray.Options{
		Threads:          threads,
		BufferSize:       bufKiB << 10,
		MaxMemory:        memMiB << 20,
		MaxBytesInSecond: maxBPS,
		Methods:          methods,
	}, nil
}

// parseMethods parses the --methods value into the method subset, nil when the flag was not given.
func parseMethods(s string) (map[uint16]bool, error) {
	if s == "" {
		return nil, nil
	}

	methods := make(map[uint16]bool)
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "store":
			methods[uint16(cd.MethodStore)] = true
		case "deflate":
			methods[uint16(cd.MethodDeflate)] = true
		default:
			return nil, inputErrorf("unknown method %q; valid methods are store, deflate", name)
		}
	}

	return methods, nil
}

// preflight confirms the input exists and identifies as a ZIP archive before the real parse begins.
func preflight(ctx context.Context, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return &InputError{Err: err}
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, name, f)
	switch {
	case errors.Is(err, archives.NoMatch):
		return &cd.MalformedError{Reason: "not a ZIP archive"}
	case err != nil:
		return fmt.Errorf("identify archive error: %w", err)
	case format.Extension() != ".zip":
		return &cd.MalformedError{Reason: fmt.Sprintf("%s archive, not ZIP", format.Extension())}
	}

	return nil
}
