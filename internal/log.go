package internal

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/zipray/zipray/util"
)

// Prefix creates a consistent logger prefix for the archive being analyzed.
func Prefix(name string) string {
	return fmt.Sprintf(`"%s" - `, util.TruncateRightWithSuffix(filepath.Base(name), 30, "..."))
}

type loggerKey struct{}

// WithPrefixLogger creates a new logger using the given prefix and attaches it to the context.
func WithPrefixLogger(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, loggerKey{}, log.New(os.Stderr, prefix, 0))
}

// LoggerOrDiscard returns the logger attached to the given context, or a logger writing to io.Discard if none
// is attached.
func LoggerOrDiscard(ctx context.Context) *log.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return logger
	}

	return log.New(io.Discard, "", 0)
}
