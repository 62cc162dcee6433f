package zipray

import (
	"github.com/dustin/go-humanize"
)

// SizeLimitError is returned when the archive is larger than MaxArchiveSize.
//
// Archives that big need ZIP64 structures, which this analyzer does not read.
type SizeLimitError struct {
	Size int64
}

func (e *SizeLimitError) Error() string {
	return "archive size " + humanize.Comma(e.Size) + " exceeds the 4 GiB limit"
}
