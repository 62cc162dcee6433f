package analyze

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// newProgressBar builds the entry-count bar, equivalent to progressbar.Default but with a higher
// OptionThrottle to reduce flickering. With noProgress the bar renders to io.Discard so callers need no
// conditionals.
func newProgressBar(noProgress bool) *progressbar.ProgressBar {
	var w io.Writer = os.Stderr
	if noProgress {
		w = io.Discard
	}

	return progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true))
}
