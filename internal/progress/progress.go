// Package progress wraps the progress bar shown by single-shot runs. A nil
// *Bar is valid and renders nothing, so callers never need to guard their
// Add calls.
package progress

import "github.com/schollz/progressbar/v3"

type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a progress bar over max steps, or nil when quiet is set.
func New(max int, description string, quiet bool) *Bar {
	if quiet {
		return nil
	}

	return &Bar{bar: progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)}
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}
