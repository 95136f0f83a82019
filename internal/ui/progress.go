package ui

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// StageProgress renders pipeline stages as a progress bar.
type StageProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

// NewStageProgress creates a progress reporter writing to w.
func NewStageProgress(w io.Writer) *StageProgress {
	return &StageProgress{w: w}
}

// Stage advances the bar to the given stage.
func (p *StageProgress) Stage(index, total int, name string) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(p.w, "\n")
			}),
		)
	} else {
		p.bar.ChangeMax(total)
	}

	p.bar.Describe(fmt.Sprintf("%s %s", IconPackage, name))
	_ = p.bar.Set(index - 1)
	// Child process output follows, keep it off the bar's line.
	fmt.Fprint(p.w, "\n")
}

// Finish completes the bar after a successful run.
func (p *StageProgress) Finish() {
	if p.bar == nil {
		return
	}
	p.bar.Describe(fmt.Sprintf("%s done", IconSuccess))
	_ = p.bar.Finish()
}
