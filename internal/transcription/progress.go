package transcription

import (
	"fmt"
	"log/slog"
)

// Progress converts segment counts into percentage callbacks.
//
// A percentage is reported after segment done when done is a multiple of 5
// or of a tenth of total. Values never decrease, stay within [0,100] and
// repeats are suppressed. A panicking callback is logged and ignored.
type Progress struct {
	total  int
	last   int
	fn     ProgressFunc
	logger *slog.Logger
}

// NewProgress creates a Progress for total segments. fn may be nil.
func NewProgress(total int, fn ProgressFunc, logger *slog.Logger) *Progress {
	return &Progress{total: total, last: -1, fn: fn, logger: logger}
}

// Step records that done segments have been processed.
func (p *Progress) Step(done int) {
	if p.fn == nil || p.total <= 0 || done <= 0 {
		return
	}
	if done > p.total {
		done = p.total
	}

	step := max(1, p.total/10)
	if done%step != 0 && done%5 != 0 {
		return
	}
	p.emit(done * 100 / p.total)
}

// Finish reports 100 unless it was already reported.
func (p *Progress) Finish() {
	if p.fn == nil {
		return
	}
	p.emit(100)
}

func (p *Progress) emit(percent int) {
	percent = min(max(percent, 0), 100)
	if percent <= p.last {
		return
	}
	p.last = percent

	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Warn("progress callback panicked",
				"percent", percent,
				"panic", fmt.Sprint(r))
		}
	}()
	p.fn(percent)
}
