// Package progress reports encode progress as whole percentages.
package progress

import (
	"fmt"
	"log/slog"
)

// Func receives the percentage of ticks processed so far. A returned error
// is logged and otherwise ignored.
type Func func(percent int) error

// Reporter calls a Func each time the processed percentage grows by at least
// one point. Values passed to the Func are strictly increasing and never
// above 100.
type Reporter struct {
	fn     Func
	total  uint64
	last   int
	logger *slog.Logger
}

// New returns a Reporter for a run of total ticks. fn may be nil.
func New(fn Func, total uint32, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{fn: fn, total: uint64(total), last: -1, logger: logger}
}

// Update reports done processed ticks.
func (r *Reporter) Update(done uint32) {
	if r.fn == nil || r.total == 0 {
		return
	}
	percent := int(uint64(done) * 100 / r.total)
	if percent > 100 {
		percent = 100
	}
	if percent <= r.last {
		return
	}
	r.last = percent
	r.call(percent)
}

// Last returns the last percentage reported, or -1.
func (r *Reporter) Last() int {
	return r.last
}

func (r *Reporter) call(percent int) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Debug("progress callback panicked", "percent", percent, "panic", fmt.Sprint(v))
		}
	}()
	if err := r.fn(percent); err != nil {
		r.logger.Debug("progress callback failed", "percent", percent, "error", err)
	}
}
