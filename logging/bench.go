package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Bench is the wall-clock timer used around inference calls. It is the one
// timing utility in the runtime; every measured section goes through it.
//
//	b := logging.NewBench(logger)
//	t := b.Start("styletransfer")
//	// ... convert, extract, convert back ...
//	elapsed := b.End(t)
type Bench struct {
	logger *Logger
	now    func() time.Time
}

// NewBench creates a Bench that logs through logger.
func NewBench(logger *Logger) *Bench {
	return &Bench{logger: logger, now: time.Now}
}

// BenchTimer is one running measurement.
type BenchTimer struct {
	Comment string
	Start   time.Time
}

// Start begins a measurement labelled comment.
func (b *Bench) Start(comment string) *BenchTimer {
	return &BenchTimer{Comment: comment, Start: b.now()}
}

// End stops the measurement, logs one debug record and returns the elapsed time.
// The message reads like "12.34ms   styletransfer".
func (b *Bench) End(t *BenchTimer, fields ...zap.Field) time.Duration {
	elapsed := b.now().Sub(t.Start)
	ms := float64(elapsed) / float64(time.Millisecond)

	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all, zap.String("bench", t.Comment), zap.Float64("duration_ms", ms))
	all = append(all, fields...)
	b.logger.Debug(fmt.Sprintf("%.2fms   %s", ms, t.Comment), all...)
	return elapsed
}
