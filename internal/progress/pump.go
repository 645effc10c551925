package progress

import (
	"context"

	"go.uber.org/zap"
)

// DefaultStep is the minimum advance, in percentage points, between
// consecutive notifications.
const DefaultStep = 10.0

// Notifier delivers one throttled update to the user interface, typically as
// a message edit. Errors are logged and swallowed; a failed notification must
// never abort the download it describes.
type Notifier func(Update) error

// Pump drains a Queue and forwards updates to a Notifier, emitting only when
// the percentage has advanced by at least Step since the last emission.
// Emitted percentages are therefore non-decreasing, even when a retried
// download attempt resets the engine's counters.
type Pump struct {
	step float64
	log  *zap.SugaredLogger
}

func NewPump(step float64) *Pump {
	if step <= 0 {
		step = DefaultStep
	}
	return &Pump{
		step: step,
		log:  zap.S().Named("progress"),
	}
}

// Run consumes the queue until it is closed or the context ends. It is meant
// to run in its own goroutine, one per download request.
func (p *Pump) Run(ctx context.Context, q *Queue, notify Notifier) {
	last := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-q.Receive():
			if !ok {
				return
			}
			if u.Percent < last+p.step {
				continue
			}
			// Advance the watermark even when notification fails, so a flaky
			// transport doesn't get hammered with retries.
			last = u.Percent
			if err := notify(u); err != nil {
				p.log.Warnw("progress notification failed", "percent", u.Percent, "error", err)
			}
		}
	}
}
