// Package progress decouples the extraction engine's synchronous progress
// callback from transport updates: the download path publishes events into a
// bounded queue, and a separate pump drains and throttles them into
// user-visible notifications.
package progress

import (
	"sync"
	"time"
)

// Update is one progress observation, enriched with derived rate estimates.
type Update struct {
	Percent         float64
	DownloadedBytes int64
	TotalBytes      int64
	// Speed is the estimated transfer rate in bytes per second.
	Speed float64
	// ETA is the estimated time remaining; zero when unknown.
	ETA time.Duration
}

const DefaultQueueSize = 16

// Queue is a bounded, close-safe event queue. TrySend never blocks: the
// engine's download loop publishes from inside its own progress callback, so
// a slow or stalled consumer must drop events rather than stall the download.
type Queue struct {
	mu      sync.RWMutex
	ch      chan Update
	done    chan struct{}
	closed  bool
	waiting sync.WaitGroup
}

func NewQueue(bufSize int) *Queue {
	if bufSize <= 0 {
		bufSize = DefaultQueueSize
	}
	return &Queue{
		ch:   make(chan Update, bufSize),
		done: make(chan struct{}),
	}
}

// Receive returns the channel the pump drains. The channel is closed by Close.
func (q *Queue) Receive() <-chan Update {
	return q.ch
}

// TrySend enqueues an update without blocking, returning false if the queue
// is full or closed. Safe to call concurrently with Close.
func (q *Queue) TrySend(u Update) bool {
	// Either the send is never attempted, or Close waits until no send is in
	// flight before closing the channel.
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return false
	}
	q.waiting.Add(1)
	defer q.waiting.Done()
	q.mu.RUnlock()

	select {
	case q.ch <- u:
		return true
	case <-q.done:
		return false
	default:
		// Queue full; drop rather than stall the engine loop.
		return false
	}
}

// Close idempotently ends the queue; all current and future TrySend calls
// return false, and the receive channel is closed once in-flight sends have
// finished.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.done)
	q.waiting.Wait()
	close(q.ch)
	q.closed = true
}
