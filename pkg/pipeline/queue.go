package pipeline

import (
	"context"

	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

// Queue is the bounded hand-off buffer between the frame generator and the
// consumer. It is a channel of owned frames: a frame pushed here belongs to
// the consumer that pops it, so no frame is ever aliased across goroutines.
//
// Policy on a full queue: the incoming frame is dropped and Push returns
// false. The queue never blocks the generator and never drops from the
// middle.
type Queue struct {
	ch chan *frame.Frame
}

// DefaultQueueCapacity bounds the queue when no capacity is configured.
const DefaultQueueCapacity = 5

// NewQueue creates a queue holding at most capacity frames.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan *frame.Frame, capacity)}
}

// Push hands a frame to the consumer. It never blocks; false means the
// queue was full and the frame was dropped.
func (q *Queue) Push(f *frame.Frame) bool {
	select {
	case q.ch <- f:
		return true
	default:
		return false
	}
}

// Pop blocks until a frame is available or ctx is done. The second return
// is false only on shutdown.
func (q *Queue) Pop(ctx context.Context) (*frame.Frame, bool) {
	select {
	case f := <-q.ch:
		return f, true
	case <-ctx.Done():
		return nil, false
	}
}

// Depth returns the number of queued frames. The generator throttles once
// the depth reaches the pipeline's low-water mark.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Drain discards all queued frames, used between client sessions.
func (q *Queue) Drain() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
