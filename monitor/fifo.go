package monitor

import "context"

// Queue carries command words from the console to the MIDI loop. Push
// blocks while the queue is full; the consumer never blocks.
type Queue struct {
	ch chan Command
}

func NewQueue(depth int) *Queue {
	if depth < 1 {
		depth = 1
	}
	return &Queue{ch: make(chan Command, depth)}
}

// Push waits for room or for ctx to end.
func (q *Queue) Push(ctx context.Context, c Command) error {
	select {
	case q.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPop returns the oldest command, if any.
func (q *Queue) TryPop() (Command, bool) {
	select {
	case c := <-q.ch:
		return c, true
	default:
		return 0, false
	}
}

// C exposes the queue for select loops.
func (q *Queue) C() <-chan Command { return q.ch }

// Len returns the number of pending commands.
func (q *Queue) Len() int { return len(q.ch) }
