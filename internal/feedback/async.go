package feedback

import "sync"

// DefaultQueueSize is the Async buffer when none is given.
const DefaultQueueSize = 16

// Async forwards messages to another Notifier from a single background
// goroutine. When the queue is full the message is dropped so Notify never
// blocks the orchestration.
type Async struct {
	next  Notifier
	queue chan string
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewAsync starts the forwarding goroutine. size <= 0 uses DefaultQueueSize.
func NewAsync(next Notifier, size int) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		next:  next,
		queue: make(chan string, size),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for text := range a.queue {
		a.next.Notify(text)
	}
}

// Notify enqueues text, dropping it if the queue is full or Async is closed.
func (a *Async) Notify(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.dropped++
		return
	}
	select {
	case a.queue <- text:
	default:
		a.dropped++
	}
}

// Dropped returns how many messages were discarded.
func (a *Async) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}
