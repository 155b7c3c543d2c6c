// Package feedback implements the user-facing notification sink: a single
// Notify(text) capability standing in for speech, vibration, and toasts.
package feedback

import (
	"fmt"
	"io"
	"sync"
)

// Notifier delivers a short message to the user. Implementations must not
// block the caller for long; wrap slow sinks in Async.
type Notifier interface {
	Notify(text string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(text string)

// Notify calls f(text).
func (f NotifierFunc) Notify(text string) { f(text) }

// Discard drops every message.
var Discard Notifier = NotifierFunc(func(string) {})

// Console writes each message as a "» text" line.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Notify writes one line. Write errors are ignored.
func (c *Console) Notify(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "» %s\n", text)
}

// Recorder keeps every message in order. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Notify appends text.
func (r *Recorder) Notify(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Contains reports whether text was recorded exactly.
func (r *Recorder) Contains(text string) bool {
	for _, m := range r.Messages() {
		if m == text {
			return true
		}
	}
	return false
}

// Multi fans each message out to every notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	list := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			list = append(list, n)
		}
	}
	return NotifierFunc(func(text string) {
		for _, n := range list {
			n.Notify(text)
		}
	})
}
