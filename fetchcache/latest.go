package fetchcache

import (
	"context"
	"sync"
)

// Latest hands out request contexts where starting a new request cancels the
// previous one, as with a search box issuing a query per keystroke.
type Latest struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Begin cancels the context returned by the previous call and returns a new
// one derived from parent.
func (l *Latest) Begin(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	l.mu.Lock()
	prev := l.cancel
	l.cancel = cancel
	l.mu.Unlock()

	if prev != nil {
		prev()
	}
	return ctx
}

// Stop cancels the current request, if any.
func (l *Latest) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
