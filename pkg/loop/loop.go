// Package loop provides a single-threaded cooperative event loop.
//
// Every callback posted to a Loop runs on the goroutine that called Run,
// one at a time, in the order it became due. Components that share state
// with the loop need no locks as long as they only touch that state from
// callbacks.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Do when the loop is not running.
var ErrStopped = errors.New("event loop stopped")

// Loop is a serial callback queue.
type Loop struct {
	queue   chan func()
	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
	done    chan struct{}
}

// New returns a loop with room for backlog queued callbacks before Post
// blocks.
func New(backlog int) *Loop {
	if backlog <= 0 {
		backlog = 64
	}
	return &Loop{
		queue:  make(chan func(), backlog),
		timers: make(map[*time.Timer]struct{}),
		done:   make(chan struct{}),
	}
}

// Run executes callbacks until ctx is cancelled. Pending timers are
// stopped on return.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post queues fn to run on the loop. It is dropped once the loop stopped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return
	}
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// After queues fn to run on the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, t)
		l.mu.Unlock()
		l.Post(fn)
	})
	l.timers[t] = struct{}{}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	for t := range l.timers {
		t.Stop()
	}
	l.timers = nil
	close(l.done)
}
