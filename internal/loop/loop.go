// Package loop runs lobby work on a single goroutine.
//
// Every lobby mutation, every external callback (spawn status, room
// teardown, peer disconnect) and every countdown tick is posted here, so the
// lobby engine itself never locks.
package loop

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrStopped is returned by Call after the loop stopped.
var ErrStopped = errors.New("loop stopped")

// Executor schedules work on one logical thread of control.
type Executor interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// AfterFunc runs fn on the loop once d has elapsed. The returned
	// function cancels the timer if it has not fired yet.
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// Loop is an Executor backed by a goroutine reading a task queue.
type Loop struct {
	tasks chan func()

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// New creates a loop with the given queue size.
func New(queue int) *Loop {
	if queue <= 0 {
		queue = 1024
	}
	return &Loop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("loop: task panicked: %v", r)
		}
	}()
	fn()
}

// Post queues fn. Tasks posted after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return
	}
	select {
	case l.tasks <- fn:
	case <-l.done:
	default:
		// Queue is full. Posts from the loop goroutine itself must not block.
		go func() {
			select {
			case l.tasks <- fn:
			case <-l.done:
			}
		}()
	}
}

// Call runs fn on the loop and waits for it to finish.
// It must not be called from the loop goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
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

// AfterFunc schedules fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return func() { t.Stop() }
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }
