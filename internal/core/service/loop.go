package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Loop runs posted tasks one at a time, in order. Everything the coordinator
// owns is only touched from tasks on its loop, so none of it is locked.
type Loop struct {
	tasks    chan func()
	quit     chan struct{}
	stopOnce sync.Once
}

func NewLoop(size int) *Loop {
	if size <= 0 {
		size = 256
	}
	return &Loop{
		tasks: make(chan func(), size),
		quit:  make(chan struct{}),
	}
}

// Post queues fn and reports whether it was accepted. It blocks while the
// queue is full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Do runs fn on the loop and waits for it. It must not be called from a task.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrLoopStopped
	}
}

func (l *Loop) Run() {
	for {
		select {
		case <-l.quit:
			log.Debug().Int("pending", len(l.tasks)).Msg("Loop stopped")
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

// Drain runs queued tasks on the calling goroutine until the queue is empty,
// including tasks queued while draining. It must not race with Run.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.tasks:
			l.run(fn)
			n++
		default:
			return n
		}
	}
}

func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
	})
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Loop task panicked")
		}
	}()
	fn()
}
