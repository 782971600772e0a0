// Package loop runs the kiosk's single thread of control. Everything that
// touches playback or routing state is posted here and runs in order.
package loop

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrStopped = errors.New("control loop stopped")

type Loop struct {
	queue chan func()
	done  chan struct{}
	log   zerolog.Logger

	stopOnce sync.Once
}

func New(size int, log zerolog.Logger) *Loop {
	if size <= 0 {
		size = 256
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Post queues fn to run after everything already queued. It blocks while the
// queue is full and returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	queued := l.Post(func() {
		defer close(finished)
		fn()
	})
	if !queued {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// fn may still have run just before shutdown
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Run executes posted functions until ctx is done. A panicking function is
// logged and the loop keeps going.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.queue:
			l.invoke(fn)
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("control loop task panicked")
		}
	}()
	fn()
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
