// Package sequencer runs submitted tasks one at a time, in submission order.
package sequencer

import (
	"context"
	"errors"
	"sync"

	"github.com/entrhq/browserd/pkg/logging"
)

// ErrClosed is returned by Submit once the sequencer no longer accepts tasks.
var ErrClosed = errors.New("sequencer closed")

// DefaultQueueSize is the buffer used when New is given a non-positive size.
const DefaultQueueSize = 64

// Task is a unit of work. Returning true stops the run loop; tasks queued
// behind it are discarded.
type Task func(ctx context.Context) (stop bool)

// Sequencer is a FIFO task queue drained by a single loop.
type Sequencer struct {
	tasks chan Task
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	stopOnce sync.Once
	logger   *logging.Logger
}

// New creates a sequencer with the given queue size.
func New(size int) *Sequencer {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Sequencer{
		tasks:  make(chan Task, size),
		done:   make(chan struct{}),
		logger: logging.NewLogger("sequencer"),
	}
}

// Submit enqueues t. It blocks while the queue is full and fails with
// ErrClosed once input is closed or the loop has stopped.
func (s *Sequencer) Submit(ctx context.Context, t Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.tasks <- t:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseInput marks the end of submissions. Queued tasks still run.
func (s *Sequencer) CloseInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.tasks)
	}
}

// Done is closed when the run loop has returned.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// Run drains the queue until input is closed, a task asks to stop, or ctx is
// cancelled. It must be called at most once.
func (s *Sequencer) Run(ctx context.Context) error {
	defer s.stopOnce.Do(func() { close(s.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-s.tasks:
			if !ok {
				return nil
			}
			if s.run(ctx, t) {
				s.discard()
				return nil
			}
		}
	}
}

func (s *Sequencer) run(ctx context.Context, t Task) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("task panicked: %v", r)
			stop = false
		}
	}()
	return t(ctx)
}

// discard drops whatever is still buffered after a stopping task.
func (s *Sequencer) discard() {
	for {
		select {
		case _, ok := <-s.tasks:
			if !ok {
				return
			}
			s.logger.Debugf("discarding task queued after stop")
		default:
			return
		}
	}
}
