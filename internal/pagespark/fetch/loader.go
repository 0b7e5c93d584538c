// Package fetch runs cancellable backend loads whose results are published
// only while they are still the latest request.
package fetch

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Fetch after Close.
var ErrClosed = errors.New("fetch: loader closed")

// ErrSuperseded is returned by Fetch when a newer load or Abandon replaced it.
var ErrSuperseded = errors.New("fetch: superseded by a newer request")

// Func performs one load. It must honour ctx cancellation.
type Func[T any] func(ctx context.Context) (T, error)

// Snapshot is the observable loader state.
type Snapshot[T any] struct {
	Data    T
	HasData bool
	Loading bool
	Err     error
}

// Loader tracks at most one in-flight load. Starting a new load cancels the
// previous one and bumps the generation so its result is discarded.
type Loader[T any] struct {
	onSettled func(gen uint64, value T, err error)

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
	snap    Snapshot[T]
	running sync.WaitGroup
}

// Option customises a Loader.
type Option[T any] func(*Loader[T])

// OnSettled registers a callback invoked, outside the loader lock, when the
// current generation completes. Superseded and abandoned loads never reach it.
func OnSettled[T any](fn func(gen uint64, value T, err error)) Option[T] {
	return func(l *Loader[T]) {
		l.onSettled = fn
	}
}

// New returns an idle loader.
func New[T any](opts ...Option[T]) *Loader[T] {
	l := &Loader[T]{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader[T]) begin(parent context.Context) (context.Context, uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, 0, false
	}
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	l.gen++
	l.cancel = cancel
	l.snap.Loading = true
	l.snap.Err = nil
	l.running.Add(1)
	return ctx, l.gen, true
}

func (l *Loader[T]) settle(gen uint64, value T, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || l.closed {
		return false
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.snap.Loading = false
	if err != nil {
		l.snap.Err = err
		return true
	}
	l.snap.Data = value
	l.snap.HasData = true
	return true
}

// Go starts fn in the background and returns its generation. It returns 0
// when the loader is closed.
func (l *Loader[T]) Go(parent context.Context, fn Func[T]) uint64 {
	ctx, gen, ok := l.begin(parent)
	if !ok {
		return 0
	}
	go func() {
		defer l.running.Done()
		value, err := fn(ctx)
		if l.settle(gen, value, err) && l.onSettled != nil {
			l.onSettled(gen, value, err)
		}
	}()
	return gen
}

// Fetch runs fn synchronously, cancelling any in-flight load first.
func (l *Loader[T]) Fetch(parent context.Context, fn Func[T]) (T, error) {
	var zero T
	ctx, gen, ok := l.begin(parent)
	if !ok {
		return zero, ErrClosed
	}
	defer l.running.Done()
	value, err := fn(ctx)
	if !l.settle(gen, value, err) {
		return zero, ErrSuperseded
	}
	if l.onSettled != nil {
		l.onSettled(gen, value, err)
	}
	return value, err
}

// Generation returns the generation of the most recent load.
func (l *Loader[T]) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// Abandon cancels the in-flight load and discards its eventual result.
func (l *Loader[T]) Abandon() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
	l.snap.Loading = false
}

// Reset clears published data and errors.
func (l *Loader[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = Snapshot[T]{Loading: l.snap.Loading}
}

// Snapshot returns the current state.
func (l *Loader[T]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Wait blocks until every started load has returned.
func (l *Loader[T]) Wait() {
	l.running.Wait()
}

// Close abandons the in-flight load, rejects new ones and waits for running
// loads to return.
func (l *Loader[T]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.running.Wait()
		return
	}
	l.closed = true
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
	l.snap.Loading = false
	l.mu.Unlock()
	l.running.Wait()
}
