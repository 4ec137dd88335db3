package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chazu/knight/vm"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("server: worker stopped")

// workRequest represents a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func(*vm.Interpreter) (any, error)
	done chan workResult
}

// workResult holds the return value from an interpreter operation.
type workResult struct {
	value any
	err   error
}

// Worker serializes all access to one interpreter through a single
// goroutine. A Knight interpreter is single-threaded; every handler that
// touches a session's globals goes through its worker.
type Worker struct {
	in       *vm.Interpreter
	requests chan workRequest
	quit     chan struct{}
	stopOnce sync.Once
	busy     atomic.Bool
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(in *vm.Interpreter) *Worker {
	w := &Worker{
		in:       in,
		requests: make(chan workRequest, 16),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the interpreter, recovering from panics.
func (w *Worker) execute(fn func(*vm.Interpreter) (any, error)) (result workResult) {
	w.busy.Store(true)
	defer func() {
		w.busy.Store(false)
		if r := recover(); r != nil {
			result = workResult{err: fmt.Errorf("server: evaluation panicked: %v", r)}
		}
	}()
	value, err := fn(w.in)
	return workResult{value: value, err: err}
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes or ctx is done. A cancelled caller stops waiting, but work that
// has already started runs to completion.
func (w *Worker) Do(ctx context.Context, fn func(*vm.Interpreter) (any, error)) (any, error) {
	req := workRequest{fn: fn, done: make(chan workResult, 1)}

	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Busy reports whether a request is running on the worker goroutine.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
// Evaluation cannot be interrupted, so a request already running keeps the
// goroutine until it returns.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
