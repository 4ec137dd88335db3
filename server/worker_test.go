package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/knight/vm"
)

func TestWorker_Do(t *testing.T) {
	in := vm.NewInterpreter()
	w := NewWorker(in)
	defer w.Stop()

	got, err := w.Do(bg(), func(i *vm.Interpreter) (any, error) {
		if i != in {
			t.Error("worker ran fn on a different interpreter")
		}
		i.Globals.Set("x", vm.Integer(1))
		return "done", nil
	})
	if err != nil || got != "done" {
		t.Fatalf("Do = %v, %v", got, err)
	}
	if v, ok := in.Globals.Get("x"); !ok || v != vm.Integer(1) {
		t.Errorf("x = %v, %v", v, ok)
	}
}

func TestWorker_ReturnsError(t *testing.T) {
	w := NewWorker(vm.NewInterpreter())
	defer w.Stop()

	want := errors.New("boom")
	_, err := w.Do(bg(), func(*vm.Interpreter) (any, error) { return nil, want })
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestWorker_RecoversPanic(t *testing.T) {
	w := NewWorker(vm.NewInterpreter())
	defer w.Stop()

	_, err := w.Do(bg(), func(*vm.Interpreter) (any, error) { panic("kaboom") })
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("err = %v, want recovered panic", err)
	}

	// The worker keeps serving after a panic.
	got, err := w.Do(bg(), func(*vm.Interpreter) (any, error) { return 2, nil })
	if err != nil || got != 2 {
		t.Errorf("after panic Do = %v, %v", got, err)
	}
}

func TestWorker_Serializes(t *testing.T) {
	in := vm.NewInterpreter()
	w := NewWorker(in)
	defer w.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Do(bg(), func(i *vm.Interpreter) (any, error) {
				v, _ := i.Globals.Get("n")
				n, _ := v.(vm.Integer)
				i.Globals.Set("n", n+1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if v, _ := in.Globals.Get("n"); v != vm.Integer(50) {
		t.Errorf("n = %v, want 50", v)
	}
}

func TestWorker_Stop(t *testing.T) {
	w := NewWorker(vm.NewInterpreter())
	w.Stop()
	w.Stop()

	_, err := w.Do(bg(), func(*vm.Interpreter) (any, error) { return nil, nil })
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("err = %v, want ErrWorkerStopped", err)
	}
}

func TestWorker_ContextCancel(t *testing.T) {
	w := NewWorker(vm.NewInterpreter())
	defer w.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go w.Do(bg(), func(*vm.Interpreter) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(bg(), 20*time.Millisecond)
	defer cancel()
	_, err := w.Do(ctx, func(*vm.Interpreter) (any, error) { return nil, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	close(release)
}

func TestWorker_Busy(t *testing.T) {
	w := NewWorker(vm.NewInterpreter())
	defer w.Stop()

	if w.Busy() {
		t.Fatal("idle worker reports busy")
	}
	release := make(chan struct{})
	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = w.Do(bg(), func(*vm.Interpreter) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started
	if !w.Busy() {
		t.Error("Busy() = false while a request runs")
	}
	close(release)
	<-finished
	if w.Busy() {
		t.Error("Busy() = true after the request returned")
	}
}
