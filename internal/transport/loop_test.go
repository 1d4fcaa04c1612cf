package transport

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoopOrder(t *testing.T) {
	loop := NewLoop("test", zap.NewNop())
	defer loop.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		n := i
		loop.Post(func() {
			mu.Lock()
			got = append(got, n)
			mu.Unlock()
		})
	}
	loop.Do(func() {})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected task %d at position %d, got %d", i, i, v)
		}
	}
}

func TestLoopRecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	loop := NewLoop("test", zap.New(core))
	defer loop.Close()

	loop.Post(func() { panic("boom") })
	ran := false
	loop.Do(func() { ran = true })

	if !ran {
		t.Error("expected loop to keep running after a panic")
	}
	if logs.FilterMessage("task panicked").Len() != 1 {
		t.Errorf("expected panic to be logged, got %d entries", logs.Len())
	}
}

func TestLoopClose(t *testing.T) {
	loop := NewLoop("test", zap.NewNop())

	ran := make(chan struct{})
	loop.Post(func() { close(ran) })
	loop.Close()
	loop.Close()

	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	select {
	case <-ran:
	default:
		t.Error("expected queued task to run before exit")
	}
	if loop.Post(func() {}) {
		t.Error("expected Post to fail after Close")
	}
	if loop.Do(func() {}) {
		t.Error("expected Do to fail after Close")
	}
}
