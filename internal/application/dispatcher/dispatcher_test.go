package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docuflow/approval-engine/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func TestSubscribeAndDispatch(t *testing.T) {
	t.Run("single handler", func(t *testing.T) {
		d := NewDispatcher()
		called := false

		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		evt := event.NewEvent(event.TypeInstanceCreated, 1, "doc-001", nil)
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if !called {
			t.Error("expected handler to be called")
		}
	})

	t.Run("multiple handlers on one type", func(t *testing.T) {
		d := NewDispatcher()
		var calls int32

		for i := 0; i < 3; i++ {
			d.Subscribe(event.TypeInstanceApproved, func(ctx context.Context, evt *event.Event) error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
		}

		evt := event.NewEvent(event.TypeInstanceApproved, 1, "doc-001", nil)
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 handler calls, got %d", calls)
		}
	})

	t.Run("no handlers is a no-op", func(t *testing.T) {
		d := NewDispatcher()
		evt := event.NewEvent(event.TypeEscalationRaised, 1, "doc-001", nil)
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("dispatch with no handlers: %v", err)
		}
	})
}

func TestDispatchStopsOnError(t *testing.T) {
	d := NewDispatcher()
	handlerErr := errors.New("handler failed")
	secondCalled := false

	d.SubscribeNamed(event.TypeInstanceRejected, "failing", func(ctx context.Context, evt *event.Event) error {
		return handlerErr
	})
	d.SubscribeNamed(event.TypeInstanceRejected, "after", func(ctx context.Context, evt *event.Event) error {
		secondCalled = true
		return nil
	})

	evt := event.NewEvent(event.TypeInstanceRejected, 1, "doc-001", nil)
	err := d.Dispatch(context.Background(), evt)
	if !errors.Is(err, handlerErr) {
		t.Errorf("expected wrapped handler error, got %v", err)
	}
	if secondCalled {
		t.Error("handler after a failure should not run")
	}
}

func TestPanicRecovery(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	d.SubscribeNamed(event.TypeStatusChanged, "panicking", func(ctx context.Context, evt *event.Event) error {
		panic("boom")
	})

	evt := event.NewEvent(event.TypeStatusChanged, 1, "doc-001", nil)
	err := d.Dispatch(context.Background(), evt)
	if err == nil {
		t.Fatal("expected error from panicking handler")
	}
	if logger.ErrorCount() == 0 {
		t.Error("expected panic to be logged")
	}
}

func TestDispatchAsync(t *testing.T) {
	d := NewDispatcher()
	var calls int32
	done := make(chan struct{})

	d.Subscribe(event.TypeRevisionRequested, func(ctx context.Context, evt *event.Event) error {
		atomic.AddInt32(&calls, 1)
		close(done)
		return nil
	})

	evt := event.NewEvent(event.TypeRevisionRequested, 1, "doc-001", nil)
	d.DispatchAsync(context.Background(), evt)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler never ran")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestCloseWaitsForAsyncHandlers(t *testing.T) {
	d := NewDispatcher()
	var finished atomic.Bool

	d.Subscribe(event.TypeInstanceResubmitted, func(ctx context.Context, evt *event.Event) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	evt := event.NewEvent(event.TypeInstanceResubmitted, 1, "doc-001", nil)
	d.DispatchAsync(context.Background(), evt)

	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !finished.Load() {
		t.Error("Close returned before async handler finished")
	}
}

func TestClosedDispatcherRefusesEvents(t *testing.T) {
	d := NewDispatcher()
	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	evt := event.NewEvent(event.TypeInstanceCreated, 1, "doc-001", nil)
	if err := d.Dispatch(context.Background(), evt); err == nil {
		t.Error("expected error dispatching on closed dispatcher")
	}
	if err := d.Close(); err == nil {
		t.Error("expected error on double close")
	}
}
