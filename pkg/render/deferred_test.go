package render

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeferFuncIsLazy(t *testing.T) {
	var calls atomic.Int32
	d := DeferFunc(func(ctx context.Context) (map[string]any, error) {
		calls.Add(1)
		return map[string]any{"n": 1}, nil
	})

	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("DeferFunc should not run before Await")
	}

	for i := 0; i < 3; i++ {
		v, err := d.Await(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if v["n"] != 1 {
			t.Errorf("value = %v", v)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("fn ran %d times, want 1", calls.Load())
	}
}

func TestGoIsEager(t *testing.T) {
	started := make(chan struct{})
	d := Go(context.Background(), func(ctx context.Context) (map[string]any, error) {
		close(started)
		return nil, nil
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("Go should start fn immediately")
	}
	if _, err := d.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestDeferredErrorAndPanic(t *testing.T) {
	boom := errors.New("boom")
	d := DeferFunc(func(ctx context.Context) (map[string]any, error) { return nil, boom })
	if _, err := d.Await(context.Background()); err != boom {
		t.Errorf("err = %v, want boom", err)
	}

	p := DeferFunc(func(ctx context.Context) (map[string]any, error) { panic("bad") })
	if _, err := p.Await(context.Background()); err == nil {
		t.Error("panic should surface as an error")
	}
}

func TestDeferredAwaitCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d := DeferFunc(func(ctx context.Context) (map[string]any, error) {
		<-block
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := d.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestDeferredNilAndResolved(t *testing.T) {
	var d *Deferred
	if v, err := d.Await(context.Background()); v != nil || err != nil {
		t.Error("nil Deferred should resolve to nil")
	}

	r := Resolved(map[string]any{"a": "b"})
	v, err := r.Await(context.Background())
	if err != nil || v["a"] != "b" {
		t.Errorf("Resolved = %v, %v", v, err)
	}
}
