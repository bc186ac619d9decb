package prerender

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterWidth(t *testing.T) {
	if w := NewLimiter(0).Width(); w != 1 {
		t.Errorf("NewLimiter(0).Width() = %d, want 1", w)
	}

	l := NewLimiter(3)
	var peak atomic.Int64
	l.onChange = func(n int64) {
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				return
			}
		}
	}

	err := l.Each(context.Background(), 20, func(context.Context, int) error {
		time.Sleep(2 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if peak.Load() > 3 {
		t.Errorf("peak in flight = %d, want <= 3", peak.Load())
	}
	if l.InFlight() != 0 {
		t.Errorf("InFlight() = %d after Each, want 0", l.InFlight())
	}
}

func TestLimiterEachErrors(t *testing.T) {
	l := NewLimiter(2)
	err := l.Each(context.Background(), 10, func(_ context.Context, i int) error {
		if i == 3 {
			return fmt.Errorf("task %d failed", i)
		}
		return nil
	})
	if err == nil || err.Error() != "task 3 failed" {
		t.Errorf("Each() = %v, want the task error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran atomic.Int32
	err = l.Each(ctx, 10, func(context.Context, int) error {
		ran.Add(1)
		return nil
	})
	if err == nil || ran.Load() != 0 {
		t.Errorf("Each() with a cancelled context = %v, ran %d tasks", err, ran.Load())
	}
}

func TestLimiterDoCancelled(t *testing.T) {
	l := NewLimiter(1)
	release := make(chan struct{})
	go l.Do(context.Background(), func(context.Context) error {
		<-release
		return nil
	})
	for l.InFlight() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func(context.Context) error {
		t.Error("fn should not run without a permit")
		return nil
	})
	close(release)
	if err == nil {
		t.Error("Do() should fail when the context is done first")
	}
}
