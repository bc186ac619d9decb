package render

import (
	"context"
	"fmt"
	"sync"
)

// DeferredFunc produces page context values after rendering started.
type DeferredFunc func(ctx context.Context) (map[string]any, error)

// Deferred is page context that becomes available late, typically once the
// data a streamed document waits for has loaded. It is awaited only at the
// end of the stream, before the end of the document is written.
type Deferred struct {
	fn    DeferredFunc
	start sync.Once
	done  chan struct{}
	value map[string]any
	err   error
}

// DeferFunc returns a Deferred that calls fn on the first Await.
func DeferFunc(fn DeferredFunc) *Deferred {
	return &Deferred{fn: fn, done: make(chan struct{})}
}

// Go returns a Deferred whose fn starts running immediately.
func Go(ctx context.Context, fn DeferredFunc) *Deferred {
	d := DeferFunc(fn)
	d.run(ctx)
	return d
}

// Resolved returns a Deferred that already holds v.
func Resolved(v map[string]any) *Deferred {
	d := &Deferred{done: make(chan struct{}), value: v}
	d.start.Do(func() { close(d.done) })
	return d
}

func (d *Deferred) run(ctx context.Context) {
	d.start.Do(func() {
		go func() {
			defer close(d.done)
			defer func() {
				if r := recover(); r != nil {
					d.err = fmt.Errorf("deferred page context panicked: %v", r)
				}
			}()
			d.value, d.err = d.fn(ctx)
		}()
	})
}

// Await waits for the value. fn runs at most once however many times Await
// is called. A nil Deferred resolves to nil.
func (d *Deferred) Await(ctx context.Context) (map[string]any, error) {
	if d == nil {
		return nil, nil
	}
	d.run(ctx)
	select {
	case <-d.done:
		return d.value, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
