package ssr

import (
	"context"
	"fmt"
	"time"

	"github.com/vango-dev/ssr/internal/config"
	"github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/page"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vango-dev/ssr"

type hookResult struct {
	value any
	err   error
}

// CallHook runs fn, the hook name exported by file, with a bounded wait.
// A warning is logged once the hook runs longer than SlowHookWarning; after
// HookTimeout the call fails with an error wrapping errors.ErrHookTimeout.
// The context passed to fn is cancelled when the call gives up.
func (rc *RenderContext) CallHook(ctx context.Context, name, file string, fn func(context.Context) (any, error)) (any, error) {
	ctx, span := rc.getTracer().Start(ctx, "ssr.hook."+name,
		trace.WithAttributes(
			attribute.String("ssr.hook", name),
			attribute.String("ssr.file", file),
		),
	)
	defer span.End()

	timeout := rc.HookTimeout
	if timeout <= 0 {
		timeout = config.DefaultHookTimeout
	}
	hookCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan hookResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- hookResult{err: errors.Newf(errors.CategoryRuntime, "%s() hook panicked: %v", name, r).WithSource(file)}
			}
		}()
		v, err := fn(hookCtx)
		done <- hookResult{value: v, err: err}
	}()

	start := time.Now()
	slow := time.NewTimer(rc.slowHookWarning())
	defer slow.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case res := <-done:
			if res.err != nil {
				span.RecordError(res.err)
				span.SetStatus(codes.Error, res.err.Error())
			}
			return res.value, res.err
		case <-slow.C:
			rc.Warner.Warn("", fmt.Sprintf("The %s() hook of %s is taking more than %s", name, file, rc.slowHookWarning()),
				"hook", name, "file", file)
		case <-deadline.C:
			err := errors.New("E206").
				WithSource(file).
				WithDetailf("%s() hook didn't return after %s", name, time.Since(start).Round(time.Millisecond)).
				Wrap(errors.ErrHookTimeout)
			span.RecordError(err)
			span.SetStatus(codes.Error, "timeout")
			return nil, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (rc *RenderContext) getTracer() trace.Tracer {
	if rc.tracer == nil {
		return otel.Tracer(tracerName)
	}
	return rc.tracer
}

func (rc *RenderContext) slowHookWarning() time.Duration {
	if rc.SlowHookWarning <= 0 {
		return DefaultSlowHookWarning
	}
	return rc.SlowHookWarning
}

// CallPageHook calls a hook found on a page with pc.
func (rc *RenderContext) CallPageHook(ctx context.Context, ref *page.HookRef, pc *page.Context) (any, error) {
	fn, err := ref.Func()
	if err != nil {
		return nil, err
	}
	return rc.CallHook(ctx, ref.Name, ref.File.FilePath, func(ctx context.Context) (any, error) {
		return fn(ctx, pc)
	})
}
