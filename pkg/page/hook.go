package page

import (
	"context"

	"github.com/vango-dev/ssr/internal/errors"
)

// HookFunc is the normalized form of every hook.
type HookFunc func(ctx context.Context, pc *Context) (any, error)

// HookRef is a hook found on a page: its value and the file exporting it.
type HookRef struct {
	Name  string
	File  *File
	Value any
}

// Func returns the hook as a HookFunc, or a usage error when the export is
// not a function of a supported shape.
func (h *HookRef) Func() (HookFunc, error) {
	fn, ok := AsHook(h.Value)
	if !ok {
		return nil, errors.New("E209").
			WithSource(h.File.FilePath).
			WithDetailf("%s() hook should be a function, got %T", h.Name, h.Value)
	}
	return fn, nil
}

// AsHook converts the supported hook shapes to a HookFunc:
//
//	func(context.Context, *page.Context) (any, error)
//	func(*page.Context) (any, error)
//	func(*page.Context) any
//	func(context.Context) (any, error)
//	func() (any, error)
//	func() any
func AsHook(v any) (HookFunc, bool) {
	switch fn := v.(type) {
	case HookFunc:
		return fn, true
	case func(context.Context, *Context) (any, error):
		return fn, true
	case func(*Context) (any, error):
		return func(_ context.Context, pc *Context) (any, error) { return fn(pc) }, true
	case func(*Context) any:
		return func(_ context.Context, pc *Context) (any, error) { return fn(pc), nil }, true
	case func(context.Context) (any, error):
		return func(ctx context.Context, _ *Context) (any, error) { return fn(ctx) }, true
	case func() (any, error):
		return func(context.Context, *Context) (any, error) { return fn() }, true
	case func() any:
		return func(context.Context, *Context) (any, error) { return fn(), nil }, true
	}
	return nil, false
}
