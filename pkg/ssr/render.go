package ssr

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/assets"
	"github.com/vango-dev/ssr/pkg/page"
	"github.com/vango-dev/ssr/pkg/render"
)

// RenderResult is the structured result of a render() hook.
type RenderResult struct {
	// DocumentHTML is a *render.Template, a render.SafeString or a stream.
	// Nil means the page has no HTML.
	DocumentHTML any

	// PageContext is merged into the page context: a map is merged right
	// away, a *render.Deferred or a render.DeferredFunc once the document
	// stream ended.
	PageContext any

	// InjectFilter overrides where assets are injected.
	InjectFilter assets.Filter
}

// BeforeRenderResult is the structured result of an onBeforeRender() hook.
type BeforeRenderResult struct {
	PageContext map[string]any
}

var renderResultKeys = []string{"documentHtml", "pageContext", "injectFilter"}

// RenderOptions configures RenderPageContext.
type RenderOptions struct {
	// ForceString renders streams to a string. Always set while
	// prerendering.
	ForceString bool
}

// PageRender is a rendered page context.
type PageRender struct {
	PageContext *page.Context
	Page        *page.Page

	// RenderFile is the file exporting the render() hook.
	RenderFile string

	// Document is nil when render() returned no document.
	Document *render.Rendered
}

// HTML returns the complete HTML of a non-streamed document.
func (r *PageRender) HTML() (string, bool) {
	if r.Document == nil || r.Document.IsStream() {
		return "", false
	}
	return r.Document.HTML, true
}

// renderHook is the normalized outcome of a render() hook.
type renderHook struct {
	file   string
	doc    any
	late   *render.Deferred
	filter assets.Filter
}

// RenderPageContext loads the files of pc's page, runs onBeforeRender()
// and render(), and renders the document with the page's assets injected.
// pc.PageID must be set.
//
// When pc is an error context (Is404 or ErrorWhileRendering set), errors of
// onBeforeRender() are logged and rendering continues.
func (rc *RenderContext) RenderPageContext(ctx context.Context, pc *page.Context, opts RenderOptions) (*PageRender, error) {
	p := rc.Pages.Page(pc.PageID)
	if p == nil {
		return nil, errors.Newf(errors.CategoryRuntime, "unknown page %q", pc.PageID)
	}
	if err := p.Load(ctx); err != nil {
		return nil, err
	}

	if err := rc.ExecuteOnBeforeRender(ctx, p, pc); err != nil {
		if !isErrorContext(pc) {
			return nil, err
		}
		if !stderrors.Is(err, pc.ErrorWhileRendering) {
			rc.Logger.Error("onBeforeRender() of the error page failed", "page", pc.PageID, "error", err)
		}
	}

	hook, err := rc.executeRenderHook(ctx, p, pc)
	if err != nil {
		return nil, err
	}
	out := &PageRender{PageContext: pc, Page: p, RenderFile: hook.file}
	if hook.doc == nil {
		return out, nil
	}

	pageAssets := rc.PageAssets(pc.PageID)
	var serializeErr error
	tagOpts := assets.TagOptions{Filter: hook.filter}
	if rc.Hydratable(pc.PageID) {
		tagOpts.PageContextJSON = func() string {
			data, err := rc.SerializePageContext(pc)
			if err != nil {
				serializeErr = err
				return "{}"
			}
			return string(data)
		}
	}

	doc, err := render.RenderDocument(ctx, hook.doc, render.DocumentOptions{
		RenderFile:  hook.file,
		Assets:      pageAssets,
		Tags:        assets.BuildTags(pageAssets, tagOpts),
		Late:        hook.late,
		MergeLate:   func(v map[string]any) error { return withSource(pc.Merge(v), hook.file) },
		ForceString: opts.ForceString || pc.Prerendering,
		OnError: func(err error) {
			rc.Logger.Error("error while streaming", "url", pc.URLOriginal, "file", hook.file, "error", err)
		},
		Logger: rc.Logger,
		Warner: rc.Warner,
	})
	if err != nil {
		return nil, err
	}
	if !doc.IsStream() && serializeErr != nil {
		return nil, serializeErr
	}
	out.Document = doc
	return out, nil
}

// SerializePageContext returns the client-side page context: the keys
// listed in the passToClient exports of the page's files.
func (rc *RenderContext) SerializePageContext(pc *page.Context) ([]byte, error) {
	var keys []string
	if p := rc.Pages.Page(pc.PageID); p != nil {
		keys = p.PassToClient()
	}
	return pc.MarshalClient(keys)
}

// ExecuteOnBeforeRender runs the page's onBeforeRender() hook, if any, and
// merges the page context it returns. It is skipped when the prerender()
// hook already provided the page context.
func (rc *RenderContext) ExecuteOnBeforeRender(ctx context.Context, p *page.Page, pc *page.Context) error {
	if pc.ProvidedByPrerenderHook {
		return nil
	}
	ref, ok := p.Hook(page.HookOnBeforeRender)
	if !ok {
		return nil
	}
	v, err := rc.CallPageHook(ctx, ref, pc)
	if err != nil {
		return err
	}

	file := ref.File.FilePath
	var values map[string]any
	switch v := v.(type) {
	case nil:
		return nil
	case BeforeRenderResult:
		values = v.PageContext
	case *BeforeRenderResult:
		if v != nil {
			values = v.PageContext
		}
	case map[string]any:
		for k := range v {
			if k != "pageContext" {
				return errors.New("E208").
					WithSource(file).
					WithDetailf("unexpected key %q", k)
			}
		}
		raw := v["pageContext"]
		if raw == nil {
			return nil
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return errors.New("E208").
				WithSource(file).
				WithDetailf("pageContext should be a map[string]any, got %T", raw)
		}
		values = m
	default:
		return errors.New("E208").
			WithSource(file).
			WithDetailf("got %T", v)
	}
	return withSource(pc.Merge(values), file)
}

func (rc *RenderContext) executeRenderHook(ctx context.Context, p *page.Page, pc *page.Context) (*renderHook, error) {
	ref, ok := p.Hook(page.HookRender)
	if !ok {
		var b strings.Builder
		b.WriteString("loaded server-side page files (none of them export render):")
		for i, f := range p.Loaded() {
			fmt.Fprintf(&b, "\n (%d): %s", i+1, f)
		}
		return nil, errors.New("E203").WithDetail(b.String())
	}

	v, err := rc.CallPageHook(ctx, ref, pc)
	if err != nil {
		return nil, err
	}
	return normalizeRenderResult(v, ref.File.FilePath, pc)
}

func normalizeRenderResult(v any, file string, pc *page.Context) (*renderHook, error) {
	h := &renderHook{file: file}

	var res RenderResult
	switch v := v.(type) {
	case nil:
		return h, nil
	case string:
		return nil, errors.New("E204").
			WithSource(file).
			WithDetail("the render() hook returned a plain string")
	case RenderResult:
		res = v
	case *RenderResult:
		if v == nil {
			return h, nil
		}
		res = *v
	case map[string]any:
		r, err := renderResultFromMap(v, file)
		if err != nil {
			return nil, err
		}
		res = r
	default:
		if !render.IsDocument(v) {
			return nil, errors.New("E205").
				WithSource(file).
				WithDetailf("the render() hook returned a %T", v)
		}
		h.doc = v
		return h, nil
	}

	switch d := res.DocumentHTML.(type) {
	case nil:
	case string:
		return nil, errors.New("E204").
			WithSource(file).
			WithDetail("documentHtml is a plain string")
	default:
		if !render.IsDocument(d) {
			return nil, errors.New("E205").
				WithSource(file).
				WithDetailf("documentHtml is a %T", d)
		}
		h.doc = d
	}
	h.filter = res.InjectFilter

	switch pcv := res.PageContext.(type) {
	case nil:
	case map[string]any:
		if err := withSource(pc.Merge(pcv), file); err != nil {
			return nil, err
		}
	case *render.Deferred:
		h.late = pcv
	case render.DeferredFunc:
		h.late = render.DeferFunc(pcv)
	case func(context.Context) (map[string]any, error):
		h.late = render.DeferFunc(pcv)
	default:
		return nil, errors.New("E207").
			WithSource(file).
			WithDetailf("pageContext should be a map, a *render.Deferred or a render.DeferredFunc, got %T", pcv)
	}
	return h, nil
}

func renderResultFromMap(m map[string]any, file string) (RenderResult, error) {
	var res RenderResult
	for k := range m {
		known := false
		for _, rk := range renderResultKeys {
			known = known || k == rk
		}
		if !known {
			return res, errors.New("E205").
				WithSource(file).
				WithDetailf("unexpected key %q, the result may only have the keys %s", k, strings.Join(renderResultKeys, ", "))
		}
	}

	res.DocumentHTML = m["documentHtml"]
	res.PageContext = m["pageContext"]
	switch f := m["injectFilter"].(type) {
	case nil:
	case assets.Filter:
		res.InjectFilter = f
	case func(*assets.InjectItem) bool:
		res.InjectFilter = f
	default:
		return res, errors.New("E205").
			WithSource(file).
			WithDetailf("injectFilter should be a func(*assets.InjectItem) bool, got %T", f)
	}
	return res, nil
}

// withSource sets the source file of a usage error that has none.
func withSource(err error, file string) error {
	if err == nil {
		return nil
	}
	var e *errors.Error
	if stderrors.As(err, &e) && e.Source == "" {
		e.Source = file
	}
	return err
}

func isErrorContext(pc *page.Context) bool {
	return pc.ErrorWhileRendering != nil || (pc.Is404 != nil && *pc.Is404)
}
