package prerender

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vango-dev/ssr/internal/config"
	"github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/assets"
	"github.com/vango-dev/ssr/pkg/page"
	"github.com/vango-dev/ssr/pkg/route"
	"github.com/vango-dev/ssr/pkg/ssr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options configures Run.
type Options struct {
	// Config is the resolved configuration. Defaults to config.New().
	Config *config.Config

	// Files are the page files of the app.
	Files []*page.File

	// Assets is the client build manifest. When nil it is loaded from
	// Config.ManifestPath() if that file exists.
	Assets *assets.Manifest

	// Router overrides the routing table built from Files. Static routes
	// are only discovered when the router has a Routes() []*route.Route
	// method, like *route.Table.
	Router ssr.Router

	// PageContextInit is merged into every page context.
	PageContextInit map[string]any

	// Sink receives the files. Defaults to an FSSink writing to
	// Config.ClientOutputPath().
	Sink Sink

	// OnPagePrerender, when set and Sink is nil, receives every file
	// instead of it being written. See CallbackSink.
	OnPagePrerender func(ctx context.Context, pc *page.Context) error

	// Registry receives the run metrics. Defaults to
	// prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// OnProgress is called when a phase starts.
	OnProgress func(step string)

	Logger *slog.Logger
}

// Context is passed to the onBeforePrerender() hook. The hook may return
// it, modified, to replace the list of page contexts to render.
type Context struct {
	PageContexts []*page.Context

	// PageContextInit is Options.PageContextInit, for building new page
	// contexts.
	PageContextInit map[string]any

	// NoExtraDir is the prerender.noExtraDir option. The hook may change it
	// for the whole run.
	NoExtraDir bool
}

// Page is a prerendered URL.
type Page struct {
	URL string

	// PageID is "" for fallback documents.
	PageID string

	// Files are the paths written for the URL.
	Files []string
}

// Result describes a finished run.
type Result struct {
	RunID    string
	Pages    []Page
	Files    []string
	Excluded []string
	Warnings int
	Duration time.Duration
}

type htmlFile struct {
	url             string
	pc              *page.Context
	pageID          string
	html            string
	pageContextJSON []byte
	noExtraDir      bool
}

type run struct {
	id      string
	opts    Options
	cfg     *config.Config
	rc      *ssr.RenderContext
	limiter *Limiter
	sink    Sink
	logger  *slog.Logger
	warner  *errors.Warner
	metrics *metrics
	tracer  trace.Tracer

	// Discovery state. Only mutated sequentially, before rendering starts.
	noExtraDir bool
	excluded   map[string]string
	contexts   []*page.Context
	byURL      map[string]*page.Context

	// Render state, guarded by mu. rendered holds every context routed to a
	// page, including those that fell back to the error page.
	mu       sync.Mutex
	files    []*htmlFile
	rendered map[string][]*page.Context
}

// Run prerenders every page that can be: pages with a static route and the
// URLs returned by prerender() hooks, as filtered by the onBeforePrerender()
// hook. Usage errors abort the run. Application errors of a page render the
// error page, or a fallback document when the app has none.
func Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	r, err := newRun(ctx, opts)
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "prerender.run",
		trace.WithAttributes(attribute.String("ssr.run_id", r.id)),
	)
	defer span.End()

	res, err := r.execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("prerender failed", "error", err)
		return nil, err
	}

	res.Duration = time.Since(start)
	r.metrics.runDuration.Observe(res.Duration.Seconds())
	r.logger.Info("prerender finished", "pages", len(res.Pages), "files", len(res.Files), "duration", res.Duration)
	return res, nil
}

func newRun(ctx context.Context, opts Options) (*run, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}

	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "prerender", "run", id)
	warner := errors.NewWarner(logger)

	rc, err := ssr.NewRenderContext(ctx, ssr.Options{
		Config: cfg,
		Files:  opts.Files,
		Assets: opts.Assets,
		Router: opts.Router,
		Logger: logger,
		Warner: warner,
	})
	if err != nil {
		return nil, err
	}

	sink := opts.Sink
	if sink == nil {
		if opts.OnPagePrerender != nil {
			sink = &CallbackSink{Dir: cfg.ClientOutputPath(), Fn: opts.OnPagePrerender}
		} else {
			sink = &FSSink{Dir: cfg.ClientOutputPath()}
		}
	}

	m := metricsFor(opts.Registry)
	limiter := NewLimiter(cfg.Prerender.Parallel.Width())
	limiter.onChange = func(n int64) { m.inFlight.Set(float64(n)) }

	return &run{
		id:         id,
		opts:       opts,
		cfg:        cfg,
		rc:         rc,
		limiter:    limiter,
		sink:       sink,
		logger:     logger,
		warner:     warner,
		metrics:    m,
		tracer:     otel.Tracer("github.com/vango-dev/ssr/prerender"),
		noExtraDir: cfg.Prerender.NoExtraDir,
		excluded:   make(map[string]string),
		byURL:      make(map[string]*page.Context),
		rendered:   make(map[string][]*page.Context),
	}, nil
}

func (r *run) progress(step string) {
	r.logger.Debug(step)
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(step)
	}
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	r.logger.Info("prerendering", "parallel", r.limiter.Width())

	r.progress("Collecting doNotPrerender exports...")
	if err := r.collectExclusions(ctx); err != nil {
		return nil, err
	}

	r.progress("Calling prerender() hooks...")
	if err := r.callPrerenderHooks(ctx); err != nil {
		return nil, err
	}

	r.progress("Adding pages with static routes...")
	if err := r.addStaticRoutes(); err != nil {
		return nil, err
	}

	r.progress("Calling onBeforePrerender() hook...")
	if err := r.callOnBeforePrerender(ctx); err != nil {
		return nil, err
	}

	r.progress("Rendering pages...")
	if err := r.routeAndRender(ctx); err != nil {
		return nil, err
	}
	if err := r.checkContradictions(); err != nil {
		return nil, err
	}

	r.progress("Rendering 404 page...")
	if err := r.prerender404(ctx); err != nil {
		return nil, err
	}

	r.progress("Writing files...")
	res, err := r.write(ctx)
	if err != nil {
		return nil, err
	}

	r.warnMissingPages()
	res.RunID = r.id
	res.Warnings = r.warner.Count()
	for id := range r.excluded {
		res.Excluded = append(res.Excluded, id)
	}
	sort.Strings(res.Excluded)
	return res, nil
}

// collectExclusions evaluates the doNotPrerender exports. For each page the
// most specific file exporting doNotPrerender decides.
func (r *run) collectExclusions(ctx context.Context) error {
	var files []*page.File
	for _, f := range r.rc.Pages.Files() {
		if !f.HasExport(page.ExportDoNotPrerender) {
			continue
		}
		if f.Type == page.TypeClient {
			return errors.New("E211").
				WithSource(f.FilePath).
				WithDetail("doNotPrerender is only allowed in .page and .page.server files")
		}
		files = append(files, f)
	}

	err := r.limiter.Each(ctx, len(files), func(ctx context.Context, i int) error {
		return files[i].Load(ctx)
	})
	if err != nil {
		return err
	}

	for _, id := range r.rc.Pages.PageIDs() {
		for _, f := range r.rc.Pages.Page(id).Files() {
			if f.Type == page.TypeClient || !f.HasExport(page.ExportDoNotPrerender) {
				continue
			}
			v, _ := f.Export(page.ExportDoNotPrerender)
			exclude, ok := v.(bool)
			if !ok {
				return errors.New("E212").
					WithSource(f.FilePath).
					WithDetailf("doNotPrerender should be true or false, got %T", v)
			}
			if exclude {
				r.excluded[id] = f.FilePath
			}
			break
		}
	}
	return nil
}

func (r *run) callPrerenderHooks(ctx context.Context) error {
	var files []*page.File
	for _, f := range r.rc.Pages.Files() {
		if !f.HasExport(page.HookPrerender) {
			continue
		}
		if f.Type != page.TypeServer {
			return errors.New("E211").
				WithSource(f.FilePath).
				WithDetail("prerender() is only allowed in .page.server files")
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })

	results := make([][]Entry, len(files))
	err := r.limiter.Each(ctx, len(files), func(ctx context.Context, i int) error {
		f := files[i]
		if err := f.Load(ctx); err != nil {
			return err
		}
		v, ok := f.Export(page.HookPrerender)
		if !ok || v == nil {
			return nil
		}
		out, err := r.callHook(ctx, &page.HookRef{Name: page.HookPrerender, File: f, Value: v}, nil)
		if err != nil {
			return err
		}
		entries, err := normalizeEntries(out, f.FilePath)
		if err != nil {
			return err
		}
		results[i] = entries
		return nil
	})
	if err != nil {
		return err
	}

	// Claims are registered in file order so that the first claim of a URL
	// doesn't depend on which hook returned first.
	for i, entries := range results {
		for _, e := range entries {
			if err := r.claim(e, files[i].FilePath); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) claim(e Entry, file string) error {
	pc, ok := r.byURL[e.URL]
	if !ok {
		var err error
		pc, err = r.newPageContext(e.URL)
		if err != nil {
			return err
		}
		pc.PrerenderHookFile = file
		r.add(pc)
	}
	if e.PageContext != nil {
		if err := pc.Merge(e.PageContext); err != nil {
			return errors.FromError(err, "E210").WithSource(file)
		}
		pc.ProvidedByPrerenderHook = true
	}
	return nil
}

func (r *run) newPageContext(url string) (*page.Context, error) {
	pc, err := r.rc.NewPageContext(url, r.opts.PageContextInit)
	if err != nil {
		return nil, err
	}
	pc.Prerendering = true
	return pc, nil
}

func (r *run) add(pc *page.Context) {
	r.contexts = append(r.contexts, pc)
	r.byURL[pc.URLOriginal] = pc
}

func (r *run) addStaticRoutes() error {
	lister, ok := r.rc.Router.(interface{ Routes() []*route.Route })
	if !ok {
		return nil
	}
	for _, rt := range lister.Routes() {
		if _, excluded := r.excluded[rt.PageID]; excluded || rt.Func != nil {
			continue
		}
		url, ok := route.StaticURL(rt.String)
		if !ok {
			continue
		}
		if _, claimed := r.byURL[url]; claimed {
			continue
		}
		pc, err := r.newPageContext(url)
		if err != nil {
			return err
		}
		pc.PageID = rt.PageID
		r.add(pc)
	}
	return nil
}

// beforePrerenderFunc is the normalized onBeforePrerender() hook.
type beforePrerenderFunc func(ctx context.Context, pctx *Context) (any, error)

func asBeforePrerender(v any) (beforePrerenderFunc, bool) {
	switch fn := v.(type) {
	case func(context.Context, *Context) (any, error):
		return fn, true
	case func(*Context) (any, error):
		return func(_ context.Context, c *Context) (any, error) { return fn(c) }, true
	case func(*Context) any:
		return func(_ context.Context, c *Context) (any, error) { return fn(c), nil }, true
	}
	return nil, false
}

func (r *run) callOnBeforePrerender(ctx context.Context) error {
	var hooks []*page.File
	for _, f := range r.rc.Pages.Files() {
		if !f.HasExport(page.HookOnBeforePrerender) {
			continue
		}
		if f.Type == page.TypeClient || !f.IsDefault() {
			return errors.New("E211").
				WithSource(f.FilePath).
				WithDetail("onBeforePrerender() is only allowed in _default.page and _default.page.server files")
		}
		hooks = append(hooks, f)
	}
	if len(hooks) == 0 {
		return nil
	}
	if len(hooks) > 1 {
		var paths []string
		for _, f := range hooks {
			paths = append(paths, f.FilePath)
		}
		return errors.New("E213").WithDetailf("defined by %s", strings.Join(paths, ", "))
	}

	f := hooks[0]
	if err := f.Load(ctx); err != nil {
		return err
	}
	v, _ := f.Export(page.HookOnBeforePrerender)
	fn, ok := asBeforePrerender(v)
	if !ok {
		return errors.New("E209").
			WithSource(f.FilePath).
			WithDetailf("onBeforePrerender() should be a func(*prerender.Context) (any, error), got %T", v)
	}

	pctx := &Context{
		PageContexts:    r.contexts,
		PageContextInit: r.opts.PageContextInit,
		NoExtraDir:      r.noExtraDir,
	}
	start := time.Now()
	out, err := r.rc.CallHook(ctx, page.HookOnBeforePrerender, f.FilePath, func(ctx context.Context) (any, error) {
		return fn(ctx, pctx)
	})
	r.metrics.hookDuration.WithLabelValues(page.HookOnBeforePrerender).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	replaced, err := normalizeBeforePrerender(out, f.FilePath, pctx)
	if err != nil || replaced == nil {
		return err
	}
	r.noExtraDir = replaced.NoExtraDir

	r.contexts = nil
	r.byURL = make(map[string]*page.Context)
	for _, pc := range replaced.PageContexts {
		if pc == nil || !strings.HasPrefix(pc.URLOriginal, "/") || hasDotDot(pc.URLOriginal) {
			return errors.New("E214").
				WithSource(f.FilePath).
				WithDetail("every page context should have a URLOriginal starting with / and without .. segments")
		}
		pc.Prerendering = true
		r.add(pc)
	}
	return nil
}

// normalizeBeforePrerender returns the context to continue with, nil to
// keep the current one. A bare list of page contexts keeps the other fields
// of current.
func normalizeBeforePrerender(v any, file string, current *Context) (*Context, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case *Context:
		return v, nil
	case Context:
		return &v, nil
	case map[string]any:
		for k := range v {
			if k != "prerenderContext" {
				return nil, errors.New("E214").WithSource(file).WithDetailf("unexpected key %q", k)
			}
		}
		switch pctx := v["prerenderContext"].(type) {
		case *Context:
			return pctx, nil
		case Context:
			return &pctx, nil
		case map[string]any:
			if list, ok := pctx["pageContexts"].([]*page.Context); ok {
				next := *current
				next.PageContexts = list
				return &next, nil
			}
		}
	}
	return nil, errors.New("E214").WithSource(file).WithDetailf("got %T", v)
}

func (r *run) callHook(ctx context.Context, ref *page.HookRef, pc *page.Context) (any, error) {
	start := time.Now()
	defer func() {
		r.metrics.hookDuration.WithLabelValues(ref.Name).Observe(time.Since(start).Seconds())
	}()
	return r.rc.CallPageHook(ctx, ref, pc)
}

func (r *run) routeAndRender(ctx context.Context) error {
	contexts := r.contexts
	err := r.limiter.Each(ctx, len(contexts), func(ctx context.Context, i int) error {
		return r.renderOne(ctx, contexts[i])
	})
	if err != nil {
		return err
	}
	sort.Slice(r.files, func(i, j int) bool { return r.files[i].url < r.files[j].url })
	return nil
}

func (r *run) renderOne(ctx context.Context, pc *page.Context) error {
	ctx, span := r.tracer.Start(ctx, "prerender.page",
		trace.WithAttributes(attribute.String("ssr.url", pc.URLOriginal)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		r.metrics.hookDuration.WithLabelValues(page.HookRender).Observe(time.Since(start).Seconds())
	}()

	res, err := r.rc.Router.Route(ctx, pc)
	if err != nil {
		if errors.IsUsage(err) {
			return err
		}
		return r.renderErrorPage(ctx, pc, err)
	}
	if res == nil {
		res = &route.Result{}
	}
	if !res.Matched() {
		if pc.PrerenderHookFile != "" {
			return errors.New("E215").
				WithSource(pc.PrerenderHookFile).
				WithDetailf("the prerender() hook returned the URL %s", pc.URLOriginal)
		}
		if res.ProvidedByHook {
			// onBeforeRoute() overrides the routing the static URL was
			// derived from.
			r.metrics.pagesTotal.WithLabelValues(outcomeSkipped).Inc()
			return nil
		}
		return r.renderNotFound(ctx, pc)
	}
	pc.PageID = res.PageID
	pc.RouteParams = res.RouteParams
	if file, excluded := r.excluded[pc.PageID]; excluded && pc.PrerenderHookFile != "" {
		return contradiction(pc, file)
	}

	out, err := r.rc.RenderPageContext(ctx, pc, ssr.RenderOptions{ForceString: true})
	if err != nil {
		if errors.IsUsage(err) {
			return err
		}
		return r.renderErrorPage(ctx, pc, err)
	}
	html, ok := out.HTML()
	if !ok {
		return errors.New("E217").
			WithSource(out.RenderFile).
			WithDetailf("render() returned no document for %s", pc.URLOriginal)
	}

	var pcJSON []byte
	if r.rc.Assets.UsesClientRouter && r.rc.Hydratable(pc.PageID) {
		pcJSON, err = r.rc.SerializePageContext(pc)
		if err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.files = append(r.files, &htmlFile{
		url:             pc.URLOriginal,
		pc:              pc,
		pageID:          pc.PageID,
		html:            html,
		pageContextJSON: pcJSON,
		noExtraDir:      r.noExtraDir,
	})
	r.rendered[pc.PageID] = append(r.rendered[pc.PageID], pc)
	r.mu.Unlock()

	r.metrics.pagesTotal.WithLabelValues(outcomeRendered).Inc()
	return nil
}

func (r *run) renderErrorPage(ctx context.Context, pc *page.Context, cause error) error {
	r.logger.Error("rendering failed", "url", pc.URLOriginal, "page", pc.PageID, "error", cause)
	epc := pc.Fork()
	epc.ErrorWhileRendering = cause
	return r.renderFallback(ctx, epc, pc, ssr.Fallback500)
}

func (r *run) renderNotFound(ctx context.Context, pc *page.Context) error {
	r.logger.Warn("no page matches", "url", pc.URLOriginal)
	epc := pc.Fork()
	epc.SetIs404(true)
	return r.renderFallback(ctx, epc, pc, ssr.Fallback404)
}

// renderFallback renders the error page for epc, or fallback when there is
// none or it fails. The file is recorded under the page pc was routed to,
// if any.
func (r *run) renderFallback(ctx context.Context, epc, pc *page.Context, fallback string) error {
	html := fallback
	outcome := outcomeFallback

	if id := r.rc.Pages.ErrorPageID(); id != "" {
		epc.PageID = id
		out, err := r.rc.RenderPageContext(ctx, epc, ssr.RenderOptions{ForceString: true})
		switch {
		case err != nil && errors.IsUsage(err):
			return err
		case err != nil:
			r.logger.Error("rendering the error page failed", "url", epc.URLOriginal, "error", err)
		default:
			if s, ok := out.HTML(); ok {
				html = s
				outcome = outcomeErrorPage
			}
		}
	}

	r.mu.Lock()
	r.files = append(r.files, &htmlFile{
		url:        epc.URLOriginal,
		pc:         epc,
		pageID:     pc.PageID,
		html:       html,
		noExtraDir: r.noExtraDir,
	})
	if pc.PageID != "" {
		r.rendered[pc.PageID] = append(r.rendered[pc.PageID], pc)
	}
	r.mu.Unlock()
	r.metrics.pagesTotal.WithLabelValues(outcome).Inc()
	return nil
}

// checkContradictions fails when a prerender() hook claimed a URL of an
// excluded page. Excluded pages reaching this point by other means are
// dropped.
func (r *run) checkContradictions() error {
	ids := make([]string, 0, len(r.rendered))
	for id := range r.rendered {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		file, excluded := r.excluded[id]
		if !excluded {
			continue
		}
		for _, pc := range r.rendered[id] {
			if pc.PrerenderHookFile == "" {
				continue
			}
			return contradiction(pc, file)
		}
	}

	kept := r.files[:0]
	for _, f := range r.files {
		if _, excluded := r.excluded[f.pageID]; excluded && f.pageID != "" {
			continue
		}
		kept = append(kept, f)
	}
	r.files = kept
	return nil
}

func contradiction(pc *page.Context, excludedBy string) error {
	return errors.New("E216").
		WithSource(pc.PrerenderHookFile).
		WithDetailf("the prerender() hook returns the URL %s of the page %s, which %s excludes with doNotPrerender", pc.URLOriginal, pc.PageID, excludedBy)
}

func (r *run) prerender404(ctx context.Context) error {
	for _, f := range r.files {
		if f.url == "/404" {
			return nil
		}
	}
	id := r.rc.Pages.ErrorPageID()
	if id == "" {
		return nil
	}

	pc, err := r.newPageContext("/404")
	if err != nil {
		return err
	}
	pc.PageID = id
	pc.SetIs404(true)

	out, err := r.rc.RenderPageContext(ctx, pc, ssr.RenderOptions{ForceString: true})
	if err != nil {
		if errors.IsUsage(err) {
			return err
		}
		r.logger.Error("rendering the 404 page failed", "error", err)
		return nil
	}
	html, ok := out.HTML()
	if !ok {
		return nil
	}
	r.files = append(r.files, &htmlFile{url: "/404", pc: pc, html: html, noExtraDir: true})
	r.metrics.pagesTotal.WithLabelValues(outcomeErrorPage).Inc()
	return nil
}

type writeJob struct {
	artifact Artifact
	kind     string
}

func (r *run) write(ctx context.Context) (*Result, error) {
	res := &Result{}
	var jobs []writeJob
	for _, f := range r.files {
		p := Page{URL: f.url, PageID: f.pageID}

		htmlPath := URLToFile(f.url, ".html", f.noExtraDir)
		jobs = append(jobs, writeJob{
			artifact: Artifact{Path: htmlPath, Content: []byte(f.html), URL: f.url, PageContext: f.pc},
			kind:     "html",
		})
		p.Files = append(p.Files, htmlPath)

		if f.pageContextJSON != nil {
			jsonPath := PageContextFile(f.url)
			jobs = append(jobs, writeJob{
				artifact: Artifact{Path: jsonPath, Content: f.pageContextJSON, URL: f.url, PageContext: f.pc},
				kind:     "pageContext",
			})
			p.Files = append(p.Files, jsonPath)
		}

		res.Pages = append(res.Pages, p)
		res.Files = append(res.Files, p.Files...)
	}

	err := r.limiter.Each(ctx, len(jobs), func(ctx context.Context, i int) error {
		job := jobs[i]
		if err := r.sink.Write(ctx, job.artifact); err != nil {
			return err
		}
		r.metrics.filesWritten.WithLabelValues(job.kind).Inc()
		r.logger.Debug("wrote file", "file", job.artifact.Path, "url", job.artifact.URL)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(res.Files)
	return res, nil
}

// warnMissingPages warns about pages no URL was routed to, unless they are
// excluded or the error page.
func (r *run) warnMissingPages() {
	if r.cfg.Prerender.Partial {
		return
	}
	for _, id := range r.rc.Pages.PageIDs() {
		if _, ok := r.rendered[id]; ok {
			continue
		}
		if _, ok := r.excluded[id]; ok {
			continue
		}
		if r.rc.Pages.Page(id).IsError() {
			continue
		}
		r.warner.Warn("missing:"+id,
			fmt.Sprintf("Could not prerender page %s: it has a non-static route and no prerender() hook returned a URL matching it. Add a prerender() hook, or set prerender.partial to suppress this warning.", id),
			"page", id)
	}
}
