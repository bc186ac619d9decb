package route

import (
	"context"
	"strings"

	"github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/page"
)

// Func is a route function. It reports whether the page matches pc and
// returns the route params when it does.
type Func func(pc *page.Context) (params map[string]string, ok bool)

// asFunc converts the supported route function shapes.
func asFunc(v any) (Func, bool) {
	switch fn := v.(type) {
	case Func:
		return fn, true
	case func(*page.Context) (map[string]string, bool):
		return fn, true
	case func(*page.Context) bool:
		return func(pc *page.Context) (map[string]string, bool) { return nil, fn(pc) }, true
	}
	return nil, false
}

// Route is how a single page is matched.
type Route struct {
	PageID string

	// String is the route string, "" for route functions.
	String string

	// Func is the route function, nil for route strings.
	Func Func

	// File is the .page.route file defining the route, "" for filesystem
	// routes.
	File string

	params []string
}

// FileSystem reports whether the route was derived from the page's path.
func (r *Route) FileSystem() bool {
	return r.File == ""
}

// IsStatic reports whether the route is a route string without params, in
// which case it matches exactly one URL.
func (r *Route) IsStatic() bool {
	return r.Func == nil && len(r.params) == 0
}

// Params returns the param names of a route string, in order.
func (r *Route) Params() []string {
	return r.params
}

// Result is the outcome of routing a URL.
type Result struct {
	// PageID is "" when no page matched.
	PageID      string
	RouteParams map[string]string

	// ProvidedByHook is set when onBeforeRoute() decided the routing.
	ProvidedByHook bool
}

// Matched reports whether a page was found.
func (r *Result) Matched() bool {
	return r != nil && r.PageID != ""
}

// Table routes URLs to pages. It is built once per manifest and safe for
// concurrent use.
type Table struct {
	manifest *page.Manifest
	root     *node
	routes   []*Route
	funcs    []*Route

	beforeRoute     page.HookFunc
	beforeRouteFile string
}

// NewTable builds the routing table for m. Route files and the _default
// files exporting onBeforeRoute() are loaded.
func NewTable(ctx context.Context, m *page.Manifest) (*Table, error) {
	t := &Table{manifest: m, root: &node{}}

	var fsRoutes []*Route
	for _, id := range m.PageIDs() {
		p := m.Page(id)
		if p.IsError() {
			continue
		}

		f := p.RouteFile()
		if f == nil {
			r := &Route{PageID: id, String: FilesystemRoute(id)}
			r.params = paramsOf(r.String)
			fsRoutes = append(fsRoutes, r)
			continue
		}

		r, err := routeFromFile(ctx, id, f)
		if err != nil {
			return nil, err
		}
		t.routes = append(t.routes, r)
		if r.Func != nil {
			t.funcs = append(t.funcs, r)
		} else {
			t.root.insert(splitPath(r.String), r)
		}
	}

	// Filesystem routes are inserted last so that an explicit route string
	// wins over a filesystem route for the same URL.
	for _, r := range fsRoutes {
		t.routes = append(t.routes, r)
		t.root.insert(splitPath(r.String), r)
	}

	for _, f := range m.DefaultFiles() {
		if f.Type == page.TypeClient || !f.HasExport(page.HookOnBeforeRoute) {
			continue
		}
		if t.beforeRoute != nil {
			return nil, errors.New("E218").
				WithSource(f.FilePath).
				WithDetailf("onBeforeRoute() is already defined by %s", t.beforeRouteFile)
		}
		if err := f.Load(ctx); err != nil {
			return nil, err
		}
		v, _ := f.Export(page.HookOnBeforeRoute)
		ref := &page.HookRef{Name: page.HookOnBeforeRoute, File: f, Value: v}
		fn, err := ref.Func()
		if err != nil {
			return nil, err
		}
		t.beforeRoute = fn
		t.beforeRouteFile = f.FilePath
	}

	return t, nil
}

func routeFromFile(ctx context.Context, pageID string, f *page.File) (*Route, error) {
	if err := f.Load(ctx); err != nil {
		return nil, err
	}
	v, ok := f.Export(page.ExportRoute)
	if !ok {
		return nil, errors.New("E218").
			WithSource(f.FilePath).
			WithDetail("the route file should have a default export")
	}

	r := &Route{PageID: pageID, File: f.FilePath}
	if s, ok := v.(string); ok {
		if !strings.HasPrefix(s, "/") {
			return nil, errors.New("E218").
				WithSource(f.FilePath).
				WithDetailf("route string %q should start with /", s)
		}
		r.String = s
		r.params = paramsOf(s)
		return r, nil
	}
	if fn, ok := asFunc(v); ok {
		r.Func = fn
		return r, nil
	}
	return nil, errors.New("E218").
		WithSource(f.FilePath).
		WithDetailf("the default export should be a route string or a route function, got %T", v)
}

// Routes returns every route, route files first and in page id order.
// The error page has no route.
func (t *Table) Routes() []*Route {
	return t.routes
}

// HasBeforeRoute reports whether an onBeforeRoute() hook is defined.
func (t *Table) HasBeforeRoute() bool {
	return t.beforeRoute != nil
}

// Route finds the page for pc. The onBeforeRoute() hook runs first and may
// decide the routing on its own; route functions are tried next, then the
// route strings, where static segments win over params and params over
// catch-alls.
func (t *Table) Route(ctx context.Context, pc *page.Context) (*Result, error) {
	if t.beforeRoute != nil {
		res, err := t.runBeforeRoute(ctx, pc)
		if err != nil || res != nil {
			return res, err
		}
	}

	for _, r := range t.funcs {
		params, ok := r.Func(pc)
		if !ok {
			continue
		}
		if params == nil {
			params = make(map[string]string)
		}
		return &Result{PageID: r.PageID, RouteParams: params}, nil
	}

	r, values := t.root.match(splitPath(pc.URLPathname()), nil)
	if r == nil {
		return &Result{RouteParams: map[string]string{}}, nil
	}
	params := make(map[string]string, len(r.params))
	for i, name := range r.params {
		if i < len(values) {
			params[name] = values[i]
		}
	}
	return &Result{PageID: r.PageID, RouteParams: params}, nil
}

// runBeforeRoute returns nil when the hook leaves routing to the table.
// The hook may return nil, a *Result, or a map with a pageContext holding
// _pageId and routeParams; other pageContext keys are merged into pc.
func (t *Table) runBeforeRoute(ctx context.Context, pc *page.Context) (*Result, error) {
	v, err := t.beforeRoute(ctx, pc)
	if err != nil {
		return nil, err
	}

	switch v := v.(type) {
	case nil:
		return nil, nil
	case *Result:
		if v == nil {
			return nil, nil
		}
		res := *v
		res.ProvidedByHook = true
		if res.RouteParams == nil {
			res.RouteParams = make(map[string]string)
		}
		return &res, t.checkPageID(res.PageID)
	case map[string]any:
		return t.beforeRouteMap(pc, v)
	}
	return nil, errors.New("E218").
		WithSource(t.beforeRouteFile).
		WithDetailf("onBeforeRoute() should return nil, *route.Result or {pageContext}, got %T", v)
}

func (t *Table) beforeRouteMap(pc *page.Context, v map[string]any) (*Result, error) {
	invalid := func(format string, args ...any) error {
		return errors.New("E218").
			WithSource(t.beforeRouteFile).
			WithDetailf("onBeforeRoute() returned "+format, args...)
	}

	for k := range v {
		if k != "pageContext" {
			return nil, invalid("unknown key %q", k)
		}
	}
	raw, ok := v["pageContext"]
	if !ok || raw == nil {
		return nil, nil
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid("a pageContext of type %T", raw)
	}

	extra := make(map[string]any)
	var (
		decided bool
		res     = &Result{RouteParams: map[string]string{}, ProvidedByHook: true}
	)
	for k, val := range values {
		switch k {
		case "_pageId", "pageId":
			decided = true
			switch id := val.(type) {
			case nil:
			case string:
				res.PageID = id
			default:
				return nil, invalid("a page id of type %T", val)
			}
		case "routeParams":
			params, ok := val.(map[string]string)
			if !ok && val != nil {
				return nil, invalid("routeParams of type %T", val)
			}
			for pk, pv := range params {
				res.RouteParams[pk] = pv
			}
		default:
			extra[k] = val
		}
	}

	if err := pc.Merge(extra); err != nil {
		return nil, err
	}
	if !decided {
		return nil, nil
	}
	return res, t.checkPageID(res.PageID)
}

func (t *Table) checkPageID(id string) error {
	if id == "" || t.manifest.Page(id) != nil {
		return nil
	}
	return errors.New("E218").
		WithSource(t.beforeRouteFile).
		WithDetailf("onBeforeRoute() returned unknown page id %q", id)
}

// FilesystemRoute derives the route string of a page from its id: every
// segment up to and including "pages" is dropped, as is a trailing "index".
//
//	/pages/index            -> /
//	/pages/about/index      -> /about
//	/src/pages/product/@id  -> /product/@id
func FilesystemRoute(pageID string) string {
	segs := splitPath(pageID)
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] == "pages" {
			segs = segs[i+1:]
			break
		}
	}
	if n := len(segs); n > 0 && segs[n-1] == "index" {
		segs = segs[:n-1]
	}
	return "/" + strings.Join(segs, "/")
}

// StaticURL returns the URL a route string matches when it has no params.
func StaticURL(routeString string) (string, bool) {
	if len(paramsOf(routeString)) > 0 {
		return "", false
	}
	return "/" + strings.Join(splitPath(routeString), "/"), true
}

func paramsOf(routeString string) []string {
	segs := splitPath(routeString)
	var params []string
	for i, s := range segs {
		if name, ok := paramName(s); ok {
			params = append(params, name)
			continue
		}
		if name, ok := catchAllName(s); ok && i == len(segs)-1 {
			params = append(params, name)
		}
	}
	return params
}
