package page

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/ssr/internal/errors"
)

// PrerenderResult is attached to the page context handed to a prerender
// callback instead of writing a file.
type PrerenderResult struct {
	FilePath    string
	FileContent string
}

// Context is the per-URL data threaded through routing, hooks and
// rendering. Hooks extend it with Merge; fields starting with an underscore
// are internal and cannot be set by hooks.
//
// A Context is safe for concurrent use. One instance serves one URL and is
// never reused.
type Context struct {
	URLOriginal string
	PageID      string
	RouteParams map[string]string

	// Is404 is nil when unknown, true when no page matched.
	Is404 *bool

	// ErrorWhileRendering is the error that led to rendering the error page.
	ErrorWhileRendering error

	// Prerendering is set for contexts created by a prerender run; rendering
	// then always produces a complete string.
	Prerendering bool

	// PrerenderHookFile is the file of the prerender() hook that claimed
	// the URL, "" for URLs from static routes.
	PrerenderHookFile string

	// ProvidedByPrerenderHook is set when the prerender() hook supplied
	// page context, in which case onBeforeRender() is skipped.
	ProvidedByPrerenderHook bool

	// PrerenderResult is set on contexts passed to a prerender callback.
	PrerenderResult *PrerenderResult

	mu     sync.RWMutex
	values map[string]any
}

// NewContext creates a context for urlOriginal.
func NewContext(urlOriginal string) *Context {
	return &Context{
		URLOriginal: urlOriginal,
		RouteParams: make(map[string]string),
		values:      make(map[string]any),
	}
}

// URLPathname returns the path of URLOriginal without query and fragment.
func (c *Context) URLPathname() string {
	u, err := url.Parse(c.URLOriginal)
	if err != nil || u.Path == "" {
		if i := strings.IndexAny(c.URLOriginal, "?#"); i >= 0 {
			return c.URLOriginal[:i]
		}
		return c.URLOriginal
	}
	return u.Path
}

// SetIs404 sets Is404.
func (c *Context) SetIs404(v bool) {
	c.Is404 = &v
}

// Get returns a value set by a hook, falling back to the well-known fields
// urlOriginal, pageId, routeParams and is404.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return v, true
	}

	switch key {
	case "urlOriginal":
		return c.URLOriginal, true
	case "pageId", "_pageId":
		return c.PageID, c.PageID != ""
	case "routeParams":
		return c.RouteParams, true
	case "is404":
		if c.Is404 != nil {
			return *c.Is404, true
		}
	}
	return nil, false
}

// Set sets a single value. Internal keys are rejected.
func (c *Context) Set(key string, value any) error {
	return c.Merge(map[string]any{key: value})
}

// Merge adds values to the context. Keys starting with an underscore are
// internal; setting one is a usage error and nothing is merged.
func (c *Context) Merge(values map[string]any) error {
	for k := range values {
		if strings.HasPrefix(k, "_") {
			return errors.New("E207").
				WithDetailf("%q starts with an underscore; such keys are reserved for internal use", k)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]any)
	}
	for k, v := range values {
		c.values[k] = v
	}
	return nil
}

// Values returns a copy of the values set by hooks.
func (c *Context) Values() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Keys returns the keys set by hooks, sorted.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fork returns a new context for the same URL carrying a copy of c's
// values. Internal fields other than the URL are not copied.
func (c *Context) Fork() *Context {
	n := NewContext(c.URLOriginal)
	n.Prerendering = c.Prerendering
	for k, v := range c.Values() {
		n.values[k] = v
	}
	return n
}

// MarshalClient serializes the context for the client: the keys listed in
// passToClient, the page id and, when set, is404.
//
//	{"pageContext":{"_pageId":"/pages/index","user":"ada"}}
func (c *Context) MarshalClient(passToClient []string) ([]byte, error) {
	out := map[string]any{"_pageId": c.PageID}
	for _, k := range passToClient {
		if v, ok := c.Get(k); ok {
			out[k] = v
		}
	}
	if c.Is404 != nil {
		out["is404"] = *c.Is404
	}

	data, err := json.Marshal(map[string]any{"pageContext": out})
	if err != nil {
		return nil, errors.New("E207").
			WithDetail("passToClient values must be serializable to JSON").
			Wrap(err)
	}
	return data, nil
}
