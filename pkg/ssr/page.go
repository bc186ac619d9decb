package ssr

import (
	"context"
	"strings"

	"github.com/vango-dev/ssr/pkg/page"
	"github.com/vango-dev/ssr/pkg/render"
)

const (
	contentTypeHTML = "text/html;charset=utf-8"
	contentTypeJSON = "application/json"

	// PageContextSuffix marks requests for the serialized page context of a
	// URL, made by the client router on navigation.
	PageContextSuffix = ".pageContext.json"
)

// Fallback documents used when there is no error page or when the error
// page itself fails.
const (
	Fallback404 = "<!DOCTYPE html><html><head><title>404 Page Not Found</title></head><body><p>404 Page Not Found</p></body></html>"
	Fallback500 = "<!DOCTYPE html><html><head><title>500 Internal Server Error</title></head><body><p>500 Internal Server Error</p></body></html>"
)

// PageContextInit is the initial page context of a request.
type PageContextInit struct {
	URLOriginal string
	Values      map[string]any
}

// HTTPResponse is the response for one request. Exactly one of Body and
// Stream is set.
type HTTPResponse struct {
	StatusCode  int
	ContentType string
	Body        string
	Stream      *render.HTMLStream

	// PageContext is the context that produced the response.
	PageContext *page.Context

	// ErrorWhileRendering is the error that led to an error response.
	ErrorWhileRendering error
}

// RenderPage renders the page matching init.URLOriginal. Routing misses
// render the error page with status 404; errors render it with status 500
// and ErrorWhileRendering set. Without an error page, a minimal fallback
// document is returned.
//
// RenderPage returns nil when the URL is outside BaseServer or when the
// render() hook returned no document.
func RenderPage(ctx context.Context, rc *RenderContext, init PageContextInit) *HTTPResponse {
	urlOriginal, ok := stripBase(init.URLOriginal, rc.Config.BaseServer)
	if !ok {
		return nil
	}

	urlOriginal, isPageContextRequest := pageContextURL(urlOriginal)
	pc, err := rc.NewPageContext(urlOriginal, init.Values)
	if err != nil {
		return rc.renderError(ctx, page.NewContext(urlOriginal), err, isPageContextRequest)
	}

	res, err := rc.Router.Route(ctx, pc)
	if err != nil {
		return rc.renderError(ctx, pc, err, isPageContextRequest)
	}
	if !res.Matched() {
		return rc.renderNotFound(ctx, pc, isPageContextRequest)
	}
	pc.PageID = res.PageID
	pc.RouteParams = res.RouteParams

	if isPageContextRequest {
		resp, err := rc.pageContextResponse(ctx, pc, 200)
		if err != nil {
			return rc.renderError(ctx, pc, err, true)
		}
		return resp
	}

	out, err := rc.RenderPageContext(ctx, pc, RenderOptions{})
	if err != nil {
		return rc.renderError(ctx, pc, err, false)
	}
	if out.Document == nil {
		return nil
	}
	return htmlResponse(200, out)
}

func (rc *RenderContext) renderNotFound(ctx context.Context, pc *page.Context, isPageContextRequest bool) *HTTPResponse {
	epc := pc.Fork()
	epc.SetIs404(true)
	return rc.renderErrorPage(ctx, epc, 404, isPageContextRequest)
}

func (rc *RenderContext) renderError(ctx context.Context, pc *page.Context, err error, isPageContextRequest bool) *HTTPResponse {
	rc.Logger.Error("render failed", "url", pc.URLOriginal, "page", pc.PageID, "error", err)
	epc := pc.Fork()
	epc.ErrorWhileRendering = err
	return rc.renderErrorPage(ctx, epc, 500, isPageContextRequest)
}

func (rc *RenderContext) renderErrorPage(ctx context.Context, epc *page.Context, status int, isPageContextRequest bool) *HTTPResponse {
	fallback := func() *HTTPResponse {
		body := Fallback500
		if status == 404 {
			body = Fallback404
		}
		return &HTTPResponse{
			StatusCode:          status,
			ContentType:         contentTypeHTML,
			Body:                body,
			PageContext:         epc,
			ErrorWhileRendering: epc.ErrorWhileRendering,
		}
	}

	epc.PageID = rc.Pages.ErrorPageID()
	if epc.PageID == "" {
		return fallback()
	}

	if isPageContextRequest {
		resp, err := rc.pageContextResponse(ctx, epc, status)
		if err != nil {
			rc.Logger.Error("serializing the error page context failed", "url", epc.URLOriginal, "error", err)
			return fallback()
		}
		return resp
	}

	out, err := rc.RenderPageContext(ctx, epc, RenderOptions{})
	if err != nil {
		rc.Logger.Error("rendering the error page failed", "url", epc.URLOriginal, "error", err)
		return fallback()
	}
	if out.Document == nil {
		return fallback()
	}
	return htmlResponse(status, out)
}

func (rc *RenderContext) pageContextResponse(ctx context.Context, pc *page.Context, status int) (*HTTPResponse, error) {
	p := rc.Pages.Page(pc.PageID)
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	if err := rc.ExecuteOnBeforeRender(ctx, p, pc); err != nil {
		if !isErrorContext(pc) {
			return nil, err
		}
		rc.Logger.Error("onBeforeRender() of the error page failed", "page", pc.PageID, "error", err)
	}
	data, err := rc.SerializePageContext(pc)
	if err != nil {
		return nil, err
	}
	return &HTTPResponse{
		StatusCode:          status,
		ContentType:         contentTypeJSON,
		Body:                string(data),
		PageContext:         pc,
		ErrorWhileRendering: pc.ErrorWhileRendering,
	}, nil
}

func htmlResponse(status int, out *PageRender) *HTTPResponse {
	return &HTTPResponse{
		StatusCode:          status,
		ContentType:         contentTypeHTML,
		Body:                out.Document.HTML,
		Stream:              out.Document.Stream,
		PageContext:         out.PageContext,
		ErrorWhileRendering: out.PageContext.ErrorWhileRendering,
	}
}

// stripBase removes the BaseServer prefix from a URL.
func stripBase(url, base string) (string, bool) {
	if base == "" || base == "/" {
		return url, true
	}
	prefix := strings.TrimSuffix(base, "/")
	if url == prefix {
		return "/", true
	}
	if !strings.HasPrefix(url, prefix+"/") && !strings.HasPrefix(url, prefix+"?") {
		return "", false
	}
	rest := strings.TrimPrefix(url, prefix)
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest, true
}

// pageContextURL maps /about/index.pageContext.json and
// /about.pageContext.json to /about.
func pageContextURL(url string) (string, bool) {
	path, query, hasQuery := strings.Cut(url, "?")
	if !strings.HasSuffix(path, PageContextSuffix) {
		return url, false
	}
	path = strings.TrimSuffix(path, PageContextSuffix)
	path = strings.TrimSuffix(path, "/index")
	if path == "" || path == "index" {
		path = "/"
	}
	if hasQuery {
		path += "?" + query
	}
	return path, true
}
