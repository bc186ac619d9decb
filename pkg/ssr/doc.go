// Package ssr renders pages at request time.
//
// A RenderContext is built once from the page files, the configuration and
// the client build manifest:
//
//	rc, err := ssr.NewRenderContext(ctx, ssr.Options{Config: cfg, Files: files})
//	http.ListenAndServe(":3000", ssr.NewRouter(rc))
//
// For each request the URL is routed to a page, the page's onBeforeRender()
// and render() hooks run, and the document they return is rendered with the
// page's assets injected. Hooks run with a bounded wait: a warning is logged
// after SlowHookWarning and the call fails after the configured hookTimeout.
//
// Routing misses and errors render the _error page, or a minimal fallback
// document when the app has none.
package ssr
