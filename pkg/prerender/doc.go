// Package prerender renders pages to static files at build time.
//
// A run goes through these phases:
//
//  1. doNotPrerender exports are collected to exclude pages.
//  2. prerender() hooks of .page.server files are called. The URLs they
//     return are claimed, the first claim of a URL wins.
//  3. Pages with a route string without params are added.
//  4. The onBeforePrerender() hook of a _default file may replace the list.
//  5. Every page context is routed and rendered to a string.
//  6. 404.html is rendered with the error page.
//  7. The files are handed to the Sink.
//
// Hook calls, renders and writes share one Limiter, sized by the
// prerender.parallel option.
//
//	res, err := prerender.Run(ctx, prerender.Options{
//		Config: cfg,
//		Files:  files,
//	})
//
// Output paths follow the URL: /about is written to about/index.html, or
// to about.html with prerender.noExtraDir. When the client router is used,
// hydratable pages also get about/index.pageContext.json.
package prerender
