// Package errors provides the structured diagnostics used by the renderer and
// the prerender orchestrator.
//
// Diagnostics come in two kinds and the distinction is part of the contract:
//
//   - Usage errors: the integrator broke a contract (a render hook returned a
//     plain string, two streams were injected into one document, a prerender
//     hook returned a URL that matches no page, ...). They are fatal to the
//     current operation, and to the whole run when prerendering.
//   - Warnings: recoverable anomalies (an undefined template value, a slow
//     hook, a page that could not be prerendered). They are logged once per
//     distinct cause and execution continues.
//
// # Error Codes
//
// Each usage error has a code (e.g. "E204") mapping to a short message, a
// detailed explanation and a documentation URL:
//
//	err := errors.New("E204").
//	    WithSource("/pages/about/index.page.server").
//	    WithDetail("The render() hook returned a plain string")
//
//	fmt.Println(err.Format())
//	// ERROR E204: Render hook returned a plain string
//	//
//	//   /pages/about/index.page.server
//	//
//	//   The render() hook returned a plain string
//	//
//	//   Hint: Wrap the document with render.EscapeInject or render.DangerouslySkipEscape
//
// Use IsUsage to tell usage errors apart from application errors raised by
// hook code.
package errors
