// Package page models pages: the files they are composed of, the hooks those
// files export and the per-URL Context threaded through rendering.
//
// Files are registered programmatically. The file name determines the role:
//
//	/pages/about/index.page         rendered on server and client
//	/pages/about/index.page.server  server-only hooks (render, prerender, ...)
//	/pages/about/index.page.client  client-only code
//	/pages/about/index.page.route   route string or route function ("default")
//	/pages/_default/_default.page.server  applies to every page below /pages
//	/pages/_error/index.page        the error page
//
// A Manifest groups files into Pages. Page.Hook looks a hook up in the most
// specific file first, so a page's own .page.server overrides _default.
package page
