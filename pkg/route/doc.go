// Package route maps URLs to pages.
//
// A page is routed by the default export of its .page.route file, either a
// route string or a route function, or by its path when it has no route
// file:
//
//	/pages/about/index.page          -> /about
//	/pages/product/@id.page          -> /product/@id
//	/pages/docs.page.route  "/docs/*"
//
// Route strings support params (":id" or "@id") and a trailing catch-all
// ("*" or "*rest"). Static segments take precedence over params, params over
// catch-alls, and explicit route strings over filesystem routes.
package route
