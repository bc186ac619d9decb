package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
	DocURL     string
}

const docBase = "https://vango.dev/docs/ssr/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E120-E129)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Failed to load config",
		DocURL:   docBase + "E120",
	},
	"E121": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Suggestion: "Create ssr.json (or ssr.yaml) in the project root",
		DocURL:     docBase + "E121",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		DocURL:   docBase + "E122",
	},

	// ============================================
	// Runtime Errors (E130-E139)
	// ============================================

	"E130": {
		Category: CategoryRuntime,
		Message:  "Failed to write prerendered file",
		DocURL:   docBase + "E130",
	},
	"E131": {
		Category: CategoryRuntime,
		Message:  "Failed to load page file",
		DocURL:   docBase + "E131",
	},
	"E132": {
		Category: CategoryRuntime,
		Message:  "Failed to load client manifest",
		DocURL:   docBase + "E132",
	},

	// ============================================
	// Template Errors (E200-E202)
	// ============================================

	"E200": {
		Category:   CategoryUsage,
		Message:    "Malformed template",
		Suggestion: "EscapeInject takes one more literal than values: EscapeInject([]string{\"<p>\", \"</p>\"}, text)",
		DocURL:     docBase + "E200",
	},
	"E201": {
		Category:   CategoryUsage,
		Message:    "Invalid HTML variable",
		Suggestion: "Interpolate strings, render.SafeString, nested templates or a single stream",
		DocURL:     docBase + "E201",
	},
	"E202": {
		Category:   CategoryUsage,
		Message:    "Two streams injected into one document",
		Suggestion: "Inject only one stream per document",
		DocURL:     docBase + "E202",
	},

	// ============================================
	// Render Hook Errors (E203-E209)
	// ============================================

	"E203": {
		Category: CategoryUsage,
		Message:  "No server-side render() hook found",
		DocURL:   docBase + "E203",
	},
	"E204": {
		Category:   CategoryUsage,
		Message:    "Render hook returned a plain string",
		Suggestion: "Wrap the document with render.EscapeInject or render.DangerouslySkipEscape",
		DocURL:     docBase + "E204",
	},
	"E205": {
		Category:   CategoryUsage,
		Message:    "Invalid render hook result",
		Suggestion: "Return nil, a document, or ssr.RenderResult{DocumentHTML, PageContext, InjectFilter}",
		DocURL:     docBase + "E205",
	},
	"E206": {
		Category:   CategoryUsage,
		Message:    "Hook timed out",
		Suggestion: "Make sure the hook returns, or raise the hook timeout",
		DocURL:     docBase + "E206",
	},
	"E207": {
		Category: CategoryUsage,
		Message:  "Invalid pageContext provided by hook",
		DocURL:   docBase + "E207",
	},
	"E208": {
		Category:   CategoryUsage,
		Message:    "Invalid onBeforeRender() hook result",
		Suggestion: "Return nil or {pageContext: {...}}",
		DocURL:     docBase + "E208",
	},
	"E209": {
		Category: CategoryUsage,
		Message:  "Hook is not a function",
		DocURL:   docBase + "E209",
	},

	// ============================================
	// Prerender Errors (E210-E229)
	// ============================================

	"E210": {
		Category:   CategoryUsage,
		Message:    "Invalid prerender() hook result",
		Suggestion: "Return a URL, a list of URLs, or {url, pageContext} entries",
		DocURL:     docBase + "E210",
	},
	"E211": {
		Category: CategoryUsage,
		Message:  "Hook exported from a file type that doesn't allow it",
		DocURL:   docBase + "E211",
	},
	"E212": {
		Category:   CategoryUsage,
		Message:    "Invalid doNotPrerender export",
		Suggestion: "Export doNotPrerender as true or false from a .page or .page.server file",
		DocURL:     docBase + "E212",
	},
	"E213": {
		Category: CategoryUsage,
		Message:  "There can be only one onBeforePrerender() hook",
		DocURL:   docBase + "E213",
	},
	"E214": {
		Category:   CategoryUsage,
		Message:    "Invalid onBeforePrerender() hook result",
		Suggestion: "Return nil or {prerenderContext: {pageContexts}}",
		DocURL:     docBase + "E214",
	},
	"E215": {
		Category:   CategoryUsage,
		Message:    "Prerender URL doesn't match any page route",
		Suggestion: "Make sure the URLs returned by prerender() hooks match the route of a page",
		DocURL:     docBase + "E215",
	},
	"E216": {
		Category:   CategoryUsage,
		Message:    "Page is both excluded and claimed for prerendering",
		Suggestion: "Either don't set doNotPrerender or remove the URL from the prerender() hook",
		DocURL:     docBase + "E216",
	},
	"E217": {
		Category: CategoryUsage,
		Message:  "Cannot prerender page without HTML",
		DocURL:   docBase + "E217",
	},
	"E218": {
		Category: CategoryUsage,
		Message:  "Invalid route export",
		DocURL:   docBase + "E218",
	},
	"E219": {
		Category: CategoryUsage,
		Message:  "Invalid argument to DangerouslySkipEscape",
		DocURL:   docBase + "E219",
	},
	"E220": {
		Category: CategoryUsage,
		Message:  "Invalid page file",
		DocURL:   docBase + "E220",
	},
}
