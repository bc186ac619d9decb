package assets

import (
	"mime"
	"path"
	"strings"
)

// Resolver provides asset path resolution.
// It combines manifest lookup with the configured assets base.
type Resolver interface {
	// Asset resolves a source asset path to its full URL path.
	Asset(source string) string
}

// manifestResolver wraps a Manifest to implement Resolver.
type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver creates a Resolver from a Manifest with an optional base.
//
// The base is joined to all resolved paths; it may be a path ("/assets/")
// or a full URL ("https://cdn.example.com/").
func NewResolver(m *Manifest, base string) Resolver {
	return &manifestResolver{
		manifest: m,
		prefix:   base,
	}
}

func (r *manifestResolver) Asset(source string) string {
	return joinBase(r.prefix, r.manifest.Resolve(source))
}

// passthrough returns assets unchanged apart from the base.
type passthrough struct {
	prefix string
}

// NewPassthroughResolver creates a resolver that skips fingerprint lookup.
// Use it when no client build ran.
func NewPassthroughResolver(base string) Resolver {
	return &passthrough{prefix: base}
}

func (p *passthrough) Asset(source string) string {
	return joinBase(p.prefix, source)
}

// joinBase joins base and p with exactly one slash. Absolute URLs are kept.
func joinBase(base, p string) string {
	if strings.Contains(p, "://") || strings.HasPrefix(p, "//") {
		return p
	}
	if base == "" {
		return p
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
}

// ResolvePageAssets returns the resolved assets of a page in injection
// order: stylesheets, entry, imports, other assets. A page missing from the
// manifest has no assets.
func ResolvePageAssets(m *Manifest, r Resolver, pageID string) []PageAsset {
	if m == nil {
		return nil
	}
	entry, ok := m.Page(pageID)
	if !ok {
		return nil
	}
	if r == nil {
		r = NewPassthroughResolver("")
	}

	seen := make(map[string]bool)
	var out []PageAsset
	add := func(source string, isEntry bool) {
		src := r.Asset(source)
		if seen[src] {
			return
		}
		seen[src] = true
		t, media := inferType(src)
		out = append(out, PageAsset{Src: src, AssetType: t, MediaType: media, IsEntry: isEntry})
	}

	for _, s := range entry.CSS {
		add(s, false)
	}
	if entry.Entry != "" {
		add(entry.Entry, true)
	}
	for _, s := range entry.Imports {
		add(s, false)
	}
	for _, s := range entry.Assets {
		add(s, false)
	}
	return out
}

func inferType(src string) (AssetType, string) {
	ext := strings.ToLower(path.Ext(strings.SplitN(src, "?", 2)[0]))
	switch ext {
	case ".js", ".mjs", ".jsx", ".ts", ".tsx":
		return AssetScript, "text/javascript"
	case ".css":
		return AssetStyle, "text/css"
	case ".woff", ".woff2", ".ttf", ".otf", ".eot":
		return AssetFont, "font/" + strings.TrimPrefix(ext, ".")
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif", ".ico":
		return AssetImage, mime.TypeByExtension(ext)
	}
	return AssetOther, mime.TypeByExtension(ext)
}
