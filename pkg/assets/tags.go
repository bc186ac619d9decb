package assets

import (
	"strings"

	"golang.org/x/net/html"
)

// AssetType classifies a page asset.
type AssetType string

const (
	AssetScript AssetType = "script"
	AssetStyle  AssetType = "style"
	AssetFont   AssetType = "font"
	AssetImage  AssetType = "image"
	AssetOther  AssetType = ""
)

// PageAsset is one resolved client asset of a page.
type PageAsset struct {
	Src       string
	AssetType AssetType
	MediaType string
	IsEntry   bool
}

// Position is where a tag goes in the document.
type Position int

const (
	// PositionNone drops the tag.
	PositionNone Position = iota
	// PositionHTMLBegin inserts right after the <head> opening tag.
	PositionHTMLBegin
	// PositionHTMLEnd inserts before </body>.
	PositionHTMLEnd
	// PositionStream hands the tag to the stream's injector when the
	// document is streamed by a framework that supports it, otherwise it
	// behaves like PositionHTMLBegin.
	PositionStream
)

func (p Position) String() string {
	switch p {
	case PositionHTMLBegin:
		return "HTML_BEGIN"
	case PositionHTMLEnd:
		return "HTML_END"
	case PositionStream:
		return "STREAM"
	}
	return "NONE"
}

// InjectItem is handed to a Filter for every asset of the page. The filter
// may change Position.
type InjectItem struct {
	PageAsset
	Position Position
}

// Filter decides which assets are injected. Returning false drops the item.
type Filter func(item *InjectItem) bool

// HTMLTag is one piece of markup to inject.
type HTMLTag struct {
	Position Position

	// HTML is the markup. Ignored when Lazy is set.
	HTML string

	// Lazy renders the markup at injection time, for content that is only
	// known once the document completed (the serialized page context).
	Lazy func() string
}

// String returns the markup of the tag.
func (t HTMLTag) String() string {
	if t.Lazy != nil {
		return t.Lazy()
	}
	return t.HTML
}

// TagOptions configures BuildTags.
type TagOptions struct {
	// Filter is the caller's inject filter. Nil keeps the default positions.
	Filter Filter

	// PageContextJSON serializes the page context for the client. Nil for
	// HTML-only pages.
	PageContextJSON func() string
}

// DefaultPosition returns where an asset is injected when no filter
// overrides it.
func DefaultPosition(a PageAsset) Position {
	switch a.AssetType {
	case AssetStyle:
		return PositionHTMLBegin
	case AssetScript:
		if a.IsEntry {
			return PositionHTMLEnd
		}
		return PositionStream
	case AssetFont:
		return PositionStream
	}
	return PositionNone
}

// BuildTags computes the tags for a page's assets.
func BuildTags(pageAssets []PageAsset, opts TagOptions) []HTMLTag {
	var tags []HTMLTag
	var scripts []HTMLTag

	for _, a := range pageAssets {
		item := &InjectItem{PageAsset: a, Position: DefaultPosition(a)}
		if opts.Filter != nil && !opts.Filter(item) {
			continue
		}
		if item.Position == PositionNone {
			continue
		}
		tag := HTMLTag{Position: item.Position, HTML: assetTag(item.PageAsset)}
		if a.AssetType == AssetScript && a.IsEntry {
			scripts = append(scripts, tag)
			continue
		}
		tags = append(tags, tag)
	}

	if opts.PageContextJSON != nil {
		serialize := opts.PageContextJSON
		tags = append(tags, HTMLTag{
			Position: PositionHTMLEnd,
			Lazy: func() string {
				return `<script id="ssr_pageContext" type="application/json">` + serialize() + `</script>`
			},
		})
	}
	return append(tags, scripts...)
}

func assetTag(a PageAsset) string {
	src := html.EscapeString(a.Src)
	switch a.AssetType {
	case AssetStyle:
		return `<link rel="stylesheet" type="text/css" href="` + src + `">`
	case AssetScript:
		if a.IsEntry {
			return `<script type="module" src="` + src + `" async></script>`
		}
		return `<link rel="modulepreload" href="` + src + `" as="script" type="text/javascript">`
	}

	var b strings.Builder
	b.WriteString(`<link rel="preload" href="`)
	b.WriteString(src)
	b.WriteString(`"`)
	if as := preloadAs(a.AssetType); as != "" {
		b.WriteString(` as="` + as + `"`)
	}
	if a.MediaType != "" {
		b.WriteString(` type="` + html.EscapeString(a.MediaType) + `"`)
	}
	if a.AssetType == AssetFont {
		b.WriteString(" crossorigin")
	}
	b.WriteString(">")
	return b.String()
}

func preloadAs(t AssetType) string {
	switch t {
	case AssetFont:
		return "font"
	case AssetImage:
		return "image"
	}
	return ""
}
