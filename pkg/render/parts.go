package render

import (
	"strings"

	"github.com/vango-dev/ssr/pkg/assets"
)

// AssetFunc renders markup from the page's resolved assets. It runs when the
// document is written, after the assets are known.
type AssetFunc func(pageAssets []assets.PageAsset) string

// Part is one piece of a flattened document: a literal, or an AssetFunc.
type Part struct {
	literal string
	fn      AssetFunc
}

// Literal returns a part holding s.
func Literal(s string) Part {
	return Part{literal: s}
}

// PartFunc returns a part rendered by fn.
func PartFunc(fn AssetFunc) Part {
	return Part{fn: fn}
}

// Render returns the markup of the part.
func (p Part) Render(pageAssets []assets.PageAsset) string {
	if p.fn != nil {
		return p.fn(pageAssets)
	}
	return p.literal
}

// RenderParts concatenates the markup of parts.
func RenderParts(parts []Part, pageAssets []assets.PageAsset) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Render(pageAssets))
	}
	return b.String()
}
