package render

import (
	"context"
	"log/slog"

	"github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/assets"
)

// DocumentOptions configures RenderDocument.
type DocumentOptions struct {
	// RenderFile is the file of the render hook, used in diagnostics.
	RenderFile string

	// Assets are the resolved assets of the page.
	Assets []assets.PageAsset

	// Tags are the asset tags to inject, computed once per page.
	Tags []assets.HTMLTag

	// Late and MergeLate carry page context resolved at the end of the
	// document.
	Late      *Deferred
	MergeLate func(map[string]any) error

	// ForceString drains streams so the result is always complete HTML.
	ForceString bool

	OnError func(error)
	Logger  *slog.Logger
	Warner  *errors.Warner
}

// Rendered is a rendered document: complete HTML, or a stream.
type Rendered struct {
	HTML   string
	Stream *HTMLStream
}

// IsStream reports whether the document is streamed.
func (r *Rendered) IsStream() bool {
	return r.Stream != nil
}

// IsDocument reports whether v can be returned as a document.
func IsDocument(v any) bool {
	switch v.(type) {
	case SafeString, *Template:
		return true
	case string:
		return false
	case Stream:
		return true
	}
	return false
}

// RenderDocument turns a document value into HTML, injecting asset tags.
func RenderDocument(ctx context.Context, doc any, opts DocumentOptions) (*Rendered, error) {
	beginTags, endTags := assets.Partition(opts.Tags)
	streamOpts := StreamOptions{
		Assets:    opts.Assets,
		BeginTags: beginTags,
		EndTags:   endTags,
		Late:      opts.Late,
		MergeLate: opts.MergeLate,
		OnError:   opts.OnError,
		Context:   ctx,
		Logger:    opts.Logger,
	}

	var stream *HTMLStream
	switch d := doc.(type) {
	case SafeString:
		return renderString(ctx, []Part{Literal(string(d))}, streamOpts)
	case *Template:
		flat, err := Flatten(d, FlattenOptions{RenderFile: opts.RenderFile, Warner: opts.Warner})
		if err != nil {
			return nil, err
		}
		if !flat.IsStream() {
			return renderString(ctx, flat.Begin, streamOpts)
		}
		streamOpts.Begin = flat.Begin
		streamOpts.End = flat.End
		streamOpts.Inject = true
		stream = NewHTMLStream(flat.Stream, streamOpts)
	case string:
		return nil, errors.New("E204").WithSource(opts.RenderFile)
	case Stream:
		stream = NewHTMLStream(d, streamOpts)
	default:
		return nil, errors.New("E205").
			WithSource(opts.RenderFile).
			WithDetailf("documentHtml is a %s", describe(doc))
	}

	if opts.ForceString {
		html, err := stream.ToString()
		if err != nil {
			return nil, err
		}
		return &Rendered{HTML: html}, nil
	}
	return &Rendered{Stream: stream}, nil
}

func renderString(ctx context.Context, parts []Part, opts StreamOptions) (*Rendered, error) {
	if opts.Late != nil {
		v, err := opts.Late.Await(ctx)
		if err != nil {
			return nil, err
		}
		if v != nil && opts.MergeLate != nil {
			if err := opts.MergeLate(v); err != nil {
				return nil, err
			}
		}
	}

	html := RenderParts(parts, opts.Assets)
	html = assets.EnsureHead(html)
	html = assets.InjectBegin(html, opts.BeginTags, nil)
	html = assets.InjectEnd(html, opts.EndTags)
	return &Rendered{HTML: html}, nil
}
