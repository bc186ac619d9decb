package prerender

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/page"
)

// Artifact is one prerendered file.
type Artifact struct {
	// Path is relative to the output directory, slash separated, e.g.
	// "about/index.html".
	Path    string
	Content []byte

	// URL is the URL the file was rendered for.
	URL string

	// PageContext is the context the page was rendered with.
	PageContext *page.Context
}

// Sink receives prerendered files.
type Sink interface {
	Write(ctx context.Context, a Artifact) error
}

// FSSink writes files below Dir.
type FSSink struct {
	Dir string
}

// Write implements Sink.
func (s *FSSink) Write(_ context.Context, a Artifact) error {
	p := filepath.Join(s.Dir, filepath.FromSlash(a.Path))
	if rel, err := filepath.Rel(filepath.Clean(s.Dir), p); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.New("E130").WithSource(p).WithDetailf("%s is outside of %s", a.Path, s.Dir)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.New("E130").WithSource(p).Wrap(err)
	}
	if err := os.WriteFile(p, a.Content, 0644); err != nil {
		return errors.New("E130").WithSource(p).Wrap(err)
	}
	return nil
}

// CallbackSink hands every file to a callback instead of writing it. The
// callback gets a copy of the page context with PrerenderResult set; the
// file path is joined to Dir.
type CallbackSink struct {
	Dir string
	Fn  func(ctx context.Context, pc *page.Context) error
}

// Write implements Sink.
func (s *CallbackSink) Write(ctx context.Context, a Artifact) error {
	pc := copyContext(a.PageContext)
	pc.PrerenderResult = &page.PrerenderResult{
		FilePath:    path.Join(filepath.ToSlash(s.Dir), a.Path),
		FileContent: string(a.Content),
	}
	return s.Fn(ctx, pc)
}

// copyContext copies pc including the fields Fork leaves out.
func copyContext(pc *page.Context) *page.Context {
	c := pc.Fork()
	c.PageID = pc.PageID
	c.RouteParams = pc.RouteParams
	c.Is404 = pc.Is404
	c.ErrorWhileRendering = pc.ErrorWhileRendering
	c.PrerenderHookFile = pc.PrerenderHookFile
	c.ProvidedByPrerenderHook = pc.ProvidedByPrerenderHook
	return c
}

// URLToFile maps a URL to the path of its HTML file:
//
//	/          -> index.html
//	/about/    -> about/index.html
//	/about     -> about/index.html, or about.html with noExtraDir
func URLToFile(url, ext string, noExtraDir bool) string {
	url = trimQuery(url)
	if url == "/" || url == "" {
		return "index" + ext
	}
	rel := strings.TrimPrefix(url, "/")
	if strings.HasSuffix(rel, "/") {
		return rel + "index" + ext
	}
	if noExtraDir {
		return rel + ext
	}
	return rel + "/index" + ext
}

// hasDotDot reports whether the path of url has a ".." segment.
func hasDotDot(url string) bool {
	for _, seg := range strings.Split(trimQuery(url), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// PageContextFile maps a URL to the path of its serialized page context.
// It is the path the client requests on navigation.
func PageContextFile(url string) string {
	url = strings.TrimSuffix(trimQuery(url), "/")
	if url == "" {
		return "index.pageContext.json"
	}
	return strings.TrimPrefix(url, "/") + "/index.pageContext.json"
}

func trimQuery(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}
