package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/vango-dev/ssr/pkg/page"
	"github.com/vango-dev/ssr/pkg/render"
)

type post struct {
	Title string
	Body  string
}

var posts = map[string]post{
	"hello-world":    {"Hello, world", "The first post of this blog."},
	"prerendering":   {"Prerendering", "Every post is rendered to a static file at build time."},
	"error-handling": {"Error handling", "Missing posts render the error page."},
}

func layout(title string, content any) *render.Template {
	return render.EscapeInject([]string{
		`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`,
		`</title></head><body><nav><a href="/">Home</a> <a href="/about">About</a></nav><main>`,
		`</main></body></html>`,
	}, title, content)
}

func heading(text string, body string) *render.Template {
	return render.EscapeInject([]string{"<h1>", "</h1><p>", "</p>"}, text, body)
}

func slugs() []string {
	out := make([]string, 0, len(posts))
	for slug := range posts {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

func pages() []*page.File {
	return []*page.File{
		page.NewFile("/pages/_default/_default.page.server", page.Exports{
			"passToClient": []string{"siteName"},
			"onBeforeRender": func(pc *page.Context) any {
				if _, ok := pc.Get("siteName"); ok {
					return nil
				}
				return map[string]any{"pageContext": map[string]any{"siteName": "SSR demo"}}
			},
		}),

		page.NewFile("/pages/index.page.server", page.Exports{
			"render": func() any {
				var links []any
				literals := []string{"<ul>"}
				for _, slug := range slugs() {
					links = append(links, "/blog/"+slug, posts[slug].Title)
					literals[len(literals)-1] += `<li><a href="`
					literals = append(literals, `">`, "</a></li>")
				}
				literals[len(literals)-1] += "</ul>"
				return layout("Home", render.EscapeInject(literals, links...))
			},
		}),

		page.NewFile("/pages/about.page.server", page.Exports{
			"render": func() any {
				return layout("About", heading("About", "A blog rendered on the server."))
			},
		}),

		page.NewFile("/pages/blog/@slug.page.server", page.Exports{
			"prerender": func() any {
				var urls []string
				for _, slug := range slugs() {
					urls = append(urls, "/blog/"+slug)
				}
				return urls
			},
			"onBeforeRender": func(ctx context.Context, pc *page.Context) (any, error) {
				p, ok := posts[pc.RouteParams["slug"]]
				if !ok {
					return nil, fmt.Errorf("no post %q", pc.RouteParams["slug"])
				}
				return map[string]any{"pageContext": map[string]any{"post": p}}, nil
			},
			"render": func(pc *page.Context) any {
				v, _ := pc.Get("post")
				p := v.(post)
				return layout(p.Title, heading(p.Title, p.Body))
			},
		}),

		page.NewFile("/pages/admin.page.server", page.Exports{
			"doNotPrerender": true,
			"render": func() any {
				return layout("Admin", heading("Admin", "Rendered on each request."))
			},
		}),

		page.NewFile("/pages/_error.page.server", page.Exports{
			"render": func(pc *page.Context) any {
				if pc.Is404 != nil && *pc.Is404 {
					return layout("Not found", heading("404", "This page could not be found."))
				}
				return layout("Error", heading("500", "Something went wrong."))
			},
		}),
	}
}
