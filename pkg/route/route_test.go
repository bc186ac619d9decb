package route

import (
	"context"
	"errors"
	"strings"
	"testing"

	ssrerrors "github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/page"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", ""},
		{"", ""},
		{"/a/b", "a,b"},
		{"//a///b/", "a,b"},
	}
	for _, tt := range tests {
		if got := strings.Join(splitPath(tt.in), ","); got != tt.want {
			t.Errorf("splitPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNodeMatch(t *testing.T) {
	root := &node{}
	add := func(s string) *Route {
		r := &Route{PageID: s, String: s, params: paramsOf(s)}
		root.insert(splitPath(s), r)
		return r
	}
	add("/users/list")
	add("/users/:id")
	add("/users/@id/posts")
	add("/files/*")
	add("/")

	tests := []struct {
		path   string
		want   string
		values string
	}{
		{"/", "/", ""},
		{"/users/list", "/users/list", ""},
		{"/users/42", "/users/:id", "42"},
		{"/users/42/posts", "/users/@id/posts", "42"},
		{"/users/list/posts", "/users/@id/posts", "list"},
		{"/files", "/files/*", ""},
		{"/files/a/b.txt", "/files/*", "a/b.txt"},
		{"/nope", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, values := root.match(splitPath(tt.path), nil)
			got := ""
			if r != nil {
				got = r.String
			}
			if got != tt.want {
				t.Fatalf("match(%q) = %q, want %q", tt.path, got, tt.want)
			}
			if strings.Join(values, ",") != tt.values {
				t.Errorf("values = %v, want %q", values, tt.values)
			}
		})
	}
}

func TestFilesystemRoute(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"/pages/index", "/"},
		{"/pages/about/index", "/about"},
		{"/pages/about", "/about"},
		{"/src/pages/product/@id", "/product/@id"},
		{"/renderer/landing", "/renderer/landing"},
	}
	for _, tt := range tests {
		if got := FilesystemRoute(tt.id); got != tt.want {
			t.Errorf("FilesystemRoute(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestStaticURL(t *testing.T) {
	tests := []struct {
		route string
		url   string
		ok    bool
	}{
		{"/", "/", true},
		{"/about", "/about", true},
		{"/about/", "/about", true},
		{"/product/@id", "", false},
		{"/product/:id", "", false},
		{"/docs/*", "", false},
	}
	for _, tt := range tests {
		url, ok := StaticURL(tt.route)
		if url != tt.url || ok != tt.ok {
			t.Errorf("StaticURL(%q) = %q, %v, want %q, %v", tt.route, url, ok, tt.url, tt.ok)
		}
	}
}

func newTable(t *testing.T, files ...*page.File) *Table {
	t.Helper()
	m, err := page.NewManifest(files)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := NewTable(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func route(t *testing.T, tbl *Table, url string) *Result {
	t.Helper()
	res, err := tbl.Route(context.Background(), page.NewContext(url))
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestTableRoute(t *testing.T) {
	tbl := newTable(t,
		page.NewFile("/pages/index.page", nil),
		page.NewFile("/pages/about/index.page", nil),
		page.NewFile("/pages/product.page", nil),
		page.NewFile("/pages/product.page.route", page.Exports{"default": "/product/@id"}),
		page.NewFile("/pages/product/new.page", nil),
		page.NewFile("/pages/admin.page", nil),
		page.NewFile("/pages/admin.page.route", page.Exports{
			"default": func(pc *page.Context) bool { return strings.HasPrefix(pc.URLPathname(), "/admin") },
		}),
		page.NewFile("/pages/_error.page", nil),
	)

	tests := []struct {
		url    string
		pageID string
		params map[string]string
	}{
		{"/", "/pages/index", nil},
		{"/about?x=1", "/pages/about/index", nil},
		{"/product/42", "/pages/product", map[string]string{"id": "42"}},
		{"/product/new", "/pages/product/new", nil},
		{"/admin/users", "/pages/admin", nil},
		{"/_error", "", nil},
		{"/missing", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			res := route(t, tbl, tt.url)
			if res.PageID != tt.pageID {
				t.Fatalf("PageID = %q, want %q", res.PageID, tt.pageID)
			}
			if res.Matched() != (tt.pageID != "") {
				t.Error("Matched() mismatch")
			}
			for k, v := range tt.params {
				if res.RouteParams[k] != v {
					t.Errorf("RouteParams[%s] = %q, want %q", k, res.RouteParams[k], v)
				}
			}
			if res.ProvidedByHook {
				t.Error("ProvidedByHook should be false without onBeforeRoute()")
			}
		})
	}
}

func TestTableRoutes(t *testing.T) {
	tbl := newTable(t,
		page.NewFile("/pages/index.page", nil),
		page.NewFile("/pages/b.page", nil),
		page.NewFile("/pages/b.page.route", page.Exports{"default": "/b/:slug"}),
		page.NewFile("/pages/_error.page", nil),
	)

	var got []string
	for _, r := range tbl.Routes() {
		kind := "route-file"
		if r.FileSystem() {
			kind = "fs"
		}
		if r.IsStatic() {
			kind += ",static"
		}
		got = append(got, r.String+" "+kind)
	}
	want := "/b/:slug route-file|/ fs,static"
	if strings.Join(got, "|") != want {
		t.Errorf("Routes() = %v, want %s", got, want)
	}
}

func TestExplicitRouteWinsOverFilesystem(t *testing.T) {
	tbl := newTable(t,
		page.NewFile("/pages/about.page", nil),
		page.NewFile("/pages/z.page", nil),
		page.NewFile("/pages/z.page.route", page.Exports{"default": "/about"}),
	)
	if res := route(t, tbl, "/about"); res.PageID != "/pages/z" {
		t.Errorf("PageID = %q, want /pages/z", res.PageID)
	}
}

func TestInvalidRouteExport(t *testing.T) {
	tests := []struct {
		name    string
		exports page.Exports
	}{
		{"missing default", page.Exports{}},
		{"relative", page.Exports{"default": "about"}},
		{"wrong type", page.Exports{"default": 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := page.NewManifest([]*page.File{
				page.NewFile("/pages/a.page", nil),
				page.NewFile("/pages/a.page.route", tt.exports),
			})
			if err != nil {
				t.Fatal(err)
			}
			_, err = NewTable(context.Background(), m)
			var e *ssrerrors.Error
			if !errors.As(err, &e) || e.Code != "E218" || e.Source != "/pages/a.page.route" {
				t.Errorf("NewTable() error = %v, want E218 from the route file", err)
			}
		})
	}
}

func TestOnBeforeRoute(t *testing.T) {
	hook := func(pc *page.Context) (any, error) {
		switch pc.URLPathname() {
		case "/legacy":
			return &Result{PageID: "/pages/about"}, nil
		case "/hidden":
			return map[string]any{"pageContext": map[string]any{"_pageId": nil}}, nil
		case "/tagged":
			return map[string]any{"pageContext": map[string]any{"tag": "t"}}, nil
		case "/bad":
			return "nope", nil
		}
		return nil, nil
	}
	tbl := newTable(t,
		page.NewFile("/pages/_default/_default.page.server", page.Exports{"onBeforeRoute": hook}),
		page.NewFile("/pages/about.page", nil),
		page.NewFile("/pages/hidden.page", nil),
		page.NewFile("/pages/tagged.page", nil),
	)
	if !tbl.HasBeforeRoute() {
		t.Fatal("onBeforeRoute() not discovered")
	}

	res := route(t, tbl, "/legacy")
	if res.PageID != "/pages/about" || !res.ProvidedByHook {
		t.Errorf("/legacy = %+v", res)
	}

	res = route(t, tbl, "/hidden")
	if res.Matched() || !res.ProvidedByHook {
		t.Errorf("/hidden = %+v, want unmatched and provided by hook", res)
	}

	pc := page.NewContext("/tagged")
	res, err := tbl.Route(context.Background(), pc)
	if err != nil {
		t.Fatal(err)
	}
	if res.PageID != "/pages/tagged" || res.ProvidedByHook {
		t.Errorf("/tagged = %+v, want normal routing", res)
	}
	if v, _ := pc.Get("tag"); v != "t" {
		t.Errorf("tag = %v, want merged into page context", v)
	}

	_, err = tbl.Route(context.Background(), page.NewContext("/bad"))
	if !ssrerrors.IsUsage(err) {
		t.Errorf("error = %v, want usage error", err)
	}
}
