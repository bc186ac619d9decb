package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	ssrerrors "github.com/vango-dev/ssr/internal/errors"
)

func TestFileType(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"/pages/index.page", TypePage},
		{"/pages/index.page.go", TypePage},
		{"/pages/index.page.server", TypeServer},
		{"/pages/index.page.server.go", TypeServer},
		{"/pages/index.page.client", TypeClient},
		{"/pages/index.page.route", TypeRoute},
		{"/pages/index.css", TypeCSS},
		{"/pages/index.go", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NewFile(tt.path, nil).Type; got != tt.want {
				t.Errorf("Type = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilePageID(t *testing.T) {
	tests := []struct {
		path      string
		id        string
		isDefault bool
		isError   bool
	}{
		{"/pages/about/index.page.server", "/pages/about/index", false, false},
		{"/pages/_default/_default.page.server", "/pages/_default/_default", true, false},
		{"/pages/_error.page", "/pages/_error", false, true},
		{"/pages/index.css", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := NewFile(tt.path, nil)
			if f.PageID() != tt.id {
				t.Errorf("PageID() = %q, want %q", f.PageID(), tt.id)
			}
			if f.IsDefault() != tt.isDefault {
				t.Errorf("IsDefault() = %v", f.IsDefault())
			}
			if f.IsError() != tt.isError {
				t.Errorf("IsError() = %v", f.IsError())
			}
		})
	}
}

func TestFileLoadOnce(t *testing.T) {
	var calls atomic.Int32
	f := NewLazyFile("/pages/index.page.server", []string{"render"}, func(context.Context) (Exports, error) {
		calls.Add(1)
		return Exports{"render": func() any { return nil }}, nil
	})

	if f.Loaded() {
		t.Fatal("file should not be loaded yet")
	}
	if !f.HasExport("render") {
		t.Error("HasExport should not require loading")
	}
	for i := 0; i < 3; i++ {
		if err := f.Load(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("load ran %d times, want 1", calls.Load())
	}
	if _, ok := f.Export("render"); !ok {
		t.Error("render export missing")
	}
}

func TestFileLoadError(t *testing.T) {
	f := NewLazyFile("/pages/index.page.server", nil, func(context.Context) (Exports, error) {
		return nil, fmt.Errorf("syntax error")
	})
	err := f.Load(context.Background())
	var e *ssrerrors.Error
	if !errors.As(err, &e) || e.Code != "E131" || e.Source != "/pages/index.page.server" {
		t.Errorf("Load error = %v, want E131 attributed to the file", err)
	}
}

func testManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := NewManifest([]*File{
		NewFile("/pages/_default/_default.page.server", Exports{"render": "root-render", "passToClient": []string{"user"}}),
		NewFile("/pages/_default/_default.page.client", Exports{"render": "client-render"}),
		NewFile("/pages/admin/_default.page.server", Exports{"render": "admin-render", "onBeforeRender": "admin-obr"}),
		NewFile("/pages/admin/users.page", Exports{"passToClient": []string{"users", "user"}}),
		NewFile("/pages/admin/users.page.server", Exports{"onBeforeRender": "users-obr"}),
		NewFile("/pages/index.page", Exports{"render": "index-render"}),
		NewFile("/pages/index.page.route", Exports{"default": "/"}),
		NewFile("/pages/_error.page", Exports{}),
		NewFile("/pages/index.css", nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Page("/pages/admin/users").Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Page("/pages/index").Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestManifestComposition(t *testing.T) {
	m := testManifest(t)

	if got := strings.Join(m.PageIDs(), ","); got != "/pages/_error,/pages/admin/users,/pages/index" {
		t.Errorf("PageIDs() = %s", got)
	}
	if m.ErrorPageID() != "/pages/_error" {
		t.Errorf("ErrorPageID() = %q", m.ErrorPageID())
	}

	users := m.Page("/pages/admin/users")
	var paths []string
	for _, f := range users.Files() {
		paths = append(paths, f.FilePath)
	}
	want := []string{
		"/pages/admin/users.page.server",
		"/pages/admin/users.page",
		"/pages/admin/_default.page.server",
		"/pages/_default/_default.page.server",
		"/pages/_default/_default.page.client",
	}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("Files() = %v\nwant %v", paths, want)
	}
}

func TestPageHookMostSpecific(t *testing.T) {
	m := testManifest(t)
	users := m.Page("/pages/admin/users")

	tests := []struct {
		hook     string
		wantVal  string
		wantFile string
	}{
		{"onBeforeRender", "users-obr", "/pages/admin/users.page.server"},
		{"render", "admin-render", "/pages/admin/_default.page.server"},
	}
	for _, tt := range tests {
		t.Run(tt.hook, func(t *testing.T) {
			ref, ok := users.Hook(tt.hook)
			if !ok {
				t.Fatal("hook not found")
			}
			if ref.Value != tt.wantVal || ref.File.FilePath != tt.wantFile {
				t.Errorf("Hook = %v from %s, want %v from %s", ref.Value, ref.File.FilePath, tt.wantVal, tt.wantFile)
			}
		})
	}

	index := m.Page("/pages/index")
	if ref, _ := index.Hook("render"); ref.Value != "index-render" {
		t.Errorf("index render = %v", ref.Value)
	}
	if !index.HasHook("render") || index.HasHook("prerender") {
		t.Error("HasHook mismatch")
	}
	if index.RouteFile() == nil {
		t.Error("index should have a route file")
	}
}

func TestPageHookIgnoresClientFiles(t *testing.T) {
	m, err := NewManifest([]*File{
		NewFile("/pages/a.page.client", Exports{"render": "client"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	p := m.Page("/pages/a")
	p.Load(context.Background())
	if _, ok := p.Hook("render"); ok {
		t.Error("client files should not provide server hooks")
	}
}

func TestPassToClientUnion(t *testing.T) {
	users := testManifest(t).Page("/pages/admin/users")
	if got := strings.Join(users.PassToClient(), ","); got != "users,user" {
		t.Errorf("PassToClient() = %s, want users,user", got)
	}
}

func TestManifestRejectsInvalidFiles(t *testing.T) {
	for _, p := range []string{"/pages/index.go", "pages/index.page"} {
		_, err := NewManifest([]*File{NewFile(p, nil)})
		var e *ssrerrors.Error
		if !errors.As(err, &e) || e.Code != "E220" {
			t.Errorf("NewManifest(%s) error = %v, want E220", p, err)
		}
	}
}

func TestAsHook(t *testing.T) {
	pc := NewContext("/x")
	shapes := []any{
		func(ctx context.Context, pc *Context) (any, error) { return pc.URLOriginal, nil },
		func(pc *Context) (any, error) { return pc.URLOriginal, nil },
		func(pc *Context) any { return pc.URLOriginal },
		func(ctx context.Context) (any, error) { return "/x", nil },
		func() (any, error) { return "/x", nil },
		func() any { return "/x" },
	}
	for i, s := range shapes {
		fn, ok := AsHook(s)
		if !ok {
			t.Errorf("shape %d not accepted", i)
			continue
		}
		v, err := fn(context.Background(), pc)
		if err != nil || v != "/x" {
			t.Errorf("shape %d returned %v, %v", i, v, err)
		}
	}

	ref := &HookRef{Name: "render", File: NewFile("/pages/a.page.server", nil), Value: "not a func"}
	_, err := ref.Func()
	var e *ssrerrors.Error
	if !errors.As(err, &e) || e.Code != "E209" || e.Source != "/pages/a.page.server" {
		t.Errorf("Func() error = %v, want E209", err)
	}
}
