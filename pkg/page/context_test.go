package page

import (
	"errors"
	"strings"
	"sync"
	"testing"

	ssrerrors "github.com/vango-dev/ssr/internal/errors"
)

func TestContextMerge(t *testing.T) {
	pc := NewContext("/products/42?ref=home#top")

	if err := pc.Merge(map[string]any{"product": "lamp", "price": 12}); err != nil {
		t.Fatal(err)
	}
	if v, _ := pc.Get("product"); v != "lamp" {
		t.Errorf("product = %v", v)
	}
	if v, _ := pc.Get("urlOriginal"); v != "/products/42?ref=home#top" {
		t.Errorf("urlOriginal = %v", v)
	}
	if got := pc.URLPathname(); got != "/products/42" {
		t.Errorf("URLPathname() = %q", got)
	}
	if got := strings.Join(pc.Keys(), ","); got != "price,product" {
		t.Errorf("Keys() = %s", got)
	}
}

func TestContextMergeRejectsInternalKeys(t *testing.T) {
	pc := NewContext("/")
	err := pc.Merge(map[string]any{"ok": 1, "_pageId": "/evil"})
	var e *ssrerrors.Error
	if !errors.As(err, &e) || e.Code != "E207" {
		t.Fatalf("error = %v, want E207", err)
	}
	if _, ok := pc.Get("ok"); ok {
		t.Error("nothing should be merged when a key is rejected")
	}
}

func TestContextConcurrentMerge(t *testing.T) {
	pc := NewContext("/")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pc.Set(string(rune('a'+i%26)), i)
			pc.Get("a")
		}(i)
	}
	wg.Wait()
	if len(pc.Keys()) != 26 {
		t.Errorf("got %d keys, want 26", len(pc.Keys()))
	}
}

func TestMarshalClient(t *testing.T) {
	pc := NewContext("/about")
	pc.PageID = "/pages/about"
	pc.Merge(map[string]any{"title": "<About>", "secret": "s3cr3t"})

	data, err := pc.MarshalClient([]string{"title", "urlOriginal", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	want := `{"pageContext":{"_pageId":"/pages/about","title":"\u003cAbout\u003e","urlOriginal":"/about"}}`
	if got != want {
		t.Errorf("MarshalClient() = %s\nwant %s", got, want)
	}

	pc.SetIs404(true)
	data, _ = pc.MarshalClient(nil)
	if !strings.Contains(string(data), `"is404":true`) {
		t.Errorf("is404 should be serialized, got %s", data)
	}
}

func TestMarshalClientUnserializable(t *testing.T) {
	pc := NewContext("/")
	pc.Set("fn", func() {})
	_, err := pc.MarshalClient([]string{"fn"})
	if !ssrerrors.IsUsage(err) {
		t.Errorf("error = %v, want usage error", err)
	}
}

func TestFork(t *testing.T) {
	pc := NewContext("/a")
	pc.Prerendering = true
	pc.PageID = "/pages/a"
	pc.Set("k", "v")

	f := pc.Fork()
	if f.URLOriginal != "/a" || !f.Prerendering || f.PageID != "" {
		t.Errorf("Fork() = %+v", f)
	}
	if v, _ := f.Get("k"); v != "v" {
		t.Error("values should be copied")
	}
	f.Set("k", "w")
	if v, _ := pc.Get("k"); v != "v" {
		t.Error("fork should not share values")
	}
}
