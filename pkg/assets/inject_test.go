package assets

import (
	"strings"
	"testing"
)

func testAssets() []PageAsset {
	return []PageAsset{
		{Src: "/index.css", AssetType: AssetStyle, MediaType: "text/css"},
		{Src: "/index.js", AssetType: AssetScript, MediaType: "text/javascript", IsEntry: true},
		{Src: "/chunk.js", AssetType: AssetScript, MediaType: "text/javascript"},
		{Src: "/inter.woff2", AssetType: AssetFont, MediaType: "font/woff2"},
		{Src: "/logo.png", AssetType: AssetImage, MediaType: "image/png"},
	}
}

func TestBuildTagsDefaultPositions(t *testing.T) {
	tags := BuildTags(testAssets(), TagOptions{})

	want := []struct {
		pos      Position
		contains string
	}{
		{PositionHTMLBegin, `<link rel="stylesheet" type="text/css" href="/index.css">`},
		{PositionStream, `<link rel="modulepreload" href="/chunk.js"`},
		{PositionStream, `<link rel="preload" href="/inter.woff2" as="font" type="font/woff2" crossorigin>`},
		{PositionHTMLEnd, `<script type="module" src="/index.js" async></script>`},
	}
	if len(tags) != len(want) {
		t.Fatalf("got %d tags, want %d: %+v", len(tags), len(want), tags)
	}
	for i, w := range want {
		if tags[i].Position != w.pos {
			t.Errorf("tag %d position = %s, want %s", i, tags[i].Position, w.pos)
		}
		if !strings.Contains(tags[i].String(), w.contains) {
			t.Errorf("tag %d = %q, want it to contain %q", i, tags[i].String(), w.contains)
		}
	}
}

func TestBuildTagsFilter(t *testing.T) {
	filter := func(item *InjectItem) bool {
		switch item.AssetType {
		case AssetFont:
			return false
		case AssetImage:
			item.Position = PositionHTMLBegin
		}
		return true
	}

	tags := BuildTags(testAssets(), TagOptions{Filter: filter})
	var all strings.Builder
	for _, tag := range tags {
		all.WriteString(tag.String())
	}
	if strings.Contains(all.String(), "inter.woff2") {
		t.Error("filtered font should not be injected")
	}
	if !strings.Contains(all.String(), `<link rel="preload" href="/logo.png" as="image" type="image/png">`) {
		t.Errorf("image enabled by filter should be preloaded, got %s", all.String())
	}
}

func TestBuildTagsPageContext(t *testing.T) {
	calls := 0
	tags := BuildTags(testAssets()[:2], TagOptions{
		PageContextJSON: func() string {
			calls++
			return `{"pageContext":{"_pageId":"/pages/index"}}`
		},
	})
	if calls != 0 {
		t.Error("page context should be serialized lazily")
	}

	_, end := Partition(tags)
	if len(end) != 2 {
		t.Fatalf("want page context and entry script at end, got %d tags", len(end))
	}
	if got := end[0].String(); !strings.HasPrefix(got, `<script id="ssr_pageContext" type="application/json">{"pageContext"`) {
		t.Errorf("first end tag = %q", got)
	}
	if !strings.Contains(end[1].String(), "/index.js") {
		t.Errorf("entry script should come after page context, got %q", end[1].String())
	}
}

func TestPartitionExactlyOnce(t *testing.T) {
	tags := BuildTags(testAssets(), TagOptions{})
	begin, end := Partition(tags)
	if len(begin)+len(end) != len(tags) {
		t.Errorf("partition lost or duplicated tags: %d + %d != %d", len(begin), len(end), len(tags))
	}
	for _, tag := range begin {
		if tag.Position == PositionHTMLEnd {
			t.Errorf("end tag in begin partition: %q", tag.String())
		}
	}
}

func TestEnsureHead(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"has head", "<html><head><title>x</title></head><body></body></html>", "<html><head><title>x</title></head><body></body></html>"},
		{"no head", `<html lang="en"><body>hi</body></html>`, `<html lang="en"><head></head><body>hi</body></html>`},
		{"doctype only", "<!DOCTYPE html><body>hi</body>", "<!DOCTYPE html><head></head><body>hi</body>"},
		{"fragment", "<div>hi</div>", "<head></head><div>hi</div>"},
		{"head in comment", "<html><!-- <head> --><body></body></html>", "<html><head></head><!-- <head> --><body></body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnsureHead(tt.in); got != tt.want {
				t.Errorf("EnsureHead(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInjectBegin(t *testing.T) {
	tags := []HTMLTag{
		{Position: PositionHTMLBegin, HTML: "<link a>"},
		{Position: PositionStream, HTML: "<link b>"},
	}
	doc := `<html><head class="x"><title>t</title></head>`

	got := InjectBegin(doc, tags, nil)
	if want := `<html><head class="x"><link a><link b><title>t</title></head>`; got != want {
		t.Errorf("InjectBegin() = %q, want %q", got, want)
	}

	var streamed []string
	got = InjectBegin(doc, tags, func(s string) { streamed = append(streamed, s) })
	if want := `<html><head class="x"><link a><title>t</title></head>`; got != want {
		t.Errorf("InjectBegin() with injector = %q, want %q", got, want)
	}
	if len(streamed) != 1 || streamed[0] != "<link b>" {
		t.Errorf("streamed = %v, want [<link b>]", streamed)
	}
}

func TestInjectEnd(t *testing.T) {
	tags := []HTMLTag{{Position: PositionHTMLEnd, HTML: "<script s></script>"}}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"before body", "<body>x</body></html>", "<body>x<script s></script></body></html>"},
		{"ignores body in script", `<body><script>"</body>"</script></body>`, `<body><script>"</body>"</script><script s></script></body>`},
		{"before html", "<div></div></html>", "<div></div><script s></script></html>"},
		{"append", "<div></div>", "<div></div><script s></script>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InjectEnd(tt.in, tags); got != tt.want {
				t.Errorf("InjectEnd(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := InjectEnd("<body></body>", nil); got != "<body></body>" {
		t.Errorf("no tags should leave doc unchanged, got %q", got)
	}
}
