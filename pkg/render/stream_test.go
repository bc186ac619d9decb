package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/ssr/pkg/assets"
)

// flushRecorder counts Flush calls.
type flushRecorder struct {
	io.Writer
	flushes int
}

func (w *flushRecorder) Flush() { w.flushes++ }

// chunkReader returns one chunk per Read call.
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

// injectingReader collects markup handed to it and emits it before its
// first chunk.
type injectingReader struct {
	chunkReader
	injected []string
	started  bool
}

func (r *injectingReader) InjectToStream(html string) {
	r.injected = append(r.injected, html)
}

func (r *injectingReader) Read(p []byte) (int, error) {
	if !r.started {
		r.started = true
		pre := strings.Join(r.injected, "")
		if len(r.chunks) > 0 {
			r.chunks[0] = pre + r.chunks[0]
		}
	}
	return r.chunkReader.Read(p)
}

func streamTags() []assets.HTMLTag {
	return []assets.HTMLTag{
		{Position: assets.PositionHTMLBegin, HTML: `<link rel="stylesheet" href="/a.css">`},
		{Position: assets.PositionStream, HTML: `<link rel="modulepreload" href="/c.js">`},
		{Position: assets.PositionHTMLEnd, HTML: `<script src="/e.js"></script>`},
	}
}

func TestHTMLStreamWriteTo(t *testing.T) {
	src := &chunkReader{chunks: []string{"<p>one</p>", "<p>two</p>"}}
	tmpl := EscapeInject([]string{"<html><body>", "</body></html>"}, Stream(src))

	rendered, err := RenderDocument(context.Background(), tmpl, DocumentOptions{Tags: streamTags()})
	if err != nil {
		t.Fatal(err)
	}
	if !rendered.IsStream() {
		t.Fatal("expected a stream")
	}

	var buf bytes.Buffer
	fw := &flushRecorder{Writer: &buf}
	if _, err := rendered.Stream.WriteTo(fw); err != nil {
		t.Fatal(err)
	}

	want := `<html><head><link rel="stylesheet" href="/a.css"><link rel="modulepreload" href="/c.js"></head><body>` +
		`<p>one</p><p>two</p>` +
		`<script src="/e.js"></script></body></html>`
	if buf.String() != want {
		t.Errorf("got  %q\nwant %q", buf.String(), want)
	}
	// begin, two chunks, end
	if fw.flushes != 4 {
		t.Errorf("flushes = %d, want 4", fw.flushes)
	}
}

func TestHTMLStreamInjector(t *testing.T) {
	src := &injectingReader{chunkReader: chunkReader{chunks: []string{"<main>x</main>"}}}
	tmpl := EscapeInject([]string{"<html><head></head><body>", "</body></html>"}, src)

	rendered, err := RenderDocument(context.Background(), tmpl, DocumentOptions{Tags: streamTags()})
	if err != nil {
		t.Fatal(err)
	}
	html, err := rendered.Stream.ToString()
	if err != nil {
		t.Fatal(err)
	}

	want := `<html><head><link rel="stylesheet" href="/a.css"></head><body>` +
		`<link rel="modulepreload" href="/c.js"><main>x</main>` +
		`<script src="/e.js"></script></body></html>`
	if html != want {
		t.Errorf("got  %q\nwant %q", html, want)
	}
}

func TestHTMLStreamTagsExactlyOnce(t *testing.T) {
	tags := streamTags()
	for _, tag := range tags {
		tmpl := EscapeInject([]string{"<html><body>", "</body></html>"}, &chunkReader{chunks: []string{"a", "b", "c"}})
		rendered, err := RenderDocument(context.Background(), tmpl, DocumentOptions{Tags: tags})
		if err != nil {
			t.Fatal(err)
		}
		html, err := rendered.Stream.ToString()
		if err != nil {
			t.Fatal(err)
		}
		if n := strings.Count(html, tag.HTML); n != 1 {
			t.Errorf("tag %q injected %d times", tag.HTML, n)
		}
	}
}

func TestHTMLStreamLatePageContext(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	merged := map[string]any{}

	late := Go(context.Background(), func(ctx context.Context) (map[string]any, error) {
		<-release
		return map[string]any{"user": "ada"}, nil
	})
	tags := []assets.HTMLTag{{
		Position: assets.PositionHTMLEnd,
		Lazy: func() string {
			mu.Lock()
			defer mu.Unlock()
			return fmt.Sprintf("<script>%v</script>", merged["user"])
		},
	}}

	tmpl := EscapeInject([]string{"<html><body>", "</body></html>"}, &chunkReader{chunks: []string{"content"}})
	rendered, err := RenderDocument(context.Background(), tmpl, DocumentOptions{
		Tags: tags,
		Late: late,
		MergeLate: func(v map[string]any) error {
			mu.Lock()
			defer mu.Unlock()
			for k, val := range v {
				merged[k] = val
			}
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	r := rendered.Stream
	done := make(chan string)
	go func() {
		b, _ := io.ReadAll(r)
		done <- string(b)
	}()

	select {
	case <-done:
		t.Fatal("document completed before the late page context resolved")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	html := <-done
	if !strings.HasSuffix(html, "content<script>ada</script></body></html>") {
		t.Errorf("end should be rendered after the late page context merged, got %q", html)
	}
}

func TestHTMLStreamErrorCallback(t *testing.T) {
	boom := fmt.Errorf("upstream failed")
	var got error
	tmpl := EscapeInject([]string{"<body>", "</body>"}, &chunkReader{chunks: []string{"partial"}, err: boom})

	rendered, err := RenderDocument(context.Background(), tmpl, DocumentOptions{
		OnError: func(err error) { got = err },
	})
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	_, werr := rendered.Stream.WriteTo(w)
	if werr != boom {
		t.Errorf("WriteTo error = %v, want %v", werr, boom)
	}
	if got != boom {
		t.Errorf("OnError got %v, want %v", got, boom)
	}
	if !strings.Contains(w.Body.String(), "partial") {
		t.Errorf("bytes before the error should be committed, got %q", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "</body>") {
		t.Error("end should not be written after a stream error")
	}
	if !w.Flushed {
		t.Error("recorder should have been flushed")
	}
}

func TestRenderDocumentForceString(t *testing.T) {
	tmpl := EscapeInject([]string{"<html><body>", "</body></html>"}, &chunkReader{chunks: []string{"a", "b"}})
	rendered, err := RenderDocument(context.Background(), tmpl, DocumentOptions{ForceString: true, Tags: streamTags()})
	if err != nil {
		t.Fatal(err)
	}
	if rendered.IsStream() {
		t.Fatal("ForceString should drain the stream")
	}
	if !strings.Contains(rendered.HTML, "<body>ab<script") {
		t.Errorf("got %q", rendered.HTML)
	}
}

func TestRenderDocumentString(t *testing.T) {
	tests := []struct {
		name string
		doc  any
		want string
	}{
		{
			name: "template",
			doc:  EscapeInject([]string{"<html><body>", "</body></html>"}, "<x>"),
			want: `<html><head><link rel="stylesheet" href="/a.css"><link rel="modulepreload" href="/c.js"></head><body>&lt;x&gt;<script src="/e.js"></script></body></html>`,
		},
		{
			name: "safe string",
			doc:  DangerouslySkipEscape("<html><head><title>t</title></head><body></body></html>"),
			want: `<html><head><link rel="stylesheet" href="/a.css"><link rel="modulepreload" href="/c.js"><title>t</title></head><body><script src="/e.js"></script></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered, err := RenderDocument(context.Background(), tt.doc, DocumentOptions{Tags: streamTags()})
			if err != nil {
				t.Fatal(err)
			}
			if rendered.HTML != tt.want {
				t.Errorf("got  %q\nwant %q", rendered.HTML, tt.want)
			}
		})
	}
}

func TestRenderDocumentBareStreamUntouched(t *testing.T) {
	rendered, err := RenderDocument(context.Background(), strings.NewReader("<html>raw</html>"), DocumentOptions{
		Tags:        streamTags(),
		ForceString: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rendered.HTML != "<html>raw</html>" {
		t.Errorf("bare stream should pass through, got %q", rendered.HTML)
	}
}

func TestRenderDocumentRejectsString(t *testing.T) {
	_, err := RenderDocument(context.Background(), "<html></html>", DocumentOptions{RenderFile: "/pages/a.page.server"})
	if err == nil || !strings.Contains(err.Error(), "E204") {
		t.Errorf("error = %v, want E204", err)
	}
	if IsDocument("<html></html>") {
		t.Error("plain string is not a document")
	}
	if !IsDocument(DangerouslySkipEscape("x")) || !IsDocument(EscapeInject([]string{"x"})) || !IsDocument(strings.NewReader("")) {
		t.Error("safe strings, templates and streams are documents")
	}
}

func TestHTMLStreamClose(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewHTMLStream(pr, StreamOptions{})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := pw.Write([]byte("x")); err != io.ErrClosedPipe {
		t.Errorf("Write after Close = %v, want io.ErrClosedPipe", err)
	}

	if err := NewHTMLStream(strings.NewReader("x"), StreamOptions{}).Close(); err != nil {
		t.Errorf("Close of a plain reader = %v", err)
	}
}
