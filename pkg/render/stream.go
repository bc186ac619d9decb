package render

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/vango-dev/ssr/pkg/assets"
)

// StreamInjector is implemented by streams that can take markup and emit it
// together with their first flushed bytes. Stream-position tags are handed
// to it instead of being written ahead of the stream.
type StreamInjector interface {
	InjectToStream(html string)
}

// StreamOptions configures NewHTMLStream.
type StreamOptions struct {
	// Begin and End are the document parts around the stream.
	Begin []Part
	End   []Part

	// Assets are passed to AssetFunc parts.
	Assets []assets.PageAsset

	// BeginTags and EndTags are injected into the begin and end markup.
	BeginTags []assets.HTMLTag
	EndTags   []assets.HTMLTag

	// Inject enables head creation and tag injection. A stream returned
	// as the whole document is passed through untouched.
	Inject bool

	// Late is awaited after the stream ended and before End is written.
	Late *Deferred

	// MergeLate receives the resolved Late value.
	MergeLate func(map[string]any) error

	// OnError is called with errors raised after writing started.
	OnError func(error)

	// Context bounds the wait for Late. Defaults to context.Background().
	Context context.Context

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// HTMLStream writes begin parts, the bytes of the wrapped stream, then the
// end parts. It flushes after every chunk when the writer is an
// http.Flusher.
//
// An HTMLStream can be consumed once, with WriteTo or Read.
type HTMLStream struct {
	src  Stream
	opts StreamOptions

	pipeOnce sync.Once
	pipe     *io.PipeReader
}

// NewHTMLStream wraps src.
func NewHTMLStream(src Stream, opts StreamOptions) *HTMLStream {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "stream")
	}
	return &HTMLStream{src: src, opts: opts}
}

// WriteTo implements io.WriterTo.
func (s *HTMLStream) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	if begin := s.beginHTML(); begin != "" {
		if _, err := io.WriteString(cw, begin); err != nil {
			return cw.n, s.fail(err)
		}
		flush()
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := s.src.Read(buf)
		if n > 0 {
			if _, werr := cw.Write(buf[:n]); werr != nil {
				return cw.n, s.fail(werr)
			}
			flush()
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return cw.n, s.fail(err)
		}
	}
	if c, ok := s.src.(io.Closer); ok {
		c.Close()
	}

	end, err := s.endHTML()
	if err != nil {
		return cw.n, s.fail(err)
	}
	if end != "" {
		if _, err := io.WriteString(cw, end); err != nil {
			return cw.n, s.fail(err)
		}
		flush()
	}
	return cw.n, nil
}

// Read implements io.Reader by running WriteTo into a pipe.
func (s *HTMLStream) Read(p []byte) (int, error) {
	s.pipeOnce.Do(func() {
		pr, pw := io.Pipe()
		s.pipe = pr
		go func() {
			_, err := s.WriteTo(pw)
			pw.CloseWithError(err)
		}()
	})
	return s.pipe.Read(p)
}

// Close releases a stream that won't be consumed. The wrapped stream is
// closed when it is an io.Closer, which unblocks a producer writing to it.
func (s *HTMLStream) Close() error {
	if c, ok := s.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ToString consumes the stream and returns the whole document.
func (s *HTMLStream) ToString() (string, error) {
	var b strings.Builder
	if _, err := s.WriteTo(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *HTMLStream) beginHTML() string {
	doc := RenderParts(s.opts.Begin, s.opts.Assets)
	if !s.opts.Inject {
		return doc
	}
	var toStream func(string)
	if inj, ok := s.src.(StreamInjector); ok {
		toStream = inj.InjectToStream
	}
	doc = assets.EnsureHead(doc)
	return assets.InjectBegin(doc, s.opts.BeginTags, toStream)
}

func (s *HTMLStream) endHTML() (string, error) {
	if s.opts.Late != nil {
		v, err := s.opts.Late.Await(s.opts.Context)
		if err != nil {
			return "", err
		}
		if v != nil && s.opts.MergeLate != nil {
			if err := s.opts.MergeLate(v); err != nil {
				return "", err
			}
		}
	}
	doc := RenderParts(s.opts.End, s.opts.Assets)
	if !s.opts.Inject {
		return doc, nil
	}
	return assets.InjectEnd(doc, s.opts.EndTags), nil
}

// fail reports err. Bytes may already be committed to the client, so the
// error is logged and handed to OnError rather than rewriting the response.
func (s *HTMLStream) fail(err error) error {
	s.opts.Logger.Error("error while streaming", "error", err)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
