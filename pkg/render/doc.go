// Package render assembles HTML documents from templates and streams them.
//
// Documents are built with EscapeInject from trusted literals and untrusted
// values:
//
//	doc := render.EscapeInject([]string{
//	    "<!DOCTYPE html><html><head><title>", "</title></head><body>", "</body></html>",
//	}, title, body)
//
// Values are handled as follows:
//
//   - string: escaped (& < > " ')
//   - SafeString: inserted verbatim (see DangerouslySkipEscape)
//   - *Template: flattened into the parent
//   - Stream (io.Reader): marks where the document streams; one per document
//   - nil: empty; Undefined or a nil *string: empty with a warning
//
// Anything else is a usage error naming the position of the value.
//
// # Streaming
//
// A document holding a stream renders to an HTMLStream. The parts before
// the stream are written first, then the stream's bytes as they arrive,
// then the parts after it once the stream ended and any Deferred page
// context resolved:
//
//	rendered, err := render.RenderDocument(ctx, doc, opts)
//	if rendered.IsStream() {
//	    rendered.Stream.WriteTo(w) // flushes after each chunk
//	}
//
// Errors after the first byte was written are logged and passed to
// DocumentOptions.OnError.
//
// # Asset tags
//
// Tags from the assets package are injected into the begin and end of the
// document exactly once, whether the document is a string or a stream.
package render
