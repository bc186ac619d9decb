package render

import (
	"fmt"
	"io"
	"reflect"

	"github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/assets"
)

// Stream is a document body produced incrementally.
type Stream = io.Reader

// UndefinedValue is the type of Undefined.
type UndefinedValue struct{}

// Undefined marks a value that was never set. It renders as empty text and
// logs a warning, unlike nil which renders as empty text silently.
var Undefined = UndefinedValue{}

// NodeKind discriminates the variants of Node.
type NodeKind int

const (
	// KindEscapedText is untrusted text, stored escaped.
	KindEscapedText NodeKind = iota
	// KindRawText is trusted markup inserted verbatim.
	KindRawText
	// KindStream is the document's stream boundary.
	KindStream
	// KindTemplate is a nested template, flattened into its parent.
	KindTemplate
)

func (k NodeKind) String() string {
	switch k {
	case KindEscapedText:
		return "escaped-text"
	case KindRawText:
		return "raw-text"
	case KindStream:
		return "stream"
	case KindTemplate:
		return "template"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Node is one classified template value.
type Node struct {
	Kind NodeKind

	// Part holds the markup of KindEscapedText and KindRawText.
	Part Part

	// Stream is set for KindStream.
	Stream Stream

	// Template is set for KindTemplate.
	Template *Template
}

// Template is a document built from trusted literals interleaved with
// values. Create one with EscapeInject.
type Template struct {
	literals []string
	values   []any
	err      error
}

// EscapeInject builds a template from literals and the values between them.
// literals must have exactly one more element than values:
//
//	render.EscapeInject([]string{"<h1>", "</h1><p>", "</p>"}, title, body)
//
// Strings are escaped. SafeString values are inserted verbatim, templates
// are nested and one Stream may mark where the document streams.
func EscapeInject(literals []string, values ...any) *Template {
	t := &Template{literals: literals, values: values}
	if len(literals) != len(values)+1 {
		t.err = errors.New("E200").
			WithDetailf("got %d literals for %d values", len(literals), len(values))
	}
	return t
}

// Flattened is a template reduced to parts. Without a stream all parts are
// in Begin; with one, Begin precedes the stream and End follows it.
type Flattened struct {
	Begin  []Part
	Stream Stream
	End    []Part
}

// IsStream reports whether the document contains a stream.
func (f *Flattened) IsStream() bool {
	return f.Stream != nil
}

// FlattenOptions configures Flatten.
type FlattenOptions struct {
	// RenderFile is the file of the render hook, used in diagnostics.
	RenderFile string

	// Warner receives warnings about undefined values.
	Warner *errors.Warner
}

// Flatten resolves t and its nested templates into parts.
func Flatten(t *Template, opts FlattenOptions) (*Flattened, error) {
	f := &flattener{opts: opts}
	if err := f.walk(t); err != nil {
		return nil, err
	}
	return &Flattened{Begin: f.begin, Stream: f.stream, End: f.end}, nil
}

type flattener struct {
	opts   FlattenOptions
	begin  []Part
	end    []Part
	stream Stream
}

func (f *flattener) add(p Part) {
	if f.stream == nil {
		f.begin = append(f.begin, p)
	} else {
		f.end = append(f.end, p)
	}
}

func (f *flattener) walk(t *Template) error {
	if t == nil {
		return nil
	}
	if t.err != nil {
		if e, ok := t.err.(*errors.Error); ok && e.Source == "" {
			e.WithSource(f.opts.RenderFile)
		}
		return t.err
	}

	for i, v := range t.values {
		f.add(Literal(t.literals[i]))

		if _, ok := v.(UndefinedValue); ok || isNilStringPtr(v) {
			f.opts.Warner.Warn("", fmt.Sprintf("The %s HTML variable is undefined, see render() hook of %s", ordinal(i), f.opts.RenderFile))
			continue
		}

		node, err := f.classify(i, v)
		if err != nil {
			return err
		}

		switch node.Kind {
		case KindEscapedText, KindRawText:
			f.add(node.Part)
		case KindTemplate:
			if err := f.walk(node.Template); err != nil {
				return err
			}
		case KindStream:
			if f.stream != nil {
				return errors.New("E202").
					WithSource(f.opts.RenderFile).
					WithDetail("Injecting two streams in the EscapeInject template of the render() hook of " + f.opts.RenderFile)
			}
			f.stream = node.Stream
		}
	}

	f.add(Literal(t.literals[len(t.literals)-1]))
	return nil
}

// classify turns the value at position i into a Node.
func (f *flattener) classify(i int, v any) (Node, error) {
	switch x := v.(type) {
	case nil:
		return Node{Kind: KindRawText}, nil
	case SafeString:
		return Node{Kind: KindRawText, Part: Literal(string(x))}, nil
	case AssetFunc:
		return Node{Kind: KindRawText, Part: PartFunc(x)}, nil
	case func([]assets.PageAsset) string:
		return Node{Kind: KindRawText, Part: PartFunc(x)}, nil
	case string:
		return Node{Kind: KindEscapedText, Part: Literal(escapeHTML(x))}, nil
	case *string:
		return Node{Kind: KindEscapedText, Part: Literal(escapeHTML(*x))}, nil
	case *Template:
		return Node{Kind: KindTemplate, Template: x}, nil
	case Stream:
		return Node{Kind: KindStream, Stream: x}, nil
	}

	err := errors.New("E201").
		WithSource(f.opts.RenderFile).
		WithDetailf("The %s HTML variable is a %s, see render() hook of %s", ordinal(i), describe(v), f.opts.RenderFile)
	if awaitable(v) {
		err = err.WithSuggestion("Did you forget to resolve it? Call the function or receive from the channel before interpolating")
	}
	return Node{}, err
}

func isNilStringPtr(v any) bool {
	p, ok := v.(*string)
	return ok && p == nil
}

func awaitable(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func ordinal(i int) string {
	switch i {
	case 0:
		return "1st"
	case 1:
		return "2nd"
	case 2:
		return "3rd"
	}
	return fmt.Sprintf("%d-th", i+1)
}
