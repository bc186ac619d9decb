package render

import (
	"fmt"
	"strings"

	"github.com/vango-dev/ssr/internal/errors"
)

// escapeHTML escapes text for safe inclusion in HTML content.
// Only & < > " ' are replaced; the result is safe in text and in quoted
// attribute values alike. Other bytes, including invalid UTF-8, are copied
// as they are.
func escapeHTML(s string) string {
	if !strings.ContainsAny(s, `&<>"'`) {
		return s
	}

	var buf strings.Builder
	buf.Grow(len(s) + 16)

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&#39;")
		default:
			buf.WriteByte(c)
		}
	}

	return buf.String()
}

// EscapeHTML escapes the five HTML special characters of s.
func EscapeHTML(s string) string {
	return escapeHTML(s)
}

// SafeString is markup that is inserted into documents verbatim.
type SafeString string

// DangerouslySkipEscape marks s as trusted markup. The caller is
// responsible for s not containing untrusted input.
func DangerouslySkipEscape(s string) SafeString {
	return SafeString(s)
}

// SkipEscape is DangerouslySkipEscape for values of unknown type. A
// SafeString is returned unchanged; anything but a string fails.
func SkipEscape(v any) (SafeString, error) {
	switch s := v.(type) {
	case SafeString:
		return s, nil
	case string:
		return SafeString(s), nil
	case *string:
		if s != nil {
			return SafeString(*s), nil
		}
	}

	err := errors.New("E219").
		WithDetailf("Argument should be a string but got %s", describe(v))
	if awaitable(v) {
		err = err.WithSuggestion("Resolve the value before passing it, e.g. call the function or receive from the channel")
	}
	return "", err
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
