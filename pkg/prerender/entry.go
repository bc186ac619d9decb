package prerender

import (
	"strings"

	"github.com/vango-dev/ssr/internal/errors"
)

// Entry is a URL returned by a prerender() hook, optionally with the page
// context to render it with. When PageContext is set, the page's
// onBeforeRender() hook is skipped.
type Entry struct {
	URL         string
	PageContext map[string]any
}

// normalizeEntries converts the result of a prerender() hook: a URL, an
// Entry, a map with the keys url and pageContext, or a list of those.
func normalizeEntries(v any, file string) ([]Entry, error) {
	var items []any
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []Entry:
		for _, e := range v {
			items = append(items, e)
		}
	case []*Entry:
		for _, e := range v {
			items = append(items, e)
		}
	case []map[string]any:
		for _, m := range v {
			items = append(items, m)
		}
	case []any:
		items = v
	default:
		items = []any{v}
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		e, err := normalizeEntry(item, file)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func normalizeEntry(v any, file string) (Entry, error) {
	invalid := func(format string, args ...any) error {
		return errors.New("E210").
			WithSource(file).
			WithDetailf(format, args...)
	}

	var e Entry
	switch v := v.(type) {
	case string:
		e.URL = v
	case Entry:
		e = v
	case *Entry:
		if v == nil {
			return e, invalid("nil entry")
		}
		e = *v
	case map[string]any:
		for k := range v {
			if k != "url" && k != "pageContext" {
				return e, invalid("unexpected key %q", k)
			}
		}
		raw, ok := v["url"]
		if !ok {
			return e, invalid("url is missing")
		}
		url, ok := raw.(string)
		if !ok {
			return e, invalid("url should be a string, got %T", raw)
		}
		e.URL = url
		switch pc := v["pageContext"].(type) {
		case nil:
		case map[string]any:
			e.PageContext = pc
		default:
			return e, invalid("pageContext should be a map[string]any, got %T", pc)
		}
	default:
		return e, invalid("got %T", v)
	}

	if !strings.HasPrefix(e.URL, "/") {
		return e, invalid("the URL %q doesn't start with /", e.URL)
	}
	if hasDotDot(e.URL) {
		return e, invalid("the URL %q has a .. segment", e.URL)
	}
	return e, nil
}
