package assets

import (
	"strings"

	"golang.org/x/net/html"
)

// Partition splits tags into the ones injected with the beginning of the
// document and the ones injected with its end. Every tag lands in exactly
// one of the two slices.
func Partition(tags []HTMLTag) (begin, end []HTMLTag) {
	for _, t := range tags {
		switch t.Position {
		case PositionHTMLEnd:
			end = append(end, t)
		case PositionNone:
		default:
			begin = append(begin, t)
		}
	}
	return begin, end
}

// EnsureHead adds an empty <head> element when doc has none. It goes after
// the <html> opening tag, else after the doctype, else at the start.
func EnsureHead(doc string) string {
	var htmlEnd, doctypeEnd = -1, -1
	found := false
	scan(doc, func(tt html.TokenType, name string, start, end int) bool {
		switch {
		case tt == html.StartTagToken && name == "head":
			found = true
			return false
		case tt == html.StartTagToken && name == "html" && htmlEnd < 0:
			htmlEnd = end
		case tt == html.DoctypeToken && doctypeEnd < 0:
			doctypeEnd = end
		case tt == html.StartTagToken && name == "body":
			return false
		}
		return true
	})
	if found {
		return doc
	}

	at := 0
	switch {
	case htmlEnd >= 0:
		at = htmlEnd
	case doctypeEnd >= 0:
		at = doctypeEnd
	}
	return doc[:at] + "<head></head>" + doc[at:]
}

// InjectBegin inserts the begin tags right after the <head> opening tag.
// Stream tags go to toStream when it is non-nil.
func InjectBegin(doc string, tags []HTMLTag, toStream func(string)) string {
	var b strings.Builder
	for _, t := range tags {
		if t.Position == PositionStream && toStream != nil {
			toStream(t.String())
			continue
		}
		b.WriteString(t.String())
	}
	if b.Len() == 0 {
		return doc
	}

	at := -1
	scan(doc, func(tt html.TokenType, name string, start, end int) bool {
		if tt == html.StartTagToken && name == "head" {
			at = end
			return false
		}
		return true
	})
	if at < 0 {
		return b.String() + doc
	}
	return doc[:at] + b.String() + doc[at:]
}

// InjectEnd inserts the end tags before </body>, else before </html>, else
// at the end of doc.
func InjectEnd(doc string, tags []HTMLTag) string {
	var b strings.Builder
	for _, t := range tags {
		b.WriteString(t.String())
	}
	if b.Len() == 0 {
		return doc
	}

	bodyAt, htmlAt := -1, -1
	scan(doc, func(tt html.TokenType, name string, start, end int) bool {
		if tt == html.EndTagToken {
			switch name {
			case "body":
				bodyAt = start
			case "html":
				htmlAt = start
			}
		}
		return true
	})

	at := len(doc)
	switch {
	case bodyAt >= 0:
		at = bodyAt
	case htmlAt >= 0:
		at = htmlAt
	}
	return doc[:at] + b.String() + doc[at:]
}

// scan walks the tokens of doc, calling fn with the byte range of each.
// Markup inside comments and raw text elements is not reported as tags.
func scan(doc string, fn func(tt html.TokenType, name string, start, end int) bool) {
	z := html.NewTokenizer(strings.NewReader(doc))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a tokenizer error; either way nothing is left to scan.
			return
		}
		start := offset
		offset += len(z.Raw())

		var name string
		if tt == html.StartTagToken || tt == html.EndTagToken || tt == html.SelfClosingTagToken {
			n, _ := z.TagName()
			name = string(n)
		}
		if !fn(tt, name, start, offset) {
			return
		}
	}
}
