package errors

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
	ansiBold   = "\033[1m"
	detailWrap = 72
)

// colorEnabled is false when NO_COLOR is set.
var colorEnabled = os.Getenv("NO_COLOR") == ""

// DisableColors turns off ANSI colors in Format and PrintError.
func DisableColors() { colorEnabled = false }

// EnableColors turns ANSI colors back on.
func EnableColors() { colorEnabled = true }

func paint(code, text string) string {
	if !colorEnabled || text == "" {
		return text
	}
	return code + text + ansiReset
}

// heading returns the first line of a formatted error, e.g.
// "Usage error E204: render() returned a plain string".
func (e *Error) heading() string {
	kind := "Error"
	switch e.Category {
	case CategoryUsage:
		kind = "Usage error"
	case CategoryConfig:
		kind = "Config error"
	case CategoryCLI:
		kind = "Command error"
	}
	if e.Code != "" {
		kind += " " + e.Code
	}
	return paint(ansiRed+ansiBold, kind+":") + " " + paint(ansiBold, e.Message)
}

// Format renders e for a terminal: heading, source file, wrapped detail,
// cause chain, hint and documentation link.
func (e *Error) Format() string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString("  ")
		b.WriteString(s)
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(e.heading())
	b.WriteString("\n\n")

	if e.Source != "" {
		line(paint(ansiGray, "in ") + paint(ansiCyan, e.Source))
		b.WriteByte('\n')
	}

	if e.Detail != "" {
		for _, l := range wrapText(e.Detail, detailWrap) {
			line(l)
		}
		b.WriteByte('\n')
	}

	for cause := e.Wrapped; cause != nil; cause = Unwrap(cause) {
		msg := cause.Error()
		if inner, ok := cause.(*Error); ok {
			msg = inner.FormatCompact()
		}
		line(paint(ansiGray, "caused by: ") + msg)
		if _, ok := cause.(*Error); ok {
			break
		}
	}
	if e.Wrapped != nil {
		b.WriteByte('\n')
	}

	if e.Suggestion != "" {
		line(paint(ansiCyan, "hint: ") + e.Suggestion)
	}
	if e.DocURL != "" {
		line(paint(ansiGray, "see ") + paint(ansiBlue, e.DocURL))
	}
	return b.String()
}

// FormatCompact renders e on one line, as "source: CODE: message (detail)".
func (e *Error) FormatCompact() string {
	parts := make([]string, 0, 3)
	if e.Source != "" {
		parts = append(parts, e.Source)
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	parts = append(parts, e.Message)

	s := strings.Join(parts, ": ")
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	return s
}

// wrapText splits text into lines of at most width bytes, breaking on
// whitespace. Words longer than width get a line of their own.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := []string{words[0]}
	for _, w := range words[1:] {
		last := &lines[len(lines)-1]
		if len(*last)+1+len(w) > width {
			lines = append(lines, w)
			continue
		}
		*last += " " + w
	}
	return lines
}

// PrintError writes err to w, formatted with Format when it is an *Error.
func PrintError(w io.Writer, err error) {
	var e *Error
	if As(err, &e) {
		fmt.Fprint(w, e.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", paint(ansiRed+ansiBold, "Error:"), err.Error())
}
