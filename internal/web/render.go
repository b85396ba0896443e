package web

import (
	"bytes"
	"html/template"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DateFormat is how timestamps appear in the viewer
const DateFormat = "02/01/2006 15:04"

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// contentPolicy allows the document structure generated test cases use and
// nothing else. Scripts, styles, images and event handlers are dropped.
var contentPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6", "p",
		"ul", "ol", "li", "strong", "em", "code", "pre", "blockquote",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	return p
}()

// renderMarkdown converts stored test-case text to sanitized HTML
func renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		// Fall back to escaped plain text
		return template.HTML("<pre>" + template.HTMLEscapeString(content) + "</pre>")
	}
	return template.HTML(contentPolicy.SanitizeBytes(buf.Bytes()))
}

// formatTime renders t with DateFormat, or "" for the zero time
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(DateFormat)
}
