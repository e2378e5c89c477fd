// Package render exports notes as standalone HTML.
//
// Note content is treated as markdown. Resolved image markers become inline
// images backed by their payload, resolved file markers become download
// links and broken markers are struck through.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/marker"
	"github.com/aretw0/memovault/pkg/registry"
)

// Renderer converts notes to HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New creates a Renderer.
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	policy.AllowURLSchemes("http", "https", "mailto", "data")
	policy.AllowAttrs("download").OnElements("a")
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("span", "a", "img")

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithUnsafe()),
		),
		policy: policy,
	}
}

// Markdown rewrites the markers of a note into markdown.
func (r *Renderer) Markdown(note *core.Note) string {
	var b strings.Builder
	for _, seg := range marker.Render(note.Content, registry.Lookup(note)) {
		switch seg.Type {
		case marker.SegmentText:
			b.WriteString(seg.Raw)
		case marker.SegmentBroken:
			b.WriteString("~~")
			b.WriteString(escape(seg.Raw))
			b.WriteString("~~")
		case marker.SegmentMarker:
			a := note.Attachments(seg.Kind)[seg.Index]
			if seg.Kind == core.MediaImage {
				fmt.Fprintf(&b, "![%s](<%s>)", escape(seg.Tag), destination(a.Payload))
			} else {
				fmt.Fprintf(&b, `<a class="attachment" href="%s" download="%s">%s %s</a>`,
					template.HTMLEscapeString(a.Payload), template.HTMLEscapeString(seg.Tag),
					marker.FileIcon, template.HTMLEscapeString(seg.Tag))
			}
		}
	}
	return b.String()
}

// Note renders one note as an HTML article.
func (r *Renderer) Note(note core.Note) (string, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(r.Markdown(&note)), &body); err != nil {
		return "", fmt.Errorf("render note %s: %w", note.ID, err)
	}

	var b strings.Builder
	b.WriteString("<article>\n<h1>")
	b.WriteString(template.HTMLEscapeString(titleOf(note)))
	b.WriteString("</h1>\n")
	if note.DisplayDate != "" {
		b.WriteString(`<p class="date">`)
		b.WriteString(template.HTMLEscapeString(note.DisplayDate))
		b.WriteString("</p>\n")
	}
	b.WriteString(body.String())
	b.WriteString("</article>\n")
	return r.policy.Sanitize(b.String()), nil
}

// Document writes a complete HTML page holding every note.
func (r *Renderer) Document(w io.Writer, title string, notes []core.Note) error {
	articles := make([]template.HTML, 0, len(notes))
	for _, n := range notes {
		s, err := r.Note(n)
		if err != nil {
			return err
		}
		// Already sanitized by Note.
		articles = append(articles, template.HTML(s))
	}
	return page.Execute(w, struct {
		Title    string
		Articles []template.HTML
	}{title, articles})
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{range .Articles}}{{.}}{{end}}</body>
</html>
`))

func titleOf(n core.Note) string {
	if strings.TrimSpace(n.Title) == "" {
		return core.UntitledNote
	}
	return n.Title
}

var markdownPunct = strings.NewReplacer(
	`\`, `\\`, `[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`,
	"`", "\\`", `<`, `\<`, `>`, `\>`, `~`, `\~`, `!`, `\!`,
)

func escape(s string) string { return markdownPunct.Replace(s) }

// destinationUnsafe percent-encodes what may not appear inside a <...> link
// destination.
var destinationUnsafe = strings.NewReplacer(
	"<", "%3C",
	">", "%3E",
	"\\", "%5C",
	"\n", "%0A",
	"\r", "%0D",
)

func destination(payload string) string { return destinationUnsafe.Replace(payload) }
