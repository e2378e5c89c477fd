package marker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/aretw0/memovault/pkg/core"
)

var markerClass = regexp.MustCompile(`^(attachment-marker|broken-marker)( [\w-]+)*$`)

// editorPolicy keeps the structure Serialize understands and drops the rest.
// Disallowed elements are unwrapped so their text survives.
var editorPolicy = newEditorPolicy()

func newEditorPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("span", "br", "div", "p")
	p.AllowAttrs("class").Matching(markerClass).OnElements("span")
	p.AllowDataAttributes()
	return p
}

// Serialize converts the editable DOM form back into canonical content.
// Text nodes are kept verbatim, marker spans become marker literals, <br>
// becomes a newline, and div/p blocks are separated by newlines. Any other
// element contributes its text.
func Serialize(fragment string) (string, error) {
	clean := editorPolicy.Sanitize(fragment)

	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(clean), ctx)
	if err != nil {
		return "", fmt.Errorf("parse editor fragment: %w", err)
	}

	var b strings.Builder
	writeNodes(&b, nodes)
	return b.String(), nil
}

func writeNodes(b *strings.Builder, nodes []*html.Node) {
	for i, n := range nodes {
		writeNode(b, n, i == len(nodes)-1)
	}
}

func writeNode(b *strings.Builder, n *html.Node, last bool) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Br:
		b.WriteByte('\n')
	case atom.Span:
		if kind, tag, ok := markerAttrs(n); ok {
			b.WriteString(Format(kind, tag))
			return
		}
		writeNodes(b, children(n))
	case atom.Div, atom.P:
		writeNodes(b, children(n))
		if !last {
			b.WriteByte('\n')
		}
	default:
		b.WriteString(textContent(n))
	}
}

func markerAttrs(n *html.Node) (core.MediaKind, string, bool) {
	var class, typ, name string
	for _, a := range n.Attr {
		switch a.Key {
		case "class":
			class = a.Val
		case "data-type":
			typ = a.Val
		case "data-name":
			name = a.Val
		}
	}
	if !markerClass.MatchString(class) || !ValidTag(name) {
		return "", "", false
	}
	kind := core.MediaKind(typ)
	if !kind.Valid() {
		return "", "", false
	}
	return kind, name, true
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
