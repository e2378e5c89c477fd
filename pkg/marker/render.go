package marker

import (
	"html"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/aretw0/memovault/pkg/core"
)

// SegmentType tags a rendered segment.
type SegmentType int

const (
	SegmentText SegmentType = iota
	SegmentMarker
	SegmentBroken
)

func (t SegmentType) String() string {
	switch t {
	case SegmentMarker:
		return "marker"
	case SegmentBroken:
		return "broken"
	}
	return "text"
}

// Segment is one piece of rendered content.
// Raw always holds the exact source text of the segment.
type Segment struct {
	Type  SegmentType
	Raw   string
	Kind  core.MediaKind
	Tag   string
	Index int    // resolved position in the attachment list, -1 when broken
	Label string // short display label of a resolved marker
}

// Lookup resolves a tag of the given kind to a list index.
type Lookup func(kind core.MediaKind, tag string) (index int, ok bool)

// Render splits content into text, resolved marker and broken marker
// segments. Unresolved markers are kept as broken segments; nothing is
// removed from the text.
func Render(content string, lookup Lookup) []Segment {
	tokens := Parse(content)
	segments := make([]Segment, 0, 2*len(tokens)+1)

	last := 0
	for _, t := range tokens {
		if t.Offset > last {
			segments = append(segments, Segment{Type: SegmentText, Raw: content[last:t.Offset], Index: -1})
		}

		seg := Segment{Type: SegmentBroken, Raw: content[t.Offset:t.End], Kind: t.Kind, Tag: t.Tag, Index: -1}
		if lookup != nil {
			if idx, ok := lookup(t.Kind, t.Tag); ok {
				seg.Type = SegmentMarker
				seg.Index = idx
				seg.Label = DisplayLabel(t.Tag, idx)
			}
		}
		segments = append(segments, seg)
		last = t.End
	}
	if last < len(content) {
		segments = append(segments, Segment{Type: SegmentText, Raw: content[last:], Index: -1})
	}

	return segments
}

// Text serializes segments back to the canonical content string.
func Text(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Type == SegmentText {
			b.WriteString(s.Raw)
			continue
		}
		b.WriteString(Format(s.Kind, s.Tag))
	}
	return b.String()
}

// RenderHTML projects segments onto the editable DOM form understood by
// Serialize.
func RenderHTML(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		switch s.Type {
		case SegmentText:
			b.WriteString(strings.ReplaceAll(html.EscapeString(s.Raw), "\n", "<br>"))
		case SegmentMarker:
			b.WriteString(`<span class="attachment-marker" data-type="`)
			b.WriteString(string(s.Kind))
			b.WriteString(`" data-name="`)
			b.WriteString(html.EscapeString(s.Tag))
			b.WriteString(`" data-index="`)
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteString(`">`)
			b.WriteString(Icon(s.Kind))
			b.WriteString(html.EscapeString(s.Label))
			b.WriteString(`</span>`)
		case SegmentBroken:
			b.WriteString(`<span class="broken-marker" data-type="`)
			b.WriteString(string(s.Kind))
			b.WriteString(`" data-name="`)
			b.WriteString(html.EscapeString(s.Tag))
			b.WriteString(`">`)
			b.WriteString(html.EscapeString(s.Raw))
			b.WriteString(`</span>`)
		}
	}
	return b.String()
}

// Label width thresholds; wide (CJK) runes count as two columns.
const (
	fullLabelWidth      = 12
	truncatedLabelWidth = 20
	truncateTo          = 10
)

// DisplayLabel picks a compact label for a marker: the tag without its
// extension when short, a truncated form when medium, the 1-based index
// otherwise.
func DisplayLabel(tag string, index int) string {
	name := strings.TrimSuffix(tag, filepath.Ext(tag))
	if name == "" {
		name = tag
	}

	switch width := runewidth.StringWidth(name); {
	case width <= fullLabelWidth:
		return name
	case width <= truncatedLabelWidth:
		return runewidth.Truncate(name, truncateTo, "") + "..."
	default:
		return strconv.Itoa(index + 1)
	}
}
