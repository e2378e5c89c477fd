package reconcile

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/marker"
)

// Normalize moves every marker to the end of the content: images first,
// then files, each group sorted by tag with locale-aware collation.
// Markers are taken from the content, so broken markers and duplicates are
// kept. It reports whether the content changed; running it twice yields the
// same content.
func (s *Synchronizer) Normalize(note *core.Note) bool {
	tokens := marker.Parse(note.Content)
	if len(tokens) == 0 {
		return false
	}

	col := collate.New(s.locale)
	sort.SliceStable(tokens, func(i, j int) bool {
		a, b := tokens[i], tokens[j]
		if a.Kind != b.Kind {
			return a.Kind == core.MediaImage
		}
		return col.CompareString(a.Tag, b.Tag) < 0
	})

	stripped, _ := marker.StripAll(note.Content)
	text := marker.Tidy(stripped)

	var images, files []string
	for _, t := range tokens {
		if t.Kind == core.MediaFile {
			files = append(files, t.Literal())
		} else {
			images = append(images, t.Literal())
		}
	}

	var groups []string
	if len(images) > 0 {
		groups = append(groups, strings.Join(images, " "))
	}
	if len(files) > 0 {
		groups = append(groups, strings.Join(files, " "))
	}

	out := strings.Join(groups, "\n")
	if text != "" {
		out = text + "\n\n" + out
	}

	if out == note.Content {
		return false
	}
	note.Content = out
	s.logger.Debug("markers normalized", "note", note.ID, "markers", len(tokens))
	return true
}
