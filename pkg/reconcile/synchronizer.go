// Package reconcile keeps note content and attachment lists consistent.
//
// Content is the single source of truth for which markers exist and in what
// order; indices are recomputed from list positions on every call and are
// never stored.
package reconcile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/marker"
	"github.com/aretw0/memovault/pkg/registry"
)

// Synchronizer applies structural changes to a note's attachment lists and
// propagates them to the markers in its content.
// It does no locking; callers serialize access per note.
type Synchronizer struct {
	registry *registry.Registry
	logger   *slog.Logger
	locale   language.Tag
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// DefaultLocale orders marker tags the way the notes' original audience
// expects: Simplified Chinese, pinyin first.
var DefaultLocale = language.SimplifiedChinese

// WithLocale sets the collation locale used by Normalize.
func WithLocale(tag language.Tag) Option {
	return func(s *Synchronizer) { s.locale = tag }
}

// New creates a Synchronizer over reg.
func New(reg *registry.Registry, opts ...Option) *Synchronizer {
	if reg == nil {
		reg = registry.New()
	}
	s := &Synchronizer{
		registry: reg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		locale:   DefaultLocale,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the underlying attachment registry.
func (s *Synchronizer) Registry() *registry.Registry { return s.registry }

// Resolution is a marker paired with the attachment it references.
type Resolution struct {
	Token    marker.Token
	Index    int
	Resolved bool
}

// Resolve matches every marker of the note against its attachment lists.
func (s *Synchronizer) Resolve(note *core.Note) []Resolution {
	tokens := marker.Parse(note.Content)
	out := make([]Resolution, len(tokens))
	for i, t := range tokens {
		idx, ok := registry.Find(note, t.Kind, t.Tag)
		out[i] = Resolution{Token: t, Index: idx, Resolved: ok}
	}
	return out
}

// Render resolves and renders the note content.
func (s *Synchronizer) Render(note *core.Note) []marker.Segment {
	return marker.Render(note.Content, registry.Lookup(note))
}

// Attach adds an attachment and inserts its marker, followed by a space, at
// the upload's text anchor (a rune offset, clamped to the content). Without
// an anchor the marker is appended.
func (s *Synchronizer) Attach(note *core.Note, kind core.MediaKind, up registry.Upload) (core.Attachment, int, error) {
	att, idx, err := s.registry.Add(note, kind, up)
	if err != nil {
		return core.Attachment{}, -1, err
	}

	literal := marker.Format(kind, att.TagName) + " "
	if up.TextAnchor == nil {
		if note.Content != "" && !strings.HasSuffix(note.Content, " ") && !strings.HasSuffix(note.Content, "\n") {
			literal = " " + literal
		}
		note.Content += literal
	} else {
		at := byteOffset(note.Content, *up.TextAnchor)
		note.Content = note.Content[:at] + literal + note.Content[at:]
	}

	s.logger.Debug("attachment added", "note", note.ID, "kind", kind, "tag", att.TagName, "index", idx)
	return att, idx, nil
}

// DeleteAttachment removes the attachment at index together with every
// marker that resolves to it (and one whitespace character after each).
// Markers of later attachments keep resolving, now one index lower.
func (s *Synchronizer) DeleteAttachment(note *core.Note, kind core.MediaKind, index int) (core.Attachment, error) {
	// Pin positional names first so removing one cannot shift what the
	// surviving markers resolve to.
	registry.Materialize(note, kind)

	list := note.Attachments(kind)
	if index < 0 || index >= len(list) {
		return core.Attachment{}, fmt.Errorf("delete %s #%d: %w", kind, index, core.ErrIndexOutOfRange)
	}
	name := registry.EffectiveName(list, kind, index)

	// Only markers resolving to index go; a duplicate name answers to the
	// first attachment carrying it.
	content, n := marker.StripMatching(note.Content, func(t marker.Token) bool {
		if t.Kind != kind {
			return false
		}
		i, ok := registry.Find(note, kind, t.Tag)
		return ok && i == index
	})

	removed, err := s.registry.RemoveAt(note, kind, index)
	if err != nil {
		return core.Attachment{}, err
	}
	if n > 0 {
		note.Content = marker.CollapseBlankLines(content)
	}

	s.logger.Debug("attachment deleted", "note", note.ID, "kind", kind, "tag", name, "markers", n)
	return removed, nil
}

// RenameAttachment changes the tag at index and rewrites every literal
// occurrence of the old marker to the new one. Other markers are untouched.
func (s *Synchronizer) RenameAttachment(note *core.Note, kind core.MediaKind, index int, newTag string) (string, error) {
	old, err := s.registry.Rename(note, kind, index, newTag)
	if err != nil {
		return "", err
	}

	renamed := note.Attachments(kind)[index].TagName
	if old != renamed {
		note.Content = strings.ReplaceAll(note.Content, marker.Format(kind, old), marker.Format(kind, renamed))
	}

	s.logger.Debug("attachment renamed", "note", note.ID, "kind", kind, "from", old, "to", renamed)
	return old, nil
}

// ClearMarkers removes every marker from the content. Attachments are kept.
func (s *Synchronizer) ClearMarkers(note *core.Note) int {
	content, n := marker.StripAll(note.Content)
	if n > 0 {
		note.Content = marker.Tidy(content)
	}
	return n
}

// CleanBrokenMarkers removes markers that resolve to no attachment.
func (s *Synchronizer) CleanBrokenMarkers(note *core.Note) int {
	content, n := marker.StripMatching(note.Content, func(t marker.Token) bool {
		_, ok := registry.Find(note, t.Kind, t.Tag)
		return !ok
	})
	if n > 0 {
		note.Content = marker.Tidy(content)
	}
	return n
}

// Ref points at an attachment the way a caller last saw it.
type Ref struct {
	Kind  core.MediaKind
	Index int
	Tag   string
}

// Lookup returns the attachment a reference points at. A reference whose
// index is out of bounds or no longer carries its tag is treated as stale:
// it is logged and resolved again by tag.
func (s *Synchronizer) Lookup(note *core.Note, ref Ref) (core.Attachment, Ref, error) {
	list := note.Attachments(ref.Kind)
	if ref.Index >= 0 && ref.Index < len(list) {
		if ref.Tag == "" || registry.EffectiveName(list, ref.Kind, ref.Index) == ref.Tag {
			return list[ref.Index], ref, nil
		}
	}

	s.logger.Warn("stale attachment reference, resolving again",
		"note", note.ID, "kind", ref.Kind, "index", ref.Index, "tag", ref.Tag, "size", len(list),
		"error", core.ErrRegistryOutOfSync)

	if ref.Tag != "" {
		if idx, ok := registry.Find(note, ref.Kind, ref.Tag); ok {
			return list[idx], Ref{Kind: ref.Kind, Index: idx, Tag: ref.Tag}, nil
		}
	}
	return core.Attachment{}, ref, fmt.Errorf("%s %q: %w", ref.Kind, ref.Tag, errors.Join(core.ErrRegistryOutOfSync, core.ErrAttachmentNotFound))
}

// byteOffset converts a rune offset into a byte offset of s, clamped.
func byteOffset(s string, runes int) int {
	if runes <= 0 {
		return 0
	}
	i := 0
	for n := 0; n < runes && i < len(s); n++ {
		_, width := utf8.DecodeRuneInString(s[i:])
		i += width
	}
	return i
}
