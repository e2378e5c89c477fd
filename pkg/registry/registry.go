// Package registry manages the per-note attachment lists.
//
// The registry holds no text: callers that remove or rename an attachment
// are responsible for rewriting the markers that reference it.
package registry

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/marker"
)

// Registry adds, removes and renames attachments under the uniqueness
// invariant: within one list no two attachments share an effective name.
type Registry struct {
	limits Limits
	now    func() time.Time
	newID  func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLimits overrides the upload limits.
func WithLimits(l Limits) Option {
	return func(r *Registry) { r.limits = l }
}

// WithClock sets the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator sets the attachment id source.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// New creates a Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		limits: DefaultLimits,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Limits returns the active upload limits.
func (r *Registry) Limits() Limits { return r.limits }

// Upload describes an attachment to add.
type Upload struct {
	Payload      string
	OriginalName string
	MimeType     string
	SizeBytes    int64
	TextAnchor   *int
}

// Add appends a new attachment to the list selected by kind and returns it
// with its index. The tag starts as the original name, disambiguated with a
// " (n)" suffix when another attachment already answers to it.
func (r *Registry) Add(note *core.Note, kind core.MediaKind, up Upload) (core.Attachment, int, error) {
	if !kind.Valid() {
		return core.Attachment{}, -1, fmt.Errorf("add attachment: unknown kind %q", kind)
	}
	if err := r.limits.Check(note, kind, up.MimeType, up.SizeBytes); err != nil {
		return core.Attachment{}, -1, err
	}

	list := note.Attachments(kind)
	index := len(list)

	base := sanitizeTag(up.OriginalName)
	if base == "" {
		base = SyntheticName(kind, index)
	}

	att := core.Attachment{
		ID:           r.newID(),
		Payload:      up.Payload,
		OriginalName: up.OriginalName,
		TagName:      uniqueTag(list, kind, base),
		SizeBytes:    up.SizeBytes,
		MediaKind:    kind,
		MimeType:     up.MimeType,
		CreatedAt:    r.now(),
	}
	if up.TextAnchor != nil {
		v := *up.TextAnchor
		att.TextAnchor = &v
	}

	note.SetAttachments(kind, append(list, att))
	return att, index, nil
}

// RemoveAt deletes the attachment at index. Later attachments shift down.
func (r *Registry) RemoveAt(note *core.Note, kind core.MediaKind, index int) (core.Attachment, error) {
	list := note.Attachments(kind)
	if index < 0 || index >= len(list) {
		return core.Attachment{}, fmt.Errorf("remove %s #%d: %w", kind, index, core.ErrIndexOutOfRange)
	}

	removed := list[index]
	out := make([]core.Attachment, 0, len(list)-1)
	out = append(out, list[:index]...)
	out = append(out, list[index+1:]...)
	note.SetAttachments(kind, out)
	return removed, nil
}

// Rename changes the tag of the attachment at index and returns the previous
// effective name. OriginalName is never touched. On error the note is left
// as it was.
func (r *Registry) Rename(note *core.Note, kind core.MediaKind, index int, newTag string) (string, error) {
	list := note.Attachments(kind)
	if index < 0 || index >= len(list) {
		return "", fmt.Errorf("rename %s #%d: %w", kind, index, core.ErrIndexOutOfRange)
	}

	newTag = strings.TrimSpace(newTag)
	if !marker.ValidTag(newTag) {
		return "", fmt.Errorf("rename %s #%d to %q: %w", kind, index, newTag, core.ErrInvalidTag)
	}

	for i := range list {
		if i != index && EffectiveName(list, kind, i) == newTag {
			return "", &core.DuplicateTagError{Kind: kind, Tag: newTag, Index: i}
		}
	}

	old := EffectiveName(list, kind, index)
	list[index].TagName = newTag
	return old, nil
}

// EffectiveName is the name a marker must carry to reference list[i]:
// the tag, else the original name, else a synthetic positional name.
func EffectiveName(list []core.Attachment, kind core.MediaKind, i int) string {
	a := list[i]
	if a.TagName != "" {
		return a.TagName
	}
	if a.OriginalName != "" {
		return a.OriginalName
	}
	return SyntheticName(kind, i)
}

// SyntheticName is the fallback name of an unnamed attachment at index i.
func SyntheticName(kind core.MediaKind, i int) string {
	return fmt.Sprintf("%s%d", kind, i+1)
}

// Find returns the index of the attachment answering to tag.
func Find(note *core.Note, kind core.MediaKind, tag string) (int, bool) {
	list := note.Attachments(kind)
	for i := range list {
		if EffectiveName(list, kind, i) == tag {
			return i, true
		}
	}
	return -1, false
}

// Lookup adapts Find to marker.Lookup for one note.
func Lookup(note *core.Note) marker.Lookup {
	return func(kind core.MediaKind, tag string) (int, bool) {
		return Find(note, kind, tag)
	}
}

// Materialize writes every effective name into TagName so that names no
// longer depend on list position. It reports whether anything changed.
func Materialize(note *core.Note, kind core.MediaKind) bool {
	list := note.Attachments(kind)
	changed := false
	for i := range list {
		if list[i].TagName == "" {
			list[i].TagName = EffectiveName(list, kind, i)
			changed = true
		}
	}
	return changed
}

// Migrate repairs attachments written by older releases: missing ids, names,
// kinds and timestamps are filled in and duplicate tags get a " (n)" suffix.
// It reports whether the note changed.
func (r *Registry) Migrate(note *core.Note) bool {
	changed := false
	if note.Images == nil {
		note.Images = []core.Attachment{}
		changed = true
	}
	if note.Files == nil {
		note.Files = []core.Attachment{}
		changed = true
	}

	for _, kind := range []core.MediaKind{core.MediaImage, core.MediaFile} {
		if Materialize(note, kind) {
			changed = true
		}
		list := note.Attachments(kind)
		for i := range list {
			a := &list[i]
			if a.ID == "" {
				a.ID = r.newID()
				changed = true
			}
			if a.MediaKind != kind {
				a.MediaKind = kind
				changed = true
			}
			if a.OriginalName == "" && a.TagName != "" {
				a.OriginalName = a.TagName
				changed = true
			}
			if a.CreatedAt.IsZero() && !note.CreatedAt.IsZero() {
				a.CreatedAt = note.CreatedAt
				changed = true
			}
		}
		if dedupe(note, kind) {
			changed = true
		}
	}
	return changed
}

// dedupe renames every attachment whose tag an earlier one already carries.
// Markers keep resolving to the first of them.
func dedupe(note *core.Note, kind core.MediaKind) bool {
	list := note.Attachments(kind)
	seen := make(map[string]bool, len(list))
	changed := false
	for i := range list {
		name := EffectiveName(list, kind, i)
		if seen[name] {
			name = uniqueTag(list, kind, name)
			list[i].TagName = name
			changed = true
		}
		seen[name] = true
	}
	return changed
}

// tagEscaper breaks up the character sequences a marker tag cannot hold.
var tagEscaper = strings.NewReplacer(
	"]", "_",
	"["+marker.ImageIcon, "_"+marker.ImageIcon,
	"["+marker.FileIcon, "_"+marker.FileIcon,
)

func sanitizeTag(name string) string {
	return strings.TrimSpace(tagEscaper.Replace(name))
}

func uniqueTag(list []core.Attachment, kind core.MediaKind, base string) string {
	taken := make(map[string]bool, len(list))
	for i := range list {
		taken[EffectiveName(list, kind, i)] = true
	}
	if !taken[base] {
		return base
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}
