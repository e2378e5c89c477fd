package core

import (
	"strings"
	"time"
)

// DisplayDateLayout is the layout of Note.DisplayDate.
const DisplayDateLayout = "2006/01/02 15:04"

// UntitledNote is the title given to notes saved without one.
const UntitledNote = "Untitled"

// Note is the central entity of the domain.
// Content is the canonical text form; markers embedded in it reference the
// Images and Files lists by tag name.
type Note struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Images      []Attachment `json:"images"`
	Files       []Attachment `json:"files"`
	Tags        []string     `json:"tags,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	DisplayDate string       `json:"date"`
}

// NewNote returns an empty note created at now.
func NewNote(id string, now time.Time) Note {
	return Note{
		ID:          id,
		Images:      []Attachment{},
		Files:       []Attachment{},
		CreatedAt:   now,
		DisplayDate: now.Format(DisplayDateLayout),
	}
}

// Attachments returns the list selected by kind.
func (n *Note) Attachments(kind MediaKind) []Attachment {
	if kind == MediaFile {
		return n.Files
	}
	return n.Images
}

// SetAttachments replaces the list selected by kind.
func (n *Note) SetAttachments(kind MediaKind, list []Attachment) {
	if list == nil {
		list = []Attachment{}
	}
	if kind == MediaFile {
		n.Files = list
		return
	}
	n.Images = list
}

// IsEmpty reports whether the note carries nothing worth keeping.
// Files alone do not keep a note alive.
func (n *Note) IsEmpty() bool {
	return strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Content) == "" && len(n.Images) == 0
}

// PayloadBytes sums the declared size of every attachment.
func (n *Note) PayloadBytes() int64 {
	var total int64
	for _, a := range n.Images {
		total += a.SizeBytes
	}
	for _, a := range n.Files {
		total += a.SizeBytes
	}
	return total
}

// HasTag reports whether tag is set on the note.
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the note.
func (n Note) Clone() Note {
	out := n
	out.Images = cloneAttachments(n.Images)
	out.Files = cloneAttachments(n.Files)
	if n.Tags != nil {
		out.Tags = append([]string(nil), n.Tags...)
	}
	return out
}

// CloneNotes deep-copies a collection.
func CloneNotes(notes []Note) []Note {
	out := make([]Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}
	return out
}

// CountAttachments returns the number of images and files across notes.
func CountAttachments(notes []Note) (images, files int) {
	for _, n := range notes {
		images += len(n.Images)
		files += len(n.Files)
	}
	return images, files
}

func cloneAttachments(list []Attachment) []Attachment {
	if list == nil {
		return []Attachment{}
	}
	out := make([]Attachment, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out
}

// HistoryState is one undo/redo entry for the active note.
type HistoryState struct {
	NoteID    string
	Title     string
	Content   string
	Timestamp time.Time
}

// Snapshot is an immutable copy of the whole note collection.
type Snapshot struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Notes       []Note    `json:"memos"`
	NoteCount   int       `json:"memoCount"`
	ImageCount  int       `json:"imageCount"`
	FileCount   int       `json:"fileCount"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// SnapshotInfo is a Snapshot without its notes, used for listings.
type SnapshotInfo struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	NoteCount   int       `json:"memoCount"`
	ImageCount  int       `json:"imageCount"`
	FileCount   int       `json:"fileCount"`
}

// Info strips the notes.
func (s Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{
		ID:          s.ID,
		Timestamp:   s.Timestamp,
		Description: s.Description,
		NoteCount:   s.NoteCount,
		ImageCount:  s.ImageCount,
		FileCount:   s.FileCount,
	}
}
