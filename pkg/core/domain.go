// Package core holds the domain model of a memo vault and the contracts of
// the collaborators it depends on (storage, notification, confirmation,
// quota estimation and payload encoding).
package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// MediaKind distinguishes the two attachment lists of a note.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaFile  MediaKind = "file"
)

// String implements fmt.Stringer.
func (k MediaKind) String() string { return string(k) }

// Valid reports whether k is one of the known kinds.
func (k MediaKind) Valid() bool {
	return k == MediaImage || k == MediaFile
}

// ParseMediaKind accepts "image"/"img" and "file".
func ParseMediaKind(s string) (MediaKind, error) {
	switch s {
	case "image", "img", "images":
		return MediaImage, nil
	case "file", "files":
		return MediaFile, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// Attachment is a binary object owned by exactly one note.
// Its index in the owning list is derived, never stored.
type Attachment struct {
	ID           string    `json:"id"`
	Payload      string    `json:"payload"`
	OriginalName string    `json:"originalName"`
	TagName      string    `json:"tagName"`
	SizeBytes    int64     `json:"sizeBytes"`
	MediaKind    MediaKind `json:"mediaKind"`
	MimeType     string    `json:"mimeType,omitempty"`
	TextAnchor   *int      `json:"textAnchor,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Clone returns a copy that shares nothing mutable with a.
func (a Attachment) Clone() Attachment {
	out := a
	if a.TextAnchor != nil {
		v := *a.TextAnchor
		out.TextAnchor = &v
	}
	return out
}

// legacyAttachment covers the shapes written by older releases:
// {data, name, fileName, size, type, timestamp} next to the current fields.
type legacyAttachment struct {
	ID           looseString `json:"id"`
	Payload      string      `json:"payload"`
	Data         string      `json:"data"`
	OriginalName string      `json:"originalName"`
	Name         string      `json:"name"`
	FileName     string      `json:"fileName"`
	TagName      string      `json:"tagName"`
	SizeBytes    int64       `json:"sizeBytes"`
	Size         int64       `json:"size"`
	MediaKind    MediaKind   `json:"mediaKind"`
	MimeType     string      `json:"mimeType"`
	Type         string      `json:"type"`
	TextAnchor   *int        `json:"textAnchor"`
	CreatedAt    looseTime   `json:"createdAt"`
	Timestamp    looseTime   `json:"timestamp"`
}

// UnmarshalJSON accepts both the current object form and the legacy forms,
// including a bare string holding only the payload.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	var payload string
	if err := json.Unmarshal(data, &payload); err == nil {
		*a = Attachment{Payload: payload}
		return nil
	}

	var l legacyAttachment
	if err := json.Unmarshal(data, &l); err != nil {
		return err
	}

	*a = Attachment{
		ID:           string(l.ID),
		Payload:      firstNonEmpty(l.Payload, l.Data),
		OriginalName: firstNonEmpty(l.OriginalName, l.FileName, l.Name),
		TagName:      l.TagName,
		SizeBytes:    l.SizeBytes,
		MediaKind:    l.MediaKind,
		MimeType:     firstNonEmpty(l.MimeType, l.Type),
		TextAnchor:   l.TextAnchor,
		CreatedAt:    l.CreatedAt.Time,
	}
	if a.SizeBytes == 0 {
		a.SizeBytes = l.Size
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = l.Timestamp.Time
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// EventType represents the type of change in a store.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change observed in a store.
type Event struct {
	Type       EventType
	Collection string
	Key        string
	Timestamp  int64 // Unix timestamp
}

// String renders the event for logs, e.g. "MODIFY memos/42".
func (e Event) String() string {
	return fmt.Sprintf("%s %s/%s", e.Type, e.Collection, e.Key)
}
