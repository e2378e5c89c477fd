package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound             = errors.New("not found")
	ErrNoteNotFound         = errors.New("note not found")
	ErrNoActiveNote         = errors.New("no active note")
	ErrDuplicateTag         = errors.New("duplicate tag name")
	ErrInvalidTag           = errors.New("invalid tag name")
	ErrAttachmentNotFound   = errors.New("attachment not found")
	ErrIndexOutOfRange      = errors.New("attachment index out of range")
	ErrRegistryOutOfSync    = errors.New("attachment registry out of sync")
	ErrPersistence          = errors.New("persistence failure")
	ErrImportValidation     = errors.New("import validation failure")
	ErrSnapshotNotFound     = errors.New("snapshot not found")
	ErrQuotaDeclined        = errors.New("storage quota warning declined")
	ErrNotAnImage           = errors.New("not an image")
	ErrAttachmentTooLarge   = errors.New("attachment too large")
	ErrTooManyFiles         = errors.New("too many files")
	ErrConfirmationDeclined = errors.New("confirmation declined")
)

// DuplicateTagError reports a rename rejected because another attachment of
// the same list already answers to Tag.
type DuplicateTagError struct {
	Kind  MediaKind
	Tag   string
	Index int // index of the attachment already holding Tag
}

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("%s tag %q already used by %s #%d", e.Kind, e.Tag, e.Kind, e.Index+1)
}

// Is lets errors.Is match ErrDuplicateTag.
func (e *DuplicateTagError) Is(target error) bool {
	return target == ErrDuplicateTag
}

// PersistenceError wraps a failed store call. The in-memory effect of the
// operation that triggered it is not rolled back.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
