package registry

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/aretw0/memovault/pkg/core"
)

// Limits bounds what a single upload may add to a note.
type Limits struct {
	MaxImageBytes int64
	MaxFileBytes  int64
	MaxFiles      int
}

// DefaultLimits: 5 MiB per image, 10 MiB per file, 10 files per note.
var DefaultLimits = Limits{
	MaxImageBytes: 5 << 20,
	MaxFileBytes:  10 << 20,
	MaxFiles:      10,
}

// Check validates an upload of the given kind against the limits.
// Zero fields disable the corresponding check.
func (l Limits) Check(note *core.Note, kind core.MediaKind, mimeType string, size int64) error {
	switch kind {
	case core.MediaImage:
		if mimeType != "" && !strings.HasPrefix(mimeType, "image/") {
			return fmt.Errorf("%w: %s", core.ErrNotAnImage, mimeType)
		}
		if l.MaxImageBytes > 0 && size > l.MaxImageBytes {
			return fmt.Errorf("%w: image is %s, limit %s", core.ErrAttachmentTooLarge,
				humanize.IBytes(uint64(size)), humanize.IBytes(uint64(l.MaxImageBytes)))
		}
	case core.MediaFile:
		if l.MaxFiles > 0 && len(note.Files) >= l.MaxFiles {
			return fmt.Errorf("%w: at most %d per note", core.ErrTooManyFiles, l.MaxFiles)
		}
		if l.MaxFileBytes > 0 && size > l.MaxFileBytes {
			return fmt.Errorf("%w: file is %s, limit %s", core.ErrAttachmentTooLarge,
				humanize.IBytes(uint64(size)), humanize.IBytes(uint64(l.MaxFileBytes)))
		}
	}
	return nil
}
