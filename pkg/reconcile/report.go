package reconcile

import (
	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/marker"
	"github.com/aretw0/memovault/pkg/registry"
)

// Orphan is an attachment no marker in the content resolves to.
type Orphan struct {
	Kind       core.MediaKind
	Index      int
	Attachment core.Attachment
}

// Report summarizes the consistency of one note.
type Report struct {
	Markers      []Resolution
	Broken       []marker.Token
	Orphans      []Orphan
	ImageMarkers int
	FileMarkers  int
}

// Consistent reports whether every marker resolves and every attachment is
// referenced.
func (r Report) Consistent() bool {
	return len(r.Broken) == 0 && len(r.Orphans) == 0
}

// Report resolves the note and lists broken markers and orphan attachments.
func (s *Synchronizer) Report(note *core.Note) Report {
	var rep Report
	rep.Markers = s.Resolve(note)

	referenced := map[core.MediaKind]map[int]bool{
		core.MediaImage: {},
		core.MediaFile:  {},
	}
	for _, res := range rep.Markers {
		if res.Token.Kind == core.MediaFile {
			rep.FileMarkers++
		} else {
			rep.ImageMarkers++
		}
		if !res.Resolved {
			rep.Broken = append(rep.Broken, res.Token)
			continue
		}
		referenced[res.Token.Kind][res.Index] = true
	}

	for _, kind := range []core.MediaKind{core.MediaImage, core.MediaFile} {
		for i, a := range note.Attachments(kind) {
			if !referenced[kind][i] {
				rep.Orphans = append(rep.Orphans, Orphan{Kind: kind, Index: i, Attachment: a})
			}
		}
	}
	return rep
}

// Orphans lists the unreferenced attachments of the note.
func (s *Synchronizer) Orphans(note *core.Note) []Orphan {
	return s.Report(note).Orphans
}

// RemoveOrphans deletes every unreferenced attachment and returns them.
// Callers must have obtained the user's confirmation.
func (s *Synchronizer) RemoveOrphans(note *core.Note) []core.Attachment {
	var removed []core.Attachment
	for _, kind := range []core.MediaKind{core.MediaImage, core.MediaFile} {
		registry.Materialize(note, kind)
	}

	orphans := s.Orphans(note)
	// Highest index first so earlier indices stay valid.
	for i := len(orphans) - 1; i >= 0; i-- {
		o := orphans[i]
		a, err := s.registry.RemoveAt(note, o.Kind, o.Index)
		if err != nil {
			s.logger.Warn("orphan removal skipped", "note", note.ID, "kind", o.Kind, "index", o.Index, "error", err)
			continue
		}
		removed = append(removed, a)
	}
	s.logger.Debug("orphan attachments removed", "note", note.ID, "count", len(removed))
	return removed
}
