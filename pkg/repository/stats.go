package repository

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats summarizes the collection.
type Stats struct {
	Notes        int   `json:"notes"`
	Images       int   `json:"images"`
	Files        int   `json:"files"`
	TotalBytes   int64 `json:"totalBytes"`
	AverageBytes int64 `json:"averageBytes"`
}

// String renders the stats for humans.
func (s Stats) String() string {
	return fmt.Sprintf("%d notes, %d images, %d files, %s attached (%s per note)",
		s.Notes, s.Images, s.Files,
		humanize.IBytes(uint64(s.TotalBytes)), humanize.IBytes(uint64(s.AverageBytes)))
}

// Stats counts notes and attachments and sums attachment sizes.
func (r *Repository) Stats() Stats {
	var st Stats
	for _, n := range r.List() {
		st.Notes++
		st.Images += len(n.Images)
		st.Files += len(n.Files)
		st.TotalBytes += n.PayloadBytes()
	}
	if st.Notes > 0 {
		st.AverageBytes = st.TotalBytes / int64(st.Notes)
	}
	return st
}
