package marker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/marker"
)

func TestSerialize(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "Text and breaks",
			html: "line one<br>line two",
			want: "line one\nline two",
		},
		{
			name: "Marker span",
			html: `see <span class="attachment-marker" data-type="image" data-name="cat.png" data-index="0">📷cat</span> here`,
			want: "see [📷cat.png] here",
		},
		{
			name: "Broken marker span",
			html: `<span class="broken-marker" data-type="file" data-name="gone.pdf">[📎gone.pdf]</span>`,
			want: "[📎gone.pdf]",
		},
		{
			name: "Blocks",
			html: "<div>first</div><div>second</div><p>third</p>",
			want: "first\nsecond\nthird",
		},
		{
			name: "Unknown elements keep their text",
			html: "<b>bold</b> and <i>italic</i>",
			want: "bold and italic",
		},
		{
			name: "Scripts are dropped",
			html: "safe<script>alert(1)</script>",
			want: "safe",
		},
		{
			name: "Entities are decoded",
			html: "a &amp; b &lt;c&gt;",
			want: "a & b <c>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marker.Serialize(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderHTML_SerializeRoundTrip(t *testing.T) {
	content := "see [📷cat.png] here\nnext [📎gone.pdf] & <done>"
	lookup := func(kind core.MediaKind, tag string) (int, bool) {
		return 0, kind == core.MediaImage && tag == "cat.png"
	}

	projected := marker.RenderHTML(marker.Render(content, lookup))
	assert.Contains(t, projected, `class="attachment-marker"`)
	assert.Contains(t, projected, `class="broken-marker"`)

	back, err := marker.Serialize(projected)
	require.NoError(t, err)
	assert.Equal(t, content, back)
}
