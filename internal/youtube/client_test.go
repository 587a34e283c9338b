package youtube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glizzus/jukebox/internal/jukebox"
)

func TestValidVideoID(t *testing.T) {
	tc := []struct {
		id   string
		want bool
	}{
		{"dQw4w9WgXcQ", true},
		{"a-b_c-d_e-f", true},
		{"", false},
		{"short", false},
		{"dQw4w9WgXcQQ", false},
		{"dQw4w9WgX;Q", false},
	}

	for _, test := range tc {
		assert.Equal(t, test.want, ValidVideoID(test.id), "ValidVideoID(%q)", test.id)
	}
}

func TestParseLookup(t *testing.T) {
	tc := []struct {
		name    string
		stdout  string
		want    jukebox.Track
		wantErr bool
	}{
		{
			name:   "single line",
			stdout: "dQw4w9WgXcQ\tRick Astley\thttps://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg\tNever Gonna Give You Up\n",
			want: jukebox.Track{
				ID:           "dQw4w9WgXcQ",
				Title:        "Never Gonna Give You Up",
				Author:       "Rick Astley",
				ThumbnailURL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg",
			},
		},
		{
			name:   "missing thumbnail",
			stdout: "dQw4w9WgXcQ\tUploader\tNA\tTitle\r\n",
			want:   jukebox.Track{ID: "dQw4w9WgXcQ", Title: "Title", Author: "Uploader"},
		},
		{
			name:   "tab in title",
			stdout: "dQw4w9WgXcQ\tUploader\thttps://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg\tPart 1\tPart 2\n",
			want: jukebox.Track{
				ID:           "dQw4w9WgXcQ",
				Title:        "Part 1\tPart 2",
				Author:       "Uploader",
				ThumbnailURL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
			},
		},
		{name: "empty output", stdout: "", wantErr: true},
		{name: "truncated line", stdout: "dQw4w9WgXcQ\tUploader\n", wantErr: true},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			got, err := parseLookup(test.stdout)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestInvalidVideoIDNeverRunsYTDLP(t *testing.T) {
	c := NewClient(WithYTDLPPath("/nonexistent/yt-dlp"))

	_, err := c.Lookup(context.Background(), "--exec=rm")
	assert.True(t, jukebox.IsKind(err, jukebox.KindBadRequest), "got %v", err)

	_, err = c.Audio(context.Background(), "../../etc")
	assert.True(t, jukebox.IsKind(err, jukebox.KindBadRequest), "got %v", err)
}
