package youtube_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/glizzus/jukebox/internal/jukebox"
	"github.com/glizzus/jukebox/internal/youtube"
)

type fakeBackend struct {
	hits    []youtube.Hit
	err     error
	queries []string
}

func (f *fakeBackend) Search(_ context.Context, query string) ([]youtube.Hit, error) {
	f.queries = append(f.queries, query)
	return f.hits, f.err
}

func TestSearchMapsHitsToTracks(t *testing.T) {
	backend := &fakeBackend{hits: []youtube.Hit{
		{VideoID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Channel: "Rick Astley"},
		{VideoID: "", Title: "A channel, not a video", Channel: "Someone"},
		{VideoID: "9bZkp7q19f0", Title: "Gangnam Style", Channel: "officialpsy"},
	}}
	s := youtube.NewSearcher(backend)

	got, err := s.Search(context.Background(), "  never gonna  ")
	require.NoError(t, err)

	assert.Equal(t, []jukebox.Track{
		{
			ID:           "dQw4w9WgXcQ",
			Title:        "Never Gonna Give You Up",
			Author:       "Rick Astley",
			ThumbnailURL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
		},
		{
			ID:           "9bZkp7q19f0",
			Title:        "Gangnam Style",
			Author:       "officialpsy",
			ThumbnailURL: "https://i.ytimg.com/vi/9bZkp7q19f0/hqdefault.jpg",
		},
	}, got)
	assert.Equal(t, []string{"never gonna"}, backend.queries)
}

func TestSearchBlankQuery(t *testing.T) {
	for _, query := range []string{"", "   ", "\t\n"} {
		backend := &fakeBackend{}
		s := youtube.NewSearcher(backend)

		got, err := s.Search(context.Background(), query)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.Empty(t, backend.queries, "blank queries must not reach the backend")
	}
}

func TestSearchBackendFailure(t *testing.T) {
	backend := &fakeBackend{err: errors.New("429 too many requests")}
	s := youtube.NewSearcher(backend)

	_, err := s.Search(context.Background(), "anything")
	assert.ErrorIs(t, err, backend.err)
}

func TestSearchIsThrottled(t *testing.T) {
	backend := &fakeBackend{}
	s := youtube.NewSearcher(backend, youtube.WithRateLimit(rate.Every(1<<62), 1))

	_, err := s.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Search(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, []string{"first"}, backend.queries)
}
