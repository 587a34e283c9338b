package youtube

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppalone/ytsearch"
	"golang.org/x/time/rate"

	"github.com/glizzus/jukebox/internal/jukebox"
	"github.com/glizzus/jukebox/internal/metrics"
)

const (
	DefaultSearchRate  = rate.Limit(5)
	DefaultSearchBurst = 10

	thumbnailTemplate = "https://i.ytimg.com/vi/%s/hqdefault.jpg"
)

// Hit is a single search result as returned by a search backend.
type Hit struct {
	VideoID string
	Title   string
	Channel string
}

// Backend runs a search query against YouTube.
type Backend interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// NewBackend returns a Backend that scrapes YouTube search results.
func NewBackend() Backend {
	return &scraper{client: ytsearch.NewClient(nil)}
}

type scraper struct {
	client *ytsearch.Client
}

func (s *scraper) Search(ctx context.Context, query string) ([]Hit, error) {
	res, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(res.Results))
	for _, r := range res.Results {
		hits = append(hits, Hit{VideoID: r.VideoID, Title: r.Title, Channel: r.Channel})
	}
	return hits, nil
}

// Searcher turns search queries into tracks, throttling calls to the backend.
type Searcher struct {
	backend Backend
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

type SearcherOption func(*Searcher)

func WithRateLimit(limit rate.Limit, burst int) SearcherOption {
	return func(s *Searcher) { s.limiter = rate.NewLimiter(limit, burst) }
}

func WithSearchMetrics(m *metrics.Metrics) SearcherOption {
	return func(s *Searcher) { s.metrics = m }
}

func NewSearcher(backend Backend, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		backend: backend,
		limiter: rate.NewLimiter(DefaultSearchRate, DefaultSearchBurst),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search returns the tracks matching query. A blank query matches nothing.
func (s *Searcher) Search(ctx context.Context, query string) ([]jukebox.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []jukebox.Track{}, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		s.metrics.Search("throttled")
		return nil, fmt.Errorf("search throttled: %w", err)
	}

	hits, err := s.backend.Search(ctx, query)
	if err != nil {
		s.metrics.Search("failed")
		return nil, fmt.Errorf("unable to search for %q: %w", query, err)
	}
	s.metrics.Search("ok")

	tracks := make([]jukebox.Track, 0, len(hits))
	for _, hit := range hits {
		if hit.VideoID == "" {
			continue
		}
		tracks = append(tracks, jukebox.Track{
			ID:           hit.VideoID,
			Title:        hit.Title,
			Author:       hit.Channel,
			ThumbnailURL: fmt.Sprintf(thumbnailTemplate, hit.VideoID),
		})
	}
	return tracks, nil
}
