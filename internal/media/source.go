// Package media opens playable audio for the jukebox, with an optional
// cache of encoded frames.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/glizzus/jukebox/internal/datalayer"
	"github.com/glizzus/jukebox/internal/jukebox"
	"github.com/glizzus/jukebox/internal/opus"
)

const (
	// DefaultMaxCacheBytes caps how much of one track is buffered for the cache.
	// Longer tracks are streamed but not cached.
	DefaultMaxCacheBytes = 32 << 20

	// DefaultCacheReadTimeout bounds how long Open waits for the cache to
	// start returning a track before downloading it instead.
	DefaultCacheReadTimeout = 5 * time.Second

	cacheContentType  = "application/x-opus-frames"
	cacheWriteTimeout = time.Minute
)

// Videos resolves video metadata and raw audio.
type Videos interface {
	Lookup(ctx context.Context, videoID string) (jukebox.Track, error)
	Audio(ctx context.Context, videoID string) (io.ReadCloser, error)
}

// Encoder turns raw audio into length-prefixed Opus frames.
type Encoder func(ctx context.Context, r io.Reader) (io.ReadCloser, error)

// FFmpegEncoder encodes with the FFmpeg binary at path.
func FFmpegEncoder(path string) Encoder {
	return func(ctx context.Context, r io.Reader) (io.ReadCloser, error) {
		return opus.Encode(ctx, path, r)
	}
}

// Source opens tracks for playback.
type Source struct {
	videos        Videos
	encode        Encoder
	cache         datalayer.BlobStorage
	maxCacheBytes int
	cacheTimeout  time.Duration

	// wg tracks cache writes in flight.
	wg sync.WaitGroup
}

var _ jukebox.TrackSource = (*Source)(nil)

type Option func(*Source)

// WithCache stores encoded tracks in storage and plays them from there next time.
func WithCache(storage datalayer.BlobStorage) Option {
	return func(s *Source) { s.cache = storage }
}

func WithMaxCacheBytes(n int) Option {
	return func(s *Source) { s.maxCacheBytes = n }
}

func WithCacheReadTimeout(d time.Duration) Option {
	return func(s *Source) { s.cacheTimeout = d }
}

func WithEncoder(e Encoder) Option {
	return func(s *Source) { s.encode = e }
}

func NewSource(videos Videos, opts ...Option) *Source {
	s := &Source{
		videos:        videos,
		encode:        FFmpegEncoder(opus.DefaultFFmpegPath),
		maxCacheBytes: DefaultMaxCacheBytes,
		cacheTimeout:  DefaultCacheReadTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Source) Lookup(ctx context.Context, videoID string) (jukebox.Track, error) {
	return s.videos.Lookup(ctx, videoID)
}

// Open returns the frames of a video. Playback outlives ctx; closing the
// returned reader releases everything behind it.
func (s *Source) Open(ctx context.Context, videoID string) (io.ReadCloser, error) {
	streamCtx := context.WithoutCancel(ctx)

	if s.cache != nil {
		cached, err := s.openCached(streamCtx, videoID)
		if err == nil {
			slog.Debug("Playing cached track", "videoID", videoID)
			return cached, nil
		}
		if !errors.Is(err, datalayer.ErrBlobNotFound) {
			slog.Warn("failed to read cached track", "videoID", videoID, "error", err)
		}
	}

	audio, err := s.videos.Audio(ctx, videoID)
	if err != nil {
		return nil, err
	}

	frames, err := s.encode(streamCtx, audio)
	if err != nil {
		audio.Close()
		return nil, fmt.Errorf("unable to encode audio of %s: %w", videoID, err)
	}

	st := &stream{frames: frames, audio: audio}
	if s.cache == nil {
		return st, nil
	}
	return &teeStream{stream: st, source: s, videoID: videoID}, nil
}

// openCached opens the cached frames of a video. Only opening is bounded by
// the cache timeout; reading the returned stream is not.
func (s *Source) openCached(ctx context.Context, videoID string) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(s.cacheTimeout, cancel)

	cached, err := s.cache.Get(ctx, cacheKey(videoID))
	if !timer.Stop() {
		if err == nil {
			cached.Close()
		}
		cancel()
		return nil, fmt.Errorf("cache read of %s timed out after %s: %w", videoID, s.cacheTimeout, context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return &cachedStream{ReadCloser: cached, cancel: cancel}, nil
}

type cachedStream struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cachedStream) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Wait blocks until pending cache writes finish.
func (s *Source) Wait() {
	s.wg.Wait()
}

func (s *Source) store(videoID string, data []byte) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		err := s.cache.Put(ctx, cacheKey(videoID), bytes.NewReader(data), datalayer.PutOptions{
			Size:        int64(len(data)),
			ContentType: cacheContentType,
		})
		if err != nil {
			slog.Warn("failed to cache track", "videoID", videoID, "error", err)
			return
		}
		slog.Debug("Cached track", "videoID", videoID, "bytes", len(data))
	}()
}

func cacheKey(videoID string) string {
	return "opus/" + videoID + ".frames"
}

// stream closes both the encoder output and the download feeding it.
type stream struct {
	frames io.ReadCloser
	audio  io.ReadCloser
}

func (s *stream) Read(p []byte) (int, error) {
	return s.frames.Read(p)
}

func (s *stream) Close() error {
	return errors.Join(s.frames.Close(), s.audio.Close())
}

// teeStream buffers what is read and hands it to the cache once the stream
// ends on its own.
type teeStream struct {
	*stream
	source  *Source
	videoID string

	buf      bytes.Buffer
	overflow bool
	done     bool
}

func (t *teeStream) Read(p []byte) (int, error) {
	n, err := t.stream.Read(p)
	if n > 0 && !t.overflow {
		if t.buf.Len()+n > t.source.maxCacheBytes {
			t.overflow = true
			t.buf = bytes.Buffer{}
		} else {
			t.buf.Write(p[:n])
		}
	}

	if errors.Is(err, io.EOF) && !t.done {
		t.done = true
		if !t.overflow && t.buf.Len() > 0 {
			t.source.store(t.videoID, bytes.Clone(t.buf.Bytes()))
		}
		t.buf = bytes.Buffer{}
	}
	return n, err
}
