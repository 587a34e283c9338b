// Package youtube resolves YouTube videos into jukebox tracks and audio.
package youtube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/glizzus/jukebox/internal/jukebox"
)

const (
	DefaultYTDLPPath     = "yt-dlp"
	DefaultLookupTimeout = 30 * time.Second

	watchURLTemplate = "https://www.youtube.com/watch?v=%s"
	// title is last so that tabs inside it stay in the title.
	lookupTemplate   = "%(id)s\t%(uploader)s\t%(thumbnail)s\t%(title)s"
	audioFormat      = "bestaudio[ext=webm]/bestaudio"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidVideoID reports whether id looks like a YouTube video ID.
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// WatchURL is the canonical page of a video.
func WatchURL(videoID string) string {
	return fmt.Sprintf(watchURLTemplate, videoID)
}

// Client runs yt-dlp to resolve videos.
type Client struct {
	ytdlpPath     string
	lookupTimeout time.Duration
}

type ClientOption func(*Client)

func WithYTDLPPath(path string) ClientOption {
	return func(c *Client) { c.ytdlpPath = path }
}

func WithLookupTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.lookupTimeout = d }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		ytdlpPath:     DefaultYTDLPPath,
		lookupTimeout: DefaultLookupTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) command() *ytdlp.Command {
	return ytdlp.New().
		SetExecutable(c.ytdlpPath).
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
}

// Lookup fetches the metadata of a video.
func (c *Client) Lookup(ctx context.Context, videoID string) (jukebox.Track, error) {
	if !ValidVideoID(videoID) {
		return jukebox.Track{}, jukebox.BadRequest("Invalid video id %s", videoID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	res, err := c.command().
		Print(lookupTemplate).
		Run(ctx, "--skip-download", WatchURL(videoID))
	if err != nil {
		return jukebox.Track{}, fmt.Errorf("unable to look up video %s: %w", videoID, err)
	}

	track, err := parseLookup(res.Stdout)
	if err != nil {
		return jukebox.Track{}, fmt.Errorf("unable to look up video %s: %w", videoID, err)
	}
	return track, nil
}

func parseLookup(stdout string) (jukebox.Track, error) {
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		fields := strings.SplitN(strings.TrimRight(line, "\r"), "\t", 4)
		if len(fields) < 4 || fields[0] == "" {
			continue
		}
		return jukebox.Track{
			ID:           fields[0],
			Author:       fields[1],
			ThumbnailURL: naToEmpty(fields[2]),
			Title:        fields[3],
		}, nil
	}
	return jukebox.Track{}, fmt.Errorf("unexpected yt-dlp output %q", stdout)
}

// naToEmpty drops the placeholder yt-dlp prints for missing fields.
func naToEmpty(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}

// Audio streams the best audio of a video as yt-dlp downloads it.
// The stream is not bound to ctx once it has started; Close stops it.
func (c *Client) Audio(ctx context.Context, videoID string) (io.ReadCloser, error) {
	if !ValidVideoID(videoID) {
		return nil, jukebox.BadRequest("Invalid video id %s", videoID)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := c.command().
		Format(audioFormat).
		Output("-").
		Quiet().
		BuildCommand(ctx, WatchURL(videoID))

	pr, pw := io.Pipe()
	var stderr bytes.Buffer
	cmd.Stdout = pw
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("unable to start yt-dlp: %w", err)
	}

	go func() {
		err := cmd.Wait()
		if err != nil && ctx.Err() == nil {
			err = fmt.Errorf("yt-dlp exited: %w: %s", err, strings.TrimSpace(stderr.String()))
		} else {
			err = nil
		}
		pw.CloseWithError(err)
	}()

	return &processReader{PipeReader: pr, cancel: cancel}, nil
}

// processReader stops the process feeding it when closed.
type processReader struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (p *processReader) Close() error {
	err := p.PipeReader.Close()
	p.cancel()
	return err
}
