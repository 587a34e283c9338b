package jukebox_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/glizzus/jukebox/internal/jukebox"
)

type fakeConn struct {
	mu           sync.Mutex
	sink         chan []byte
	disconnected bool
}

func (c *fakeConn) OpusSink() chan<- []byte { return c.sink }
func (c *fakeConn) Speaking(bool) error     { return nil }
func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

type fakeGateway struct {
	mu       sync.Mutex
	guilds   map[string]bool
	channels map[string]bool
	joinErr  error
	release  chan struct{}
	joins    int
	conns    []*fakeConn
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		guilds:   map[string]bool{"guild": true},
		channels: map[string]bool{"channel": true, "other": true},
	}
}

func (g *fakeGateway) GuildExists(_ context.Context, guildID string) (bool, error) {
	return g.guilds[guildID], nil
}

func (g *fakeGateway) ChannelExists(_ context.Context, _, channelID string) (bool, error) {
	return g.channels[channelID], nil
}

func (g *fakeGateway) JoinVoice(_ context.Context, _, _ string) (jukebox.VoiceConn, error) {
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.joins++
	if g.joinErr != nil {
		return nil, g.joinErr
	}
	conn := &fakeConn{sink: make(chan []byte, 1)}
	g.conns = append(g.conns, conn)
	return conn, nil
}

func (g *fakeGateway) joinCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.joins
}

type fakePlayer struct {
	mu         sync.Mutex
	onIdle     func(uint64)
	generation uint64
	playing    []string
	pauses     int
	unpauses   int
	stopped    bool
	attached   jukebox.VoiceConn
	src        io.ReadCloser
}

func (p *fakePlayer) Play(src io.ReadCloser) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.src != nil {
		p.src.Close()
	}
	p.src = src
	p.generation++
	if named, ok := src.(*namedSource); ok {
		p.playing = append(p.playing, named.videoID)
	}
	return p.generation
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
}

func (p *fakePlayer) Unpause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unpauses++
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *fakePlayer) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

func (p *fakePlayer) Attach(conn jukebox.VoiceConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = conn
}

// finish simulates the current stream ending on its own.
func (p *fakePlayer) finish() {
	p.onIdle(p.Generation())
}

func (p *fakePlayer) played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.playing...)
}

type namedSource struct {
	io.Reader
	videoID string
}

func (n *namedSource) Close() error { return nil }

type fakeTracks struct {
	mu      sync.Mutex
	openErr error
	opened  int
}

func (f *fakeTracks) Lookup(_ context.Context, videoID string) (jukebox.Track, error) {
	if strings.HasPrefix(videoID, "missing") {
		return jukebox.Track{}, errors.New("video unavailable")
	}
	return jukebox.Track{
		ID:           videoID,
		Title:        "Title " + videoID,
		Author:       "Author " + videoID,
		ThumbnailURL: "https://example.com/" + videoID + ".jpg",
	}, nil
}

func (f *fakeTracks) Open(_ context.Context, videoID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return &namedSource{Reader: strings.NewReader(""), videoID: videoID}, nil
}

type fakeSubscriber struct {
	mu       sync.Mutex
	id       string
	err      error
	messages []jukebox.Message
}

func newSubscriber(id string) *fakeSubscriber {
	return &fakeSubscriber{id: id}
}

func (s *fakeSubscriber) ID() string { return s.id }

func (s *fakeSubscriber) Send(msg jukebox.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeSubscriber) received() []jukebox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jukebox.Message(nil), s.messages...)
}

func (s *fakeSubscriber) last() jukebox.Snapshot {
	msgs := s.received()
	if len(msgs) == 0 {
		panic(fmt.Sprintf("subscriber %s received nothing", s.id))
	}
	return msgs[len(msgs)-1].Body.(jukebox.Snapshot)
}

type harness struct {
	gateway  *fakeGateway
	tracks   *fakeTracks
	registry *jukebox.Registry

	mu      sync.Mutex
	players []*fakePlayer
}

func newHarness() *harness {
	h := &harness{
		gateway: newFakeGateway(),
		tracks:  &fakeTracks{},
	}
	h.registry = jukebox.NewRegistry(h.gateway, h.tracks, func(onIdle func(uint64)) jukebox.AudioPlayer {
		p := &fakePlayer{onIdle: onIdle}
		h.mu.Lock()
		h.players = append(h.players, p)
		h.mu.Unlock()
		return p
	})
	return h
}

func (h *harness) player(i int) *fakePlayer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.players[i]
}

func (h *harness) playerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.players)
}

func track(id string) *jukebox.Track {
	return &jukebox.Track{
		ID:           id,
		Title:        "Title " + id,
		Author:       "Author " + id,
		ThumbnailURL: "https://example.com/" + id + ".jpg",
	}
}
