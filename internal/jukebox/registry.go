// Package jukebox tracks one playback session per voice channel and keeps
// every viewer of a channel in sync with that session's state.
//
// A Registry owns all sessions. Each session serializes its own mutations:
// commands, playback completion and viewer joins for one channel run one at a
// time, including across the network calls they make.
package jukebox

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/glizzus/jukebox/internal/metrics"
)

// DefaultRestartTimeout bounds reopening a repeated track when it finishes.
const DefaultRestartTimeout = 30 * time.Second

type Registry struct {
	gateway   VoiceGateway
	tracks    TrackSource
	newPlayer PlayerFactory
	metrics   *metrics.Metrics

	restartTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	joins singleflight.Group
}

type Option func(*Registry)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithRestartTimeout(d time.Duration) Option {
	return func(r *Registry) { r.restartTimeout = d }
}

func NewRegistry(gateway VoiceGateway, tracks TrackSource, newPlayer PlayerFactory, opts ...Option) *Registry {
	r := &Registry{
		gateway:        gateway,
		tracks:         tracks,
		newPlayer:      newPlayer,
		restartTimeout: DefaultRestartTimeout,
		sessions:       make(map[string]*Session),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get returns the session for channelID, if one exists.
func (r *Registry) Get(channelID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[channelID]
	return s, ok
}

// Snapshot returns the state of channelID's session, if one exists.
func (r *Registry) Snapshot(channelID string) (Snapshot, bool) {
	s, ok := r.Get(channelID)
	if !ok {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// getOrFail is Get for commands, which never join a channel on their own.
func (r *Registry) getOrFail(channelID string) (*Session, error) {
	s, ok := r.Get(channelID)
	if !ok {
		return nil, BadRequest("Channel with id %s hasn't been joined", channelID)
	}
	return s, nil
}

// put inserts or replaces the session stored under its channel ID.
func (r *Registry) put(s *Session) {
	r.mu.Lock()
	_, existed := r.sessions[s.channelID]
	r.sessions[s.channelID] = s
	r.mu.Unlock()

	if !existed {
		r.metrics.SessionOpened()
	}
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Leave detaches a viewer from a channel. The session itself stays alive,
// along with its voice connection, even when no viewers remain.
func (r *Registry) Leave(channelID, subscriberID string) {
	s, ok := r.Get(channelID)
	if !ok {
		return
	}

	s.mu.Lock()
	removed := s.removeSubscriberLocked(subscriberID)
	remaining := len(s.subscribers)
	s.mu.Unlock()

	if removed {
		r.metrics.SubscribersChanged(-1)
		slog.Debug("Viewer left", "channelID", channelID, "subscriberID", subscriberID, "remaining", remaining)
	}
}

// Shutdown stops every player and leaves every voice channel.
// The registry is empty afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for channelID, s := range sessions {
		s.mu.Lock()
		s.player.Stop()
		if err := s.conn.Speaking(false); err != nil {
			slog.Warn("failed to stop speaking", "channelID", channelID, "error", err)
		}
		if err := s.conn.Disconnect(); err != nil {
			slog.Warn("failed to disconnect", "channelID", channelID, "error", err)
		}
		r.metrics.SubscribersChanged(-len(s.subscribers))
		s.subscribers = nil
		s.mu.Unlock()
		r.metrics.SessionClosed()
	}
}
