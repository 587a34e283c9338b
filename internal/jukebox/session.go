package jukebox

import (
	"errors"
	"net/http"
	"slices"
	"sync"
)

// Track is a playable video. It is never modified after it is resolved.
type Track struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	ThumbnailURL string `json:"thumbnail"`
}

// Snapshot is the view of a Session that viewers receive.
type Snapshot struct {
	ID          string `json:"id"`
	Playing     *Track `json:"playing,omitempty"`
	IsPaused    bool   `json:"isPaused"`
	IsRepeating bool   `json:"isRepeating"`
}

// ErrorBody is the body of a failed Message.
type ErrorBody struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Message is every frame sent to a viewer. Body is a Snapshot when Status is
// 2xx and an ErrorBody otherwise.
type Message struct {
	Status int `json:"status"`
	Body   any `json:"body"`
}

// ErrSubscriberClosed is returned by Subscriber.Send when the viewer
// connection is gone for good. Such subscribers are dropped from the session.
var ErrSubscriberClosed = errors.New("subscriber closed")

// Subscriber is a viewer connection receiving snapshots for a channel.
// The registry does not own the connection; closing it is up to the caller.
type Subscriber interface {
	ID() string
	Send(msg Message) error
}

// Session is the playback state of one voice channel.
// All fields are guarded by mu.
type Session struct {
	mu sync.Mutex

	channelID string
	guildID   string

	current   *Track
	paused    bool
	repeating bool

	player AudioPlayer
	conn   VoiceConn

	subscribers []Subscriber
}

// ChannelID is stable for the life of the session.
func (s *Session) ChannelID() string {
	return s.channelID
}

// Snapshot returns the current state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SubscriberCount returns the number of attached viewers.
func (s *Session) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Session) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		ID:          s.channelID,
		IsPaused:    s.paused,
		IsRepeating: s.repeating,
	}
	if s.current != nil {
		track := *s.current
		snapshot.Playing = &track
	}
	return snapshot
}

func (s *Session) messageLocked() Message {
	return Message{Status: http.StatusOK, Body: s.snapshotLocked()}
}

func (s *Session) addSubscriberLocked(sub Subscriber) {
	s.subscribers = append(s.subscribers, sub)
}

func (s *Session) removeSubscriberLocked(id string) bool {
	before := len(s.subscribers)
	s.subscribers = slices.DeleteFunc(s.subscribers, func(sub Subscriber) bool {
		return sub.ID() == id
	})
	return len(s.subscribers) != before
}

// requirePlayingLocked rejects commands that only make sense while a track is loaded.
func (s *Session) requirePlayingLocked() error {
	if s.current == nil {
		return BadRequest("Channel with id %s is not playing anything", s.channelID)
	}
	return nil
}
