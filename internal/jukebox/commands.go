package jukebox

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type CommandType string

const (
	CommandPlay   CommandType = "play"
	CommandPause  CommandType = "pause"
	CommandRepeat CommandType = "repeat"
)

// Command is an inbound viewer message.
type Command struct {
	Type    CommandType `json:"type"`
	VideoID string      `json:"videoId,omitempty"`
}

// DecodeCommand parses and validates a raw viewer message.
func DecodeCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, BadRequest("malformed message: %v", err)
	}

	switch cmd.Type {
	case CommandPlay:
		cmd.VideoID = strings.TrimSpace(cmd.VideoID)
		if cmd.VideoID == "" {
			return Command{}, BadRequest("videoId is required")
		}
	case CommandPause, CommandRepeat:
	case "":
		return Command{}, BadRequest("message type is required")
	default:
		return Command{}, BadRequest("unknown message type %q", cmd.Type)
	}
	return cmd, nil
}

// Dispatch decodes a viewer message and applies it to the session of channelID.
func (r *Registry) Dispatch(ctx context.Context, channelID string, payload []byte) error {
	cmd, err := DecodeCommand(payload)
	if err != nil {
		r.metrics.CommandHandled("invalid", http.StatusBadRequest)
		return err
	}

	switch cmd.Type {
	case CommandPlay:
		err = r.Play(ctx, channelID, cmd.VideoID)
	case CommandPause:
		err = r.Pause(ctx, channelID)
	case CommandRepeat:
		err = r.Repeat(ctx, channelID)
	}

	status := http.StatusOK
	if err != nil {
		status = ErrorMessage(err).Status
	}
	r.metrics.CommandHandled(string(cmd.Type), status)
	return err
}

// Play starts videoID on the channel, replacing the current track and
// clearing pause and repeat. Nothing changes if the video cannot be resolved
// or opened.
func (r *Registry) Play(ctx context.Context, channelID, videoID string) error {
	s, err := r.getOrFail(channelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	track, err := r.tracks.Lookup(ctx, videoID)
	if err != nil {
		return passThrough(err, "failed to look up video %s", videoID)
	}

	src, err := r.tracks.Open(ctx, track.ID)
	if err != nil {
		return passThrough(err, "failed to open audio for video %s", track.ID)
	}

	s.player.Play(src)
	s.current = &track
	s.paused = false
	s.repeating = false

	slog.Info("Playing track", "channelID", channelID, "videoID", track.ID, "title", track.Title)
	r.broadcastLocked(s)
	return nil
}

// Pause toggles between paused and playing.
func (r *Registry) Pause(_ context.Context, channelID string) error {
	s, err := r.getOrFail(channelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePlayingLocked(); err != nil {
		return err
	}

	if s.paused {
		s.player.Unpause()
	} else {
		s.player.Pause()
	}
	s.paused = !s.paused

	r.broadcastLocked(s)
	return nil
}

// Repeat toggles whether the current track restarts when it finishes.
func (r *Registry) Repeat(_ context.Context, channelID string) error {
	s, err := r.getOrFail(channelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePlayingLocked(); err != nil {
		return err
	}
	s.repeating = !s.repeating

	r.broadcastLocked(s)
	return nil
}
