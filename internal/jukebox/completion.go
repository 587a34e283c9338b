package jukebox

import (
	"context"
	"log/slog"
)

// handleIdle runs when the stream with the given generation finishes on
// channelID's player. A repeated track starts over; otherwise the track is
// cleared and viewers are told.
func (r *Registry) handleIdle(channelID string, generation uint64) {
	s, ok := r.Get(channelID)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A Play that raced with the end of the previous stream already replaced it.
	if s.player.Generation() != generation {
		return
	}

	if s.current != nil && s.repeating {
		ctx, cancel := context.WithTimeout(context.Background(), r.restartTimeout)
		defer cancel()

		src, err := r.tracks.Open(ctx, s.current.ID)
		if err == nil {
			s.player.Play(src)
			slog.Debug("Repeating track", "channelID", channelID, "videoID", s.current.ID)
			return
		}
		slog.Error("failed to restart repeated track", "channelID", channelID, "videoID", s.current.ID, "error", err)
	}

	s.current = nil
	s.repeating = false
	r.broadcastLocked(s)
}
