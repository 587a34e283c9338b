package jukebox

import (
	"context"
	"errors"
	"log/slog"
)

// Join attaches a viewer to the session of channelID and sends it the
// current snapshot. The first viewer of a channel makes the bot join the
// voice channel; concurrent first viewers share that single join.
func (r *Registry) Join(ctx context.Context, guildID, channelID string, sub Subscriber) (*Session, error) {
	s, ok := r.Get(channelID)
	if !ok {
		// The join outlives the viewer that triggered it: other viewers may be
		// waiting on the same result.
		joinCtx := context.WithoutCancel(ctx)
		v, err, _ := r.joins.Do(channelID, func() (any, error) {
			if s, ok := r.Get(channelID); ok {
				return s, nil
			}
			s, err := r.bootstrap(joinCtx, guildID, channelID)
			if err != nil {
				return nil, err
			}
			r.put(s)
			return s, nil
		})
		if err != nil {
			return nil, err
		}
		s = v.(*Session)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.addSubscriberLocked(sub)
	r.metrics.SubscribersChanged(1)
	slog.Debug("Viewer joined", "channelID", channelID, "subscriberID", sub.ID(), "subscribers", len(s.subscribers))

	if len(s.subscribers) == 1 {
		r.broadcastLocked(s)
	} else {
		r.sendLocked(s, sub)
	}
	return s, nil
}

// bootstrap joins the voice channel and builds a fresh session for it.
// The session is not stored.
func (r *Registry) bootstrap(ctx context.Context, guildID, channelID string) (*Session, error) {
	ok, err := r.gateway.GuildExists(ctx, guildID)
	if err != nil {
		return nil, passThrough(err, "failed to look up guild %s", guildID)
	}
	if !ok {
		return nil, NotFound("Guild with id %s not found", guildID)
	}

	ok, err = r.gateway.ChannelExists(ctx, guildID, channelID)
	if err != nil {
		return nil, passThrough(err, "failed to look up channel %s", channelID)
	}
	if !ok {
		return nil, NotFound("Channel with id %s not found", channelID)
	}

	conn, err := r.gateway.JoinVoice(ctx, guildID, channelID)
	if err != nil {
		r.metrics.VoiceJoin("failed")
		slog.Error("failed to join voice channel", "guildID", guildID, "channelID", channelID, "error", err)
		return nil, Internal(err, "failed to join voice channel %s", channelID)
	}
	r.metrics.VoiceJoin("ok")

	player := r.newPlayer(func(generation uint64) {
		r.handleIdle(channelID, generation)
	})
	player.Attach(conn)

	slog.Info("Joined voice channel", "guildID", guildID, "channelID", channelID)
	return &Session{
		channelID: channelID,
		guildID:   guildID,
		player:    player,
		conn:      conn,
	}, nil
}

// passThrough keeps errors that are already meant for viewers and wraps
// everything else as internal.
func passThrough(err error, format string, args ...any) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Internal(err, format, args...)
}
