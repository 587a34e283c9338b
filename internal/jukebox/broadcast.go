package jukebox

import (
	"errors"
	"log/slog"
	"slices"
)

// broadcastLocked stores the session and sends its snapshot to every
// subscriber in order. One subscriber failing does not stop delivery to the
// others. Subscribers that report ErrSubscriberClosed are removed.
func (r *Registry) broadcastLocked(s *Session) {
	r.put(s)

	msg := s.messageLocked()
	var closed []string
	failures := 0
	for _, sub := range s.subscribers {
		if err := sub.Send(msg); err != nil {
			failures++
			if errors.Is(err, ErrSubscriberClosed) {
				closed = append(closed, sub.ID())
				continue
			}
			slog.Warn("failed to deliver snapshot", "channelID", s.channelID, "subscriberID", sub.ID(), "error", err)
		}
	}
	r.metrics.Broadcast(failures)

	if len(closed) == 0 {
		return
	}
	s.subscribers = slices.DeleteFunc(s.subscribers, func(sub Subscriber) bool {
		return slices.Contains(closed, sub.ID())
	})
	r.metrics.SubscribersChanged(-len(closed))
	slog.Debug("Pruned closed subscribers", "channelID", s.channelID, "count", len(closed))
}

// sendLocked delivers the current snapshot to a single subscriber.
func (r *Registry) sendLocked(s *Session, sub Subscriber) {
	err := sub.Send(s.messageLocked())
	if err == nil {
		return
	}
	if errors.Is(err, ErrSubscriberClosed) {
		if s.removeSubscriberLocked(sub.ID()) {
			r.metrics.SubscribersChanged(-1)
		}
		return
	}
	slog.Warn("failed to deliver snapshot", "channelID", s.channelID, "subscriberID", sub.ID(), "error", err)
}
