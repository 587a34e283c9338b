package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/glizzus/jukebox/internal/jukebox"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second
	defaultQueueSize    = 16

	maxCommandSize = 4096
)

var errViewerQueueFull = errors.New("viewer queue is full")

// viewer is one WebSocket connection subscribed to a channel. Messages are
// queued and written by a single goroutine so a slow viewer never blocks a
// broadcast.
type viewer struct {
	id   string
	conn *websocket.Conn
	out  chan jukebox.Message

	done      chan struct{}
	closeOnce sync.Once
}

var _ jukebox.Subscriber = (*viewer)(nil)

func newViewer(id string, conn *websocket.Conn, queueSize int) *viewer {
	return &viewer{
		id:   id,
		conn: conn,
		out:  make(chan jukebox.Message, queueSize),
		done: make(chan struct{}),
	}
}

func (v *viewer) ID() string {
	return v.id
}

// Send queues msg. A full queue drops the message; a closed viewer reports
// jukebox.ErrSubscriberClosed.
func (v *viewer) Send(msg jukebox.Message) error {
	select {
	case <-v.done:
		return jukebox.ErrSubscriberClosed
	default:
	}

	select {
	case v.out <- msg:
		return nil
	case <-v.done:
		return jukebox.ErrSubscriberClosed
	default:
		return errViewerQueueFull
	}
}

func (v *viewer) close() {
	v.closeOnce.Do(func() { close(v.done) })
}

func (v *viewer) writeLoop(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer v.close()

	for {
		select {
		case <-v.done:
			_ = v.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		case msg := <-v.out:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteJSON(msg); err != nil {
				slog.Debug("failed to write to viewer", "subscriberID", v.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.Debug("failed to ping viewer", "subscriberID", v.id, "error", err)
				return
			}
		}
	}
}

// handleViewer attaches a WebSocket to a channel's session. Failures to join
// or to run a command are reported on the socket, which stays open.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildId")
	channelID := chi.URLParam(r, "channelId")

	id, err := s.viewerIDs.Next()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "channelID", channelID, "error", err)
		return
	}
	defer conn.Close()

	v := newViewer(id, conn, s.queueSize)
	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		v.writeLoop(s.pingInterval, s.writeWait)
	}()
	defer writer.Wait()
	defer v.close()

	ctx := r.Context()
	slog.Debug("Viewer connected", "guildID", guildID, "channelID", channelID, "subscriberID", id)

	if _, err := s.registry.Join(ctx, guildID, channelID, v); err != nil {
		s.reportError(v, channelID, err)
	} else {
		defer s.registry.Leave(channelID, id)
	}

	pongWait := 2 * s.pingInterval
	conn.SetReadLimit(maxCommandSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("viewer connection closed", "subscriberID", id, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			s.reportError(v, channelID, jukebox.BadRequest("messages must be JSON text"))
			continue
		}
		if err := s.registry.Dispatch(ctx, channelID, payload); err != nil {
			s.reportError(v, channelID, err)
		}
	}
}

// reportError sends err to a single viewer.
func (s *Server) reportError(v *viewer, channelID string, err error) {
	if !jukebox.IsKind(err, jukebox.KindBadRequest) && !jukebox.IsKind(err, jukebox.KindNotFound) {
		slog.Error("viewer request failed", "channelID", channelID, "subscriberID", v.id, "error", err)
	}
	if err := v.Send(jukebox.ErrorMessage(err)); err != nil {
		slog.Debug("failed to report error to viewer", "subscriberID", v.id, "error", err)
	}
}
