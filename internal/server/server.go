// Package server exposes jukebox sessions to web viewers over HTTP and WebSocket.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/glizzus/jukebox/internal/generator"
	"github.com/glizzus/jukebox/internal/jukebox"
)

// Registry is the session registry viewers attach to.
// *jukebox.Registry implements it.
type Registry interface {
	Join(ctx context.Context, guildID, channelID string, sub jukebox.Subscriber) (*jukebox.Session, error)
	Leave(channelID, subscriberID string)
	Dispatch(ctx context.Context, channelID string, payload []byte) error
	Len() int
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]jukebox.Track, error)
}

type Server struct {
	router   chi.Router
	registry Registry
	searcher Searcher
	gatherer prometheus.Gatherer

	viewerIDs  generator.Generator[string]
	corsOrigin string
	staticDir  string

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeWait    time.Duration
	queueSize    int
}

func NewServer(registry Registry, opts ...Option) *Server {
	srv := &Server{
		router:       chi.NewRouter(),
		registry:     registry,
		viewerIDs:    &generator.UUIDV4Generator{},
		pingInterval: defaultPingInterval,
		writeWait:    defaultWriteWait,
		queueSize:    defaultQueueSize,
	}
	for _, o := range opts {
		o(srv)
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     srv.checkOrigin,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(corsMiddleware(srv.corsOrigin))
	srv.routes()
	return srv
}

type Option func(*Server)

func WithSearcher(s Searcher) Option {
	return func(srv *Server) { srv.searcher = s }
}

// WithMetrics serves the metrics in g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(srv *Server) { srv.gatherer = g }
}

func WithCORSOrigin(origin string) Option {
	return func(srv *Server) { srv.corsOrigin = origin }
}

// WithStaticDir serves the web client from dir.
func WithStaticDir(dir string) Option {
	return func(srv *Server) { srv.staticDir = dir }
}

func WithViewerIDs(g generator.Generator[string]) Option {
	return func(srv *Server) { srv.viewerIDs = g }
}

// WithKeepalive sets how often viewers are pinged and how long a single
// write may take.
func WithKeepalive(pingInterval, writeWait time.Duration) Option {
	return func(srv *Server) {
		srv.pingInterval = pingInterval
		srv.writeWait = writeWait
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
}
