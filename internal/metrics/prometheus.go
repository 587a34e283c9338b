// Package metrics exposes Prometheus instrumentation for the jukebox.
// Every method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveSessions   prometheus.Gauge
	Subscribers      prometheus.Gauge
	Commands         *prometheus.CounterVec
	Broadcasts       prometheus.Counter
	DeliveryFailures prometheus.Counter
	VoiceJoins       *prometheus.CounterVec
	Searches         *prometheus.CounterVec
}

// New registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jukebox_sessions_active",
			Help: "Number of voice channels with a live playback session",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jukebox_subscribers",
			Help: "Number of viewer connections attached to sessions",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_commands_total",
			Help: "Viewer commands handled, by type and response status",
		}, []string{"type", "status"}),
		Broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "jukebox_broadcasts_total",
			Help: "Snapshots broadcast to the subscribers of a session",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "jukebox_delivery_failures_total",
			Help: "Snapshots that could not be delivered to a subscriber",
		}),
		VoiceJoins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_voice_joins_total",
			Help: "Voice channel join attempts, by result",
		}, []string{"result"}),
		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_searches_total",
			Help: "Video searches, by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) SubscribersChanged(delta int) {
	if m == nil {
		return
	}
	m.Subscribers.Add(float64(delta))
}

func (m *Metrics) CommandHandled(kind string, status int) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

func (m *Metrics) Broadcast(failures int) {
	if m == nil {
		return
	}
	m.Broadcasts.Inc()
	m.DeliveryFailures.Add(float64(failures))
}

func (m *Metrics) VoiceJoin(result string) {
	if m == nil {
		return
	}
	m.VoiceJoins.WithLabelValues(result).Inc()
}

func (m *Metrics) Search(result string) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(result).Inc()
}
