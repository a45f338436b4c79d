package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pingpong"

// Metrics groups the service collectors. A nil *Metrics is valid and
// records nothing, so tests and optional components can skip wiring it.
type Metrics struct {
	matchesStarted prometheus.Counter
	points         *prometheus.CounterVec
	setsConfirmed  prometheus.Counter
	voiceSessions  prometheus.Gauge
	voiceEvents    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		matchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_started_total",
			Help:      "Matches moved from setup to playing.",
		}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Points applied to a match.",
		}, []string{"side", "source"}),
		setsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sets_confirmed_total",
			Help:      "Sets confirmed and appended to match history.",
		}),
		voiceSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voice_sessions_active",
			Help:      "Voice sessions currently open.",
		}),
		voiceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_events_total",
			Help:      "Spoken score events by outcome.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.matchesStarted, m.points, m.setsConfirmed, m.voiceSessions, m.voiceEvents)
	}
	return m
}

func (m *Metrics) MatchStarted() {
	if m == nil {
		return
	}
	m.matchesStarted.Inc()
}

func (m *Metrics) PointScored(side, source string) {
	if m == nil {
		return
	}
	m.points.WithLabelValues(side, source).Inc()
}

func (m *Metrics) SetConfirmed() {
	if m == nil {
		return
	}
	m.setsConfirmed.Inc()
}

func (m *Metrics) VoiceSessionOpened() {
	if m == nil {
		return
	}
	m.voiceSessions.Inc()
}

func (m *Metrics) VoiceSessionClosed() {
	if m == nil {
		return
	}
	m.voiceSessions.Dec()
}

// VoiceEvent counts a spoken name by result: matched, unmatched, ignored.
func (m *Metrics) VoiceEvent(result string) {
	if m == nil {
		return
	}
	m.voiceEvents.WithLabelValues(result).Inc()
}
