package voice

import (
	"strings"

	"example.com/pingpong-score/internal/metrics"
	"example.com/pingpong-score/internal/scoring"
)

// Adapter turns spoken player names into points.
type Adapter struct {
	sink    ScoreSink
	metrics *metrics.Metrics
}

func NewAdapter(sink ScoreSink, m *metrics.Metrics) *Adapter {
	return &Adapter{sink: sink, metrics: m}
}

// OnScoreEvent resolves name against the registered players and scores
// for that side. Ambiguous or unknown names are dropped.
func (a *Adapter) OnScoreEvent(name string) (scoring.Side, bool) {
	p1, p2 := a.sink.PlayerNames()
	side, ok := MatchName(name, p1, p2)
	if !ok {
		a.metrics.VoiceEvent("unmatched")
		return 0, false
	}
	if !a.sink.VoicePoint(side) {
		a.metrics.VoiceEvent("ignored")
		return side, false
	}
	a.metrics.VoiceEvent("matched")
	return side, true
}

// MatchName compares spoken against both player names, case-insensitively.
// An exact match wins; otherwise either string may contain the other.
// The result is ok only when exactly one side matches.
func MatchName(spoken, p1, p2 string) (scoring.Side, bool) {
	s := normalize(spoken)
	n1, n2 := normalize(p1), normalize(p2)
	if s == "" {
		return 0, false
	}

	if side, ok := pick(s == n1 && n1 != "", s == n2 && n2 != ""); ok {
		return side, true
	}
	return pick(contains(s, n1), contains(s, n2))
}

func pick(m1, m2 bool) (scoring.Side, bool) {
	switch {
	case m1 && !m2:
		return scoring.Side1, true
	case m2 && !m1:
		return scoring.Side2, true
	}
	return 0, false
}

func contains(spoken, name string) bool {
	if name == "" {
		return false
	}
	return strings.Contains(spoken, name) || strings.Contains(name, spoken)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
