package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"example.com/pingpong-score/internal/metrics"
	"example.com/pingpong-score/internal/scoring"
	"example.com/pingpong-score/internal/voice"
)

var (
	ErrEmptyName   = errors.New("both player names are required")
	ErrForbidden   = errors.New("only the scorer can change the match")
	ErrUnknownSide = errors.New("unknown player side")
)

const hapticPulseMs = 50

// Match is one live scoreboard: the scoring state machine plus the
// clients watching it and the optional voice session feeding it.
// Every state change is serialized by mu.
type Match struct {
	id string
	mu sync.Mutex

	core    *scoring.Match
	clients map[*ClientConn]Role
	voice   *voice.Controller

	log       *slog.Logger
	metrics   *metrics.Metrics
	onPersist func(MatchSnapshot)
}

// hapticFunc adapts a func to scoring.Haptics.
type hapticFunc func()

func (f hapticFunc) Pulse() { f() }

func NewMatch(id string, cfg Config, log *slog.Logger, m *metrics.Metrics) *Match {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("match_id", id)

	mt := &Match{
		id:      id,
		clients: make(map[*ClientConn]Role),
		log:     log,
		metrics: m,
	}
	mt.voice = voice.NewController(cfg.Voice, mt, mt, voice.Config{SampleRate: cfg.VoiceSampleRate}, log, m)
	mt.core = scoring.NewMatch(
		scoring.WithPolicy(cfg.Policy),
		// Pulse runs inside core.AddPoint, so mu is already held.
		scoring.WithHaptics(hapticFunc(mt.broadcastHapticLocked)),
		scoring.WithTerminator(mt.voice),
	)
	return mt
}

func (m *Match) ID() string { return m.id }

// StartMatch registers the players. It is ignored, without error, once
// the match has left setup.
func (m *Match) StartMatch(name1, name2 string) error {
	name1, name2 = strings.TrimSpace(name1), strings.TrimSpace(name2)
	if name1 == "" || name2 == "" {
		return ErrEmptyName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.core.StartMatch(name1, name2) {
		return nil
	}
	m.metrics.MatchStarted()
	m.log.Info("match started", "p1", name1, "p2", name2)

	m.broadcastStateLocked()
	m.persistLocked()
	return nil
}

// AddPoint applies a tapped point. It returns false when the match is
// not in play; that is not an error.
func (m *Match) AddPoint(side scoring.Side) bool {
	return m.addPoint(side, "tap")
}

// VoicePoint applies a point recognized by the voice adapter.
func (m *Match) VoicePoint(side scoring.Side) bool {
	return m.addPoint(side, "voice")
}

func (m *Match) addPoint(side scoring.Side, source string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.core.AddPoint(side) {
		return false
	}
	m.metrics.PointScored(side.String(), source)

	if w, ok := m.core.Winner(); ok {
		p1, p2 := m.core.Players()
		m.log.Info("set finished", "winner", w.String(), "p1_score", p1.Score, "p2_score", p2.Score)
	}

	m.broadcastStateLocked()
	m.persistLocked()
	return true
}

// ResolveSide maps an AddPointPayload to a side.
func (m *Match) ResolveSide(p AddPointPayload) (scoring.Side, error) {
	if p.Side != "" {
		side, ok := scoring.ParseSide(strings.ToLower(strings.TrimSpace(p.Side)))
		if !ok {
			return 0, ErrUnknownSide
		}
		return side, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	side, ok := m.core.SideByName(p.Player)
	if !ok {
		return 0, ErrUnknownSide
	}
	return side, nil
}

func (m *Match) ConfirmSet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.core.ConfirmSet() {
		return false
	}
	m.metrics.SetConfirmed()

	if w, ok := m.core.MatchWinner(); ok {
		m.log.Info("match decided", "winner", w.String(), "best_of", m.core.Policy().BestOf)
	}

	m.broadcastStateLocked()
	m.persistLocked()
	return true
}

func (m *Match) ResetSet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.core.ResetSet() {
		return false
	}
	m.broadcastStateLocked()
	m.persistLocked()
	return true
}

// ResetMatch ends any voice session, waiting for its teardown, and then
// returns the match to setup.
func (m *Match) ResetMatch() {
	_ = m.voice.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.core.ResetMatch()
	m.log.Info("match reset")

	m.broadcastStateLocked()
	m.persistLocked()
}

func (m *Match) StartVoice(ctx context.Context) error {
	return m.voice.Start(ctx)
}

func (m *Match) StopVoice() error {
	return m.voice.Stop()
}

func (m *Match) SendAudio(chunk []byte) error {
	return m.voice.SendAudio(chunk)
}

// Close releases the voice session, if any.
func (m *Match) Close() {
	_ = m.voice.Stop()
}

// PlayerNames implements voice.ScoreSink.
func (m *Match) PlayerNames() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.core.Phase() == scoring.PhaseSetup {
		return "", ""
	}
	p1, p2 := m.core.Players()
	return p1.Name, p2.Name
}

// VoiceStateChanged implements voice.Notifier.
func (m *Match) VoiceStateChanged(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastStateLocked()
}

// VoiceNotice implements voice.Notifier.
func (m *Match) VoiceNotice(code, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastLocked(Envelope{
		Type:    MsgNotice,
		Payload: mustJSON(NoticePayload{Code: code, Message: message}),
	})
}

func (m *Match) Attach(cc *ClientConn, role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[cc] = role
}

// Promote upgrades an attached client to scorer.
func (m *Match) Promote(cc *ClientConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[cc]; ok {
		m.clients[cc] = RoleScorer
	}
}

func (m *Match) RoleOf(cc *ClientConn) Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[cc]
}

// Detach removes cc. When it was the last connected scorer, the voice
// session is released: audio only arrives over a scorer's socket.
func (m *Match) Detach(cc *ClientConn) {
	m.mu.Lock()
	role, ok := m.clients[cc]
	delete(m.clients, cc)
	scorers := 0
	for _, r := range m.clients {
		if r == RoleScorer {
			scorers++
		}
	}
	m.mu.Unlock()

	if !ok || role != RoleScorer || scorers > 0 {
		return
	}
	if m.voice.Active() {
		m.log.Info("last scorer left, stopping voice session")
		_ = m.voice.Stop()
	}
}

// State returns the state as seen by a client with the given role.
func (m *Match) State(role Role) StatePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildStateLocked(role)
}

func (m *Match) SendErrorTo(cc *ClientConn, code, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[cc]; !ok {
		return
	}
	m.sendLocked(cc, Envelope{
		Type:    MsgError,
		Payload: mustJSON(ErrorPayload{Code: code, Message: message}),
	})
}

func (m *Match) SendStateTo(cc *ClientConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.clients[cc]
	if !ok {
		return
	}
	m.sendLocked(cc, Envelope{Type: MsgState, Payload: mustJSON(m.buildStateLocked(role))})
}

func (m *Match) broadcastStateLocked() {
	// "you" differs per role
	var scorer, spectator json.RawMessage
	for cc, role := range m.clients {
		var payload json.RawMessage
		if role == RoleScorer {
			if scorer == nil {
				scorer = mustJSON(m.buildStateLocked(RoleScorer))
			}
			payload = scorer
		} else {
			if spectator == nil {
				spectator = mustJSON(m.buildStateLocked(RoleSpectator))
			}
			payload = spectator
		}
		m.sendLocked(cc, Envelope{Type: MsgState, Payload: payload})
	}
}

func (m *Match) broadcastHapticLocked() {
	m.broadcastLocked(Envelope{Type: MsgHaptic, Payload: mustJSON(HapticPayload{DurationMs: hapticPulseMs})})
}

func (m *Match) buildStateLocked(role Role) StatePayload {
	p1, p2 := m.core.Players()

	st := StatePayload{
		MatchID:      m.id,
		You:          role,
		Phase:        m.core.Phase(),
		P1:           PlayerState(p1),
		P2:           PlayerState(p2),
		Winner:       m.core.WinnerName(),
		Serving:      m.core.ServingSide().String(),
		History:      m.core.History(),
		BestOf:       m.core.Policy().BestOf,
		VoiceEnabled: m.voice.Enabled(),
		VoiceActive:  m.voice.Active(),
	}
	if st.History == nil {
		st.History = []scoring.SetRecord{}
	}
	if w, ok := m.core.Winner(); ok {
		st.WinnerSide = w.String()
	}
	if w, ok := m.core.MatchWinner(); ok {
		st.MatchWinner = w.String()
	}
	return st
}

func (m *Match) sendLocked(conn *ClientConn, env Envelope) {
	if conn == nil {
		return
	}
	b, _ := json.Marshal(env)
	select {
	case conn.send <- b:
	default:
		// slow reader: drop, the next state push supersedes it
	}
}

func (m *Match) broadcastLocked(env Envelope) {
	for cc := range m.clients {
		m.sendLocked(cc, env)
	}
}

func (m *Match) persistLocked() {
	if m.onPersist == nil {
		return
	}
	m.onPersist(m.snapshotLocked())
}
