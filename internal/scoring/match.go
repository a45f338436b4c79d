package scoring

import "strings"

// Match is the scoring state machine for one two-player match.
//
// It performs no I/O and holds no lock: callers serialize access.
// All mutation goes through StartMatch, AddPoint, ConfirmSet, ResetSet
// and ResetMatch.
type Match struct {
	phase   Phase
	players [2]Player
	winner  Side // 0 when no set winner is pending
	history []SetRecord
	policy  Policy

	haptics    Haptics
	terminator Terminator
}

type Option func(*Match)

func WithPolicy(p Policy) Option {
	return func(m *Match) { m.policy = p }
}

func WithHaptics(h Haptics) Option {
	return func(m *Match) { m.haptics = h }
}

func WithTerminator(t Terminator) Option {
	return func(m *Match) { m.terminator = t }
}

func NewMatch(opts ...Option) *Match {
	m := &Match{phase: PhaseSetup}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartMatch registers both players and moves from Setup to Playing.
// Outside Setup the call is ignored and false is returned; a running
// match is only left through ResetMatch. Name validation belongs to the
// caller.
func (m *Match) StartMatch(name1, name2 string) bool {
	if m.phase != PhaseSetup {
		return false
	}
	m.players[0] = Player{Name: strings.TrimSpace(name1)}
	m.players[1] = Player{Name: strings.TrimSpace(name2)}
	m.history = nil
	m.winner = 0
	m.phase = PhasePlaying
	return true
}

// AddPoint scores one point for side. Outside Playing the call is ignored
// and false is returned.
func (m *Match) AddPoint(side Side) bool {
	if m.phase != PhasePlaying || !side.Valid() {
		return false
	}

	me := m.player(side)
	me.Score++
	opp := m.player(side.Opponent())

	if SetEnds(me.Score, opp.Score) {
		m.winner = side
		m.phase = PhaseFinished
	}

	if m.haptics != nil {
		m.haptics.Pulse()
	}
	return true
}

// ConfirmSet credits the pending set to its winner and starts the next set.
func (m *Match) ConfirmSet() bool {
	if m.phase != PhaseFinished || !m.winner.Valid() {
		return false
	}

	m.player(m.winner).Sets++
	m.history = append(m.history, SetRecord{
		P1Score: m.players[0].Score,
		P2Score: m.players[1].Score,
	})
	m.clearSet()
	return true
}

// ResetSet discards the current set's points without awarding it.
func (m *Match) ResetSet() bool {
	if m.phase == PhaseSetup {
		return false
	}
	m.clearSet()
	return true
}

// ResetMatch returns to Setup from any phase.
func (m *Match) ResetMatch() {
	m.players = [2]Player{}
	m.history = nil
	m.winner = 0
	m.phase = PhaseSetup

	if m.terminator != nil {
		m.terminator.Terminate()
	}
}

func (m *Match) clearSet() {
	m.players[0].Score = 0
	m.players[1].Score = 0
	m.winner = 0
	m.phase = PhasePlaying
}

func (m *Match) player(side Side) *Player {
	return &m.players[int(side)-1]
}

func (m *Match) Phase() Phase { return m.phase }

func (m *Match) Policy() Policy { return m.policy }

// Players returns copies of both player records.
func (m *Match) Players() (Player, Player) { return m.players[0], m.players[1] }

// Player returns a copy of one player record.
func (m *Match) Player(side Side) Player {
	if !side.Valid() {
		return Player{}
	}
	return *m.player(side)
}

// Winner returns the side that took the pending set, if any.
func (m *Match) Winner() (Side, bool) {
	if m.phase != PhaseFinished || !m.winner.Valid() {
		return 0, false
	}
	return m.winner, true
}

// WinnerName is the display name of the pending set winner or "".
func (m *Match) WinnerName() string {
	side, ok := m.Winner()
	if !ok {
		return ""
	}
	return m.player(side).Name
}

func (m *Match) History() []SetRecord {
	return append([]SetRecord(nil), m.history...)
}

func (m *Match) ServingSide() Side {
	return ServingSide(m.players[0].Score, m.players[1].Score)
}

// MatchWinner reports the side that has won the match under the
// configured policy. It is always false for an unbounded policy.
func (m *Match) MatchWinner() (Side, bool) {
	need := m.policy.SetsToWin()
	if need == 0 || m.phase == PhaseSetup {
		return 0, false
	}
	switch {
	case m.players[0].Sets >= need:
		return Side1, true
	case m.players[1].Sets >= need:
		return Side2, true
	}
	return 0, false
}

// SideByName resolves a registered player name (exact, case-insensitive).
func (m *Match) SideByName(name string) (Side, bool) {
	name = strings.TrimSpace(name)
	if name == "" || m.phase == PhaseSetup {
		return 0, false
	}
	p1 := strings.EqualFold(m.players[0].Name, name)
	p2 := strings.EqualFold(m.players[1].Name, name)
	switch {
	case p1 && !p2:
		return Side1, true
	case p2 && !p1:
		return Side2, true
	}
	return 0, false
}
