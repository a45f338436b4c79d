package scoring

// Snapshot is the serializable state of a Match.
type Snapshot struct {
	Phase   Phase       `json:"phase"`
	P1      Player      `json:"p1"`
	P2      Player      `json:"p2"`
	Winner  Side        `json:"winner,omitempty"`
	History []SetRecord `json:"history"`
}

func (m *Match) Snapshot() Snapshot {
	return Snapshot{
		Phase:   m.phase,
		P1:      m.players[0],
		P2:      m.players[1],
		Winner:  m.winner,
		History: m.History(),
	}
}

// Restore replaces the match state with s. Unknown phases fall back to
// Setup. For a match in play, negative counts are zeroed and the phase
// and winner are derived from the scores, so a stored winner only
// survives when the set really ended in its favour.
func (m *Match) Restore(s Snapshot) {
	m.players = [2]Player{clampPlayer(s.P1), clampPlayer(s.P2)}
	m.history = nil
	for _, r := range s.History {
		if r.P1Score >= 0 && r.P2Score >= 0 {
			m.history = append(m.history, r)
		}
	}
	m.winner = 0

	if s.Phase != PhasePlaying && s.Phase != PhaseFinished {
		m.phase = PhaseSetup
		m.players = [2]Player{}
		m.history = nil
		return
	}

	m.phase = PhasePlaying
	p1, p2 := m.players[0].Score, m.players[1].Score
	if SetEnds(p1, p2) {
		m.phase = PhaseFinished
		m.winner = Side1
		if p2 > p1 {
			m.winner = Side2
		}
	}
}

func clampPlayer(p Player) Player {
	p.Score = max(p.Score, 0)
	p.Sets = max(p.Sets, 0)
	return p
}
