package game

import (
	"time"

	"example.com/pingpong-score/internal/scoring"
)

// MatchSnapshot is the serializable match state kept in the snapshot store.
type MatchSnapshot struct {
	MatchID   string           `json:"matchId"`
	State     scoring.Snapshot `json:"state"`
	SavedAtMs int64            `json:"savedAtMs"`
}

func (m *Match) snapshotLocked() MatchSnapshot {
	return MatchSnapshot{
		MatchID:   m.id,
		State:     m.core.Snapshot(),
		SavedAtMs: time.Now().UnixMilli(),
	}
}

// restoreLocked never revives a voice session; one must be started again.
func (m *Match) restoreLocked(s MatchSnapshot) {
	m.core.Restore(s.State)
}
