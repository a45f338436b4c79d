package scoring

import "fmt"

// Side identifies one of the two players.
type Side int

const (
	Side1 Side = 1
	Side2 Side = 2
)

func (s Side) Valid() bool { return s == Side1 || s == Side2 }

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == Side1 {
		return Side2
	}
	return Side1
}

func (s Side) String() string {
	switch s {
	case Side1:
		return "p1"
	case Side2:
		return "p2"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

// ParseSide accepts 1, 2, "p1" or "p2".
func ParseSide(v string) (Side, bool) {
	switch v {
	case "1", "p1":
		return Side1, true
	case "2", "p2":
		return Side2, true
	}
	return 0, false
}

type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

type Player struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Sets  int    `json:"sets"`
}

// SetRecord is the final score of a confirmed set.
type SetRecord struct {
	P1Score int `json:"p1Score"`
	P2Score int `json:"p2Score"`
}

// Policy controls match completion. BestOf == 0 means sets accumulate
// without the match ever ending.
type Policy struct {
	BestOf int
}

// SetsToWin is the number of sets that decides the match, 0 if unbounded.
func (p Policy) SetsToWin() int {
	if p.BestOf <= 0 {
		return 0
	}
	return p.BestOf/2 + 1
}

// Haptics gives tactile feedback after a point. Implementations must not block.
type Haptics interface {
	Pulse()
}

// Terminator is signalled when the match resets so that an attached
// voice session can shut down.
type Terminator interface {
	Terminate()
}
