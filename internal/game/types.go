package game

import (
	"encoding/json"

	"example.com/pingpong-score/internal/scoring"
)

// Envelope WS envelope: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// inbound message types
const (
	MsgAuth       = "auth"
	MsgStartMatch = "start_match"
	MsgAddPoint   = "add_point"
	MsgConfirmSet = "confirm_set"
	MsgResetSet   = "reset_set"
	MsgResetMatch = "reset_match"
	MsgVoiceStart = "voice_start"
	MsgVoiceStop  = "voice_stop"
)

// outbound message types
const (
	MsgState  = "state"
	MsgHaptic = "haptic"
	MsgNotice = "notice"
	MsgError  = "error"
)

type AuthPayload struct {
	Token string `json:"token"`
}

type StartMatchPayload struct {
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
}

// AddPointPayload names the scoring side either as "p1"/"p2"/"1"/"2"
// or by a registered player name.
type AddPointPayload struct {
	Side   string `json:"side"`
	Player string `json:"player,omitempty"`
}

type Role string

const (
	RoleScorer    Role = "scorer"
	RoleSpectator Role = "spectator"
)

type PlayerState struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Sets  int    `json:"sets"`
}

type StatePayload struct {
	MatchID      string              `json:"matchId"`
	You          Role                `json:"you"`
	Phase        scoring.Phase       `json:"phase"`
	P1           PlayerState         `json:"p1"`
	P2           PlayerState         `json:"p2"`
	Winner       string              `json:"winner"`     // pending set winner name, "" if none
	WinnerSide   string              `json:"winnerSide"` // p1|p2|""
	Serving      string              `json:"serving"`    // p1|p2
	History      []scoring.SetRecord `json:"history"`
	BestOf       int                 `json:"bestOf"`      // 0 => unbounded
	MatchWinner  string              `json:"matchWinner"` // p1|p2|"" under BestOf
	VoiceEnabled bool                `json:"voiceEnabled"`
	VoiceActive  bool                `json:"voiceActive"`
}

type HapticPayload struct {
	DurationMs int `json:"durationMs"`
}

type NoticePayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
