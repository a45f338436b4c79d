package voice

import (
	"context"

	"example.com/pingpong-score/internal/scoring"
)

// ToolAddPoint is the only function the voice model may call.
const ToolAddPoint = "add_point"

// ToolCall is a function call requested by the voice model.
type ToolCall struct {
	ID     string
	Name   string
	Player string // spoken player name
}

// SessionConfig describes one realtime voice session.
type SessionConfig struct {
	SessionID  string
	Players    [2]string
	SampleRate int
}

// Session is an open realtime voice session.
type Session interface {
	SendAudio(chunk []byte) error
	Calls() <-chan ToolCall
	Respond(call ToolCall, response map[string]any) error
	Wait() error
	Close() error
}

// Provider opens realtime voice sessions. The session must close itself
// when ctx is cancelled.
type Provider interface {
	Open(ctx context.Context, cfg SessionConfig) (Session, error)
}

// ScoreSink is the stable handle the adapter scores through.
type ScoreSink interface {
	PlayerNames() (string, string)
	VoicePoint(side scoring.Side) bool
}

// Notifier reports voice state to the UI. Failures are notices, never fatal.
type Notifier interface {
	VoiceStateChanged(active bool)
	VoiceNotice(code, message string)
}

const (
	NoticeUnavailable = "voice_unavailable"
	NoticeFailed      = "voice_failed"
)
