package game

import (
	"context"
	"sync"

	"example.com/pingpong-score/internal/voice"
)

// fakeVoice is an in-process voice.Provider; tests push tool calls
// through the last opened session.
type fakeVoice struct {
	mu       sync.Mutex
	sessions []*fakeVoiceSession
	openErr  error

	// optional: Open signals opening and blocks until gate is closed
	opening chan struct{}
	gate    chan struct{}
}

func (p *fakeVoice) Open(ctx context.Context, cfg voice.SessionConfig) (voice.Session, error) {
	if p.gate != nil {
		p.opening <- struct{}{}
		<-p.gate
	}
	if p.openErr != nil {
		return nil, p.openErr
	}
	s := &fakeVoiceSession{
		cfg:   cfg,
		calls: make(chan voice.ToolCall, 8),
		done:  make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()
	return s, nil
}

func (p *fakeVoice) last() *fakeVoiceSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

type fakeVoiceSession struct {
	cfg   voice.SessionConfig
	calls chan voice.ToolCall
	done  chan struct{}

	closeOnce sync.Once

	mu        sync.Mutex
	responses []map[string]any
	audio     int
}

func (s *fakeVoiceSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio += len(chunk)
	return nil
}

func (s *fakeVoiceSession) Calls() <-chan voice.ToolCall { return s.calls }

func (s *fakeVoiceSession) Respond(call voice.ToolCall, response map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, response)
	return nil
}

func (s *fakeVoiceSession) Wait() error {
	<-s.done
	return nil
}

func (s *fakeVoiceSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.calls)
		close(s.done)
	})
	return nil
}

func (s *fakeVoiceSession) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *fakeVoiceSession) responseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

func (s *fakeVoiceSession) audioBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio
}
