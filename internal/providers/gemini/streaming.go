package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"example.com/pingpong-score/internal/voice"
)

const (
	defaultBaseURL = "wss://generativelanguage.googleapis.com"
	defaultModel   = "models/gemini-2.0-flash-live-001"
	livePath       = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	setupTimeout = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// Config controls the realtime websocket connection.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Provider implements voice.Provider on the Gemini Live API.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (p *Provider) Open(ctx context.Context, cfg voice.SessionConfig) (voice.Session, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("VOICE_API_KEY is not configured")
	}

	wsURL, err := buildLiveURL(p.cfg)
	if err != nil {
		return nil, err
	}

	conn, _, err := p.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to voice model: %w", err)
	}

	if err := handshake(conn, setupFor(p.cfg.Model, cfg)); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s := &session{
		conn:       conn,
		sampleRate: cfg.SampleRate,
		calls:      make(chan voice.ToolCall, 16),
		out:        make(chan []byte, 64),
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.calls)
		close(s.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

func handshake(conn *websocket.Conn, setup *setupMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(clientMessage{Setup: setup}); err != nil {
		return fmt.Errorf("failed to send setup: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(setupTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read setup response: %w", err)
		}
		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if msg.Error != nil {
			return fmt.Errorf("voice model rejected setup: %s", msg.Error.Message)
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

func setupFor(model string, cfg voice.SessionConfig) *setupMessage {
	instruction := fmt.Sprintf(
		"You are a table tennis scorekeeper. The players are %q and %q. "+
			"Whenever someone says a player scored, call %s with that player's name. "+
			"Do not call it for anything else.",
		cfg.Players[0], cfg.Players[1], voice.ToolAddPoint,
	)

	return &setupMessage{
		Model:             model,
		GenerationConfig:  generationConfig{ResponseModalities: []string{"AUDIO"}},
		SystemInstruction: content{Parts: []part{{Text: instruction}}},
		Tools: []tool{{
			FunctionDeclarations: []functionDeclaration{{
				Name:        voice.ToolAddPoint,
				Description: "Add one point to the named player.",
				Parameters: schema{
					Type: "OBJECT",
					Properties: map[string]schema{
						"player": {Type: "STRING", Description: "Name of the player who scored."},
					},
					Required: []string{"player"},
				},
			}},
		}},
	}
}

type session struct {
	conn       *websocket.Conn
	sampleRate int

	calls      chan voice.ToolCall
	out        chan []byte
	closing    chan struct{}
	writerDone chan struct{}
	done       chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce     sync.Once
	closeSendOnce sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *session) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	rate := s.sampleRate
	if rate <= 0 {
		rate = 16000
	}
	return s.enqueue(clientMessage{RealtimeInput: &realtimeInputMessage{
		MediaChunks: []blob{{
			MimeType: fmt.Sprintf("audio/pcm;rate=%d", rate),
			Data:     base64.StdEncoding.EncodeToString(chunk),
		}},
	}})
}

func (s *session) Respond(call voice.ToolCall, response map[string]any) error {
	return s.enqueue(clientMessage{ToolResponse: &toolResponseMessage{
		FunctionResponses: []functionResponse{{ID: call.ID, Name: call.Name, Response: response}},
	}})
}

func (s *session) Calls() <-chan voice.ToolCall { return s.calls }

func (s *session) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.closeSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *session) enqueue(msg clientMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("voice session is closed")
	}

	select {
	case s.out <- b:
		return nil
	case <-s.closing:
		return errors.New("voice session is closed")
	case <-s.writerDone:
		return errors.New("voice session is closed")
	}
}

func (s *session) closeSend() {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.out)
		s.sendMu.Unlock()
	})
}

func (s *session) writeLoop() {
	defer s.wg.Done()
	defer close(s.writerDone)

	for msg := range s.out {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.setErr(fmt.Errorf("failed to send to voice model: %w", err))
			return
		}
	}
}

func (s *session) readLoop() {
	defer s.wg.Done()
	// the writer must not outlive the reader
	defer s.closeSend()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosing() {
				s.setErr(fmt.Errorf("failed to read voice model event: %w", err))
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		if msg.Error != nil {
			s.setErr(fmt.Errorf("voice model error %d: %s", msg.Error.Code, msg.Error.Message))
			return
		}
		if msg.GoAway != nil {
			s.setErr(errors.New("voice model requested disconnect"))
			return
		}
		if msg.ToolCall == nil {
			continue
		}

		for _, fc := range msg.ToolCall.FunctionCalls {
			if !s.emit(toToolCall(fc)) {
				return
			}
		}
	}
}

func (s *session) emit(call voice.ToolCall) bool {
	select {
	case s.calls <- call:
		return true
	case <-s.closing:
		return false
	}
}

func (s *session) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

func (s *session) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *session) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func toToolCall(fc functionCall) voice.ToolCall {
	call := voice.ToolCall{ID: fc.ID, Name: fc.Name}
	if v, ok := fc.Args["player"].(string); ok {
		call.Player = v
	}
	return call
}

func buildLiveURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base + livePath)
	if err != nil {
		return "", fmt.Errorf("invalid voice base URL: %w", err)
	}
	q := u.Query()
	q.Set("key", cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
