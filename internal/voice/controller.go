package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"example.com/pingpong-score/internal/metrics"
)

var (
	ErrNoActiveSession = errors.New("no active voice session")
	ErrDisabled        = errors.New("voice assistant is not configured")
	ErrNoPlayers       = errors.New("match has no registered players")
	ErrStartCancelled  = errors.New("voice session start was cancelled")
)

type Config struct {
	SampleRate int
}

// Controller owns the lifecycle of at most one voice session per match.
// A session is acquired by Start and released by Stop, Terminate or its
// own failure; release always waits for the dispatch loop to exit.
type Controller struct {
	provider Provider
	adapter  *Adapter
	sink     ScoreSink
	notify   Notifier
	cfg      Config
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	current *activeSession
	pending *pendingStart
	gen     uint64 // bumped by every Start, Stop and Terminate
}

// pendingStart is a Start waiting on provider.Open.
type pendingStart struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type activeSession struct {
	id      string
	cancel  context.CancelFunc
	ctx     context.Context
	session Session
	done    chan struct{}

	releaseOnce sync.Once
}

func NewController(provider Provider, sink ScoreSink, notify Notifier, cfg Config, log *slog.Logger, m *metrics.Metrics) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Controller{
		provider: provider,
		adapter:  NewAdapter(sink, m),
		sink:     sink,
		notify:   notify,
		cfg:      cfg,
		log:      log,
		metrics:  m,
	}
}

// Enabled reports whether a provider is configured.
func (c *Controller) Enabled() bool { return c != nil && c.provider != nil }

// Start opens a new session, replacing any running one. The session
// outlives ctx's cancellation; only Stop, Terminate or a failure end it.
// A Stop or Terminate that arrives while the provider is still opening
// cancels the start, and Start returns ErrStartCancelled.
func (c *Controller) Start(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	p1, p2 := c.sink.PlayerNames()
	if p1 == "" && p2 == "" {
		return ErrNoPlayers
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pending := &pendingStart{cancel: cancel, done: make(chan struct{})}
	defer close(pending.done)

	c.mu.Lock()
	previous := c.current
	c.current = nil
	if c.pending != nil {
		c.pending.cancel()
	}
	c.pending = pending
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	if previous != nil {
		c.teardown(previous)
	}

	id := uuid.NewString()
	sess, err := c.provider.Open(sessionCtx, SessionConfig{
		SessionID:  id,
		Players:    [2]string{p1, p2},
		SampleRate: c.cfg.SampleRate,
	})

	c.mu.Lock()
	superseded := c.gen != gen || sessionCtx.Err() != nil
	if c.pending == pending {
		c.pending = nil
	}
	if err != nil || superseded {
		c.mu.Unlock()
		cancel()
		if sess != nil {
			_ = sess.Close()
		}
		if superseded {
			c.log.Info("voice session start cancelled", "session_id", id)
			return ErrStartCancelled
		}
		c.notify.VoiceNotice(NoticeUnavailable, "voice assistant unavailable")
		return fmt.Errorf("open voice session: %w", err)
	}

	active := &activeSession{
		id:      id,
		cancel:  cancel,
		ctx:     sessionCtx,
		session: sess,
		done:    make(chan struct{}),
	}
	c.current = active
	c.mu.Unlock()

	c.metrics.VoiceSessionOpened()
	c.log.Info("voice session started", "session_id", id)
	c.notify.VoiceStateChanged(true)

	go c.dispatch(active)
	return nil
}

// Stop closes the running session, or cancels one still being opened,
// and waits for it to finish.
func (c *Controller) Stop() error {
	if c == nil {
		return ErrNoActiveSession
	}
	c.mu.Lock()
	active := c.current
	c.current = nil
	pending := c.pending
	c.pending = nil
	c.gen++
	c.mu.Unlock()

	if active == nil && pending == nil {
		return ErrNoActiveSession
	}
	if pending != nil {
		pending.cancel()
		<-pending.done
	}
	if active != nil {
		c.teardown(active)
	}
	return nil
}

// Terminate cancels the running or opening session without waiting. It
// is safe to call while holding locks the dispatch loop may need.
func (c *Controller) Terminate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	active := c.current
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
	c.gen++
	c.mu.Unlock()
	if active != nil {
		active.cancel()
	}
}

// SendAudio forwards a PCM chunk to the running session.
func (c *Controller) SendAudio(chunk []byte) error {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()
	if active == nil {
		return ErrNoActiveSession
	}
	return active.session.SendAudio(chunk)
}

func (c *Controller) Active() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Controller) teardown(active *activeSession) {
	active.cancel()
	_ = active.session.Close()
	<-active.done
}

func (c *Controller) dispatch(active *activeSession) {
	defer close(active.done)
	defer c.release(active)

	for call := range active.session.Calls() {
		c.handle(active, call)
	}

	err := active.session.Wait()
	if err != nil && active.ctx.Err() == nil {
		c.log.Warn("voice session failed", "session_id", active.id, "err", err)
		c.notify.VoiceNotice(NoticeFailed, "voice assistant stopped: "+err.Error())
	}
}

func (c *Controller) handle(active *activeSession, call ToolCall) {
	if call.Name != ToolAddPoint {
		_ = active.session.Respond(call, map[string]any{"ok": false, "error": "unknown tool"})
		return
	}

	side, ok := c.adapter.OnScoreEvent(call.Player)
	resp := map[string]any{"ok": ok}
	if ok {
		resp["side"] = side.String()
	}
	if err := active.session.Respond(call, resp); err != nil {
		c.log.Debug("voice tool response failed", "session_id", active.id, "err", err)
	}
}

// release runs once per session after its dispatch loop exits.
func (c *Controller) release(active *activeSession) {
	active.releaseOnce.Do(func() {
		active.cancel()

		c.mu.Lock()
		if c.current == active {
			c.current = nil
		}
		c.mu.Unlock()

		c.metrics.VoiceSessionClosed()
		c.log.Info("voice session ended", "session_id", active.id)
		c.notify.VoiceStateChanged(false)
	})
}
