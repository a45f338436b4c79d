package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/pingpong-score/internal/scoring"
)

type fakeSession struct {
	calls chan ToolCall
	done  chan struct{}

	closeOnce sync.Once

	mu        sync.Mutex
	responses []map[string]any
	audio     [][]byte
	err       error
}

func newFakeSession(ctx context.Context) *fakeSession {
	s := &fakeSession{
		calls: make(chan ToolCall, 8),
		done:  make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s
}

func (s *fakeSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, chunk)
	return nil
}

func (s *fakeSession) Calls() <-chan ToolCall { return s.calls }

func (s *fakeSession) Respond(call ToolCall, response map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, response)
	return nil
}

func (s *fakeSession) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.calls)
		close(s.done)
	})
	return nil
}

func (s *fakeSession) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	_ = s.Close()
}

func (s *fakeSession) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *fakeSession) snapshotResponses() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.responses...)
}

type fakeProvider struct {
	mu       sync.Mutex
	err      error
	sessions []*fakeSession
	configs  []SessionConfig
}

func (p *fakeProvider) Open(ctx context.Context, cfg SessionConfig) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	s := newFakeSession(ctx)
	p.sessions = append(p.sessions, s)
	p.configs = append(p.configs, cfg)
	return s, nil
}

func (p *fakeProvider) session(i int) *fakeSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[i]
}

type fakeNotifier struct {
	mu      sync.Mutex
	states  []bool
	notices []string
}

func (n *fakeNotifier) VoiceStateChanged(active bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, active)
}

func (n *fakeNotifier) VoiceNotice(code, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, code)
}

func (n *fakeNotifier) snapshot() ([]bool, []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]bool(nil), n.states...), append([]string(nil), n.notices...)
}

func newTestController(provider Provider) (*Controller, *fakeSink, *fakeNotifier) {
	sink := &fakeSink{p1: "Ana", p2: "Bia"}
	notify := &fakeNotifier{}
	return NewController(provider, sink, notify, Config{}, nil, nil), sink, notify
}

func TestController_ToolCallScoresPoint(t *testing.T) {
	provider := &fakeProvider{}
	c, sink, _ := newTestController(provider)

	require.NoError(t, c.Start(context.Background()))
	require.True(t, c.Active())

	s := provider.session(0)
	s.calls <- ToolCall{ID: "1", Name: ToolAddPoint, Player: "ana"}
	s.calls <- ToolCall{ID: "2", Name: ToolAddPoint, Player: "nobody"}
	s.calls <- ToolCall{ID: "3", Name: "set_volume"}

	require.Eventually(t, func() bool {
		return len(s.snapshotResponses()) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []scoring.Side{scoring.Side1}, sink.snapshotPoints())
	resp := s.snapshotResponses()
	assert.Equal(t, true, resp[0]["ok"])
	assert.Equal(t, "p1", resp[0]["side"])
	assert.Equal(t, false, resp[1]["ok"])
	assert.Equal(t, false, resp[2]["ok"])

	provider.mu.Lock()
	cfg := provider.configs[0]
	provider.mu.Unlock()
	assert.Equal(t, [2]string{"Ana", "Bia"}, cfg.Players)
	assert.Equal(t, 16000, cfg.SampleRate)
	assert.NotEmpty(t, cfg.SessionID)

	require.NoError(t, c.Stop())
}

func TestController_StopWaitsForTeardown(t *testing.T) {
	provider := &fakeProvider{}
	c, _, notify := newTestController(provider)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop())

	assert.True(t, provider.session(0).closed())
	assert.False(t, c.Active())

	states, notices := notify.snapshot()
	assert.Equal(t, []bool{true, false}, states)
	assert.Empty(t, notices)

	assert.ErrorIs(t, c.Stop(), ErrNoActiveSession)
}

func TestController_TerminateCancelsSession(t *testing.T) {
	provider := &fakeProvider{}
	c, _, notify := newTestController(provider)

	require.NoError(t, c.Start(context.Background()))
	c.Terminate()

	require.Eventually(t, func() bool { return !c.Active() }, time.Second, 5*time.Millisecond)
	assert.True(t, provider.session(0).closed())

	_, notices := notify.snapshot()
	assert.Empty(t, notices)
}

func TestController_SessionOutlivesStartContext(t *testing.T) {
	provider := &fakeProvider{}
	c, _, _ := newTestController(provider)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, c.Active())
	require.NoError(t, c.Stop())
}

func TestController_FailureIsNotice(t *testing.T) {
	provider := &fakeProvider{}
	c, _, notify := newTestController(provider)

	require.NoError(t, c.Start(context.Background()))
	provider.session(0).fail(errors.New("socket closed"))

	require.Eventually(t, func() bool { return !c.Active() }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		states, notices := notify.snapshot()
		return len(states) == 2 && len(notices) == 1
	}, time.Second, 5*time.Millisecond)
	_, notices := notify.snapshot()
	assert.Equal(t, []string{NoticeFailed}, notices)
}

func TestController_StartErrors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		c, _, _ := newTestController(nil)
		assert.ErrorIs(t, c.Start(context.Background()), ErrDisabled)
		assert.False(t, c.Enabled())
	})

	t.Run("no players", func(t *testing.T) {
		c, sink, _ := newTestController(&fakeProvider{})
		sink.p1, sink.p2 = "", ""
		assert.ErrorIs(t, c.Start(context.Background()), ErrNoPlayers)
	})

	t.Run("open fails", func(t *testing.T) {
		boom := errors.New("mic denied")
		c, _, notify := newTestController(&fakeProvider{err: boom})
		err := c.Start(context.Background())
		require.ErrorIs(t, err, boom)
		assert.False(t, c.Active())
		_, notices := notify.snapshot()
		assert.Equal(t, []string{NoticeUnavailable}, notices)
	})
}

func TestController_StartReplacesRunningSession(t *testing.T) {
	provider := &fakeProvider{}
	c, _, _ := newTestController(provider)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()))

	assert.True(t, provider.session(0).closed())
	assert.False(t, provider.session(1).closed())
	assert.True(t, c.Active())

	require.NoError(t, c.Stop())
}

func TestController_SendAudio(t *testing.T) {
	provider := &fakeProvider{}
	c, _, _ := newTestController(provider)

	assert.ErrorIs(t, c.SendAudio([]byte{1}), ErrNoActiveSession)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.SendAudio([]byte{1, 2}))

	s := provider.session(0)
	s.mu.Lock()
	assert.Equal(t, [][]byte{{1, 2}}, s.audio)
	s.mu.Unlock()

	require.NoError(t, c.Stop())
}

// gatedProvider blocks Open until gate is closed.
type gatedProvider struct {
	fakeProvider
	opening chan struct{}
	gate    chan struct{}
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{opening: make(chan struct{}, 1), gate: make(chan struct{})}
}

func (p *gatedProvider) Open(ctx context.Context, cfg SessionConfig) (Session, error) {
	p.opening <- struct{}{}
	<-p.gate
	return p.fakeProvider.Open(ctx, cfg)
}

func waitOpening(t *testing.T, p *gatedProvider) {
	t.Helper()
	select {
	case <-p.opening:
	case <-time.After(time.Second):
		t.Fatalf("provider Open was not called")
	}
}

func TestController_StopCancelsOpeningSession(t *testing.T) {
	provider := newGatedProvider()
	c, _, notify := newTestController(provider)

	started := make(chan error, 1)
	go func() { started <- c.Start(context.Background()) }()
	waitOpening(t, provider)

	stopped := make(chan error, 1)
	go func() { stopped <- c.Stop() }()

	select {
	case <-stopped:
		t.Fatalf("Stop returned before the opening session was torn down")
	case <-time.After(20 * time.Millisecond):
	}

	close(provider.gate)

	require.NoError(t, <-stopped)
	assert.ErrorIs(t, <-started, ErrStartCancelled)
	assert.True(t, provider.session(0).closed())
	assert.False(t, c.Active())

	states, notices := notify.snapshot()
	assert.Empty(t, states)
	assert.Empty(t, notices)
}

func TestController_TerminateCancelsOpeningSession(t *testing.T) {
	provider := newGatedProvider()
	c, _, notify := newTestController(provider)

	started := make(chan error, 1)
	go func() { started <- c.Start(context.Background()) }()
	waitOpening(t, provider)

	c.Terminate()
	close(provider.gate)

	assert.ErrorIs(t, <-started, ErrStartCancelled)
	assert.True(t, provider.session(0).closed())
	assert.False(t, c.Active())
	assert.ErrorIs(t, c.SendAudio([]byte{1}), ErrNoActiveSession)

	_, notices := notify.snapshot()
	assert.Empty(t, notices)
}

func TestController_SecondStartSupersedesOpeningOne(t *testing.T) {
	provider := newGatedProvider()
	c, _, _ := newTestController(provider)

	first := make(chan error, 1)
	go func() { first <- c.Start(context.Background()) }()
	waitOpening(t, provider)

	second := make(chan error, 1)
	go func() { second <- c.Start(context.Background()) }()
	waitOpening(t, provider)

	close(provider.gate)

	assert.ErrorIs(t, <-first, ErrStartCancelled)
	require.NoError(t, <-second)
	assert.True(t, c.Active())
	require.NoError(t, c.Stop())
}
