package game

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"example.com/pingpong-score/internal/auth"
	"example.com/pingpong-score/internal/httpapi"
	"example.com/pingpong-score/internal/scoring"
	"example.com/pingpong-score/internal/voice"
)

type Config struct {
	Policy          scoring.Policy
	Voice           voice.Provider // nil => voice disabled
	VoiceSampleRate int
	ScorerTokenTTL  time.Duration
}

const maxCommandBody = 4 << 10

type Server struct {
	cfg     Config
	matches *MatchService
	auth    *auth.Service
	log     *slog.Logger
}

func NewServer(cfg Config, matches *MatchService, authSvc *auth.Service, log *slog.Logger) *Server {
	if cfg.ScorerTokenTTL <= 0 {
		cfg.ScorerTokenTTL = 12 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		matches: matches,
		auth:    authSvc,
		log:     log,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/match", s.handleCreateMatch)
	mux.HandleFunc("GET /api/match/{id}", s.handleGetMatch)

	scorer := httpapi.ScorerAuth(s.auth)
	commands := map[string]string{
		"start":       MsgStartMatch,
		"point":       MsgAddPoint,
		"confirm":     MsgConfirmSet,
		"reset-set":   MsgResetSet,
		"reset":       MsgResetMatch,
		"voice/start": MsgVoiceStart,
		"voice/stop":  MsgVoiceStop,
	}
	for path, msgType := range commands {
		mux.Handle("POST /api/match/{id}/"+path, scorer(s.handleCommand(msgType)))
	}

	mux.HandleFunc("/ws/", s.handleWS)
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	matchID := NewMatchID()

	if _, err := s.matches.Create(r.Context(), matchID); err != nil {
		s.log.Error("create match", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "storage_error", "failed to create match")
		return
	}

	token, err := s.auth.Sign(matchID, s.cfg.ScorerTokenTTL)
	if err != nil {
		s.log.Error("sign scorer token", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, map[string]string{
		"matchId":     matchID,
		"scorerToken": token,
	})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookup(w, r)
	if !ok {
		return
	}
	role := RoleSpectator
	if tok, ok := httpapi.BearerToken(r); ok {
		if _, err := s.auth.VerifyFor(tok, m.ID()); err == nil {
			role = RoleScorer
		}
	}
	httpapi.WriteJSON(w, http.StatusOK, m.State(role))
}

func (s *Server) handleCommand(msgType string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := s.lookup(w, r)
		if !ok {
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
		if err != nil {
			httpapi.WriteError(w, http.StatusBadRequest, "bad_input", "unreadable body")
			return
		}

		if claims, ok := httpapi.ClaimsFromContext(r.Context()); ok {
			s.log.Debug("scorer command", "match_id", claims.MatchID, "type", msgType)
		}
		if cerr := s.apply(r.Context(), m, msgType, body); cerr != nil {
			httpapi.WriteErr(w, cerr)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, m.State(RoleScorer))
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Match, bool) {
	id := r.PathValue("id")
	if !validMatchID(id) {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_input", "invalid match id")
		return nil, false
	}
	m, ok, err := s.matches.GetOrLoad(r.Context(), id)
	if err != nil {
		s.log.Error("load match", "match_id", id, "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "storage_error", "failed to load match")
		return nil, false
	}
	if !ok {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "match not found")
		return nil, false
	}
	return m, true
}

// apply runs one scorer command. Commands the current phase does not
// accept are ignored without error.
func (s *Server) apply(ctx context.Context, m *Match, msgType string, payload []byte) *httpapi.Error {
	switch msgType {
	case MsgStartMatch:
		var p StartMatchPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return httpapi.BadInput("invalid payload")
		}
		if err := m.StartMatch(p.Player1, p.Player2); err != nil {
			return httpapi.BadInput(err.Error())
		}

	case MsgAddPoint:
		var p AddPointPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return httpapi.BadInput("invalid payload")
		}
		side, err := m.ResolveSide(p)
		if err != nil {
			return httpapi.BadInput(err.Error())
		}
		m.AddPoint(side)

	case MsgConfirmSet:
		m.ConfirmSet()

	case MsgResetSet:
		m.ResetSet()

	case MsgResetMatch:
		m.ResetMatch()

	case MsgVoiceStart:
		err := m.StartVoice(ctx)
		switch {
		case err == nil:
		case errors.Is(err, voice.ErrDisabled):
			return &httpapi.Error{Status: http.StatusServiceUnavailable, Code: "voice_disabled", Message: err.Error()}
		case errors.Is(err, voice.ErrNoPlayers):
			return httpapi.Conflict("bad_phase", err.Error())
		case errors.Is(err, voice.ErrStartCancelled):
			return httpapi.Conflict("voice_cancelled", err.Error())
		default:
			return &httpapi.Error{Status: http.StatusBadGateway, Code: voice.NoticeUnavailable, Message: "voice assistant unavailable"}
		}

	case MsgVoiceStop:
		if err := m.StopVoice(); err != nil {
			return httpapi.Conflict("no_session", err.Error())
		}

	default:
		return &httpapi.Error{Status: http.StatusBadRequest, Code: "unknown_type", Message: "unknown message type"}
	}
	return nil
}
