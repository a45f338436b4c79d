package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"example.com/pingpong-score/internal/httpapi"
	"example.com/pingpong-score/internal/voice"
)

const pingInterval = 25 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// handleWS joins a match at /ws/{id}. A scorer token in the Authorization
// header, the ?token= query or a later "auth" message grants control;
// without one the connection is a read-only spectator.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFromWSPath(r.URL.Path)
	if !ok {
		http.Error(w, "invalid match path", http.StatusBadRequest)
		return
	}

	role := RoleSpectator
	token, hasToken := httpapi.BearerToken(r)
	if !hasToken {
		token = r.URL.Query().Get("token")
		hasToken = token != ""
	}
	if hasToken {
		if _, err := s.auth.VerifyFor(token, matchID); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		role = RoleScorer
	}

	m, ok, err := s.matches.GetOrLoad(r.Context(), matchID)
	if err != nil {
		s.log.Error("load match", "match_id", matchID, "err", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cc := &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
	}
	m.Attach(cc, role)
	s.log.Debug("client attached", "match_id", matchID, "role", role)

	// writer loop
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-cc.send:
				if !ok {
					return
				}
				_ = ws.WriteMessage(websocket.TextMessage, msg)
			case <-ticker.C:
				_ = ws.WriteMessage(websocket.PingMessage, []byte{})
			}
		}
	}()

	m.SendStateTo(cc)

	// reader loop
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			break
		}

		if kind == websocket.BinaryMessage {
			if m.RoleOf(cc) != RoleScorer {
				continue
			}
			if err := m.SendAudio(data); err != nil && !errors.Is(err, voice.ErrNoActiveSession) {
				s.log.Debug("forward audio", "match_id", matchID, "err", err)
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			m.SendErrorTo(cc, "bad_json", "invalid json")
			continue
		}

		if env.Type == MsgAuth {
			var p AuthPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				m.SendErrorTo(cc, "bad_input", "invalid payload")
				continue
			}
			if _, err := s.auth.VerifyFor(p.Token, matchID); err != nil {
				m.SendErrorTo(cc, "unauthorized", "invalid token")
				continue
			}
			m.Promote(cc)
			m.SendStateTo(cc)
			continue
		}

		if m.RoleOf(cc) != RoleScorer {
			m.SendErrorTo(cc, "forbidden", ErrForbidden.Error())
			continue
		}

		if cerr := s.apply(r.Context(), m, env.Type, env.Payload); cerr != nil {
			m.SendErrorTo(cc, cerr.Code, cerr.Message)
		}
	}

	// disconnect
	m.Detach(cc)
	cc.Close()
}

// matchIDFromWSPath extracts {id} from /ws/{id}.
func matchIDFromWSPath(path string) (string, bool) {
	id, ok := strings.CutPrefix(path, "/ws/")
	if !ok || !validMatchID(id) {
		return "", false
	}
	return id, true
}

func validMatchID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
