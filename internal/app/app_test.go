package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/pingpong-score/internal/config"
)

func newTestApp(t *testing.T) *httptest.Server {
	t.Helper()
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	ts := httptest.NewServer(a.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestApp_Routes(t *testing.T) {
	ts := newTestApp(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/match", "application/json", nil)
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created["matchId"])

	resp, err = http.Get(ts.URL + "/api/match/" + created["matchId"])
	require.NoError(t, err)
	var st struct {
		Phase        string `json:"phase"`
		VoiceEnabled bool   `json:"voiceEnabled"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.Equal(t, "setup", st.Phase)
	assert.False(t, st.VoiceEnabled)
}

func TestApp_Metrics(t *testing.T) {
	ts := newTestApp(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/match", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	req, err = http.NewRequest(http.MethodPost, ts.URL+"/api/match/"+created["matchId"]+"/start",
		strings.NewReader(`{"player1":"Ana","player2":"Bia"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+created["scorerToken"])
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "pingpong_matches_started_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
