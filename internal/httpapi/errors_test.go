package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErr(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody ErrorResponse
	}{
		{name: "bad input", err: BadInput("unknown player side"), wantCode: http.StatusBadRequest,
			wantBody: ErrorResponse{Code: "bad_input", Message: "unknown player side"}},
		{name: "wrapped conflict", err: fmt.Errorf("voice: %w", Conflict("no_session", "no active voice session")), wantCode: http.StatusConflict,
			wantBody: ErrorResponse{Code: "no_session", Message: "no active voice session"}},
		{name: "plain error", err: errors.New("redis down"), wantCode: http.StatusInternalServerError,
			wantBody: ErrorResponse{Code: "internal", Message: "internal error"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteErr(rec, tc.err)

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var got ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tc.wantBody, got)
		})
	}
}
