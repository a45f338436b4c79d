package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorResponse is the {code, message} body shared by REST errors and WS
// error envelopes.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is a rejected command: an HTTP status plus the wire code.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Code: e.Code, Message: e.Message}
}

func BadInput(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "bad_input", Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Message: msg}
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, errCode, msg string) {
	WriteJSON(w, code, ErrorResponse{Code: errCode, Message: msg})
}

// WriteErr writes err as its *Error status and code; anything else is a 500.
func WriteErr(w http.ResponseWriter, err error) {
	var e *Error
	if errors.As(err, &e) {
		WriteJSON(w, e.Status, e.Response())
		return
	}
	WriteError(w, http.StatusInternalServerError, "internal", "internal error")
}
