package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Error codes shared between the client and the platform. Server-declared
// domain codes (insufficient balance, bet out of bounds, ...) pass through
// unchanged.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTimeout      = "TIMEOUT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeDisconnected = "DISCONNECTED"
)

// Auth carries the access token on authenticated calls.
type Auth struct {
	AccessToken string `json:"accessToken"`
}

// Request is the outbound call envelope. RequestID is the correlation id:
// caller-generated, unique per call.
type Request struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Ts        int64           `json:"ts"`
	Auth      *Auth           `json:"auth,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Response is the inbound frame envelope. A frame whose RequestID matches no
// pending call is treated as a push event named by Type.
type Response struct {
	Type         string          `json:"type"`
	RequestID    string          `json:"requestId,omitempty"`
	OK           bool            `json:"ok"`
	ServerTs     int64           `json:"serverTs,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Error        *Error          `json:"error,omitempty"`
	EventID      string          `json:"eventId,omitempty"`
	StateVersion int64           `json:"stateVersion,omitempty"`
}

// Error is the structured failure shape for both transport and domain errors.
type Error struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Retryable bool            `json:"retryable"`
	Details   json.RawMessage `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code so callers can use errors.Is with sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func Errf(code string, retryable bool, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Retryable: retryable}
}

// AsError extracts a *Error from any error, wrapping foreign errors as
// INTERNAL_ERROR so store code always sees the structured shape.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if we, ok := err.(*Error); ok {
		return we
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// NewRequest builds an envelope with the caller-supplied correlation id and a
// millisecond timestamp.
func NewRequest(reqType, requestID string, data interface{}) (Request, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Request{}, err
	}
	if data == nil {
		raw = json.RawMessage(`{}`)
	}
	return Request{
		Type:      reqType,
		RequestID: requestID,
		Ts:        time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}
