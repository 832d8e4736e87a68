package hubproxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds carried in the envelope "error" field.
const (
	KindMethodNotAllowed = "method_not_allowed"
	KindHubUnreachable   = "hub_unreachable"
	KindAdminProxyError  = "admin_proxy_error"
	KindBadRequest       = "bad_request"
)

var (
	// ErrMissingToken is returned when an admin route has no server token
	ErrMissingToken = errors.New("missing upstream token")

	// ErrTargetNotConfigured is returned when the upstream has no base URL
	ErrTargetNotConfigured = errors.New("upstream not configured")

	// ErrBodyTooLarge is returned when an admin body exceeds the limit
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrInvalidRegistration is returned for an unusable registration payload
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrMissingEntityID is returned when /api/hub/entities/ has no id
	ErrMissingEntityID = errors.New("entity id is required")
)

// StatusError is an error that carries the HTTP status to answer with.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusOf returns the status carried by err, or fallback.
func StatusOf(err error, fallback int) int {
	var se *StatusError
	if errors.As(err, &se) && se.Status != 0 {
		return se.Status
	}
	return fallback
}

// Envelope is the JSON body of every failure produced by the proxy layer.
type Envelope struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// WriteError writes an envelope. Only method_not_allowed is sent without detail.
func WriteError(w http.ResponseWriter, status int, kind, detail string) {
	if detail == "" && kind != KindMethodNotAllowed {
		detail = http.StatusText(status)
	}
	WriteJSON(w, status, Envelope{Error: kind, Detail: detail})
}

// WriteMethodNotAllowed answers 405 with an Allow header.
func WriteMethodNotAllowed(w http.ResponseWriter, allowed []string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	WriteError(w, http.StatusMethodNotAllowed, KindMethodNotAllowed, "")
}

// writeAdminError answers with the status carried by err, else 500.
func writeAdminError(w http.ResponseWriter, err error) {
	WriteError(w, StatusOf(err, http.StatusInternalServerError), KindAdminProxyError, err.Error())
}

// WriteJSON marshals v as the whole response body.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		body = []byte(fmt.Sprintf(`{"error":%q,"detail":%q}`, KindAdminProxyError, err.Error()))
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
