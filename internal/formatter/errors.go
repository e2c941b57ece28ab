package formatter

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure. Each kind maps to one HTTP status.
type Kind int

const (
	KindInvalidRequest Kind = iota + 1
	KindNotFound
	KindConfiguration
	KindUpstreamTimeout
	KindUpstreamTransport
	KindUpstreamStatus
	KindMalformedPayload
	KindInvalidEncoding
	KindTemplate
)

var kindNames = map[Kind]string{
	KindInvalidRequest:    "invalid_request",
	KindNotFound:          "not_found",
	KindConfiguration:     "configuration",
	KindUpstreamTimeout:   "upstream_timeout",
	KindUpstreamTransport: "upstream_transport",
	KindUpstreamStatus:    "upstream_status",
	KindMalformedPayload:  "malformed_payload",
	KindInvalidEncoding:   "invalid_encoding",
	KindTemplate:          "template",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status is the HTTP status reported for the kind.
func (k Kind) Status() int {
	switch k {
	case KindInvalidRequest:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamTransport, KindUpstreamStatus, KindMalformedPayload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error carries the context needed to diagnose a failed request: which feed,
// which upstream URL and what the upstream answered.
type Error struct {
	Kind   Kind
	FeedID string
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: feed %q", e.Kind, e.FeedID)
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// StatusFor maps an error returned by Service.Handle to an HTTP status.
// Anything that is not an *Error is an internal error.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind.Status()
	}
	return http.StatusInternalServerError
}

// Message is the client-facing text for a failure. Internal details stay in
// the logs.
func Message(err error) string {
	var fe *Error
	if !errors.As(err, &fe) {
		return "internal error"
	}
	switch fe.Kind {
	case KindInvalidRequest:
		return "invalid feed id"
	case KindNotFound:
		return fmt.Sprintf("feed %q not found", fe.FeedID)
	case KindUpstreamTimeout:
		return "upstream timed out"
	case KindUpstreamTransport, KindUpstreamStatus, KindMalformedPayload:
		return "bad upstream response"
	default:
		return "internal error"
	}
}
