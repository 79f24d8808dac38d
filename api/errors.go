// Package api is the typed client for the backend chat and recovery
// endpoints. Every operation returns either a decoded success value or an
// *Error from a closed taxonomy; no other failure shape escapes.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType is the closed set of failure kinds the client can report.
type ErrorType string

const (
	// ErrorNetwork is a transport-level failure (connectivity loss, DNS,
	// TLS). Retryable.
	ErrorNetwork ErrorType = "network_error"
	// ErrorRateLimited maps HTTP 429. Retryable.
	ErrorRateLimited ErrorType = "rate_limited"
	// ErrorServer maps HTTP 5xx. Retryable.
	ErrorServer ErrorType = "server_error"
	// ErrorInvalidResponse covers validation rejections, unexpected status
	// codes and unparseable success bodies. Not retryable.
	ErrorInvalidResponse ErrorType = "invalid_response"
	// ErrorStoreNotFound maps HTTP 404: the configured store id is unknown
	// to the backend. Not retryable.
	ErrorStoreNotFound ErrorType = "store_not_found"
	// ErrorNotConfigured reports a client with no store id at all. Not
	// retryable.
	ErrorNotConfigured ErrorType = "not_configured"
)

// Error is the only failure shape returned by the client.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func networkError() *Error {
	return &Error{
		Type:      ErrorNetwork,
		Message:   "Unable to reach the chat service. Please check your connection and try again.",
		Retryable: true,
	}
}

func invalidResponseError(message string) *Error {
	if message == "" {
		message = "Received an unexpected response from the chat service."
	}
	return &Error{Type: ErrorInvalidResponse, Message: message, Retryable: false}
}

func notConfiguredError() *Error {
	return &Error{
		Type:      ErrorNotConfigured,
		Message:   "Chat is not configured for this store.",
		Retryable: false,
	}
}

// validationDetail is one entry of a structured 422 body.
type validationDetail struct {
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// genericConfigMessage replaces identifier-format validation noise: the
// store visitor cannot act on "value is not a valid uuid".
const genericConfigMessage = "Invalid store configuration. Please contact the store owner."

// extractDetailMessage pulls a human message out of the two failure body
// shapes the backend produces: {"detail": "..."} and
// {"detail": [{"msg": ..., "type": ...}, ...]}. Anything else yields "".
func extractDetailMessage(body []byte) string {
	var stringDetail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &stringDetail); err == nil && stringDetail.Detail != "" {
		return stringDetail.Detail
	}

	var listDetail struct {
		Detail []validationDetail `json:"detail"`
	}
	if err := json.Unmarshal(body, &listDetail); err == nil && len(listDetail.Detail) > 0 {
		first := listDetail.Detail[0]
		if looksLikeIdentifierError(first) {
			return genericConfigMessage
		}
		return first.Msg
	}
	return ""
}

func looksLikeIdentifierError(d validationDetail) bool {
	t := strings.ToLower(d.Type)
	m := strings.ToLower(d.Msg)
	return strings.Contains(t, "uuid") || strings.Contains(m, "uuid") ||
		strings.Contains(m, "valid identifier")
}

// classifyStatus maps a non-2xx response to its Error.
func classifyStatus(status int, body []byte) *Error {
	switch {
	case status == http.StatusNotFound:
		return &Error{
			Type:      ErrorStoreNotFound,
			Message:   "Store not found. The chat widget may be misconfigured.",
			Retryable: false,
		}
	case status == http.StatusTooManyRequests:
		return &Error{
			Type:      ErrorRateLimited,
			Message:   "Too many requests. Please wait a moment and try again.",
			Retryable: true,
		}
	case status == http.StatusUnprocessableEntity:
		return invalidResponseError(extractDetailMessage(body))
	case status >= http.StatusInternalServerError:
		return &Error{
			Type:      ErrorServer,
			Message:   "Something went wrong on our side. Please try again.",
			Retryable: true,
		}
	default:
		return invalidResponseError("")
	}
}
