package photocluster

import (
	"errors"
	"net/http"
)

// statusMessages maps HTTP status codes to the copy shown to end users.
var statusMessages = map[int]string{
	http.StatusBadRequest:          "The request could not be processed. Please try again.",
	http.StatusUnauthorized:        "Your session has expired. Please sign in again.",
	http.StatusForbidden:           "You don't have permission to access this content.",
	http.StatusNotFound:            "The requested content could not be found.",
	http.StatusRequestTimeout:      "The request took too long. Please try again.",
	http.StatusTooManyRequests:     "Too many requests. Please wait a moment and try again.",
	http.StatusInternalServerError: "Something went wrong on our end. Please try again later.",
	http.StatusBadGateway:          "The service is temporarily unreachable. Please try again later.",
	http.StatusServiceUnavailable:  "The service is temporarily unavailable. Please try again later.",
	http.StatusGatewayTimeout:      "The server took too long to respond. Please try again later.",
}

const (
	timeoutMessage  = "The request timed out. Please check your connection and try again."
	networkMessage  = "Unable to reach the server. Please check your connection."
	fallbackMessage = "An unexpected error occurred. Please try again."
)

// UserMessage translates any error from the data layer into copy suitable
// for display. Unknown errors fall back to a generic message; technical
// detail never leaks to users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Type {
		case ErrorTypeTimeout:
			return timeoutMessage
		case ErrorTypeNetwork:
			return networkMessage
		case ErrorTypeRateLimit:
			return statusMessages[http.StatusTooManyRequests]
		case ErrorTypeCircuitOpen:
			return statusMessages[http.StatusServiceUnavailable]
		}
		if msg, ok := statusMessages[e.StatusCode]; ok {
			return msg
		}
	}

	return fallbackMessage
}
