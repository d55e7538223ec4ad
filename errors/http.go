package errors

import (
	stderrors "errors"
	"net/http"
)

// HTTPStatus maps a domain error to the status code returned by the API.
// Unknown errors are reported as 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrInvalidInput),
		stderrors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrInsufficientParticipants):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, ErrUnauthenticated),
		stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrNotOrganizer):
		return http.StatusForbidden
	case stderrors.Is(err, ErrAlreadyStarted),
		stderrors.Is(err, ErrUserAlreadyExists),
		stderrors.Is(err, ErrSessionAlreadyExists),
		stderrors.Is(err, ErrConditionFailed):
		return http.StatusConflict
	case stderrors.Is(err, ErrStoreUnavailable),
		stderrors.Is(err, ErrSubscriptionFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// codes is ordered so that the most specific sentinel wins when err wraps several.
var codes = []struct {
	code     string
	sentinel error
}{
	{"not_found", ErrNotFound},
	{"invalid_input", ErrInvalidInput},
	{"invalid_password", ErrInvalidPassword},
	{"insufficient_participants", ErrInsufficientParticipants},
	{"insufficient_categories", ErrInsufficientCategories},
	{"unauthenticated", ErrUnauthenticated},
	{"invalid_credentials", ErrInvalidCredentials},
	{"not_organizer", ErrNotOrganizer},
	{"already_started", ErrAlreadyStarted},
	{"user_already_exists", ErrUserAlreadyExists},
	{"session_already_exists", ErrSessionAlreadyExists},
	{"condition_failed", ErrConditionFailed},
	{"store_unavailable", ErrStoreUnavailable},
	{"subscription_failure", ErrSubscriptionFailure},
}

// Code names the kind of err on the wire so remote callers can match it with
// errors.Is after FromCode. Unknown errors are "internal".
func Code(err error) string {
	for _, c := range codes {
		if stderrors.Is(err, c.sentinel) {
			return c.code
		}
	}
	return "internal"
}

// FromCode is the inverse of Code. It returns nil for "internal" or unknown codes.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.sentinel
		}
	}
	return nil
}
