package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// Lifecycle
	ErrNotFound                 = fmt.Errorf("not found")
	ErrInsufficientParticipants = fmt.Errorf("at least 2 participants are required to start")
	ErrInsufficientCategories   = fmt.Errorf("category catalog is smaller than the round count")
	ErrAlreadyStarted           = fmt.Errorf("session already started")
	ErrNotOrganizer             = fmt.Errorf("only the organizer can perform this action")

	// Store and feed
	ErrStoreUnavailable     = fmt.Errorf("session store unavailable")
	ErrConditionFailed      = fmt.Errorf("conditional update failed")
	ErrSessionAlreadyExists = fmt.Errorf("session id already taken")
	ErrSubscriptionFailure  = fmt.Errorf("change feed subscription failed")

	// Input and identity
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrUnauthenticated    = fmt.Errorf("authentication required")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)
