package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Credential failures, all fatal to the connection being set up.
	ErrMissingToken              = fmt.Errorf("missing token")
	ErrMalformedToken            = fmt.Errorf("malformed token")
	ErrExpiredOrInvalidSignature = fmt.Errorf("expired token or invalid signature")
	ErrWrongIssuer               = fmt.Errorf("wrong token issuer")
	ErrNoSubject                 = fmt.Errorf("no subject in token")

	ErrMissingRoom   = fmt.Errorf("missing room id")
	ErrNotRoomMember = fmt.Errorf("user is not a participant of this chat")
	ErrRoomNotFound  = fmt.Errorf("room not found")

	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrPersistence      = fmt.Errorf("message persistence failed")
	ErrSlowConsumer     = fmt.Errorf("outbound queue full")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrDoubleJoin       = fmt.Errorf("connection already registered")
)
