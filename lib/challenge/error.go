package challenge

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidNonce      = errors.New("challenge: nonce is unknown or already used")
	ErrExpired           = errors.New("challenge: time to live exceeded")
	ErrInvalidAuth       = errors.New("challenge: answer digest does not match")
	ErrMalformed         = errors.New("challenge: malformed request")
	ErrProcessingFailure = errors.New("challenge: can't process submission")
	ErrEntropy           = errors.New("challenge: can't read from the entropy source")
	ErrFailed            = errors.New("challenge: user failed challenge")
	ErrUnknownKind       = errors.New("challenge: unknown kind")
	ErrKindDisabled      = errors.New("challenge: kind is disabled")
)

// Reasons reported to clients alongside a validation status.
const (
	ReasonInvalidNonce      = "invalid nonce"
	ReasonTimeout           = "timeout"
	ReasonInvalidDigest     = "invalid digest"
	ReasonKindMismatch      = "kind mismatch"
	ReasonWrongIndex        = "wrong index"
	ReasonWrongShape        = "wrong shape"
	ReasonInsufficientMatch = "insufficient match"
	ReasonImageProcessing   = "image processing failed"
)

// NewError wraps privateReason with a message that is safe to show to the
// client.
func NewError(verb, publicReason string, privateReason error) *Error {
	status := http.StatusForbidden

	switch {
	case errors.Is(privateReason, ErrMalformed), errors.Is(privateReason, ErrUnknownKind):
		status = http.StatusBadRequest
	case errors.Is(privateReason, ErrKindDisabled):
		status = http.StatusNotFound
	case errors.Is(privateReason, ErrEntropy), errors.Is(privateReason, ErrProcessingFailure):
		status = http.StatusInternalServerError
	}

	return &Error{
		Verb:          verb,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
		StatusCode:    status,
	}
}

// Error separates what the client is told from what the operator sees in
// the logs.
type Error struct {
	PrivateReason error
	Verb          string
	PublicReason  string
	StatusCode    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("challenge: error when processing challenge: %s: %v", e.Verb, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}
