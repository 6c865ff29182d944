package feed

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("not logged in")
	ErrEntryNotFound   = errors.New("entry not found")
	// ErrStoreUnavailable wraps any failure of the backing store, including
	// timeouts and transactions that kept conflicting.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMalformedRecord means a stored document could not be parsed.
	ErrMalformedRecord = errors.New("malformed record")

	ErrAlreadyPublished = errors.New("entry already published")
	ErrInvalidMood      = errors.New("invalid mood")
	ErrInvalidLimit     = errors.New("limit must be positive")
	ErrNoteTooLong      = fmt.Errorf("note must not have more than %d characters", MaxNoteLength)
	ErrNoteRejected     = errors.New("note was rejected")
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// IsInvalidInput reports whether err was caused by the caller's input
// rather than the store or the caller's identity.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidMood) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrNoteTooLong) ||
		errors.Is(err, ErrNoteRejected)
}
