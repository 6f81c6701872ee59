package empire

import (
	"errors"
	"fmt"
)

// ErrConflict reports that the persisted row changed between read and write.
// The operation was rolled back; the caller may retry from a fresh read.
var ErrConflict = errors.New("player state changed, retry")

// ErrNotFound reports a missing player/alliance target.
var ErrNotFound = errors.New("not found")

// ValidationError rejects malformed input before any state is touched.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientError rejects an operation the player cannot afford. Need and
// Have give the caller enough to correct and retry.
type InsufficientError struct {
	Resource string // "credits", "citizens", "attack_turns", ...
	Need     int64
	Have     int64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient %s: need %d, have %d", e.Resource, e.Need, e.Have)
}

// InvariantError is a fatal defect: a computed balance would go negative.
// The transaction must roll back and the event gets logged; the core never
// clamps its way past one of these.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violation: " + e.Msg }

func invariantf(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}
