package protocol

import (
	"errors"

	"stellardominion.io/internal/sim/empire"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Rule layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrConflict      = "E_CONFLICT"
	ErrNotFound      = "E_NOT_FOUND"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrNoResource:      {},
	ErrInvalidTarget:   {},
	ErrRateLimit:       {},
	ErrConflict:        {},
	ErrNotFound:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeForError maps engine/rule errors onto wire codes. Anything the rules
// did not classify is an internal fault, not the client's problem.
func CodeForError(err error) string {
	var ve *empire.ValidationError
	var ie *empire.InsufficientError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ErrBadRequest
	case errors.As(err, &ie):
		return ErrNoResource
	case errors.Is(err, empire.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, empire.ErrConflict):
		return ErrConflict
	default:
		return ErrInternal
	}
}
