package net

import (
	"errors"
	"fmt"

	"github.com/twinsim/twinsim/internal/handshake"
	"github.com/twinsim/twinsim/internal/net/packet"
)

var (
	// ErrNotWritable is returned for remote writes to variables the module
	// owns (ack, busy, ready, msg).
	ErrNotWritable = errors.New("variable not writable")
	// ErrAuth is returned when a session fails or skips authentication.
	ErrAuth = errors.New("authentication failed")
	// ErrMalformed is returned for requests with missing fields.
	ErrMalformed = errors.New("malformed request")
	// ErrRemote is returned for server-side failures without a better match.
	ErrRemote = errors.New("remote error")
)

// errorCode maps a handler error onto its wire code.
func errorCode(err error) byte {
	switch {
	case errors.Is(err, ErrAuth), errors.Is(err, packet.ErrState):
		return packet.ErrCodeAuth
	case errors.Is(err, handshake.ErrUnknownVar):
		return packet.ErrCodeUnknownVar
	case errors.Is(err, ErrNotWritable):
		return packet.ErrCodeNotWritable
	case errors.Is(err, ErrMalformed):
		return packet.ErrCodeMalformed
	case errors.Is(err, packet.ErrUnknownOpcode):
		return packet.ErrCodeOpcode
	}
	return packet.ErrCodeInternal
}

// codeError turns a received S_ERROR back into a sentinel-wrapped error.
func codeError(code byte, msg string) error {
	var base error
	switch code {
	case packet.ErrCodeAuth:
		base = ErrAuth
	case packet.ErrCodeUnknownVar:
		base = handshake.ErrUnknownVar
	case packet.ErrCodeNotWritable:
		base = ErrNotWritable
	case packet.ErrCodeMalformed:
		base = ErrMalformed
	case packet.ErrCodeOpcode:
		base = packet.ErrUnknownOpcode
	default:
		base = ErrRemote
	}
	return fmt.Errorf("%w: %s", base, msg)
}
