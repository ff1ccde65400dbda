package obd

import "errors"

var (
	// ErrNoResponse is returned when no matching reply arrived before the timeout.
	ErrNoResponse = errors.New("no response from adapter")
	// ErrHandshake is returned when an init command got an empty reply.
	ErrHandshake = errors.New("adapter handshake failed")
	// ErrNotConnected is returned by operations that need a connected engine.
	ErrNotConnected = errors.New("not connected")
	// ErrUnsupported is returned when the transport cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by transport")
	// ErrBadReply is returned when a reply could not be interpreted.
	ErrBadReply = errors.New("unexpected reply")
)
