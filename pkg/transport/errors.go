package transport

import (
	"errors"
	"fmt"
)

var (
	ErrIO              = errors.New("transport i/o failure")
	ErrClosed          = fmt.Errorf("%w: already closed", ErrIO)
	ErrInvalidPayload  = errors.New("payload must be raw bytes or a message")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum datagram size")
	ErrMalformed       = errors.New("malformed datagram envelope")
)
