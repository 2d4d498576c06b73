package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
	ErrFrameTooLong   = errors.New("frame exceeds maximum length")
	ErrAckTimeout     = errors.New("ack timeout")
	ErrResponseTimeout =errors.New("response timeout")
	ErrClosed         = errors.New("transport closed")

	errHandlerPanic = errors.New("command handler panicked")
)
