package protocol

import "errors"

var (
	ErrIntegrity       = errors.New("protocol: integrity check failed")
	ErrTruncated       = errors.New("protocol: truncated data")
	ErrUnknownType     = errors.New("protocol: unknown packet type")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
)
