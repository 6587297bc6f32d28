package internal

import "errors"

var (
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrTruncatedRead     = errors.New("truncated read")
	ErrUnsupportedLength = errors.New("unsupported payload length")
	ErrMissingMaskKey    = errors.New("missing mask key")
)
