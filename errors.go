package wsengine

import (
	"errors"

	"github.com/wmdanor/wsengine/internal"
)

var (
	ErrConnectionNotStarted = errors.New("connection not started")
	ErrSendBusy             = errors.New("send slot busy")

	ErrPayloadTooLarge   = internal.ErrPayloadTooLarge
	ErrTruncatedRead     = internal.ErrTruncatedRead
	ErrUnsupportedLength = internal.ErrUnsupportedLength
	ErrMissingMaskKey    = internal.ErrMissingMaskKey

	ErrHandshakeFailure        = errors.New("handshake failure")
	ErrInvalidHandshakeRequest = errors.New("invalid handshake request")
)
