package wsengine

import (
	"fmt"
	"slices"
)

type CloseCode uint16

// Close codes defined in RFC 6455, section 11.7.
const (
	CloseNormalClosure           CloseCode = 1000
	CloseGoingAway               CloseCode = 1001
	CloseProtocolError           CloseCode = 1002
	CloseUnsupportedData         CloseCode = 1003
	CloseNoStatusReceived        CloseCode = 1005
	CloseAbnormalClosure         CloseCode = 1006
	CloseInvalidFramePayloadData CloseCode = 1007
	ClosePolicyViolation         CloseCode = 1008
	CloseMessageTooBig           CloseCode = 1009
	CloseMandatoryExtension      CloseCode = 1010
	CloseInternalServerErr       CloseCode = 1011
	CloseServiceRestart          CloseCode = 1012
	CloseTryAgainLater           CloseCode = 1013
	CloseTLSHandshake            CloseCode = 1015
)

// codes a peer may put on the wire; 1005, 1006 and 1015 are reserved for local use
var wireCloseCodes = []CloseCode{
	CloseNormalClosure,
	CloseGoingAway,
	CloseProtocolError,
	CloseUnsupportedData,
	CloseInvalidFramePayloadData,
	ClosePolicyViolation,
	CloseMessageTooBig,
	CloseMandatoryExtension,
	CloseInternalServerErr,
	CloseServiceRestart,
	CloseTryAgainLater,
}

// IsValid reports whether c may appear in a Close frame.
func (c CloseCode) IsValid() bool {
	return slices.Contains(wireCloseCodes, c) || (c >= 3000 && c <= 4999)
}

func (c CloseCode) String() string {
	switch c {
	case CloseNormalClosure:
		return "normal closure"
	case CloseGoingAway:
		return "going away"
	case CloseProtocolError:
		return "protocol error"
	case CloseUnsupportedData:
		return "unsupported data"
	case CloseNoStatusReceived:
		return "no status received"
	case CloseAbnormalClosure:
		return "abnormal closure"
	case CloseInvalidFramePayloadData:
		return "invalid frame payload data"
	case ClosePolicyViolation:
		return "policy violation"
	case CloseMessageTooBig:
		return "message too big"
	case CloseMandatoryExtension:
		return "mandatory extension"
	case CloseInternalServerErr:
		return "internal server error"
	case CloseServiceRestart:
		return "service restart"
	case CloseTryAgainLater:
		return "try again later"
	case CloseTLSHandshake:
		return "TLS handshake"
	default:
		return fmt.Sprintf("close code %d", uint16(c))
	}
}

// PeerCloseCode returns the status code carried by the last Close frame the
// peer sent. ok is false if that frame had no status code.
func (e *Engine) PeerCloseCode() (code CloseCode, ok bool) {
	return e.peerClose, e.hasPeerClose
}

// SendClose starts the close handshake. While Open the engine moves to Closing
// and the Close frame goes out on the next Poll.
func (e *Engine) SendClose() error {
	err := e.enqueue(OpcodeClose, nil)
	if err != nil {
		return err
	}

	if e.state.Phase() == PhaseOpen {
		e.state.enter(PhaseClosing)
	}

	return nil
}

// ensureCloseQueued keeps a Close frame pending while Closing until one was sent.
func (e *Engine) ensureCloseQueued() {
	if e.state.Phase() != PhaseClosing || e.state.Flags().Has(SentClose) {
		return
	}
	if e.sendBusy {
		if e.outOp != OpcodeClose {
			e.l.Debug("send slot busy, close deferred", "queued", e.outOp)
		}
		return
	}

	err := e.enqueue(OpcodeClose, nil)
	if err != nil {
		e.l.Debug("could not queue close frame", "err", err)
	}
}

func (e *Engine) completeClose() {
	if !e.state.handshakeDone() {
		return
	}
	e.l.Debug("close handshake complete")
	e.state.enter(PhaseClosed)
}

// closed fires the close hook, resets the engine and drops the transport.
func (e *Engine) closed(t Transport) error {
	e.l.Debug("connection closed")
	e.fire(HookClose)
	e.Reset()

	err := t.Disconnect()
	if err != nil {
		return fmt.Errorf("failed to disconnect transport: [%w]", err)
	}
	return nil
}
