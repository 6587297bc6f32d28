package wsengine

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/multierr"

	"github.com/wmdanor/wsengine/internal"
)

// Poll runs one engine cycle against t: decode at most one frame, react to it,
// run keepalive, flush the outbound frame and finish the close handshake.
//
// Errors from decoding and from the transport are combined and returned after
// the whole cycle has run. A failed decode does not change the connection state.
func (e *Engine) Poll(t Transport) error {
	if !e.started {
		return ErrConnectionNotStarted
	}

	var err error

	if internal.Require(t, internal.BaseHeaderSize) >= internal.BaseHeaderSize {
		op, rerr := e.readFrame(t)
		if rerr != nil {
			e.l.Debug("failed to read frame", "err", rerr)
			err = multierr.Append(err, rerr)
		} else {
			e.fire(HookReceive)
			e.react(op)
		}
	}

	e.checkKeepalive()
	e.ensureCloseQueued()

	err = multierr.Append(err, e.flush(t))

	e.completeClose()

	if e.state.Phase() == PhaseClosed {
		return multierr.Append(err, e.closed(t))
	}

	if !e.sendBusy && !e.maskFresh {
		e.fire(HookMaskRefresh)
	}

	return err
}

func (e *Engine) readFrame(t Transport) (Opcode, error) {
	e.inLen = 0

	f, err := internal.DecodeHeader(t)
	if err != nil {
		return 0, fmt.Errorf("failed to decode frame header: [%w]", err)
	}

	e.l.Debug("read frame header",
		"opcode", f.Opcode,
		"isFinal", f.IsFinalFrame,
		"isMasked", f.IsMasked,
		"payloadLength", f.PayloadLength)

	n, err := internal.DecodePayload(t, f, e.in)
	if err != nil {
		return 0, fmt.Errorf("failed to decode %v frame payload of %d bytes: [%w]", f.Opcode, f.PayloadLength, err)
	}

	e.inLen = n
	e.inOp = f.Opcode
	e.inRecv = true
	e.ka.reset(e.clock.Now())

	return f.Opcode, nil
}

func (e *Engine) react(op Opcode) {
	switch e.state.Phase() {
	case PhaseOpen:
		e.reactOpen(op)
	case PhaseClosing:
		e.reactClosing(op)
	default:
		e.l.Debug("frame received outside of open connection", "opcode", op, "state", e.state)
	}
}

func (e *Engine) reactOpen(op Opcode) {
	switch op {
	case OpcodeClose:
		e.recordPeerClose()
		e.state.enter(PhaseClosing)
		e.state.mark(ReceivedClose)
		e.l.Debug("received close frame, echoing", "code", e.peerClose)
		if e.sendBusy {
			e.l.Debug("send slot busy, close echo deferred")
			return
		}
		err := e.enqueue(OpcodeClose, nil)
		if err != nil {
			e.l.Debug("could not queue close frame", "err", err)
		}
	case OpcodePing:
		e.fire(HookPing)
	case OpcodePong:
		e.fire(HookPong)
	default:
		e.l.Debug("payload ready", "opcode", op, "length", e.inLen)
	}
}

func (e *Engine) reactClosing(op Opcode) {
	switch op {
	case OpcodeClose:
		e.recordPeerClose()
		e.state.mark(ReceivedClose)
		e.l.Debug("received close frame while closing", "state", e.state)
	default:
		e.l.Debug("ignoring frame while closing", "opcode", op)
	}
}

func (e *Engine) recordPeerClose() {
	if e.inLen < 2 {
		return
	}
	e.peerClose = CloseCode(binary.BigEndian.Uint16(e.in[:2]))
	e.hasPeerClose = true
}
