package wsengine

import (
	"fmt"
	"io"

	"github.com/wmdanor/wsengine/internal"
)

// EnqueueText queues s as a single text frame.
func (e *Engine) EnqueueText(s string) error {
	return e.enqueue(OpcodeText, []byte(s))
}

// EnqueueBinary queues payload as a single frame with the given opcode.
func (e *Engine) EnqueueBinary(payload []byte, op Opcode) error {
	return e.enqueue(op, payload)
}

func (e *Engine) SendPing() error {
	return e.enqueue(OpcodePing, nil)
}

func (e *Engine) SendPong() error {
	return e.enqueue(OpcodePong, nil)
}

// enqueue encodes a frame into the outbound slot. The slot holds one frame;
// a second enqueue before the flush is rejected with ErrSendBusy.
func (e *Engine) enqueue(op Opcode, payload []byte) error {
	if e.sendBusy {
		return ErrSendBusy
	}

	if len(payload) > internal.MaxPayload {
		return fmt.Errorf("failed to queue %v frame of %d bytes: [%w]", op, len(payload), ErrUnsupportedLength)
	}
	if len(payload) > e.capacity {
		return fmt.Errorf("failed to queue %v frame of %d bytes, capacity %d: [%w]",
			op, len(payload), e.capacity, ErrPayloadTooLarge)
	}

	var key *internal.MaskKey
	if e.maskEnabled {
		k := internal.MaskKey(e.maskKey)
		key = &k
	}

	n, err := internal.Encode(e.out, op, payload, key)
	if err != nil {
		return fmt.Errorf("failed to encode %v frame: [%w]", op, err)
	}

	if key != nil && len(payload) > 0 {
		e.maskFresh = false
	}

	e.outLen = n
	e.outOp = op
	e.sendBusy = true

	e.l.Debug("queued frame", "opcode", op, "payloadLength", len(payload), "frameLength", n, "masked", key != nil)

	return nil
}

// flush writes the queued frame if there is one and the transport is connected.
func (e *Engine) flush(t Transport) error {
	if !e.started || !e.sendBusy || !t.IsConnected() {
		return nil
	}

	frame := e.out[:e.outLen]
	n, err := t.Write(frame)
	if err == nil && n < len(frame) {
		err = io.ErrShortWrite
	}
	if err != nil {
		if n > 0 {
			e.l.Debug("partial frame write, dropping frame", "opcode", e.outOp, "written", n, "frameLength", len(frame))
			e.sendBusy = false
			e.outLen = 0
		}
		return fmt.Errorf("failed to write %v frame: [%w]", e.outOp, err)
	}

	op := e.outOp
	e.sendBusy = false
	e.outLen = 0

	e.l.Debug("wrote frame", "opcode", op, "frameLength", n)

	if op == OpcodeClose {
		if e.state.Phase() == PhaseOpen {
			e.state.enter(PhaseClosing)
		}
		e.state.mark(SentClose)
	}

	e.fire(HookSend)

	return nil
}
