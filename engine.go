package wsengine

import (
	"log/slog"

	"github.com/wmdanor/wsengine/internal"
)

// Engine drives a single WebSocket connection. It never blocks and owns no
// goroutines: all decoding, keepalive and flushing happen inside Poll.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	l     *slog.Logger
	clock Clock

	role     Role
	capacity int

	state   State
	started bool
	ka      keepalive

	// single outbound frame
	out      []byte
	outLen   int
	outOp    Opcode
	sendBusy bool

	// single inbound payload
	in     []byte
	inLen  int
	inOp   Opcode
	inRecv bool

	peerClose    CloseCode
	hasPeerClose bool

	maskEnabled bool
	maskKey     MaskKey
	maskFresh   bool

	handlers [hookCount]func()
}

func New(cfg Config) *Engine {
	e := &Engine{
		l:           cfg.logger(),
		clock:       cfg.Clock,
		role:        cfg.Role,
		capacity:    cfg.maxPayload(),
		maskEnabled: cfg.MaskEnabled,
		ka: keepalive{
			idleBudget: cfg.idleBudget(),
			retryMax:   cfg.retryMax(),
		},
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}

	e.out = make([]byte, internal.MaxHeaderSize+e.capacity)
	e.in = make([]byte, e.capacity)

	e.Reset()

	if cfg.MaskKey != nil {
		e.RefreshMask(*cfg.MaskKey)
	}

	e.l.Debug("engine created",
		"role", e.role,
		"capacity", e.capacity,
		"idleBudget", e.ka.idleBudget,
		"retryMax", e.ka.retryMax,
		"maskEnabled", e.maskEnabled)

	return e
}

// Reset returns the connection to Idle and clears both buffers, the keepalive
// counters and the mask freshness. Role, budgets, mask settings and handlers
// are kept.
func (e *Engine) Reset() {
	e.l.Debug("resetting engine", "state", e.state)

	e.state.enter(PhaseIdle)
	e.started = false
	e.ka.reset(e.clock.Now())

	e.outLen = 0
	e.outOp = 0
	e.sendBusy = false

	e.inLen = 0
	e.inOp = 0
	e.inRecv = false

	e.peerClose = 0
	e.hasPeerClose = false

	e.maskFresh = false
}

// Start opens the connection. It is a no-op unless the engine is Idle or Closed.
func (e *Engine) Start() {
	p := e.state.Phase()
	if p != PhaseIdle && p != PhaseClosed {
		e.l.Debug("engine already started, ignoring start", "state", e.state)
		return
	}

	e.state.enter(PhaseOpen)
	e.started = true
	e.ka.reset(e.clock.Now())

	e.l.Debug("engine started", "role", e.role)
	e.fire(HookOpen)
}

func (e *Engine) IsStarted() bool {
	return e.started
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) Role() Role {
	return e.role
}

func (e *Engine) SetRole(r Role) {
	e.role = r
}

// Capacity is the largest payload the engine can send or receive.
func (e *Engine) Capacity() int {
	return e.capacity
}

func (e *Engine) SetMaskEnabled(enabled bool) {
	e.maskEnabled = enabled
}

func (e *Engine) MaskEnabled() bool {
	return e.maskEnabled
}

// RefreshMask installs the key used to mask the next outbound payloads.
// The key stays fresh until a non-empty payload is masked with it.
func (e *Engine) RefreshMask(key MaskKey) {
	e.maskKey = key
	e.maskFresh = true
}

func (e *Engine) IsSendBusy() bool {
	return e.sendBusy
}

// Available returns the length of the payload waiting in the inbound buffer.
func (e *Engine) Available() int {
	return e.inLen
}

// LastOpcode returns the opcode of the last successfully decoded frame.
// ok is false when nothing was decoded since the last reset.
func (e *Engine) LastOpcode() (op Opcode, ok bool) {
	return e.inOp, e.inRecv
}

// ReadPayload copies the inbound payload into dst and empties the inbound buffer.
// Bytes that do not fit in dst are discarded.
func (e *Engine) ReadPayload(dst []byte) int {
	n := copy(dst, e.in[:e.inLen])
	e.inLen = 0
	return n
}
