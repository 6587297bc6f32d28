package wsengine

// Hook names a point in the engine lifecycle a handler can be attached to.
type Hook uint8

const (
	HookOpen Hook = iota + 1
	HookSend
	HookReceive
	HookTimeoutRetry
	HookTimeoutClose
	HookPing
	HookPong
	HookClose
	HookMaskRefresh

	hookCount
)

func (h Hook) String() string {
	switch h {
	case HookOpen:
		return "open"
	case HookSend:
		return "send"
	case HookReceive:
		return "receive"
	case HookTimeoutRetry:
		return "timeout-retry"
	case HookTimeoutClose:
		return "timeout-close"
	case HookPing:
		return "ping"
	case HookPong:
		return "pong"
	case HookClose:
		return "close"
	case HookMaskRefresh:
		return "mask-refresh"
	default:
		return "unknown"
	}
}

// SetHandler attaches fn to hook h, replacing any previous handler.
// A nil fn detaches it. Handlers run synchronously inside Start or Poll
// and must not call Poll themselves.
func (e *Engine) SetHandler(h Hook, fn func()) {
	if h == 0 || h >= hookCount {
		e.l.Debug("ignoring handler for unknown hook", "hook", uint8(h))
		return
	}
	e.handlers[h] = fn
}

func (e *Engine) fire(h Hook) {
	fn := e.handlers[h]
	if fn == nil {
		return
	}
	e.l.Debug("firing hook", "hook", h, "state", e.state)
	fn()
}
