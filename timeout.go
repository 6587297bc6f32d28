package wsengine

import "time"

const (
	DefaultIdleBudget = 2000 * time.Millisecond
	MinIdleBudget     = 1000 * time.Millisecond
	DefaultRetryMax   = 3
)

// keepalive tracks peer inactivity for the server role.
type keepalive struct {
	lastActivity time.Time
	idleBudget   time.Duration
	retryCount   uint8
	retryMax     uint8
}

func (k *keepalive) refresh(now time.Time) {
	k.lastActivity = now
}

func (k *keepalive) reset(now time.Time) {
	k.refresh(now)
	k.retryCount = 0
}

func (k *keepalive) elapsed(now time.Time) bool {
	return now.Sub(k.lastActivity) >= k.idleBudget
}

func (k *keepalive) exhausted() bool {
	return k.retryCount >= k.retryMax
}

// checkKeepalive pings an idle peer and forces the connection closed once
// retryMax pings went unanswered.
func (e *Engine) checkKeepalive() {
	if e.role != RoleServer {
		return
	}

	p := e.state.Phase()
	if p != PhaseOpen && p != PhaseClosing {
		return
	}

	now := e.clock.Now()
	if !e.ka.elapsed(now) {
		return
	}

	if e.ka.exhausted() {
		e.l.Debug("keepalive retries exhausted, forcing close",
			"retryCount", e.ka.retryCount, "retryMax", e.ka.retryMax)
		e.state.enter(PhaseClosed)
		err := e.enqueue(OpcodeClose, nil)
		if err != nil {
			e.l.Debug("could not queue close frame", "err", err)
		}
		e.fire(HookTimeoutClose)
		return
	}

	e.ka.retryCount++
	e.ka.refresh(now)
	e.l.Debug("peer idle, sending ping", "retryCount", e.ka.retryCount, "retryMax", e.ka.retryMax)
	err := e.enqueue(OpcodePing, nil)
	if err != nil {
		e.l.Debug("could not queue ping frame", "err", err)
	}
	e.fire(HookTimeoutRetry)
}

// SetIdleBudget sets how long the peer may stay silent before a ping is sent.
// Values below MinIdleBudget are raised to it.
func (e *Engine) SetIdleBudget(d time.Duration) {
	if d < MinIdleBudget {
		d = MinIdleBudget
	}
	e.ka.idleBudget = d
}

func (e *Engine) IdleBudget() time.Duration {
	return e.ka.idleBudget
}

func (e *Engine) SetRetryMax(max uint8) {
	e.ka.retryMax = max
}

func (e *Engine) RetryMax() uint8 {
	return e.ka.retryMax
}

func (e *Engine) SetRetryCount(count uint8) {
	e.ka.retryCount = count
}

func (e *Engine) RetryCount() uint8 {
	return e.ka.retryCount
}
