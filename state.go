package wsengine

import "strings"

// Phase is the macro state of the connection.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseOpen
	PhaseClosing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOpen:
		return "open"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseFlags records which side of the close handshake has happened.
// Only meaningful while the phase is PhaseClosing.
type CloseFlags uint8

const (
	ReceivedClose CloseFlags = 1 << iota
	SentClose
)

func (f CloseFlags) Has(flag CloseFlags) bool {
	return f&flag == flag
}

func (f CloseFlags) String() string {
	var parts []string
	if f.Has(ReceivedClose) {
		parts = append(parts, "received")
	}
	if f.Has(SentClose) {
		parts = append(parts, "sent")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// State is the composite connection state: a phase plus close handshake flags.
type State struct {
	phase Phase
	flags CloseFlags
}

func (s State) Phase() Phase      { return s.phase }
func (s State) Flags() CloseFlags { return s.flags }

func (s State) String() string {
	if s.phase == PhaseClosing {
		return s.phase.String() + "(" + s.flags.String() + ")"
	}
	return s.phase.String()
}

func (s *State) enter(p Phase) {
	s.phase = p
	if p == PhaseIdle || p == PhaseOpen {
		s.flags = 0
	}
}

func (s *State) mark(f CloseFlags) {
	if s.phase == PhaseClosing {
		s.flags |= f
	}
}

func (s State) handshakeDone() bool {
	return s.phase == PhaseClosing && s.flags.Has(ReceivedClose|SentClose)
}
