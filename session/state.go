package session

// State tracks where the session is in its lifecycle. Transitions are driven
// by handshake completion, server events, and fatal errors; they only move
// forward except for the Ready/Interrupted pair.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingSetupAck
	StateReady
	StateInterrupted
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingSetupAck:
		return "awaiting_setup_ack"
	case StateReady:
		return "ready"
	case StateInterrupted:
		return "interrupted"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
