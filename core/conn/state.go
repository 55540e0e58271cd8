package conn

// State is the stage of a connection session.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateStatic
	StateDispatching
	StateWriting
	StateClosing
	StateClosed
	StateUpgraded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateStatic:
		return "static"
	case StateDispatching:
		return "dispatching"
	case StateWriting:
		return "writing"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateUpgraded:
		return "upgraded"
	default:
		return "unknown"
	}
}
