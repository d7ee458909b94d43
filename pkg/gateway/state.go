package gateway

// State is the lifecycle phase of a Session.
type State int

const (
	// StateInitial is the state before Run is called.
	StateInitial State = iota

	// StatePullingGateway means the session is fetching a gateway URL.
	StatePullingGateway

	// StateConnecting means the websocket is dialing or waiting for hello.
	StateConnecting

	// StateOpen means the handshake succeeded and events are flowing.
	StateOpen

	// StateClosed is terminal: disconnected and not coming back.
	StateClosed

	// StateReconnecting means the session is waiting out a backoff delay.
	StateReconnecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StatePullingGateway:
		return "PullingGateway"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateClosed:
		return "Closed"
	case StateReconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}
