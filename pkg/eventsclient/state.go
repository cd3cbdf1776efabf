package eventsclient

// State is the connection state of a Client.
type State int

const (
	// StateDisconnected: no socket, or Stop was called.
	StateDisconnected State = iota
	// StateConnecting: a socket exists and is (re)connecting.
	StateConnecting
	// StateConnected: the socket is open and the registry has been replayed.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}
