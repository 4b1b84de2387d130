// ABOUTME: Connection state machine values for the push channel
// ABOUTME: Disconnected -> Connecting -> Connected, with Reconnecting and Degraded on failure

package channel

// State is the lifecycle state of the push channel.
type State int

const (
	// StateDisconnected is the initial state and the result of an explicit Disconnect.
	StateDisconnected State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the channel is live and frames flow.
	StateConnected
	// StateReconnecting means the channel dropped unexpectedly and retries are running.
	StateReconnecting
	// StateDegraded means reconnect attempts are exhausted. Terminal until an
	// explicit Connect call.
	StateDegraded
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}
