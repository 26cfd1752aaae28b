package lobby

// State is a step of the lobby lifecycle.
type State int

const (
	StatePreparations State = iota
	StateStartingGameServer
	StateGameInProgress
	StateGameOver
	StateFailedToStart
)

func (s State) String() string {
	switch s {
	case StatePreparations:
		return "preparations"
	case StateStartingGameServer:
		return "starting_game_server"
	case StateGameInProgress:
		return "game_in_progress"
	case StateGameOver:
		return "game_over"
	case StateFailedToStart:
		return "failed_to_start"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s State) statusText() string {
	switch s {
	case StatePreparations:
		return "Waiting for players"
	case StateStartingGameServer:
		return "Starting game server"
	case StateGameInProgress:
		return "Game in progress"
	case StateGameOver:
		return "Game is over"
	case StateFailedToStart:
		return "Failed to start game server"
	default:
		return ""
	}
}
