package lobby

// Config toggles lobby behavior.
type Config struct {
	EnableTeamSwitching               bool `json:"enable_team_switching"`
	AllowJoiningWhenGameIsLive        bool `json:"allow_joining_when_game_is_live"`
	PlayAgainEnabled                  bool `json:"play_again_enabled"`
	EnableGameMasters                 bool `json:"enable_game_masters"`
	EnableReadySystem                 bool `json:"enable_ready_system"`
	EnableManualStart                 bool `json:"enable_manual_start"`
	StartGameWhenAllReady             bool `json:"start_game_when_all_ready"`
	AllowPlayersChangeLobbyProperties bool `json:"allow_players_change_lobby_properties"`
}

// DefaultConfig returns the configuration used by the built-in lobby types.
func DefaultConfig() Config {
	return Config{
		EnableTeamSwitching:               true,
		AllowJoiningWhenGameIsLive:        false,
		PlayAgainEnabled:                  true,
		EnableGameMasters:                 true,
		EnableReadySystem:                 true,
		EnableManualStart:                 true,
		StartGameWhenAllReady:             false,
		AllowPlayersChangeLobbyProperties: true,
	}
}
