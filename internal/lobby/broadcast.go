package lobby

import (
	"log"

	"playmatch/matchmaster/internal/hub"
)

// Event types sent to lobby subscribers.
const (
	EventLobbyData             = "lobby_data"
	EventMemberJoined          = "member_joined"
	EventMemberLeft            = "member_left"
	EventLeftLobby             = "left_lobby"
	EventLobbyPropertyChanged  = "lobby_property_changed"
	EventMemberPropertyChanged = "member_property_changed"
	EventTeamPropertyChanged   = "team_property_changed"
	EventMemberTeamChanged     = "member_team_changed"
	EventMemberReadyChanged    = "member_ready_changed"
	EventMasterChanged         = "master_changed"
	EventStateChanged          = "state_changed"
	EventStatusTextChanged     = "status_text_changed"
	EventChatMessage           = "chat_message"
)

// SystemSender is the chat sender of messages generated by the lobby.
const SystemSender = "System"

// PropertyChange is the payload of the property events.
type PropertyChange struct {
	LobbyID  int64  `json:"lobby_id"`
	Username string `json:"username,omitempty"`
	Team     string `json:"team,omitempty"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// MemberChange is the payload of member events.
type MemberChange struct {
	LobbyID  int64       `json:"lobby_id"`
	Username string      `json:"username"`
	Team     string      `json:"team,omitempty"`
	IsReady  bool        `json:"is_ready,omitempty"`
	Member   *MemberData `json:"member,omitempty"`
}

// StateChange is the payload of state and status text events.
type StateChange struct {
	LobbyID    int64  `json:"lobby_id"`
	State      State  `json:"state"`
	StatusText string `json:"status_text"`
}

// MasterChange is the payload of master_changed.
type MasterChange struct {
	LobbyID    int64  `json:"lobby_id"`
	GameMaster string `json:"game_master"`
}

// ChatMessage is the payload of chat_message.
type ChatMessage struct {
	LobbyID int64  `json:"lobby_id"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
	IsError bool   `json:"is_error"`
}

// Control describes a lobby property clients may render as a setting.
type Control struct {
	Label        string   `json:"label"`
	PropertyKey  string   `json:"property_key"`
	Options      []string `json:"options,omitempty"`
	DefaultValue string   `json:"default_value"`
}

// Data is a full lobby snapshot.
type Data struct {
	LobbyID             int64             `json:"lobby_id"`
	LobbyType           string            `json:"lobby_type"`
	LobbyName           string            `json:"lobby_name"`
	State               State             `json:"state"`
	StatusText          string            `json:"status_text"`
	GameMaster          string            `json:"game_master"`
	CurrentUsername     string            `json:"current_username,omitempty"`
	MaxPlayers          int               `json:"max_players"`
	MinPlayers          int               `json:"min_players"`
	PlayerCount         int               `json:"player_count"`
	Properties          map[string]string `json:"properties"`
	Members             []MemberData      `json:"members"`
	Teams               []TeamData        `json:"teams"`
	Controls            []Control         `json:"controls"`
	EnableTeamSwitching bool              `json:"enable_team_switching"`
	EnableReadySystem   bool              `json:"enable_ready_system"`
	EnableManualStart   bool              `json:"enable_manual_start"`
	EnableGameMasters   bool              `json:"enable_game_masters"`
	AutoStart           bool              `json:"auto_start"`
	GameIP              string            `json:"game_ip,omitempty"`
	GamePort            int               `json:"game_port,omitempty"`
}

// Subscribe adds a peer to the lobby broadcasts.
func (l *Lobby) Subscribe(p Peer) {
	l.subscribers[p.ID()] = p
}

// Unsubscribe removes a peer from the lobby broadcasts.
func (l *Lobby) Unsubscribe(p Peer) {
	delete(l.subscribers, p.ID())
}

// Publish sends an event to every subscriber accepted by filter. A nil
// filter accepts everybody.
func (l *Lobby) Publish(eventType string, payload any, filter func(Peer) bool) {
	event := hub.Event{Type: eventType, Payload: payload}
	for _, p := range l.subscribers {
		if filter != nil && !filter(p) {
			continue
		}
		l.send(p, event)
	}
}

func (l *Lobby) send(p Peer, event hub.Event) {
	if err := p.Send(event); err != nil {
		log.Printf("lobby %d: send %s to peer %d: %v", l.ID, event.Type, p.ID(), err)
	}
}

func except(peer Peer) func(Peer) bool {
	id := peer.ID()
	return func(p Peer) bool { return p.ID() != id }
}

// BroadcastChatMessage sends a chat line to every subscriber. An empty
// sender means the lobby itself.
func (l *Lobby) BroadcastChatMessage(message string, isError bool, sender string) {
	if sender == "" {
		sender = SystemSender
	}
	l.Publish(EventChatMessage, ChatMessage{
		LobbyID: l.ID,
		Sender:  sender,
		Message: message,
		IsError: isError,
	}, nil)
}

// GenerateLobbyData builds a snapshot. When forPlayer is a member the
// snapshot carries their username.
func (l *Lobby) GenerateLobbyData(forPlayer *Player) Data {
	d := Data{
		LobbyID:             l.ID,
		LobbyType:           l.Type,
		LobbyName:           l.Name,
		State:               l.state,
		StatusText:          l.statusText,
		MaxPlayers:          l.MaxPlayers(),
		MinPlayers:          l.MinPlayers,
		PlayerCount:         l.members.len(),
		Properties:          copyProps(l.properties),
		Members:             make([]MemberData, 0, l.members.len()),
		Teams:               make([]TeamData, 0, len(l.teams)),
		Controls:            append([]Control(nil), l.controls...),
		EnableTeamSwitching: l.Config.EnableTeamSwitching,
		EnableReadySystem:   l.Config.EnableReadySystem,
		EnableManualStart:   l.Config.EnableManualStart,
		EnableGameMasters:   l.Config.EnableGameMasters,
		AutoStart:           l.autoStart != nil,
		GameIP:              l.gameIP,
		GamePort:            l.gamePort,
	}
	if l.gameMaster != nil {
		d.GameMaster = l.gameMaster.Username
	}
	for _, m := range l.members.list() {
		d.Members = append(d.Members, m.data())
	}
	for _, t := range l.teams {
		d.Teams = append(d.Teams, t.data())
	}
	if forPlayer != nil && forPlayer.Peer != nil {
		if m, ok := l.members.byPeerID(forPlayer.Peer.ID()); ok {
			d.CurrentUsername = m.Username
		}
	}
	return d
}
