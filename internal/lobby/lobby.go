// Package lobby implements the lobby match engine: team rosters, readiness,
// game-master election and the state machine that hands a lobby over to a
// spawned game server.
//
// A lobby is not safe for concurrent use. Every call, including the
// callbacks it registers with peers, spawn tasks and rooms, must run on the
// executor passed in Deps.
package lobby

import (
	"log"
	"strconv"

	"playmatch/matchmaster/internal/rooms"
	"playmatch/matchmaster/internal/spawn"
)

// Well-known lobby properties.
const (
	PropName   = "name"
	PropRegion = "region"
	PropMap    = "map"
)

// Lobby is a pre-match gathering of players organized into teams.
type Lobby struct {
	ID     int64
	Name   string
	Type   string
	Config Config
	// MinPlayers is the lobby-wide minimum to start a game.
	MinPlayers int
	// IsPlayerAllowed, when set, can reject players before they join.
	IsPlayerAllowed func(p *Player) (bool, string)

	deps       Deps
	state      State
	statusText string
	properties map[string]string
	controls   []Control
	teams      []*Team
	members    memberTable

	subscribers map[int64]Peer
	disconnects map[int64]func()
	gameMaster  *Member

	spawnTask      SpawnTask
	cancelTask     func()
	lastTaskStatus spawn.Status
	room           Room
	cancelRoom     func()
	gameIP         string
	gamePort       int

	autoStart *AutoStart

	destroyed          bool
	destroyedListeners []func(*Lobby)
	stateListeners     []func(*Lobby, State)
}

// New creates a lobby in the preparations state.
func New(id int64, name string, teams []*Team, cfg Config, deps Deps) *Lobby {
	l := &Lobby{
		ID:          id,
		Name:        name,
		Config:      cfg,
		deps:        deps,
		state:       StatePreparations,
		statusText:  StatePreparations.statusText(),
		properties:  make(map[string]string),
		members:     newMemberTable(),
		subscribers: make(map[int64]Peer),
		disconnects: make(map[int64]func()),
	}
	for _, t := range teams {
		l.AddTeam(t)
	}
	l.properties[PropName] = name
	return l
}

// AddTeam appends a team. Teams must be added before players join.
func (l *Lobby) AddTeam(t *Team) bool {
	if l.Team(t.Name) != nil {
		return false
	}
	l.teams = append(l.teams, t)
	return true
}

// AddControl registers a setting clients can change and seeds its default.
func (l *Lobby) AddControl(c Control) {
	l.controls = append(l.controls, c)
	if _, ok := l.properties[c.PropertyKey]; !ok {
		l.properties[c.PropertyKey] = c.DefaultValue
	}
}

// Team returns the team with the given name.
func (l *Lobby) Team(name string) *Team {
	for _, t := range l.teams {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Teams returns the teams in order.
func (l *Lobby) Teams() []*Team { return append([]*Team(nil), l.teams...) }

// MaxPlayers is the sum of team capacities.
func (l *Lobby) MaxPlayers() int {
	n := 0
	for _, t := range l.teams {
		n += t.MaxPlayers
	}
	return n
}

// PlayerCount returns the number of members.
func (l *Lobby) PlayerCount() int { return l.members.len() }

// Members returns members in join order.
func (l *Lobby) Members() []*Member { return l.members.list() }

// Member returns the member backed by p.
func (l *Lobby) Member(p *Player) (*Member, bool) {
	if p == nil || p.Peer == nil {
		return nil, false
	}
	return l.members.byPeerID(p.Peer.ID())
}

// MemberByUsername returns the member with the given username.
func (l *Lobby) MemberByUsername(username string) (*Member, bool) {
	return l.members.byName(username)
}

// GameMaster returns the current game master, or nil.
func (l *Lobby) GameMaster() *Member { return l.gameMaster }

// State returns the lifecycle state.
func (l *Lobby) State() State { return l.state }

// StatusText returns the human-readable status.
func (l *Lobby) StatusText() string { return l.statusText }

// IsDestroyed reports whether the lobby was destroyed.
func (l *Lobby) IsDestroyed() bool { return l.destroyed }

// GameAddress returns the address of the running game server.
func (l *Lobby) GameAddress() (string, int) { return l.gameIP, l.gamePort }

// RoomID returns the id of the room backing the running game, if any.
func (l *Lobby) RoomID() string {
	if l.room == nil {
		return ""
	}
	return l.room.ID()
}

// Property returns a lobby property.
func (l *Lobby) Property(key string) string { return l.properties[key] }

// Properties returns a copy of the lobby properties.
func (l *Lobby) Properties() map[string]string { return copyProps(l.properties) }

// OnDestroyed registers fn to run once when the lobby is destroyed.
func (l *Lobby) OnDestroyed(fn func(*Lobby)) {
	l.destroyedListeners = append(l.destroyedListeners, fn)
}

// OnStateChanged registers fn to run after every state change.
func (l *Lobby) OnStateChanged(fn func(*Lobby, State)) {
	l.stateListeners = append(l.stateListeners, fn)
}

// SetProperty sets a lobby property without permission checks.
func (l *Lobby) SetProperty(key, value string) {
	l.properties[key] = value
	if key == PropName {
		l.Name = value
	}
	l.Publish(EventLobbyPropertyChanged, PropertyChange{LobbyID: l.ID, Key: key, Value: value}, nil)
}

// SetStatusText updates the status text and broadcasts it when it changed.
func (l *Lobby) SetStatusText(text string) {
	if l.statusText == text {
		return
	}
	l.statusText = text
	l.Publish(EventStatusTextChanged, StateChange{LobbyID: l.ID, State: l.state, StatusText: text}, nil)
}

func (l *Lobby) setState(s State) {
	if l.state == s {
		return
	}
	prev := l.state
	l.state = s
	for _, m := range l.members.list() {
		m.ready = false
	}
	log.Printf("lobby %d: state %s -> %s", l.ID, prev, s)
	l.Publish(EventStateChanged, StateChange{LobbyID: l.ID, State: s, StatusText: l.statusText}, nil)
	l.SetStatusText(s.statusText())
	for _, fn := range l.stateListeners {
		fn(l, s)
	}
}

// StartGame asks the spawner for a game server. It returns false when the
// lobby is destroyed or the spawner declines.
func (l *Lobby) StartGame() bool {
	if l.destroyed {
		return false
	}
	if l.deps.Spawner == nil {
		l.BroadcastChatMessage("Servers are busy", true, "")
		return false
	}
	task := l.deps.Spawner.Spawn(l.spawnProperties(), l.properties[PropRegion], l.commandArgs())
	if task == nil {
		l.BroadcastChatMessage("Servers are busy", true, "")
		return false
	}

	l.setState(StateStartingGameServer)
	l.attachTask(task)
	return true
}

func (l *Lobby) spawnProperties() map[string]string {
	props := copyProps(l.properties)
	props["lobbyId"] = strconv.FormatInt(l.ID, 10)
	props["lobbyType"] = l.Type
	props["maxPlayers"] = strconv.Itoa(l.MaxPlayers())
	return props
}

func (l *Lobby) commandArgs() []string {
	args := []string{"-lobbyId", strconv.FormatInt(l.ID, 10)}
	if m := l.properties[PropMap]; m != "" {
		args = append(args, "-map", m)
	}
	return args
}

func (l *Lobby) attachTask(task SpawnTask) {
	l.detachTask()
	l.spawnTask = task
	l.lastTaskStatus = spawn.StatusNone
	l.cancelTask = task.OnStatusChanged(func(s spawn.Status) {
		l.post(func() { l.onTaskStatus(task, s) })
	})
	// Statuses reached before the subscription are not replayed.
	l.onTaskStatus(task, task.Status())
}

func (l *Lobby) detachTask() {
	if l.cancelTask != nil {
		l.cancelTask()
	}
	l.cancelTask = nil
	l.spawnTask = nil
}

func (l *Lobby) detachRoom() {
	if l.cancelRoom != nil {
		l.cancelRoom()
	}
	l.cancelRoom = nil
	l.room = nil
	l.gameIP = ""
	l.gamePort = 0
}

func (l *Lobby) post(fn func()) { post(l.deps, fn) }

func (l *Lobby) afterReplay(otherwise State) State {
	if l.Config.PlayAgainEnabled {
		return StatePreparations
	}
	return otherwise
}

func (l *Lobby) onTaskStatus(task SpawnTask, s spawn.Status) {
	if l.destroyed || l.spawnTask != task {
		return
	}
	// Listeners run on whichever goroutine moved the task, so statuses can
	// arrive out of order. Only ended statuses may follow a higher one.
	if s >= spawn.StatusNone && s <= l.lastTaskStatus {
		return
	}
	l.lastTaskStatus = s

	switch {
	case s.InProgress():
		if l.state != StateStartingGameServer {
			l.setState(StateStartingGameServer)
		}
	case s.Ended():
		l.onTaskEnded()
	case s == spawn.StatusFinalized:
		l.onGameServerFinalized(task)
	}
}

func (l *Lobby) onTaskEnded() {
	wasStarting := l.state == StateStartingGameServer
	l.detachTask()
	l.detachRoom()
	if wasStarting {
		l.BroadcastChatMessage("Failed to start a game server", true, "")
		l.setState(l.afterReplay(StateFailedToStart))
		return
	}
	l.setState(l.afterReplay(StateGameOver))
}

func (l *Lobby) onGameServerFinalized(task SpawnTask) {
	roomID := task.FinalizationData()[spawn.FinalizationRoomID]
	var room Room
	var ok bool
	if roomID != "" && l.deps.Rooms != nil {
		room, ok = l.deps.Rooms.Room(roomID)
	}
	if !ok {
		log.Printf("lobby %d: game server finalized without a known room (%q)", l.ID, roomID)
		l.BroadcastChatMessage("Game server finalized, but room ID cannot be found", true, "")
		l.detachTask()
		task.Kill()
		l.setState(l.afterReplay(StateFailedToStart))
		return
	}

	l.detachRoom()
	l.room = room
	l.gameIP, l.gamePort = room.Address()
	l.cancelRoom = room.OnDestroyed(func() {
		l.post(func() { l.onRoomDestroyed(room) })
	})
	l.setState(StateGameInProgress)
}

func (l *Lobby) onRoomDestroyed(room Room) {
	if l.destroyed || l.room != room {
		return
	}
	l.detachRoom()
	l.detachTask()
	l.setState(l.afterReplay(StateGameOver))
}

// HandleGameAccessRequest issues the player an access token for the
// running game server.
func (l *Lobby) HandleGameAccessRequest(p *Player, extra map[string]string) (rooms.Access, error) {
	m, ok := l.Member(p)
	if !ok {
		return rooms.Access{}, errNotMember
	}
	if l.room == nil {
		return rooms.Access{}, reject(RejectConflict, "Game is not running")
	}
	props := copyProps(extra)
	props[rooms.PropLobbyID] = strconv.FormatInt(l.ID, 10)
	if m.team != nil {
		props["team"] = m.team.Name
	}
	access, err := l.room.GetAccess(m.Username, props)
	if err != nil {
		return rooms.Access{}, reject(RejectConflict, "Failed to get access to the game: %v", err)
	}
	return access, nil
}

// Destroy removes every member, stops the spawn task and notifies
// listeners. Calling it again does nothing.
func (l *Lobby) Destroy() {
	if l.destroyed {
		return
	}
	l.destroyed = true
	log.Printf("lobby %d: destroyed", l.ID)

	for _, m := range l.members.list() {
		l.RemovePlayer(m.Player)
	}
	if task := l.spawnTask; task != nil {
		l.detachTask()
		task.Kill()
	}
	l.detachRoom()

	for _, fn := range l.destroyedListeners {
		fn(l)
	}
}
