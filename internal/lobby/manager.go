package lobby

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// ErrFactoryExists is returned when a lobby type is registered twice.
var ErrFactoryExists = errors.New("lobby factory already registered")

// ManagerConfig holds the lobby creation rules.
type ManagerConfig struct {
	// CreateLobbiesPermissionLevel is the minimum security level needed to
	// create lobbies.
	CreateLobbiesPermissionLevel int
	DontAllowCreatingIfJoined    bool
}

// Match outcomes.
const (
	OutcomeStarted  = "started"
	OutcomeFinished = "finished"
	OutcomeFailed   = "failed"
)

// MatchSummary describes one game played by a lobby.
type MatchSummary struct {
	LobbyID   int64
	LobbyName string
	LobbyType string
	Region    string
	RoomID    string
	Players   []string
	Outcome   string
	StartedAt time.Time
	At        time.Time
}

// MatchRecorder keeps a history of played games. It is called on the
// lobby executor and must not block.
type MatchRecorder interface {
	RecordMatch(MatchSummary)
}

// Summary is the public listing entry of a lobby.
type Summary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Region      string `json:"region,omitempty"`
	State       State  `json:"state"`
	StatusText  string `json:"status_text"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
}

// Manager owns every lobby of the process and the per-connection players.
// Like the lobbies it manages, it must only be used from the executor.
type Manager struct {
	Recorder MatchRecorder

	cfg       ManagerConfig
	deps      Deps
	factories map[string]Factory
	lobbies   map[int64]*Lobby
	players   map[int64]*Player
	matches   map[int64]MatchSummary
	nextID    int64
}

// NewManager creates a manager with the built-in lobby types.
func NewManager(cfg ManagerConfig, deps Deps) *Manager {
	return &Manager{
		cfg:       cfg,
		deps:      deps,
		factories: BuiltinFactories(),
		lobbies:   make(map[int64]*Lobby),
		players:   make(map[int64]*Player),
		matches:   make(map[int64]MatchSummary),
	}
}

// AddFactory registers a lobby type.
func (m *Manager) AddFactory(typ string, f Factory) error {
	typ = strings.TrimSpace(typ)
	if _, ok := m.factories[typ]; ok {
		return fmt.Errorf("%w: %s", ErrFactoryExists, typ)
	}
	m.factories[typ] = f
	return nil
}

// Types returns the registered lobby types, sorted.
func (m *Manager) Types() []string {
	out := make([]string, 0, len(m.factories))
	for typ := range m.factories {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Player returns the player attached to peer, creating it on first use.
// The player is forgotten when the peer disconnects.
func (m *Manager) Player(peer Peer, userID uint, username string, securityLevel int) *Player {
	if p, ok := m.players[peer.ID()]; ok {
		return p
	}
	p := &Player{
		Peer:          peer,
		UserID:        userID,
		Username:      username,
		SecurityLevel: securityLevel,
	}
	m.players[peer.ID()] = p
	id := peer.ID()
	peer.OnDisconnect(func() {
		post(m.deps, func() { delete(m.players, id) })
	})
	return p
}

// PlayerByPeer returns the player attached to the peer id.
func (m *Manager) PlayerByPeer(id int64) (*Player, bool) {
	p, ok := m.players[id]
	return p, ok
}

// CreateLobby builds a lobby of type typ and adds the creator to it.
func (m *Manager) CreateLobby(p *Player, typ string, props map[string]string) (*Lobby, error) {
	factory, ok := m.factories[typ]
	if !ok {
		return nil, reject(RejectInvalid, "Invalid lobby type")
	}
	if p.SecurityLevel < m.cfg.CreateLobbiesPermissionLevel {
		return nil, reject(RejectForbidden, "You don't have permission to create lobbies")
	}
	if current := p.Lobby(); current != nil {
		if m.cfg.DontAllowCreatingIfJoined {
			return nil, reject(RejectConflict, "You're already in a lobby")
		}
		current.RemovePlayer(p)
	}

	m.nextID++
	l := factory(m.nextID, copyProps(props), m.deps)
	m.lobbies[l.ID] = l
	l.OnDestroyed(m.onLobbyDestroyed)
	l.OnStateChanged(m.onLobbyStateChanged)
	log.Printf("lobby %d: created %s %q by %s", l.ID, l.Type, l.Name, p.Username)

	if err := l.AddPlayer(p); err != nil {
		l.Destroy()
		return nil, err
	}
	return l, nil
}

// Lobby returns the lobby with the given id.
func (m *Manager) Lobby(id int64) (*Lobby, bool) {
	l, ok := m.lobbies[id]
	return l, ok
}

// Lobbies returns the open lobbies ordered by id.
func (m *Manager) Lobbies() []*Lobby {
	out := make([]*Lobby, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Summaries lists the open lobbies.
func (m *Manager) Summaries() []Summary {
	lobbies := m.Lobbies()
	out := make([]Summary, 0, len(lobbies))
	for _, l := range lobbies {
		out = append(out, Summary{
			ID:          l.ID,
			Name:        l.Name,
			Type:        l.Type,
			Region:      l.properties[PropRegion],
			State:       l.state,
			StatusText:  l.statusText,
			PlayerCount: l.members.len(),
			MaxPlayers:  l.MaxPlayers(),
		})
	}
	return out
}

// Shutdown destroys every lobby.
func (m *Manager) Shutdown() {
	for _, l := range m.Lobbies() {
		l.Destroy()
	}
}

func (m *Manager) onLobbyDestroyed(l *Lobby) {
	delete(m.lobbies, l.ID)
	if match, ok := m.matches[l.ID]; ok {
		delete(m.matches, l.ID)
		m.record(match, OutcomeFinished)
	}
}

func (m *Manager) onLobbyStateChanged(l *Lobby, s State) {
	match, playing := m.matches[l.ID]
	switch {
	case s == StateGameInProgress:
		match = MatchSummary{
			LobbyID:   l.ID,
			LobbyName: l.Name,
			LobbyType: l.Type,
			Region:    l.properties[PropRegion],
			RoomID:    l.RoomID(),
			StartedAt: time.Now(),
		}
		for _, member := range l.members.list() {
			match.Players = append(match.Players, member.Username)
		}
		m.matches[l.ID] = match
		m.record(match, OutcomeStarted)
	case playing:
		delete(m.matches, l.ID)
		m.record(match, OutcomeFinished)
	case s == StateFailedToStart:
		m.record(MatchSummary{
			LobbyID:   l.ID,
			LobbyName: l.Name,
			LobbyType: l.Type,
			Region:    l.properties[PropRegion],
		}, OutcomeFailed)
	}
}

func (m *Manager) record(match MatchSummary, outcome string) {
	if m.Recorder == nil {
		return
	}
	match.Outcome = outcome
	match.At = time.Now()
	m.Recorder.RecordMatch(match)
}

func post(deps Deps, fn func()) {
	if deps.Executor == nil {
		fn()
		return
	}
	deps.Executor.Post(fn)
}
