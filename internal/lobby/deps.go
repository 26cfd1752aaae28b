package lobby

import (
	"playmatch/matchmaster/internal/hub"
	"playmatch/matchmaster/internal/loop"
	"playmatch/matchmaster/internal/rooms"
	"playmatch/matchmaster/internal/spawn"
)

// Peer is a live client connection.
type Peer interface {
	ID() int64
	Send(event hub.Event) error
	// OnDisconnect registers fn to run when the connection is lost and
	// returns a function that removes it. fn runs right away when the
	// connection is already gone.
	OnDisconnect(fn func()) (cancel func())
	Closed() bool
}

// SpawnTask is a handle to a request to launch a game server.
type SpawnTask interface {
	Status() spawn.Status
	OnStatusChanged(fn func(spawn.Status)) (cancel func())
	FinalizationData() map[string]string
	Kill()
}

// Spawner launches game servers. Spawn returns nil when it declines.
type Spawner interface {
	Spawn(props map[string]string, region string, args []string) SpawnTask
}

// Room is a registered game server players can join.
type Room interface {
	ID() string
	Address() (ip string, port int)
	OnDestroyed(fn func()) (cancel func())
	GetAccess(username string, props map[string]string) (rooms.Access, error)
}

// RoomBroker resolves rooms by id.
type RoomBroker interface {
	Room(id string) (Room, bool)
}

// Deps are the collaborators a lobby needs.
type Deps struct {
	// Executor runs callbacks and timers on the lobby's thread of control.
	Executor  loop.Executor
	Spawner   Spawner
	Rooms     RoomBroker
	AutoStart AutoStartConfig
}

// Player is the per-connection state of a user.
type Player struct {
	Peer          Peer
	UserID        uint
	Username      string
	SecurityLevel int

	lobby *Lobby
}

// Lobby returns the lobby the player is in, or nil.
func (p *Player) Lobby() *Lobby { return p.lobby }
