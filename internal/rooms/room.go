// Package rooms keeps the registry of live game-server rooms and issues the
// access tokens players present to them.
package rooms

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"playmatch/matchmaster/pkg/jwt"
)

var (
	// ErrRoomNotFound indicates an unknown room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull indicates a room that reached its player limit.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomDestroyed indicates a room that was torn down.
	ErrRoomDestroyed = errors.New("room is destroyed")
	// ErrAccessDenied indicates a token that does not grant access to the room.
	ErrAccessDenied = errors.New("access denied")
)

// PropLobbyID is the access property naming the lobby a player comes from.
const PropLobbyID = "lobbyId"

// Options describe a room as registered by its game server.
type Options struct {
	Name       string            `json:"name"`
	IP         string            `json:"ip"`
	Port       int               `json:"port"`
	MaxPlayers int               `json:"max_players"`
	TaskID     string            `json:"task_id,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Access is what a player needs to connect to a room.
type Access struct {
	Token      string            `json:"token"`
	RoomID     string            `json:"room_id"`
	RoomIP     string            `json:"room_ip"`
	RoomPort   int               `json:"room_port"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Room is a registered, addressable game-server instance.
type Room struct {
	id      string
	opts    Options
	secret  []byte
	ttl     time.Duration
	created time.Time

	mu           sync.Mutex
	destroyed    bool
	granted      map[string]struct{}
	listeners    map[int]func()
	nextListener int
}

// ID returns the room id.
func (r *Room) ID() string { return r.id }

// Options returns the registration options.
func (r *Room) Options() Options { return r.opts }

// Address returns the IP and port players connect to.
func (r *Room) Address() (string, int) { return r.opts.IP, r.opts.Port }

// Destroyed reports whether the room was torn down.
func (r *Room) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// OnDestroyed registers fn to run once when the room is torn down. If the
// room is already destroyed fn never runs.
func (r *Room) OnDestroyed(fn func()) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return func() {}
	}
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// GetAccess issues an access token for username.
func (r *Room) GetAccess(username string, props map[string]string) (Access, error) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return Access{}, ErrRoomDestroyed
	}
	if _, ok := r.granted[username]; !ok {
		if r.opts.MaxPlayers > 0 && len(r.granted) >= r.opts.MaxPlayers {
			r.mu.Unlock()
			return Access{}, ErrRoomFull
		}
		r.granted[username] = struct{}{}
	}
	r.mu.Unlock()

	lobbyID, _ := strconv.ParseInt(props[PropLobbyID], 10, 64)
	token, err := jwt.GenerateRoomAccess(r.secret, r.id, username, lobbyID, r.ttl)
	if err != nil {
		return Access{}, fmt.Errorf("sign access token: %w", err)
	}
	return Access{
		Token:      token,
		RoomID:     r.id,
		RoomIP:     r.opts.IP,
		RoomPort:   r.opts.Port,
		Properties: props,
	}, nil
}

func (r *Room) destroy() bool {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return false
	}
	r.destroyed = true
	listeners := make([]func(), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.listeners = nil
	r.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return true
}
