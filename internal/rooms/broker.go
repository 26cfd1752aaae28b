package rooms

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"playmatch/matchmaster/pkg/jwt"
)

// Broker is the registry of live rooms.
type Broker struct {
	secret []byte
	ttl    time.Duration

	mu    sync.RWMutex
	rooms map[string]*Room
	// used holds the ids of presented access tokens until they expire.
	used map[string]time.Time
}

// NewBroker creates a broker signing access tokens with secret.
func NewBroker(secret []byte, accessTTL time.Duration) *Broker {
	if accessTTL <= 0 {
		accessTTL = time.Minute
	}
	return &Broker{
		secret: secret,
		ttl:    accessTTL,
		rooms:  make(map[string]*Room),
		used:   make(map[string]time.Time),
	}
}

// Register adds a room and returns it.
func (b *Broker) Register(opts Options) *Room {
	room := &Room{
		id:        uuid.NewString(),
		opts:      opts,
		secret:    b.secret,
		ttl:       b.ttl,
		created:   time.Now(),
		granted:   make(map[string]struct{}),
		listeners: make(map[int]func()),
	}
	b.mu.Lock()
	b.rooms[room.id] = room
	b.mu.Unlock()
	log.Printf("rooms: registered %s at %s:%d", room.id, opts.IP, opts.Port)
	return room
}

// Room returns a live room by id.
func (b *Broker) Room(id string) (*Room, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rooms[id]
	return r, ok
}

// Rooms returns live rooms, oldest first.
func (b *Broker) Rooms() []*Room {
	b.mu.RLock()
	out := make([]*Room, 0, len(b.rooms))
	for _, r := range b.rooms {
		out = append(out, r)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].created.Before(out[j].created) })
	return out
}

// Destroy tears a room down and notifies its listeners.
func (b *Broker) Destroy(id string) error {
	b.mu.Lock()
	room, ok := b.rooms[id]
	delete(b.rooms, id)
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	room.destroy()
	log.Printf("rooms: destroyed %s", id)
	return nil
}

// ValidateAccess checks a token presented to roomID and returns its claims.
func (b *Broker) ValidateAccess(roomID, token string) (*jwt.RoomAccessClaims, error) {
	if _, ok := b.Room(roomID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	claims, err := jwt.ParseRoomAccess(b.secret, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	if claims.RoomID != roomID {
		return nil, fmt.Errorf("%w: token issued for another room", ErrAccessDenied)
	}
	if err := b.consume(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// consume marks a token as used. Each token is accepted once.
func (b *Broker) consume(claims *jwt.RoomAccessClaims) error {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return fmt.Errorf("%w: token has no id", ErrAccessDenied)
	}
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, expires := range b.used {
		if now.After(expires) {
			delete(b.used, id)
		}
	}
	if _, ok := b.used[claims.ID]; ok {
		return fmt.Errorf("%w: token already used", ErrAccessDenied)
	}
	b.used[claims.ID] = claims.ExpiresAt.Time
	return nil
}
