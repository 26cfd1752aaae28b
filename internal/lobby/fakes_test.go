package lobby

import (
	"errors"
	"testing"

	"playmatch/matchmaster/internal/hub"
	"playmatch/matchmaster/internal/loop"
	"playmatch/matchmaster/internal/rooms"
	"playmatch/matchmaster/internal/spawn"
)

type fakePeer struct {
	id        int64
	events    []hub.Event
	listeners map[int]func()
	next      int
	closed    bool
}

func newFakePeer(id int64) *fakePeer {
	return &fakePeer{id: id, listeners: make(map[int]func())}
}

func (p *fakePeer) ID() int64 { return p.id }

func (p *fakePeer) Send(event hub.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *fakePeer) Closed() bool { return p.closed }

func (p *fakePeer) OnDisconnect(fn func()) func() {
	if p.closed {
		fn()
		return func() {}
	}
	p.next++
	key := p.next
	p.listeners[key] = fn
	return func() { delete(p.listeners, key) }
}

func (p *fakePeer) disconnect() {
	p.closed = true
	for key, fn := range p.listeners {
		delete(p.listeners, key)
		fn()
	}
}

func (p *fakePeer) count(eventType string) int {
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (p *fakePeer) last(eventType string) (hub.Event, bool) {
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == eventType {
			return p.events[i], true
		}
	}
	return hub.Event{}, false
}

type fakeTask struct {
	status    spawn.Status
	data      map[string]string
	listeners map[int]func(spawn.Status)
	next      int
	killed    bool
}

func newFakeTask() *fakeTask {
	return &fakeTask{listeners: make(map[int]func(spawn.Status))}
}

func (t *fakeTask) Status() spawn.Status { return t.status }

func (t *fakeTask) OnStatusChanged(fn func(spawn.Status)) func() {
	t.next++
	key := t.next
	t.listeners[key] = fn
	return func() { delete(t.listeners, key) }
}

func (t *fakeTask) FinalizationData() map[string]string { return t.data }

func (t *fakeTask) Kill() { t.killed = true }

func (t *fakeTask) set(s spawn.Status) {
	t.status = s
	for _, fn := range t.listeners {
		fn(s)
	}
}

func (t *fakeTask) finalize(roomID string) {
	t.data = map[string]string{spawn.FinalizationRoomID: roomID}
	t.set(spawn.StatusFinalized)
}

type spawnCall struct {
	props  map[string]string
	region string
	args   []string
}

type fakeSpawner struct {
	decline bool
	calls   []spawnCall
	tasks   []*fakeTask
}

func (s *fakeSpawner) Spawn(props map[string]string, region string, args []string) SpawnTask {
	s.calls = append(s.calls, spawnCall{props: props, region: region, args: args})
	if s.decline {
		return nil
	}
	t := newFakeTask()
	s.tasks = append(s.tasks, t)
	return t
}

func (s *fakeSpawner) lastTask(t *testing.T) *fakeTask {
	t.Helper()
	if len(s.tasks) == 0 {
		t.Fatalf("no task was spawned")
	}
	return s.tasks[len(s.tasks)-1]
}

type fakeRoom struct {
	id        string
	ip        string
	port      int
	listeners map[int]func()
	next      int
	accessErr error
}

func newFakeRoom(id, ip string, port int) *fakeRoom {
	return &fakeRoom{id: id, ip: ip, port: port, listeners: make(map[int]func())}
}

func (r *fakeRoom) ID() string { return r.id }

func (r *fakeRoom) Address() (string, int) { return r.ip, r.port }

func (r *fakeRoom) OnDestroyed(fn func()) func() {
	r.next++
	key := r.next
	r.listeners[key] = fn
	return func() { delete(r.listeners, key) }
}

func (r *fakeRoom) GetAccess(username string, props map[string]string) (rooms.Access, error) {
	if r.accessErr != nil {
		return rooms.Access{}, r.accessErr
	}
	return rooms.Access{
		Token:      "token-" + username,
		RoomID:     r.id,
		RoomIP:     r.ip,
		RoomPort:   r.port,
		Properties: props,
	}, nil
}

func (r *fakeRoom) destroy() {
	for key, fn := range r.listeners {
		delete(r.listeners, key)
		fn()
	}
}

type fakeRooms map[string]*fakeRoom

func (f fakeRooms) Room(id string) (Room, bool) {
	r, ok := f[id]
	if !ok {
		return nil, false
	}
	return r, true
}

var errAccessDenied = errors.New("access denied")

type fixture struct {
	exec    *loop.Manual
	spawner *fakeSpawner
	rooms   fakeRooms
	deps    Deps
	nextID  int64
}

func newFixture() *fixture {
	f := &fixture{
		exec:    loop.NewManual(),
		spawner: &fakeSpawner{},
		rooms:   fakeRooms{},
	}
	f.deps = Deps{Executor: f.exec, Spawner: f.spawner, Rooms: f.rooms}
	return f
}

func (f *fixture) player(username string) (*Player, *fakePeer) {
	f.nextID++
	peer := newFakePeer(f.nextID)
	return &Player{Peer: peer, UserID: uint(f.nextID), Username: username}, peer
}

// twoTeams builds the lobby used by most tests: red and blue, each 1..2,
// two players needed overall.
func (f *fixture) twoTeams(cfg Config) *Lobby {
	l := New(1, "test", []*Team{NewTeam("red", 1, 2), NewTeam("blue", 1, 2)}, cfg, f.deps)
	l.Type = "test"
	l.MinPlayers = 2
	return l
}

func mustAdd(t *testing.T, l *Lobby, p *Player) {
	t.Helper()
	if err := l.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer(%s): %v", p.Username, err)
	}
}

func wantReason(t *testing.T, err error, reason string) {
	t.Helper()
	r, ok := AsRejection(err)
	if !ok {
		t.Fatalf("error = %v, want rejection %q", err, reason)
	}
	if r.Reason != reason {
		t.Fatalf("reason = %q, want %q", r.Reason, reason)
	}
}

func wantState(t *testing.T, l *Lobby, want State) {
	t.Helper()
	if got := l.State(); got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
}

func checkIndices(t *testing.T, l *Lobby) {
	t.Helper()
	if l.PlayerCount() > l.MaxPlayers() {
		t.Fatalf("player count %d above max %d", l.PlayerCount(), l.MaxPlayers())
	}
	rostered := 0
	for _, team := range l.Teams() {
		if team.PlayerCount() > team.MaxPlayers {
			t.Fatalf("team %s has %d players, max %d", team.Name, team.PlayerCount(), team.MaxPlayers)
		}
		for _, m := range team.Members() {
			if m.Team() != team {
				t.Fatalf("member %s back-reference does not match team %s", m.Username, team.Name)
			}
		}
		rostered += team.PlayerCount()
	}
	if rostered != l.PlayerCount() {
		t.Fatalf("rostered %d, members %d", rostered, l.PlayerCount())
	}
	for _, m := range l.Members() {
		byName, ok := l.MemberByUsername(m.Username)
		if !ok || byName != m {
			t.Fatalf("member %s missing from username index", m.Username)
		}
		byPeer, ok := l.Member(m.Player)
		if !ok || byPeer != m {
			t.Fatalf("member %s missing from peer index", m.Username)
		}
	}
}
