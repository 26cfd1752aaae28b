package lobby

// Member is a player who joined a lobby.
type Member struct {
	handle     int64
	Username   string
	Player     *Player
	Properties map[string]string

	ready bool
	team  *Team
}

// Ready reports the member's ready flag.
func (m *Member) Ready() bool { return m.ready }

// Team returns the member's team.
func (m *Member) Team() *Team { return m.team }

// MemberData is the public view of a member.
type MemberData struct {
	Username   string            `json:"username"`
	Team       string            `json:"team"`
	IsReady    bool              `json:"is_ready"`
	Properties map[string]string `json:"properties"`
}

func (m *Member) data() MemberData {
	d := MemberData{
		Username:   m.Username,
		IsReady:    m.ready,
		Properties: copyProps(m.Properties),
	}
	if m.team != nil {
		d.Team = m.team.Name
	}
	return d
}

// memberTable owns members by handle and keeps the username and peer
// indices in step with it.
type memberTable struct {
	next       int64
	byHandle   map[int64]*Member
	byUsername map[string]int64
	byPeer     map[int64]int64
	order      []int64
}

func newMemberTable() memberTable {
	return memberTable{
		byHandle:   make(map[int64]*Member),
		byUsername: make(map[string]int64),
		byPeer:     make(map[int64]int64),
	}
}

func (t *memberTable) insert(p *Player, username string) *Member {
	t.next++
	m := &Member{
		handle:     t.next,
		Username:   username,
		Player:     p,
		Properties: make(map[string]string),
	}
	t.byHandle[m.handle] = m
	t.byUsername[username] = m.handle
	t.byPeer[p.Peer.ID()] = m.handle
	t.order = append(t.order, m.handle)
	return m
}

func (t *memberTable) remove(m *Member) {
	if _, ok := t.byHandle[m.handle]; !ok {
		return
	}
	delete(t.byHandle, m.handle)
	delete(t.byUsername, m.Username)
	delete(t.byPeer, m.Player.Peer.ID())
	for i, h := range t.order {
		if h == m.handle {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *memberTable) byName(username string) (*Member, bool) {
	h, ok := t.byUsername[username]
	if !ok {
		return nil, false
	}
	return t.byHandle[h], true
}

func (t *memberTable) byPeerID(id int64) (*Member, bool) {
	h, ok := t.byPeer[id]
	if !ok {
		return nil, false
	}
	return t.byHandle[h], true
}

// list returns members in join order.
func (t *memberTable) list() []*Member {
	out := make([]*Member, 0, len(t.order))
	for _, h := range t.order {
		out = append(out, t.byHandle[h])
	}
	return out
}

func (t *memberTable) len() int { return len(t.byHandle) }

func copyProps(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
