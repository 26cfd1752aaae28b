package lobby

// Team is a named group of members with a player range.
type Team struct {
	Name       string
	MinPlayers int
	MaxPlayers int
	Properties map[string]string

	members []*Member
}

// NewTeam creates an empty team.
func NewTeam(name string, minPlayers, maxPlayers int) *Team {
	return &Team{
		Name:       name,
		MinPlayers: minPlayers,
		MaxPlayers: maxPlayers,
		Properties: make(map[string]string),
	}
}

// PlayerCount returns the current roster size.
func (t *Team) PlayerCount() int { return len(t.members) }

// Members returns the roster in join order.
func (t *Team) Members() []*Member { return append([]*Member(nil), t.members...) }

// CanAdd reports whether the team accepts one more member.
func (t *Team) CanAdd(*Member) bool { return len(t.members) < t.MaxPlayers }

// Full reports whether the roster reached MaxPlayers.
func (t *Team) Full() bool { return len(t.members) >= t.MaxPlayers }

// Missing returns how many players the team needs to reach MinPlayers.
func (t *Team) Missing() int {
	if n := t.MinPlayers - len(t.members); n > 0 {
		return n
	}
	return 0
}

func (t *Team) add(m *Member) bool {
	if !t.CanAdd(m) {
		return false
	}
	t.members = append(t.members, m)
	m.team = t
	return true
}

func (t *Team) remove(m *Member) bool {
	for i, existing := range t.members {
		if existing == m {
			t.members = append(t.members[:i], t.members[i+1:]...)
			if m.team == t {
				m.team = nil
			}
			return true
		}
	}
	return false
}

// TeamData is the public view of a team.
type TeamData struct {
	Name       string            `json:"name"`
	MinPlayers int               `json:"min_players"`
	MaxPlayers int               `json:"max_players"`
	Players    int               `json:"players"`
	Properties map[string]string `json:"properties"`
}

func (t *Team) data() TeamData {
	return TeamData{
		Name:       t.Name,
		MinPlayers: t.MinPlayers,
		MaxPlayers: t.MaxPlayers,
		Players:    len(t.members),
		Properties: copyProps(t.Properties),
	}
}
