package lobby

import (
	"strings"

	"playmatch/matchmaster/internal/hub"
)

// AddPlayer adds p to the lobby and places them in the least populated team
// that accepts them.
func (l *Lobby) AddPlayer(p *Player) error {
	if p.lobby != nil {
		return reject(RejectConflict, "You're already in a lobby")
	}
	username := strings.TrimSpace(p.Username)
	if username == "" || p.Peer == nil {
		return reject(RejectInvalid, "Invalid username")
	}
	if p.Peer.Closed() {
		return errPeerGone
	}
	if _, ok := l.members.byName(username); ok {
		return reject(RejectConflict, "You're already in this lobby")
	}
	if l.destroyed {
		return errDestroyed
	}
	if l.IsPlayerAllowed != nil {
		if ok, reason := l.IsPlayerAllowed(p); !ok {
			if reason == "" {
				reason = "You're not allowed to join this lobby"
			}
			return reject(RejectForbidden, "%s", reason)
		}
	}
	if l.members.len() >= l.MaxPlayers() {
		return reject(RejectConflict, "Lobby is full")
	}
	if !l.Config.AllowJoiningWhenGameIsLive && l.state != StatePreparations {
		return reject(RejectConflict, "You can't join lobby while the game is in progress")
	}

	team := l.pickTeam()
	if team == nil {
		return reject(RejectConflict, "No team can accept new players")
	}

	m := l.members.insert(p, username)
	team.add(m)
	p.lobby = l
	l.Subscribe(p.Peer)

	peer := p.Peer
	l.disconnects[peer.ID()] = peer.OnDisconnect(func() {
		l.post(func() { l.RemovePlayer(p) })
	})

	data := m.data()
	l.Publish(EventMemberJoined, MemberChange{
		LobbyID:  l.ID,
		Username: m.Username,
		Team:     team.Name,
		Member:   &data,
	}, except(peer))

	if l.gameMaster == nil && l.Config.EnableGameMasters {
		l.setGameMaster(m)
	}
	l.send(peer, hub.Event{Type: EventLobbyData, Payload: l.GenerateLobbyData(p)})
	return nil
}

func (l *Lobby) pickTeam() *Team {
	var best *Team
	for _, t := range l.teams {
		if !t.CanAdd(nil) {
			continue
		}
		if best == nil || t.PlayerCount() < best.PlayerCount() {
			best = t
		}
	}
	return best
}

// RemovePlayer removes p from the lobby. Removing a non-member does nothing.
// The lobby destroys itself when its last member leaves.
func (l *Lobby) RemovePlayer(p *Player) {
	m, ok := l.Member(p)
	if !ok {
		return
	}

	if m.team != nil {
		m.team.remove(m)
	}
	l.members.remove(m)
	peer := p.Peer
	l.Unsubscribe(peer)
	if cancel, ok := l.disconnects[peer.ID()]; ok {
		cancel()
		delete(l.disconnects, peer.ID())
	}
	if p.lobby == l {
		p.lobby = nil
	}

	l.send(peer, hub.Event{Type: EventLeftLobby, Payload: MemberChange{LobbyID: l.ID, Username: m.Username}})
	l.Publish(EventMemberLeft, MemberChange{LobbyID: l.ID, Username: m.Username}, nil)

	if l.gameMaster == m {
		l.pickNewGameMaster()
	}
	if l.members.len() == 0 && !l.destroyed {
		l.Destroy()
	}
}

func (l *Lobby) pickNewGameMaster() {
	members := l.members.list()
	if len(members) == 0 || !l.Config.EnableGameMasters {
		l.setGameMaster(nil)
		return
	}
	l.setGameMaster(members[0])
}

func (l *Lobby) setGameMaster(m *Member) {
	if l.gameMaster == m {
		return
	}
	l.gameMaster = m
	change := MasterChange{LobbyID: l.ID}
	if m != nil {
		change.GameMaster = m.Username
	}
	l.Publish(EventMasterChanged, change, nil)
}

// TryJoinTeam moves the player to another team.
func (l *Lobby) TryJoinTeam(p *Player, teamName string) error {
	if !l.Config.EnableTeamSwitching {
		return reject(RejectForbidden, "Team switching is disabled")
	}
	m, ok := l.Member(p)
	if !ok {
		return errNotMember
	}
	if l.state != StatePreparations {
		return reject(RejectConflict, "You can't switch teams while the game is running")
	}
	if m.team == nil {
		return reject(RejectInvalid, "Invalid source team")
	}
	dest := l.Team(teamName)
	if dest == nil {
		return reject(RejectInvalid, "Invalid lobby team")
	}
	if dest == m.team {
		return nil
	}
	if !dest.CanAdd(m) {
		return reject(RejectConflict, "Team is full")
	}

	m.team.remove(m)
	dest.add(m)
	l.Publish(EventMemberTeamChanged, MemberChange{LobbyID: l.ID, Username: m.Username, Team: dest.Name}, nil)
	return nil
}

// SetReadyState sets the player's ready flag. When every member is ready
// and the lobby starts on readiness, the game is started.
func (l *Lobby) SetReadyState(p *Player, ready bool) error {
	m, ok := l.Member(p)
	if !ok {
		return errNotMember
	}
	if !l.Config.EnableReadySystem {
		return reject(RejectForbidden, "Ready system is disabled")
	}
	if m.ready == ready {
		return nil
	}
	m.ready = ready
	l.Publish(EventMemberReadyChanged, MemberChange{LobbyID: l.ID, Username: m.Username, IsReady: ready}, nil)

	if ready && l.allReady() {
		l.onAllPlayersReady()
	}
	return nil
}

func (l *Lobby) allReady() bool {
	for _, m := range l.members.list() {
		if !m.ready {
			return false
		}
	}
	return true
}

func (l *Lobby) onAllPlayersReady() {
	if !l.Config.StartGameWhenAllReady || l.state != StatePreparations {
		return
	}
	if l.understaffedTeam() != nil {
		return
	}
	l.StartGame()
}

func (l *Lobby) understaffedTeam() *Team {
	for _, t := range l.teams {
		if t.Missing() > 0 {
			return t
		}
	}
	return nil
}

// StartGameManually starts the game on behalf of the game master.
func (l *Lobby) StartGameManually(p *Player) error {
	if !l.Config.EnableManualStart {
		return reject(RejectForbidden, "Manual start is disabled")
	}
	m, ok := l.Member(p)
	if !ok || l.gameMaster != m {
		return reject(RejectForbidden, "You're not the master of this lobby")
	}
	if l.state != StatePreparations {
		return reject(RejectConflict, "You can't start a game while it's in progress")
	}
	if l.destroyed {
		return errDestroyed
	}
	if l.Config.EnableReadySystem {
		for _, other := range l.members.list() {
			if other != m && !other.ready {
				return reject(RejectConflict, "Not all players are ready")
			}
		}
	}
	if n := l.members.len(); n < l.MinPlayers {
		return reject(RejectConflict, "Not enough players. Need %d more to start", l.MinPlayers-n)
	}
	if t := l.understaffedTeam(); t != nil {
		return reject(RejectConflict, "Not enough players in team %s", t.Name)
	}
	if !l.StartGame() {
		return reject(RejectConflict, "Failed to start a game server")
	}
	return nil
}

// SetLobbyProperty changes a lobby property on behalf of a member.
func (l *Lobby) SetLobbyProperty(p *Player, key, value string) error {
	m, ok := l.Member(p)
	if !ok {
		return errNotMember
	}
	if !l.Config.AllowPlayersChangeLobbyProperties {
		return reject(RejectForbidden, "You're not allowed to change lobby properties")
	}
	if l.Config.EnableGameMasters && l.gameMaster != m {
		return reject(RejectForbidden, "You're not the master of this lobby")
	}
	if strings.TrimSpace(key) == "" {
		return reject(RejectInvalid, "Invalid property key")
	}
	l.SetProperty(key, value)
	return nil
}

// SetMemberProperty changes one of the player's own properties.
func (l *Lobby) SetMemberProperty(p *Player, key, value string) error {
	m, ok := l.Member(p)
	if !ok {
		return errNotMember
	}
	if strings.TrimSpace(key) == "" {
		return reject(RejectInvalid, "Invalid property key")
	}
	m.Properties[key] = value
	l.Publish(EventMemberPropertyChanged, PropertyChange{
		LobbyID:  l.ID,
		Username: m.Username,
		Key:      key,
		Value:    value,
	}, nil)
	return nil
}

// SetTeamProperty changes a team property. Only the game master may do it
// when game masters are enabled.
func (l *Lobby) SetTeamProperty(p *Player, teamName, key, value string) error {
	m, ok := l.Member(p)
	if !ok {
		return errNotMember
	}
	if l.Config.EnableGameMasters && l.gameMaster != m {
		return reject(RejectForbidden, "You're not the master of this lobby")
	}
	t := l.Team(teamName)
	if t == nil {
		return reject(RejectInvalid, "Invalid lobby team")
	}
	t.Properties[key] = value
	l.Publish(EventTeamPropertyChanged, PropertyChange{LobbyID: l.ID, Team: t.Name, Key: key, Value: value}, nil)
	return nil
}

// HandleChatMessage broadcasts a chat line from a member.
func (l *Lobby) HandleChatMessage(p *Player, text string) error {
	m, ok := l.Member(p)
	if !ok {
		return errNotMember
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return reject(RejectInvalid, "Message is empty")
	}
	l.BroadcastChatMessage(text, false, m.Username)
	return nil
}
