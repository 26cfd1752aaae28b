package lobby

import "strings"

// Built-in lobby types.
const (
	TypeDeathmatch       = "deathmatch"
	TypeTwoVsTwoVsFour   = "2v2v4"
	TypeThreeVsThreeAuto = "3v3auto"
	TypeDuel             = "duel"
)

// Factory builds a lobby of one type from the creator's properties.
type Factory func(id int64, props map[string]string, deps Deps) *Lobby

// BuiltinFactories returns the factories registered by default.
func BuiltinFactories() map[string]Factory {
	return map[string]Factory{
		TypeDeathmatch:       Deathmatch,
		TypeTwoVsTwoVsFour:   TwoVsTwoVsFour,
		TypeThreeVsThreeAuto: ThreeVsThreeAuto,
		TypeDuel:             Duel,
	}
}

var mapControl = Control{
	Label:        "Map",
	PropertyKey:  PropMap,
	Options:      []string{"Dungeon", "Forest", "Arena"},
	DefaultValue: "Dungeon",
}

func build(id int64, typ, defaultName string, props map[string]string, deps Deps, teams ...*Team) *Lobby {
	name := strings.TrimSpace(props[PropName])
	if name == "" {
		name = defaultName
	}
	l := New(id, name, teams, DefaultConfig(), deps)
	l.Type = typ
	for k, v := range props {
		if k == PropName {
			continue
		}
		l.properties[k] = v
	}
	l.AddControl(mapControl)
	return l
}

// Deathmatch is a free-for-all lobby with a single team.
func Deathmatch(id int64, props map[string]string, deps Deps) *Lobby {
	l := build(id, TypeDeathmatch, "Deathmatch", props, deps, NewTeam("players", 1, 10))
	l.MinPlayers = 1
	return l
}

// TwoVsTwoVsFour has two small teams against a larger one.
func TwoVsTwoVsFour(id int64, props map[string]string, deps Deps) *Lobby {
	l := build(id, TypeTwoVsTwoVsFour, "2 vs 2 vs 4", props, deps,
		NewTeam("red", 1, 2),
		NewTeam("blue", 1, 2),
		NewTeam("green", 1, 4),
	)
	l.MinPlayers = 3
	l.Config.StartGameWhenAllReady = true
	return l
}

// ThreeVsThreeAuto is a two-team lobby that starts on its own.
func ThreeVsThreeAuto(id int64, props map[string]string, deps Deps) *Lobby {
	l := build(id, TypeThreeVsThreeAuto, "3 vs 3 (auto)", props, deps,
		NewTeam("red", 1, 3),
		NewTeam("blue", 1, 3),
	)
	l.MinPlayers = 2
	l.Config.EnableReadySystem = false
	EnableAutoStart(l)
	return l
}

// Duel is one player against another.
func Duel(id int64, props map[string]string, deps Deps) *Lobby {
	l := build(id, TypeDuel, "Duel", props, deps,
		NewTeam("red", 1, 1),
		NewTeam("blue", 1, 1),
	)
	l.MinPlayers = 2
	l.Config.EnableTeamSwitching = false
	return l
}
