package lobby

import (
	"fmt"
	"math"
	"time"
)

// AutoStartConfig controls the automatic start countdown.
type AutoStartConfig struct {
	// WaitAfterMinPlayers is the countdown length once every minimum is met.
	WaitAfterMinPlayers time.Duration
	// WaitAfterFullTeams caps the countdown while every team is full.
	WaitAfterFullTeams time.Duration
	Interval           time.Duration
}

// DefaultAutoStartConfig returns the built-in countdown timings.
func DefaultAutoStartConfig() AutoStartConfig {
	return AutoStartConfig{
		WaitAfterMinPlayers: 10 * time.Second,
		WaitAfterFullTeams:  5 * time.Second,
		Interval:            time.Second,
	}
}

func (c AutoStartConfig) withDefaults() AutoStartConfig {
	d := DefaultAutoStartConfig()
	if c.WaitAfterMinPlayers <= 0 {
		c.WaitAfterMinPlayers = d.WaitAfterMinPlayers
	}
	if c.WaitAfterFullTeams <= 0 {
		c.WaitAfterFullTeams = d.WaitAfterFullTeams
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	return c
}

// AutoStart is a countdown that starts the lobby's game once the teams are
// staffed. It stops for good after starting the game, when the lobby leaves
// preparations or when the lobby is destroyed.
type AutoStart struct {
	lobby     *Lobby
	cfg       AutoStartConfig
	remaining time.Duration
	stopped   bool
	cancel    func()
}

// EnableAutoStart turns manual start, replay and game masters off and
// starts the countdown on the lobby's executor.
func EnableAutoStart(l *Lobby) *AutoStart {
	l.Config.EnableManualStart = false
	l.Config.PlayAgainEnabled = false
	l.Config.EnableGameMasters = false
	if l.gameMaster != nil {
		l.setGameMaster(nil)
	}

	cfg := l.deps.AutoStart.withDefaults()
	a := &AutoStart{
		lobby:     l,
		cfg:       cfg,
		remaining: cfg.WaitAfterMinPlayers,
	}
	l.autoStart = a
	a.schedule()
	return a
}

// Remaining returns the current countdown value.
func (a *AutoStart) Remaining() time.Duration { return a.remaining }

// Running reports whether the countdown is still active.
func (a *AutoStart) Running() bool { return !a.stopped }

// Stop cancels the countdown.
func (a *AutoStart) Stop() {
	a.stopped = true
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *AutoStart) schedule() {
	a.cancel = a.lobby.deps.Executor.AfterFunc(a.cfg.Interval, a.tick)
}

func (a *AutoStart) tick() {
	if a.stopped {
		return
	}
	l := a.lobby
	if l.destroyed || l.state != StatePreparations {
		a.Stop()
		return
	}

	if n := l.members.len(); n < l.MinPlayers {
		a.remaining = a.cfg.WaitAfterMinPlayers
		l.SetStatusText(fmt.Sprintf("Waiting for %d more players", l.MinPlayers-n))
		a.schedule()
		return
	}
	if t := l.understaffedTeam(); t != nil {
		a.remaining = a.cfg.WaitAfterMinPlayers
		l.SetStatusText(fmt.Sprintf("Team %s needs %d more players", t.Name, t.Missing()))
		a.schedule()
		return
	}

	a.remaining -= a.cfg.Interval
	if a.allTeamsFull() && a.remaining > a.cfg.WaitAfterFullTeams {
		a.remaining = a.cfg.WaitAfterFullTeams
	}
	l.SetStatusText(fmt.Sprintf("Starting game in %d", secondsLeft(a.remaining)))

	if a.remaining <= 0 {
		a.Stop()
		l.StartGame()
		return
	}
	a.schedule()
}

func (a *AutoStart) allTeamsFull() bool {
	for _, t := range a.lobby.teams {
		if !t.Full() {
			return false
		}
	}
	return true
}

func secondsLeft(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
