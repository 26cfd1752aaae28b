package server

import (
	"context"
	"errors"
	"log"

	"playmatch/matchmaster/internal/database"
	"playmatch/matchmaster/internal/hub"
	"playmatch/matchmaster/internal/lobby"
	"playmatch/matchmaster/internal/loop"
	"playmatch/matchmaster/internal/modules"
	"playmatch/matchmaster/internal/rooms"
	"playmatch/matchmaster/internal/spawn"
)

// Module types.
const (
	ModuleAccounts = "accounts"
	ModuleRooms    = "rooms"
	ModuleSpawners = "spawners"
	ModuleLobbies  = "lobbies"
	ModuleHTTP     = "http"
)

func services(h *modules.Host) *Services { return h.Services.(*Services) }

// accountsModule connects the user and match history database.
type accountsModule struct{ modules.Base }

func (accountsModule) Type() string { return ModuleAccounts }

func (accountsModule) Initialize(h *modules.Host) error {
	s := services(h)
	if s.DB != nil {
		return nil
	}
	if s.Config.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if err := database.Connect(s.Config.DatabaseURL); err != nil {
		return err
	}
	s.DB = database.DB
	return nil
}

// roomsModule keeps the registry of live rooms.
type roomsModule struct{ modules.Base }

func (roomsModule) Type() string { return ModuleRooms }

func (roomsModule) Initialize(h *modules.Host) error {
	s := services(h)
	if s.Config.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	s.Rooms = rooms.NewBroker([]byte(s.Config.JWTSecret), s.Config.RoomAccessTTL)
	return nil
}

// spawnersModule launches game servers.
type spawnersModule struct{ modules.Base }

func (spawnersModule) Type() string { return ModuleSpawners }

func (spawnersModule) Initialize(h *modules.Host) error {
	s := services(h)
	cfg := s.Config

	var launcher spawn.Launcher = spawn.ExternalLauncher{}
	if cfg.SpawnCommand != "" {
		launcher = spawn.ExecLauncher{Command: cfg.SpawnCommand, MasterURL: cfg.PublicURL}
	} else {
		log.Println("spawners: SPAWN_COMMAND is not set, waiting for externally started game servers")
	}
	s.Spawner = spawn.NewCoordinator(s.ctx, spawn.Config{
		MaxConcurrent:   cfg.SpawnMaxConcurrent,
		RegisterTimeout: cfg.SpawnRegisterTimeout,
		Regions:         cfg.SpawnRegions,
	}, launcher)
	return nil
}

// lobbiesModule runs the lobby loop and the lobby manager.
type lobbiesModule struct{}

func (lobbiesModule) Type() string                   { return ModuleLobbies }
func (lobbiesModule) Dependencies() []string         { return []string{ModuleSpawners, ModuleRooms} }
func (lobbiesModule) OptionalDependencies() []string { return []string{ModuleAccounts} }

func (lobbiesModule) Initialize(h *modules.Host) error {
	s := services(h)
	cfg := s.Config

	loopCtx, stop := context.WithCancel(context.Background())
	s.Loop = loop.New(cfg.LobbyLoopQueue)
	s.stopLoop = stop
	go s.Loop.Run(loopCtx)

	s.Hub = hub.NewHub(cfg.LobbyEventBuffer)
	s.Lobbies = lobby.NewManager(lobby.ManagerConfig{
		CreateLobbiesPermissionLevel: cfg.LobbyCreatePermissionLevel,
		DontAllowCreatingIfJoined:    cfg.LobbyDontAllowCreatingIfJoined,
	}, lobby.Deps{
		Executor: s.Loop,
		Spawner:  spawner{s.Spawner},
		Rooms:    roomBroker{s.Rooms},
		AutoStart: lobby.AutoStartConfig{
			WaitAfterMinPlayers: cfg.AutoStartWaitAfterMinPlayers,
			WaitAfterFullTeams:  cfg.AutoStartWaitAfterFullTeams,
			Interval:            cfg.AutoStartInterval,
		},
	})

	if s.DB != nil && cfg.LobbyRecordMatches {
		s.Recorder = database.NewMatchRecorder(s.DB)
		s.Lobbies.Recorder = s.Recorder
	}
	return nil
}

// httpModule builds the API router.
type httpModule struct{}

func (httpModule) Type() string                   { return ModuleHTTP }
func (httpModule) Dependencies() []string         { return []string{ModuleLobbies} }
func (httpModule) OptionalDependencies() []string { return []string{ModuleAccounts} }

func (httpModule) Initialize(h *modules.Host) error {
	s := services(h)
	s.Router = newRouter(s)
	return nil
}
