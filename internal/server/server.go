// Package server assembles the matchmaster process from feature modules
// and serves its HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"playmatch/matchmaster/internal/config"
	"playmatch/matchmaster/internal/database"
	"playmatch/matchmaster/internal/hub"
	"playmatch/matchmaster/internal/lobby"
	"playmatch/matchmaster/internal/loop"
	"playmatch/matchmaster/internal/modules"
	"playmatch/matchmaster/internal/rooms"
	"playmatch/matchmaster/internal/spawn"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

// Services are the collaborators modules build and share. A field is nil
// when the module providing it is not initialized.
type Services struct {
	Config   *config.Config
	DB       *gorm.DB
	Loop     *loop.Loop
	Hub      *hub.Hub
	Rooms    *rooms.Broker
	Spawner  *spawn.Coordinator
	Lobbies  *lobby.Manager
	Recorder *database.MatchRecorder
	Router   *gin.Engine

	ctx      context.Context
	stopLoop context.CancelFunc
}

// Close destroys the lobbies, stops the lobby loop and flushes the match
// history.
func (s *Services) Close() {
	if s.Hub != nil {
		s.Hub.DisconnectAll()
	}
	if s.Loop != nil && s.Lobbies != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.Loop.Call(ctx, s.Lobbies.Shutdown); err != nil {
			log.Printf("server: shut lobbies down: %v", err)
		}
		cancel()
	}
	if s.stopLoop != nil {
		s.stopLoop()
	}
	if s.Recorder != nil {
		s.Recorder.Wait()
	}
}

// Server is the matchmaster process.
type Server struct {
	cfg      *config.Config
	registry *modules.Registry
}

// New creates a server with the built-in modules registered.
func New(cfg *config.Config) *Server {
	registry := modules.NewRegistry()
	registry.MustRegister(accountsModule{})
	registry.MustRegister(roomsModule{})
	registry.MustRegister(spawnersModule{})
	registry.MustRegister(lobbiesModule{})
	registry.MustRegister(httpModule{})
	return &Server{cfg: cfg, registry: registry}
}

// Registry returns the module registry. Extra modules must be registered
// before Start.
func (s *Server) Registry() *modules.Registry { return s.registry }

// Start initializes the modules. Optional modules that fail are logged and
// left out; the server cannot run without lobbies and HTTP.
func (s *Server) Start(ctx context.Context) (*Services, error) {
	svc := &Services{Config: s.cfg, ctx: ctx}
	res := s.registry.Resolve(svc)
	log.Printf("server: initialized modules %v", res.Order)
	for _, typ := range res.Uninitialized {
		log.Printf("server: module %s has unmet dependencies", typ)
	}
	for _, required := range []string{ModuleLobbies, ModuleHTTP} {
		if !s.registry.Initialized(required) {
			svc.Close()
			if err, ok := res.Failed[required]; ok {
				return nil, fmt.Errorf("server: module %s: %w", required, err)
			}
			return nil, fmt.Errorf("server: module %s could not be initialized", required)
		}
	}
	return svc, nil
}

// Run starts the server and serves HTTP until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	svc, err := s.Start(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: svc.Router,
	}
	// Event streams only end when their connection closes.
	srv.RegisterOnShutdown(svc.Hub.DisconnectAll)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("Server is running on %s", s.cfg.HTTPAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
