package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"playmatch/matchmaster/internal/config"
	"playmatch/matchmaster/internal/server"

	// Swagger imports
	_ "playmatch/matchmaster/docs" // This is important for swag to find the generated docs
)

func init() {
	config.LoadConfig()
}

// @title           Matchmaster API
// @version         1.0
// @description     Lobbies, game-server spawning and room access for Playmatch.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Swagger UI is available at %s/swagger/index.html\n", config.AppConfig.PublicURL)
	if err := server.New(config.AppConfig).Run(ctx); err != nil {
		log.Fatal(err)
	}
}
