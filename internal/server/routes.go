package server

import (
	"net/http"

	"playmatch/matchmaster/internal/auth"
	"playmatch/matchmaster/internal/handler"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func newRouter(s *Services) *gin.Engine {
	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	lobbies := &handler.LobbyHandler{
		Loop:    s.Loop,
		Hub:     s.Hub,
		Lobbies: s.Lobbies,
	}
	if s.DB != nil {
		lobbies.Accounts = handler.UserAccounts(s.DB)
	}
	gameServers := &handler.GameServerHandler{Spawner: s.Spawner, Rooms: s.Rooms}
	admin := &handler.AdminHandler{
		Spawner: s.Spawner,
		Rooms:   s.Rooms,
		Loop:    s.Loop,
		Lobbies: s.Lobbies,
	}

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Account routes need the database
		if s.DB != nil {
			authRoutes := apiV1.Group("/auth")
			{
				authRoutes.POST("/register", handler.RegisterUser)
				authRoutes.POST("/login", handler.LoginUser)
			}

			userRoutes := apiV1.Group("/users")
			userRoutes.Use(auth.AuthMiddleware())
			{
				userRoutes.GET("", handler.SearchUsers)
				userRoutes.GET("/me", handler.GetMe)
				userRoutes.GET("/:id", handler.GetUserByID)
			}

			matchRoutes := apiV1.Group("/matches")
			matchRoutes.Use(auth.AuthMiddleware())
			{
				matchRoutes.GET("", handler.ListMatches)
			}
		}

		// Event stream (protected)
		apiV1.GET("/events", auth.AuthMiddleware(), lobbies.Events)

		// Public lobby browsing
		browseRoutes := apiV1.Group("/lobbies")
		browseRoutes.Use(auth.OptionalAuthMiddleware())
		{
			browseRoutes.GET("", lobbies.ListLobbies)
			browseRoutes.GET("/types", lobbies.ListTypes) // Must be before /:id
			browseRoutes.GET("/:id", lobbies.GetLobby)
		}

		// Lobby membership (protected)
		lobbyRoutes := apiV1.Group("/lobbies")
		lobbyRoutes.Use(auth.AuthMiddleware())
		{
			lobbyRoutes.POST("", lobbies.CreateLobby)
			lobbyRoutes.POST("/:id/join", lobbies.JoinLobby)
		}

		// Actions on the caller's current lobby (protected)
		currentLobby := apiV1.Group("/lobby")
		currentLobby.Use(auth.AuthMiddleware())
		{
			currentLobby.GET("", lobbies.CurrentLobby)
			currentLobby.POST("/leave", lobbies.LeaveLobby)
			currentLobby.PUT("/properties", lobbies.SetLobbyProperty)
			currentLobby.PUT("/me/properties", lobbies.SetMemberProperty)
			currentLobby.PUT("/teams/:team/properties", lobbies.SetTeamProperty)
			currentLobby.POST("/teams/:team/join", lobbies.JoinTeam)
			currentLobby.POST("/ready", lobbies.SetReady)
			currentLobby.POST("/start", lobbies.StartGame)
			currentLobby.POST("/chat", lobbies.Chat)
			currentLobby.POST("/access", lobbies.RequestAccess)
		}

		// Game server callbacks, authenticated by task code
		gameServerRoutes := apiV1.Group("/gameservers")
		{
			gameServerRoutes.POST("/tasks/:id/register", gameServers.RegisterTask)
			gameServerRoutes.POST("/tasks/:id/finalize", gameServers.FinalizeTask)
			gameServerRoutes.POST("/tasks/:id/abort", gameServers.AbortTask)
			gameServerRoutes.POST("/rooms", gameServers.RegisterRoom)
			gameServerRoutes.POST("/rooms/:id/destroy", gameServers.DestroyRoom)
			gameServerRoutes.POST("/rooms/:id/access/validate", gameServers.ValidateAccess)
		}

		// Admin routes (protected by auth and admin check)
		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			adminRoutes.GET("/tasks", admin.ListTasks)
			adminRoutes.POST("/tasks/:id/kill", admin.KillTask)
			adminRoutes.GET("/rooms", admin.ListRooms)
			adminRoutes.DELETE("/rooms/:id", admin.DestroyRoom)
			adminRoutes.DELETE("/lobbies/:id", admin.DestroyLobby)
		}
	}

	return router
}
