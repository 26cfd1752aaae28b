package handler

import (
	"errors"
	"log"
	"net/http"

	"playmatch/matchmaster/internal/rooms"
	"playmatch/matchmaster/internal/spawn"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// TaskCodeInput authenticates a spawned process.
type TaskCodeInput struct {
	Code string `json:"code" binding:"required"`
}

// FinalizeInput reports the end of a spawn.
type FinalizeInput struct {
	Code string            `json:"code" binding:"required"`
	Data map[string]string `json:"data"`
}

// RegisterRoomInput registers the room of a spawned process.
type RegisterRoomInput struct {
	TaskID     string            `json:"task_id" binding:"required"`
	Code       string            `json:"code" binding:"required"`
	Name       string            `json:"name"`
	IP         string            `json:"ip" binding:"required" example:"10.0.0.7"`
	Port       int               `json:"port" binding:"required,min=1,max=65535" example:"7777"`
	MaxPlayers int               `json:"max_players" binding:"min=0"`
	Properties map[string]string `json:"properties"`
}

// RoomResponse describes a live room.
type RoomResponse struct {
	ID      string        `json:"id"`
	Options rooms.Options `json:"options"`
}

// ValidateAccessInput carries a token a player presented to a room.
type ValidateAccessInput struct {
	Token string `json:"token" binding:"required"`
}

// AccessClaimsResponse describes a validated access token.
type AccessClaimsResponse struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
	LobbyID  int64  `json:"lobby_id,omitempty"`
}

// endregion

// GameServerHandler serves the callbacks of spawned game servers. Callers
// authenticate with the code of the spawn task they were launched for.
type GameServerHandler struct {
	Spawner *spawn.Coordinator
	Rooms   *rooms.Broker
}

// RegisterTask godoc
// @Summary      Report a spawned process as running
// @Tags         gameservers
// @Accept       json
// @Produce      json
// @Param        id     path      string         true  "Spawn task ID"
// @Param        input  body      TaskCodeInput  true  "Task code"
// @Success      200    {object}  MessageResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Failure      409    {object}  ErrorResponse
// @Router       /gameservers/tasks/{id}/register [post]
func (h *GameServerHandler) RegisterTask(c *gin.Context) {
	var input TaskCodeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Spawner.Register(c.Param("id"), input.Code); err != nil {
		writeSpawnError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Registered"})
}

// FinalizeTask godoc
// @Summary      Finalize a spawn task
// @Description  Marks the task finalized. The data should name the registered room under "roomId".
// @Tags         gameservers
// @Accept       json
// @Produce      json
// @Param        id     path      string         true  "Spawn task ID"
// @Param        input  body      FinalizeInput  true  "Finalization data"
// @Success      200    {object}  MessageResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Failure      409    {object}  ErrorResponse
// @Router       /gameservers/tasks/{id}/finalize [post]
func (h *GameServerHandler) FinalizeTask(c *gin.Context) {
	var input FinalizeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Spawner.Finalize(c.Param("id"), input.Code, input.Data); err != nil {
		writeSpawnError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Finalized"})
}

// AbortTask godoc
// @Summary      Abort a spawn task
// @Tags         gameservers
// @Accept       json
// @Produce      json
// @Param        id     path      string         true  "Spawn task ID"
// @Param        input  body      TaskCodeInput  true  "Task code"
// @Success      200    {object}  MessageResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Router       /gameservers/tasks/{id}/abort [post]
func (h *GameServerHandler) AbortTask(c *gin.Context) {
	var input TaskCodeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Spawner.Abort(c.Param("id"), input.Code); err != nil {
		writeSpawnError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Aborted"})
}

// RegisterRoom godoc
// @Summary      Register a room
// @Description  Registers the room of a spawned game server and finalizes its task with the new room id.
// @Tags         gameservers
// @Accept       json
// @Produce      json
// @Param        input  body      RegisterRoomInput  true  "Room"
// @Success      201    {object}  RoomResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Failure      409    {object}  ErrorResponse
// @Router       /gameservers/rooms [post]
func (h *GameServerHandler) RegisterRoom(c *gin.Context) {
	var input RegisterRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.Spawner.Authorize(input.TaskID, input.Code)
	if err != nil {
		writeSpawnError(c, err)
		return
	}

	props := make(map[string]string, len(task.Properties)+len(input.Properties))
	for k, v := range task.Properties {
		props[k] = v
	}
	for k, v := range input.Properties {
		props[k] = v
	}
	room := h.Rooms.Register(rooms.Options{
		Name:       input.Name,
		IP:         input.IP,
		Port:       input.Port,
		MaxPlayers: input.MaxPlayers,
		TaskID:     task.ID,
		Properties: props,
	})

	if err := h.Spawner.Finalize(task.ID, input.Code, map[string]string{spawn.FinalizationRoomID: room.ID()}); err != nil {
		if destroyErr := h.Rooms.Destroy(room.ID()); destroyErr != nil {
			log.Printf("gameservers: drop room %s: %v", room.ID(), destroyErr)
		}
		writeSpawnError(c, err)
		return
	}
	c.JSON(http.StatusCreated, RoomResponse{ID: room.ID(), Options: room.Options()})
}

// DestroyRoom godoc
// @Summary      Destroy a room
// @Description  Tears the room down and ends the spawn task it was registered for.
// @Tags         gameservers
// @Accept       json
// @Produce      json
// @Param        id     path      string         true  "Room ID"
// @Param        input  body      TaskCodeInput  true  "Task code"
// @Success      200    {object}  MessageResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Router       /gameservers/rooms/{id}/destroy [post]
func (h *GameServerHandler) DestroyRoom(c *gin.Context) {
	var input TaskCodeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room, ok := h.Rooms.Room(c.Param("id"))
	if !ok {
		writeSpawnError(c, rooms.ErrRoomNotFound)
		return
	}
	taskID := room.Options().TaskID
	if _, err := h.Spawner.Authorize(taskID, input.Code); err != nil {
		writeSpawnError(c, err)
		return
	}
	if err := h.Rooms.Destroy(room.ID()); err != nil {
		writeSpawnError(c, err)
		return
	}
	if err := h.Spawner.Kill(taskID); err != nil && !errors.Is(err, spawn.ErrTaskNotFound) {
		log.Printf("gameservers: end task %s: %v", taskID, err)
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Destroyed"})
}

// ValidateAccess godoc
// @Summary      Validate a player access token
// @Tags         gameservers
// @Accept       json
// @Produce      json
// @Param        id     path      string               true  "Room ID"
// @Param        input  body      ValidateAccessInput  true  "Token"
// @Success      200    {object}  AccessClaimsResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Router       /gameservers/rooms/{id}/access/validate [post]
func (h *GameServerHandler) ValidateAccess(c *gin.Context) {
	var input ValidateAccessInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := h.Rooms.ValidateAccess(c.Param("id"), input.Token)
	if err != nil {
		writeSpawnError(c, err)
		return
	}
	c.JSON(http.StatusOK, AccessClaimsResponse{
		RoomID:   claims.RoomID,
		Username: claims.Username,
		LobbyID:  claims.LobbyID,
	})
}

func writeSpawnError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, spawn.ErrTaskNotFound), errors.Is(err, rooms.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, spawn.ErrInvalidCode), errors.Is(err, rooms.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, spawn.ErrTaskState), errors.Is(err, rooms.ErrRoomDestroyed), errors.Is(err, rooms.ErrRoomFull):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
