package handler

import (
	"net/http"
	"time"

	"playmatch/matchmaster/internal/lobby"
	"playmatch/matchmaster/internal/loop"
	"playmatch/matchmaster/internal/rooms"
	"playmatch/matchmaster/internal/spawn"

	"github.com/gin-gonic/gin"
)

// TaskResponse describes a live spawn task.
type TaskResponse struct {
	ID         string            `json:"id"`
	Region     string            `json:"region,omitempty"`
	Status     string            `json:"status" example:"waiting_for_process"`
	Properties map[string]string `json:"properties,omitempty"`
	Args       []string          `json:"args,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func newTaskResponse(t *spawn.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		Region:     t.Region,
		Status:     t.Status().String(),
		Properties: t.Properties,
		Args:       t.Args,
		CreatedAt:  t.CreatedAt,
	}
}

// AdminHandler serves the operator endpoints.
type AdminHandler struct {
	Spawner *spawn.Coordinator
	Rooms   *rooms.Broker
	Loop    *loop.Loop
	Lobbies *lobby.Manager
}

// ListTasks godoc
// @Summary      List spawn tasks
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   TaskResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /admin/tasks [get]
func (h *AdminHandler) ListTasks(c *gin.Context) {
	tasks := h.Spawner.Tasks()
	out := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = newTaskResponse(t)
	}
	c.JSON(http.StatusOK, out)
}

// KillTask godoc
// @Summary      Kill a spawn task
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Spawn task ID"
// @Success      200  {object}  MessageResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/tasks/{id}/kill [post]
func (h *AdminHandler) KillTask(c *gin.Context) {
	if err := h.Spawner.Kill(c.Param("id")); err != nil {
		writeSpawnError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Killed"})
}

// ListRooms godoc
// @Summary      List live rooms
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   RoomResponse
// @Router       /admin/rooms [get]
func (h *AdminHandler) ListRooms(c *gin.Context) {
	live := h.Rooms.Rooms()
	out := make([]RoomResponse, len(live))
	for i, r := range live {
		out[i] = RoomResponse{ID: r.ID(), Options: r.Options()}
	}
	c.JSON(http.StatusOK, out)
}

// DestroyRoom godoc
// @Summary      Destroy a room
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Room ID"
// @Success      200  {object}  MessageResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/rooms/{id} [delete]
func (h *AdminHandler) DestroyRoom(c *gin.Context) {
	room, ok := h.Rooms.Room(c.Param("id"))
	if !ok {
		writeSpawnError(c, rooms.ErrRoomNotFound)
		return
	}
	if err := h.Rooms.Destroy(room.ID()); err != nil {
		writeSpawnError(c, err)
		return
	}
	if taskID := room.Options().TaskID; taskID != "" {
		// The task may already be gone with its process.
		_ = h.Spawner.Kill(taskID)
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Destroyed"})
}

// DestroyLobby godoc
// @Summary      Close a lobby
// @Description  Destroys the lobby, removing every member and stopping its game server.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Lobby ID"
// @Success      200  {object}  MessageResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/lobbies/{id} [delete]
func (h *AdminHandler) DestroyLobby(c *gin.Context) {
	id, ok := lobbyID(c)
	if !ok {
		return
	}
	var found bool
	if err := h.Loop.Call(c.Request.Context(), func() {
		var l *lobby.Lobby
		if l, found = h.Lobbies.Lobby(id); found {
			l.Destroy()
		}
	}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Lobby service unavailable"})
		return
	}
	if !found {
		writeLobbyError(c, lobby.ErrLobbyNotFound)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Destroyed"})
}
