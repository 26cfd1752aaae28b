package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"playmatch/matchmaster/internal/hub"
	"playmatch/matchmaster/internal/lobby"
	"playmatch/matchmaster/internal/loop"
	"playmatch/matchmaster/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PeerHeader carries the connection id handed out by the event stream.
const PeerHeader = "X-Peer-ID"

var (
	errNotConnected = &lobby.Rejection{Kind: lobby.RejectNotFound, Reason: "Event stream not connected"}
	errNoLobby      = &lobby.Rejection{Kind: lobby.RejectNotFound, Reason: "You're not in a lobby"}
)

// AccountLookup resolves the display name and security level of a user.
type AccountLookup func(userID uint) (username string, securityLevel int, err error)

// UserAccounts looks users up in the accounts database.
func UserAccounts(db *gorm.DB) AccountLookup {
	return func(userID uint) (string, int, error) {
		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			return "", 0, err
		}
		return user.Nickname, user.SecurityLevel(), nil
	}
}

// region --- DTOs ---

// CreateLobbyInput defines the structure for creating a lobby.
type CreateLobbyInput struct {
	Type       string            `json:"type" binding:"required" example:"duel"`
	Properties map[string]string `json:"properties"`
}

// PropertyInput sets one property.
type PropertyInput struct {
	Key   string `json:"key" binding:"required" example:"map"`
	Value string `json:"value" example:"Forest"`
}

// ReadyInput sets the ready flag.
type ReadyInput struct {
	Ready bool `json:"ready"`
}

// ChatInput is a chat line.
type ChatInput struct {
	Message string `json:"message" example:"gl hf"`
}

// AccessInput carries extra properties for a game access request.
type AccessInput struct {
	Properties map[string]string `json:"properties"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"Left the lobby"`
}

// endregion

// LobbyHandler serves the lobby API. Every lobby operation runs on Loop.
type LobbyHandler struct {
	Loop     *loop.Loop
	Hub      *hub.Hub
	Lobbies  *lobby.Manager
	Accounts AccountLookup
}

func (h *LobbyHandler) account(userID uint) (string, int, error) {
	if h.Accounts == nil {
		return fmt.Sprintf("user%d", userID), 0, nil
	}
	return h.Accounts(userID)
}

// Events godoc
// @Summary      Open the lobby event stream
// @Description  Opens a server-sent event stream. The first "connected" event carries the peer id to send in the X-Peer-ID header of lobby requests.
// @Tags         lobbies
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "User not found"
// @Failure      503  {object}  ErrorResponse
// @Router       /events [get]
func (h *LobbyHandler) Events(c *gin.Context) {
	userID := c.GetUint("userID")
	username, level, err := h.account(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	conn := h.Hub.Connect(userID)
	defer h.Hub.Disconnect(conn.ID())

	ctx := c.Request.Context()
	if err := h.Loop.Call(ctx, func() { h.Lobbies.Player(conn, userID, username, level) }); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Lobby service unavailable"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("connected", gin.H{"peer_id": conn.ID(), "username": username})
	c.Writer.Flush()

	messages := conn.Messages()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// ListTypes godoc
// @Summary      List lobby types
// @Tags         lobbies
// @Produce      json
// @Success      200  {array}   string
// @Failure      503  {object}  ErrorResponse
// @Router       /lobbies/types [get]
func (h *LobbyHandler) ListTypes(c *gin.Context) {
	h.call(c, http.StatusOK, func() (any, error) {
		return h.Lobbies.Types(), nil
	})
}

// ListLobbies godoc
// @Summary      List open lobbies
// @Description  Gets a paginated list of open lobbies, optionally filtered by type.
// @Tags         lobbies
// @Produce      json
// @Param        type  query     string  false  "Lobby type"
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page" default(10)
// @Success      200   {object}  PaginatedResponse[lobby.Summary]
// @Failure      503   {object}  ErrorResponse
// @Router       /lobbies [get]
func (h *LobbyHandler) ListLobbies(c *gin.Context) {
	page, limit := pageParams(c)
	typ := c.Query("type")
	h.call(c, http.StatusOK, func() (any, error) {
		summaries := h.Lobbies.Summaries()
		if typ != "" {
			filtered := summaries[:0]
			for _, s := range summaries {
				if s.Type == typ {
					filtered = append(filtered, s)
				}
			}
			summaries = filtered
		}
		return PaginateSlice(summaries, page, limit), nil
	})
}

// GetLobby godoc
// @Summary      Get a lobby
// @Tags         lobbies
// @Produce      json
// @Param        X-Peer-ID header    int  false  "Peer ID"
// @Param        id        path      int  true   "Lobby ID"
// @Success      200       {object}  lobby.Data
// @Failure      400       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /lobbies/{id} [get]
func (h *LobbyHandler) GetLobby(c *gin.Context) {
	id, ok := lobbyID(c)
	if !ok {
		return
	}
	// Signed-in peers see their own username in the snapshot.
	var peerID int64
	if conn, ok := h.optionalConn(c); ok {
		peerID = conn.ID()
	}
	h.call(c, http.StatusOK, func() (any, error) {
		l, ok := h.Lobbies.Lobby(id)
		if !ok {
			return nil, lobby.ErrLobbyNotFound
		}
		p, _ := h.Lobbies.PlayerByPeer(peerID)
		return l.GenerateLobbyData(p), nil
	})
}

// CreateLobby godoc
// @Summary      Create a lobby
// @Description  Creates a lobby of the given type and joins the caller to it.
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int               true  "Peer ID"
// @Param        input     body      CreateLobbyInput  true  "Lobby Info"
// @Success      201       {object}  lobby.Data
// @Failure      400       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Failure      409       {object}  ErrorResponse "Already in a lobby"
// @Router       /lobbies [post]
func (h *LobbyHandler) CreateLobby(c *gin.Context) {
	var input CreateLobbyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.withPlayer(c, http.StatusCreated, func(p *lobby.Player) (any, error) {
		l, err := h.Lobbies.CreateLobby(p, input.Type, input.Properties)
		if err != nil {
			return nil, err
		}
		return l.GenerateLobbyData(p), nil
	})
}

// JoinLobby godoc
// @Summary      Join a lobby
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int  true  "Peer ID"
// @Param        id        path      int  true  "Lobby ID"
// @Success      200       {object}  lobby.Data
// @Failure      403       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Failure      409       {object}  ErrorResponse
// @Router       /lobbies/{id}/join [post]
func (h *LobbyHandler) JoinLobby(c *gin.Context) {
	id, ok := lobbyID(c)
	if !ok {
		return
	}
	h.withPlayer(c, http.StatusOK, func(p *lobby.Player) (any, error) {
		l, ok := h.Lobbies.Lobby(id)
		if !ok {
			return nil, lobby.ErrLobbyNotFound
		}
		if err := l.AddPlayer(p); err != nil {
			return nil, err
		}
		return l.GenerateLobbyData(p), nil
	})
}

// LeaveLobby godoc
// @Summary      Leave the current lobby
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int  true  "Peer ID"
// @Success      200       {object}  MessageResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /lobby/leave [post]
func (h *LobbyHandler) LeaveLobby(c *gin.Context) {
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		l.RemovePlayer(p)
		return MessageResponse{Message: "Left the lobby"}, nil
	})
}

// CurrentLobby godoc
// @Summary      Get the caller's lobby
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int  true  "Peer ID"
// @Success      200       {object}  lobby.Data
// @Failure      404       {object}  ErrorResponse
// @Router       /lobby [get]
func (h *LobbyHandler) CurrentLobby(c *gin.Context) {
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		return l.GenerateLobbyData(p), nil
	})
}

// SetLobbyProperty godoc
// @Summary      Set a lobby property
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int            true  "Peer ID"
// @Param        input     body      PropertyInput  true  "Property"
// @Success      200       {object}  lobby.Data
// @Failure      400       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Router       /lobby/properties [put]
func (h *LobbyHandler) SetLobbyProperty(c *gin.Context) {
	var input PropertyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		if err := l.SetLobbyProperty(p, input.Key, input.Value); err != nil {
			return nil, err
		}
		return l.GenerateLobbyData(p), nil
	})
}

// SetMemberProperty godoc
// @Summary      Set a property of the caller's membership
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int            true  "Peer ID"
// @Param        input     body      PropertyInput  true  "Property"
// @Success      200       {object}  lobby.Data
// @Failure      400       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /lobby/me/properties [put]
func (h *LobbyHandler) SetMemberProperty(c *gin.Context) {
	var input PropertyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		if err := l.SetMemberProperty(p, input.Key, input.Value); err != nil {
			return nil, err
		}
		return l.GenerateLobbyData(p), nil
	})
}

// SetTeamProperty godoc
// @Summary      Set a team property
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int            true  "Peer ID"
// @Param        team      path      string         true  "Team name"
// @Param        input     body      PropertyInput  true  "Property"
// @Success      200       {object}  lobby.Data
// @Failure      400       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Router       /lobby/teams/{team}/properties [put]
func (h *LobbyHandler) SetTeamProperty(c *gin.Context) {
	var input PropertyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	team := c.Param("team")
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		if err := l.SetTeamProperty(p, team, input.Key, input.Value); err != nil {
			return nil, err
		}
		return l.GenerateLobbyData(p), nil
	})
}

// JoinTeam godoc
// @Summary      Switch to another team
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int     true  "Peer ID"
// @Param        team      path      string  true  "Team name"
// @Success      200       {object}  lobby.Data
// @Failure      400       {object}  ErrorResponse
// @Failure      409       {object}  ErrorResponse
// @Router       /lobby/teams/{team}/join [post]
func (h *LobbyHandler) JoinTeam(c *gin.Context) {
	team := c.Param("team")
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		if err := l.TryJoinTeam(p, team); err != nil {
			return nil, err
		}
		return l.GenerateLobbyData(p), nil
	})
}

// SetReady godoc
// @Summary      Set the caller's ready flag
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int         true  "Peer ID"
// @Param        input     body      ReadyInput  true  "Ready flag"
// @Success      200       {object}  lobby.Data
// @Failure      400       {object}  ErrorResponse
// @Router       /lobby/ready [post]
func (h *LobbyHandler) SetReady(c *gin.Context) {
	var input ReadyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		if err := l.SetReadyState(p, input.Ready); err != nil {
			return nil, err
		}
		return l.GenerateLobbyData(p), nil
	})
}

// StartGame godoc
// @Summary      Start the game
// @Description  Starts the game of the caller's lobby. Only the game master may do this.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int  true  "Peer ID"
// @Success      200       {object}  lobby.Data
// @Failure      403       {object}  ErrorResponse
// @Failure      409       {object}  ErrorResponse
// @Router       /lobby/start [post]
func (h *LobbyHandler) StartGame(c *gin.Context) {
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		if err := l.StartGameManually(p); err != nil {
			return nil, err
		}
		return l.GenerateLobbyData(p), nil
	})
}

// Chat godoc
// @Summary      Send a chat message to the lobby
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int        true  "Peer ID"
// @Param        input     body      ChatInput  true  "Message"
// @Success      200       {object}  MessageResponse
// @Failure      400       {object}  ErrorResponse
// @Router       /lobby/chat [post]
func (h *LobbyHandler) Chat(c *gin.Context) {
	var input ChatInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		if err := l.HandleChatMessage(p, input.Message); err != nil {
			return nil, err
		}
		return MessageResponse{Message: "Sent"}, nil
	})
}

// RequestAccess godoc
// @Summary      Get access to the running game
// @Description  Issues a one-time token for the room the caller's lobby is playing in.
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Peer-ID header    int          true   "Peer ID"
// @Param        input     body      AccessInput  false  "Extra properties"
// @Success      200       {object}  rooms.Access
// @Failure      404       {object}  ErrorResponse
// @Failure      409       {object}  ErrorResponse "Game is not running"
// @Router       /lobby/access [post]
func (h *LobbyHandler) RequestAccess(c *gin.Context) {
	var input AccessInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	h.inLobby(c, func(l *lobby.Lobby, p *lobby.Player) (any, error) {
		access, err := l.HandleGameAccessRequest(p, input.Properties)
		if err != nil {
			return nil, err
		}
		return access, nil
	})
}

// region --- Helpers ---

// call runs fn on the lobby loop and writes its result.
func (h *LobbyHandler) call(c *gin.Context, status int, fn func() (any, error)) {
	var (
		res any
		err error
	)
	if callErr := h.Loop.Call(c.Request.Context(), func() { res, err = fn() }); callErr != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Lobby service unavailable"})
		return
	}
	if err != nil {
		writeLobbyError(c, err)
		return
	}
	c.JSON(status, res)
}

// withPlayer resolves the player behind the X-Peer-ID header and runs fn
// on the lobby loop.
func (h *LobbyHandler) withPlayer(c *gin.Context, status int, fn func(p *lobby.Player) (any, error)) {
	peerID, ok := h.peerID(c)
	if !ok {
		return
	}
	h.call(c, status, func() (any, error) {
		p, ok := h.Lobbies.PlayerByPeer(peerID)
		if !ok {
			return nil, errNotConnected
		}
		return fn(p)
	})
}

// inLobby is withPlayer for players that must be in a lobby.
func (h *LobbyHandler) inLobby(c *gin.Context, fn func(l *lobby.Lobby, p *lobby.Player) (any, error)) {
	h.withPlayer(c, http.StatusOK, func(p *lobby.Player) (any, error) {
		l := p.Lobby()
		if l == nil {
			return nil, errNoLobby
		}
		return fn(l, p)
	})
}

// optionalConn returns the caller's connection when the request carries a
// user and a peer id that belongs to them.
func (h *LobbyHandler) optionalConn(c *gin.Context) (*hub.Conn, bool) {
	userID, ok := c.Get("userID")
	if !ok {
		return nil, false
	}
	id, err := strconv.ParseInt(c.GetHeader(PeerHeader), 10, 64)
	if err != nil {
		return nil, false
	}
	conn, ok := h.Hub.Conn(id)
	if !ok || conn.UserID != userID.(uint) {
		return nil, false
	}
	return conn, true
}

func (h *LobbyHandler) peerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader(PeerHeader), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid " + PeerHeader + " header"})
		return 0, false
	}
	conn, ok := h.Hub.Conn(id)
	if !ok || conn.UserID != c.GetUint("userID") {
		c.JSON(http.StatusNotFound, gin.H{"error": errNotConnected.Reason})
		return 0, false
	}
	return id, true
}

func lobbyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lobby ID"})
		return 0, false
	}
	return id, true
}

func writeLobbyError(c *gin.Context, err error) {
	r, ok := lobby.AsRejection(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusBadRequest
	switch r.Kind {
	case lobby.RejectForbidden:
		status = http.StatusForbidden
	case lobby.RejectConflict:
		status = http.StatusConflict
	case lobby.RejectNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": r.Reason})
}

// endregion
