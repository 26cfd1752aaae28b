package handler

import (
	"net/http"
	"time"

	"playmatch/matchmaster/internal/database"
	"playmatch/matchmaster/internal/models"

	"github.com/gin-gonic/gin"
)

// MatchResponse is one entry of the match history.
type MatchResponse struct {
	ID        uint       `json:"id" example:"1"`
	LobbyID   int64      `json:"lobby_id" example:"3"`
	LobbyName string     `json:"lobby_name" example:"Friday night"`
	LobbyType string     `json:"lobby_type" example:"duel"`
	Region    string     `json:"region,omitempty" example:"eu"`
	RoomID    string     `json:"room_id,omitempty"`
	Players   []string   `json:"players"`
	Outcome   string     `json:"outcome" example:"finished"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	At        time.Time  `json:"at"`
}

func newMatchResponse(m models.MatchRecord) MatchResponse {
	return MatchResponse{
		ID:        m.ID,
		LobbyID:   m.LobbyID,
		LobbyName: m.LobbyName,
		LobbyType: m.LobbyType,
		Region:    m.Region,
		RoomID:    m.RoomID,
		Players:   m.Players,
		Outcome:   m.Outcome,
		StartedAt: m.StartedAt,
		At:        m.CreatedAt,
	}
}

// ListMatches godoc
// @Summary      List played matches
// @Description  Gets the match history, newest first, optionally filtered by lobby type or outcome.
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        lobby_type query     string  false  "Lobby type"
// @Param        outcome    query     string  false  "started, finished or failed"
// @Param        page       query     int     false  "Page number" default(1)
// @Param        limit      query     int     false  "Items per page" default(10)
// @Success      200        {object}  PaginatedResponse[MatchResponse]
// @Failure      401        {object}  ErrorResponse
// @Failure      500        {object}  ErrorResponse
// @Router       /matches [get]
func ListMatches(c *gin.Context) {
	page, limit := pageParams(c)

	query := database.DB.Model(&models.MatchRecord{}).Order("created_at DESC")
	if typ := c.Query("lobby_type"); typ != "" {
		query = query.Where("lobby_type = ?", typ)
	}
	if outcome := c.Query("outcome"); outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}

	matches, err := Paginate[models.MatchRecord](query, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve matches"})
		return
	}

	data := make([]MatchResponse, len(matches.Data))
	for i, m := range matches.Data {
		data[i] = newMatchResponse(m)
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(data, matches.Meta.TotalItems, page, limit))
}
