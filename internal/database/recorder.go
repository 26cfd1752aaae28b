package database

import (
	"log"
	"sync"

	"playmatch/matchmaster/internal/lobby"
	"playmatch/matchmaster/internal/models"

	"gorm.io/gorm"
)

// MatchRecorder writes the lobby match history to the database. Writes run
// in the background so the lobby loop never waits on SQL.
type MatchRecorder struct {
	db *gorm.DB
	wg sync.WaitGroup
}

// NewMatchRecorder creates a recorder writing through db.
func NewMatchRecorder(db *gorm.DB) *MatchRecorder {
	return &MatchRecorder{db: db}
}

// RecordMatch stores one history entry.
func (r *MatchRecorder) RecordMatch(s lobby.MatchSummary) {
	record := matchRecord(s)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.db.Create(&record).Error; err != nil {
			log.Printf("match history: lobby %d %s: %v", s.LobbyID, s.Outcome, err)
		}
	}()
}

// Wait blocks until pending writes are done.
func (r *MatchRecorder) Wait() { r.wg.Wait() }

func matchRecord(s lobby.MatchSummary) models.MatchRecord {
	record := models.MatchRecord{
		LobbyID:   s.LobbyID,
		LobbyName: s.LobbyName,
		LobbyType: s.LobbyType,
		Region:    s.Region,
		RoomID:    s.RoomID,
		Players:   append([]string(nil), s.Players...),
		Outcome:   s.Outcome,
	}
	record.CreatedAt = s.At
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		record.StartedAt = &started
	}
	return record
}
