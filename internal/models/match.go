package models

import (
	"time"

	"gorm.io/gorm"
)

// MatchRecord is one entry of the match history: a game starting, finishing
// or failing to start in a lobby.
type MatchRecord struct {
	gorm.Model
	LobbyID   int64    `gorm:"not null;index"`
	LobbyName string   `gorm:"size:255;not null"`
	LobbyType string   `gorm:"size:50;not null;index"`
	Region    string   `gorm:"size:50"`
	RoomID    string   `gorm:"size:64;index"`
	Players   []string `gorm:"serializer:json"`
	Outcome   string   `gorm:"size:20;not null;index"`
	StartedAt *time.Time
}
