package database

import (
	"testing"
	"time"

	"playmatch/matchmaster/internal/lobby"
)

func TestMatchRecordFromSummary(t *testing.T) {
	started := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	at := started.Add(15 * time.Minute)
	players := []string{"alice", "bob"}

	record := matchRecord(lobby.MatchSummary{
		LobbyID:   4,
		LobbyName: "Friday night",
		LobbyType: lobby.TypeDuel,
		Region:    "eu",
		RoomID:    "room-1",
		Players:   players,
		Outcome:   lobby.OutcomeFinished,
		StartedAt: started,
		At:        at,
	})

	if record.LobbyID != 4 || record.LobbyType != "duel" || record.Outcome != "finished" || record.RoomID != "room-1" {
		t.Fatalf("record = %+v", record)
	}
	if record.StartedAt == nil || !record.StartedAt.Equal(started) || !record.CreatedAt.Equal(at) {
		t.Fatalf("timestamps = %v / %v", record.StartedAt, record.CreatedAt)
	}
	players[0] = "mallory"
	if record.Players[0] != "alice" {
		t.Fatalf("record shares the players slice")
	}
}

func TestMatchRecordWithoutStart(t *testing.T) {
	record := matchRecord(lobby.MatchSummary{LobbyID: 1, Outcome: lobby.OutcomeFailed})
	if record.StartedAt != nil {
		t.Fatalf("failed match has a start time")
	}
}
