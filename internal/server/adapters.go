package server

import (
	"playmatch/matchmaster/internal/lobby"
	"playmatch/matchmaster/internal/rooms"
	"playmatch/matchmaster/internal/spawn"
)

// spawner lets lobbies launch game servers through the coordinator.
type spawner struct{ c *spawn.Coordinator }

func (s spawner) Spawn(props map[string]string, region string, args []string) lobby.SpawnTask {
	task := s.c.Spawn(props, region, args)
	if task == nil {
		return nil
	}
	return task
}

// roomBroker lets lobbies look rooms up in the broker.
type roomBroker struct{ b *rooms.Broker }

func (r roomBroker) Room(id string) (lobby.Room, bool) {
	room, ok := r.b.Room(id)
	if !ok {
		return nil, false
	}
	return room, true
}
