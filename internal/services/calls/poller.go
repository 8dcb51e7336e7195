package calls

import (
	"context"
)

// Snapshot is one presence observation of a media room. A room that no longer
// exists reads the same as an empty room to callers: the call has ended.
type Snapshot struct {
	Identities []string
	RoomExists bool
}

// Poller takes presence snapshots of a room. It is stateless; every call is a
// fresh query against the room service. The orchestrator's monitoring loop
// drives it on a short fixed interval.
type Poller struct {
	rooms RoomService
}

// NewPoller creates a poller over the given room service.
func NewPoller(rooms RoomService) *Poller {
	return &Poller{rooms: rooms}
}

// Snapshot queries the room's connected participant identities. A missing
// room is a normal signal, reported as RoomExists=false with no error; errors
// are only returned for queries that failed with the room's existence unknown.
func (p *Poller) Snapshot(ctx context.Context, roomName string) (Snapshot, error) {
	identities, err := p.rooms.ListParticipants(ctx, roomName)
	if err != nil {
		exists, existsErr := p.rooms.RoomExists(ctx, roomName)
		if existsErr == nil && !exists {
			return Snapshot{RoomExists: false}, nil
		}
		return Snapshot{}, err
	}

	if len(identities) == 0 {
		exists, existsErr := p.rooms.RoomExists(ctx, roomName)
		if existsErr != nil || !exists {
			return Snapshot{RoomExists: false}, nil
		}
	}

	return Snapshot{Identities: identities, RoomExists: true}, nil
}
