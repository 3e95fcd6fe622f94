package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"log/slog"
	"sync"
)

type Members map[domain.ConnectionID]contract.Member

// Registry maps every room to the connections currently joined to it.
// A room entry exists only while it has at least one member.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomID]Members
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewRegistry(log *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		rooms:   make(map[domain.RoomID]Members),
		log:     log,
		metrics: metrics,
	}
}

// Join registers a connection in a room, creating the room on the fly.
// Joining twice with the same connection id is a defect: it is logged
// and the existing registration is kept.
func (r *Registry) Join(roomID domain.RoomID, member contract.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(Members)
		r.rooms[roomID] = members
	}
	if _, exists := members[member.ID()]; exists {
		r.log.Error(errors.ErrDoubleJoin.Error(), "room", roomID, "connection", member.ID())
		return
	}
	members[member.ID()] = member
	r.metrics.ActiveConnections.Inc()
	r.metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

// Leave removes a connection from a room. Unknown rooms or connections are ignored.
// No empty room is left behind.
func (r *Registry) Leave(roomID domain.RoomID, connectionID domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if _, exists := members[connectionID]; !exists {
		return
	}
	delete(members, connectionID)
	r.metrics.ActiveConnections.Dec()

	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	r.metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

// MembersOf returns a snapshot of the room's members.
// Later joins or leaves never alter a snapshot already handed out.
func (r *Registry) MembersOf(roomID domain.RoomID) []contract.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	snapshot := make([]contract.Member, 0, len(members))
	for _, member := range members {
		snapshot = append(snapshot, member)
	}
	return snapshot
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) Size(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// Stats returns the member count of every non-empty room.
func (r *Registry) Stats() map[domain.RoomID]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[domain.RoomID]int, len(r.rooms))
	for roomID, members := range r.rooms {
		stats[roomID] = len(members)
	}
	return stats
}
