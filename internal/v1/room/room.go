package room

import (
	"sync"

	"github.com/voxhall/voxhall/internal/v1/types"
)

// Room is a plain container over the participant map. Membership changes bump
// a generation counter so stale snapshots can be detected after the fact.
type Room struct {
	ID types.RoomIDType

	mu           sync.RWMutex
	participants map[types.ParticipantIDType]types.Participant
	generation   uint64
}

// NewRoom returns an empty room.
func NewRoom(id types.RoomIDType) *Room {
	return &Room{
		ID:           id,
		participants: make(map[types.ParticipantIDType]types.Participant),
	}
}

// Add inserts a participant, replacing any prior entry with the same id. The
// prior participant (nil if none) is returned for the caller to close out
// after releasing its own locks. Returns the new generation.
func (r *Room) Add(p types.Participant) (uint64, types.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior := r.participants[p.GetID()]
	r.participants[p.GetID()] = p
	r.generation++
	return r.generation, prior
}

// Remove deletes the entry for id, returning the removed participant and
// whether an entry existed.
func (r *Room) Remove(id types.ParticipantIDType) (types.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return nil, false
	}
	delete(r.participants, id)
	r.generation++
	return p, true
}

// Get returns the participant with the given id.
func (r *Room) Get(id types.ParticipantIDType) (types.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

// Snapshot returns a shallow copy of the participant list and the generation
// it was taken at, so fan-out can iterate without holding the room lock.
func (r *Room) Snapshot() ([]types.Participant, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]types.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		list = append(list, p)
	}
	return list, r.generation
}

// Len returns the number of participants.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// IsEmpty reports whether no participants remain.
func (r *Room) IsEmpty() bool {
	return r.Len() == 0
}

// IsEmptyOfHumans reports whether all remaining participants are agents.
func (r *Room) IsEmptyOfHumans() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.participants {
		if !p.IsAgent() {
			return false
		}
	}
	return true
}

// HumanCount returns the number of non-agent participants.
func (r *Room) HumanCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.participants {
		if !p.IsAgent() {
			n++
		}
	}
	return n
}

// AgentIDs returns the ids of all agent participants.
func (r *Room) AgentIDs() []types.ParticipantIDType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []types.ParticipantIDType
	for id, p := range r.participants {
		if p.IsAgent() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Generation returns the current membership generation.
func (r *Room) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}
