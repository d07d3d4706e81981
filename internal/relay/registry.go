package relay

import "sync"

// Snapshot is the relay's best-known current value of a room. It reflects
// only what the relay has observed since process start, not durable state.
type Snapshot struct {
	Content string
	Title   string
}

// Registry holds the authoritative in-memory snapshot per room so that a
// session joining mid-collaboration sees the current state without a
// round-trip to durable storage. Entries are created lazily and live for the
// process lifetime.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Snapshot
}

// NewRegistry constructs an empty registry. One instance is shared by every
// session; it is safe for concurrent use.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Snapshot)}
}

// Ensure returns the current snapshot for the room, creating an empty one if
// the room has never been seen. It never fails.
func (r *Registry) Ensure(roomID string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.ensureLocked(roomID)
}

// Apply overwrites a single field of the room snapshot. The last write
// observed by the relay wins; there is no merging or versioning.
func (r *Registry) Apply(roomID string, field Field, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.ensureLocked(roomID)
	switch field {
	case FieldTitle:
		snapshot.Title = value
	case FieldContent:
		snapshot.Content = value
	}
}

// Snapshot returns a copy of the room snapshot, reporting absence when the
// room has never been written or ensured.
func (r *Registry) Snapshot(roomID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, ok := r.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	return *snapshot, true
}

// Len reports how many rooms the registry currently tracks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) ensureLocked(roomID string) *Snapshot {
	snapshot, ok := r.rooms[roomID]
	if !ok {
		snapshot = &Snapshot{}
		r.rooms[roomID] = snapshot
	}
	return snapshot
}
