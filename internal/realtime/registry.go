// README: In-memory presence registry mapping participant identity to a live connection.
package realtime

import (
	"sync"
	"time"

	"presto/internal/types"
)

// Handle is the minimal surface the registry keeps per connection. The
// websocket Conn implements it; tests substitute fakes.
type Handle interface {
	// Send queues an event for delivery. It must not block; it reports
	// whether the event was queued.
	Send(ev Event) bool
	// Close tears the connection down. Safe to call more than once.
	Close()
}

// entry is a pool member. Position is only maintained for captains.
type entry struct {
	handle   Handle
	position *types.Point
	seenAt   time.Time
}

// PoolMember is the externally visible snapshot of one registry entry.
type PoolMember struct {
	ID       types.ID     `json:"id"`
	Position *types.Point `json:"position,omitempty"`
	SeenAt   time.Time    `json:"seenAt"`
}

// Registry is the single shared presence structure. All access goes through
// one mutex; no lock is ever held across a connection write.
type Registry struct {
	mu    sync.Mutex
	pools map[types.Role]map[types.ID]*entry
}

func NewRegistry() *Registry {
	return &Registry{
		pools: map[types.Role]map[types.ID]*entry{
			types.RoleCustomer: {},
			types.RoleVendor:   {},
			types.RoleCaptain:  {},
		},
	}
}

// Register upserts the entry for (id, role). A new connection for the same
// identity overwrites the old one (last-connection-wins); the displaced
// handle, if any, is returned so the caller can close it outside the lock.
func (r *Registry) Register(id types.ID, role types.Role, h Handle) (displaced Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[role]
	if !ok {
		return nil
	}
	if old, ok := pool[id]; ok && old.handle != h {
		displaced = old.handle
	}
	pool[id] = &entry{handle: h, seenAt: time.Now()}
	return displaced
}

// SetPosition updates the last known location for (id, role). It reports
// whether an entry existed.
func (r *Registry) SetPosition(id types.ID, role types.Role, p types.Point) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pools[role][id]
	if !ok {
		return false
	}
	pos := p
	e.position = &pos
	e.seenAt = time.Now()
	return true
}

func (r *Registry) Lookup(id types.ID, role types.Role) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pools[role][id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Remove deletes every entry whose handle equals h and returns how many were
// removed. A disconnecting handle's role is not tracked separately from its
// pool membership, so all three pools are scanned. An entry that was already
// overwritten by a newer connection for the same identity is left alone.
func (r *Registry) Remove(h Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for _, pool := range r.pools {
		for id, e := range pool {
			if e.handle == h {
				delete(pool, id)
				removed++
			}
		}
	}
	return removed
}

// Snapshot returns the current members of a pool with their last known state.
func (r *Registry) Snapshot(role types.Role) []PoolMember {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool := r.pools[role]
	out := make([]PoolMember, 0, len(pool))
	for id, e := range pool {
		out = append(out, PoolMember{ID: id, Position: e.position, SeenAt: e.seenAt})
	}
	return out
}

// handles returns the live handles of one pool (or of every pool when role is
// empty), collected under the lock so sends can happen outside it.
func (r *Registry) handles(role types.Role) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Handle
	if role == "" {
		for _, pool := range r.pools {
			for _, e := range pool {
				out = append(out, e.handle)
			}
		}
		return out
	}
	for _, e := range r.pools[role] {
		out = append(out, e.handle)
	}
	return out
}
