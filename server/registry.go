package server

import (
	"sort"

	"jumpi/store"
)

// Registry is the table of live players keyed by connection, with a
// case-insensitive username index. It is the single source of truth for who is
// online; at most one connection is bound per username.
type Registry struct {
	byConn map[ConnID]*Player
	byName map[string]ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[ConnID]*Player),
		byName: make(map[string]ConnID),
	}
}

// Bind seeds live state for id from the durable record. Missing categories
// default to an empty inventory and nothing equipped. A stale entry for the
// same username is dropped; callers clean up its room and trades first.
func (r *Registry) Bind(id ConnID, u *store.User, cfg Config) *Player {
	key := store.Key(u.Username)
	if prev, ok := r.byName[key]; ok && prev != id {
		delete(r.byConn, prev)
	}
	p := newPlayer(id, u, cfg)
	r.byConn[id] = p
	r.byName[key] = id
	return p
}

func (r *Registry) Get(id ConnID) (*Player, bool) {
	p, ok := r.byConn[id]
	return p, ok
}

func (r *Registry) GetByUsername(username string) (*Player, bool) {
	id, ok := r.byName[store.Key(username)]
	if !ok {
		return nil, false
	}
	p, ok := r.byConn[id]
	return p, ok
}

// Owns reports whether id is the connection currently bound to its player's
// username. A false result for a registered id means the binding was forged or
// superseded.
func (r *Registry) Owns(id ConnID) bool {
	p, ok := r.byConn[id]
	if !ok {
		return false
	}
	bound, ok := r.byName[store.Key(p.Username)]
	return ok && bound == id
}

// Remove deletes the entry. Room and trade cleanup is the caller's job.
func (r *Registry) Remove(id ConnID) (*Player, bool) {
	p, ok := r.byConn[id]
	if !ok {
		return nil, false
	}
	delete(r.byConn, id)
	key := store.Key(p.Username)
	if r.byName[key] == id {
		delete(r.byName, key)
	}
	return p, true
}

func (r *Registry) Len() int { return len(r.byConn) }

// IDs returns connection ids in ascending order.
func (r *Registry) IDs() []ConnID {
	ids := make([]ConnID, 0, len(r.byConn))
	for id := range r.byConn {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Usernames returns the names of everyone online, sorted.
func (r *Registry) Usernames() []string {
	names := make([]string, 0, len(r.byConn))
	for _, p := range r.byConn {
		names = append(names, p.Username)
	}
	sort.Strings(names)
	return names
}

// SnapshotAll copies every player merged with its room id and, inside a home,
// the home owner's name. This is the updatePlayers payload.
func (r *Registry) SnapshotAll(rooms *RoomManager) map[ConnID]PlayerView {
	out := make(map[ConnID]PlayerView, len(r.byConn))
	for id, p := range r.byConn {
		v := p.view()
		v.Room = rooms.RoomOf(id)
		v.HomeOwner = rooms.HomeOwner(v.Room)
		out[id] = v
	}
	return out
}
