package server

// RoomManager tracks room membership. Each connection is a member of exactly one
// room; occupant counts follow joins and leaves and never go negative.
type RoomManager struct {
	public    map[string]*Room
	order     []string
	homes     map[string]*Room
	homeOrder []string

	members  map[ConnID]string
	previous map[ConnID]string

	fallback       string
	homeBackground string
}

func NewRoomManager(cfg Config) *RoomManager {
	m := &RoomManager{
		public:         make(map[string]*Room, len(cfg.PublicRooms)),
		homes:          make(map[string]*Room),
		members:        make(map[ConnID]string),
		previous:       make(map[ConnID]string),
		fallback:       cfg.DefaultRoom,
		homeBackground: cfg.HomeBackground,
	}
	for _, def := range cfg.PublicRooms {
		r := def
		r.CurrentPlayers = 0
		m.public[r.ID] = &r
		m.order = append(m.order, r.ID)
	}
	return m
}

// Get looks up a public or home room.
func (m *RoomManager) Get(roomID string) (*Room, bool) {
	if r, ok := m.public[roomID]; ok {
		return r, true
	}
	r, ok := m.homes[roomID]
	return r, ok
}

// Assign moves id into roomID, leaving its current room.
func (m *RoomManager) Assign(id ConnID, roomID string) error {
	room, ok := m.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	current, inRoom := m.members[id]
	if inRoom && current == roomID {
		return ErrAlreadyInRoom
	}
	if room.full() {
		return ErrRoomFull
	}
	if inRoom {
		if old, ok := m.Get(current); ok {
			old.leave()
		}
	}
	room.join()
	m.members[id] = roomID
	return nil
}

// PlaceNew puts a freshly connected player into the default room, or the first
// public room with space when the default is full.
func (m *RoomManager) PlaceNew(id ConnID) (string, error) {
	if err := m.Assign(id, m.fallback); err == nil {
		return m.fallback, nil
	}
	for _, roomID := range m.order {
		if err := m.Assign(id, roomID); err == nil {
			return roomID, nil
		}
	}
	return "", ErrRoomFull
}

// Release removes id from its room. Called on disconnect.
func (m *RoomManager) Release(id ConnID) string {
	roomID, ok := m.members[id]
	if !ok {
		return ""
	}
	if r, ok := m.Get(roomID); ok {
		r.leave()
	}
	delete(m.members, id)
	delete(m.previous, id)
	return roomID
}

// GetOrCreateHomeRoom is idempotent; the owner name is fixed on first creation.
func (m *RoomManager) GetOrCreateHomeRoom(homeID, ownerName string) *Room {
	if r, ok := m.homes[homeID]; ok {
		return r
	}
	r := newHomeRoom(homeID, ownerName, m.homeBackground)
	m.homes[homeID] = r
	m.homeOrder = append(m.homeOrder, homeID)
	return r
}

// EnterHome moves id into a home, remembering where it came from so ExitHome
// can send it back.
func (m *RoomManager) EnterHome(id ConnID, homeID string) error {
	if _, ok := m.homes[homeID]; !ok {
		return ErrHomeNotFound
	}
	current := m.members[id]
	if err := m.Assign(id, homeID); err != nil {
		return err
	}
	if current != "" {
		m.previous[id] = current
	}
	return nil
}

// ExitHome returns id to the room it had before entering a home, or the
// fallback room when none is recorded.
func (m *RoomManager) ExitHome(id ConnID) (string, error) {
	if !IsHomeRoom(m.members[id]) {
		return "", ErrNotInHome
	}
	target, ok := m.previous[id]
	if !ok || target == "" {
		target = m.fallback
	}
	if _, known := m.Get(target); !known {
		target = m.fallback
	}
	if err := m.Assign(id, target); err != nil {
		return "", err
	}
	delete(m.previous, id)
	return target, nil
}

func (m *RoomManager) RoomOf(id ConnID) string {
	return m.members[id]
}

// HomeOwner returns the owner name when roomID is a known home.
func (m *RoomManager) HomeOwner(roomID string) string {
	if r, ok := m.homes[roomID]; ok {
		return r.Owner
	}
	return ""
}

// Members lists the connections currently in roomID.
func (m *RoomManager) Members(roomID string) []ConnID {
	var ids []ConnID
	for id, r := range m.members {
		if r == roomID {
			ids = append(ids, id)
		}
	}
	return ids
}

// OccupancySnapshot lists public rooms in configured order followed by homes in
// creation order.
func (m *RoomManager) OccupancySnapshot() []Room {
	out := make([]Room, 0, len(m.order)+len(m.homeOrder))
	for _, id := range m.order {
		out = append(out, *m.public[id])
	}
	for _, id := range m.homeOrder {
		out = append(out, *m.homes[id])
	}
	return out
}
