package server

import (
	"errors"
	"testing"
)

func totalOccupancy(m *RoomManager) int {
	n := 0
	for _, r := range m.OccupancySnapshot() {
		n += r.CurrentPlayers
	}
	return n
}

func TestPlaceNewFallsBackWhenDefaultFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PublicRooms = []Room{
		{ID: "beach", Name: "Beach", MaxCapacity: 1},
		{ID: "park", Name: "Park", MaxCapacity: 1},
	}
	m := NewRoomManager(cfg)

	if room, err := m.PlaceNew(1); err != nil || room != "beach" {
		t.Fatalf("first player: room=%q err=%v", room, err)
	}
	if room, err := m.PlaceNew(2); err != nil || room != "park" {
		t.Fatalf("second player: room=%q err=%v", room, err)
	}
	if _, err := m.PlaceNew(3); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if m.RoomOf(3) != "" {
		t.Fatalf("unplaced player has room %q", m.RoomOf(3))
	}
	if got := totalOccupancy(m); got != 2 {
		t.Fatalf("expected 2 occupants, have %d", got)
	}
}

func TestAssignKeepsCountsConsistent(t *testing.T) {
	m := NewRoomManager(DefaultConfig())
	for id := ConnID(1); id <= 3; id++ {
		if _, err := m.PlaceNew(id); err != nil {
			t.Fatalf("place %d: %v", id, err)
		}
	}
	if err := m.Assign(1, "space"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := m.Assign(1, "space"); !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("expected ErrAlreadyInRoom, got %v", err)
	}
	if err := m.Assign(1, "moon"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	beach, _ := m.Get("beach")
	space, _ := m.Get("space")
	if beach.CurrentPlayers != 2 || space.CurrentPlayers != 1 {
		t.Fatalf("beach=%d space=%d", beach.CurrentPlayers, space.CurrentPlayers)
	}

	if got := m.Release(2); got != "beach" {
		t.Fatalf("release returned %q", got)
	}
	if m.Release(2) != "" {
		t.Fatal("second release must be a no-op")
	}
	if got := totalOccupancy(m); got != 2 {
		t.Fatalf("expected 2 occupants, have %d", got)
	}
}

func TestHomeHoldsOnePlayer(t *testing.T) {
	m := NewRoomManager(DefaultConfig())
	m.PlaceNew(1)
	m.PlaceNew(2)
	home := m.GetOrCreateHomeRoom("home_abc", "alice")
	if again := m.GetOrCreateHomeRoom("home_abc", "mallory"); again != home || again.Owner != "alice" {
		t.Fatalf("home recreated or renamed: %+v", again)
	}

	if err := m.EnterHome(1, home.ID); err != nil {
		t.Fatalf("owner enter: %v", err)
	}
	if err := m.EnterHome(2, home.ID); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if home.CurrentPlayers != 1 || m.RoomOf(2) != "beach" {
		t.Fatalf("home count=%d, visitor in %q", home.CurrentPlayers, m.RoomOf(2))
	}
	if err := m.EnterHome(2, "home_missing"); !errors.Is(err, ErrHomeNotFound) {
		t.Fatalf("expected ErrHomeNotFound, got %v", err)
	}
}

func TestExitHomeReturnsToPreviousRoom(t *testing.T) {
	m := NewRoomManager(DefaultConfig())
	m.PlaceNew(1)
	if _, err := m.ExitHome(1); !errors.Is(err, ErrNotInHome) {
		t.Fatalf("expected ErrNotInHome, got %v", err)
	}
	if err := m.Assign(1, "park"); err != nil {
		t.Fatalf("assign park: %v", err)
	}
	home := m.GetOrCreateHomeRoom("home_abc", "alice")
	if err := m.EnterHome(1, home.ID); err != nil {
		t.Fatalf("enter home: %v", err)
	}
	room, err := m.ExitHome(1)
	if err != nil || room != "park" {
		t.Fatalf("expected park, got room=%q err=%v", room, err)
	}
	if home.CurrentPlayers != 0 {
		t.Fatalf("home still counts %d", home.CurrentPlayers)
	}
}

func TestExitHomeWithoutHistoryUsesDefault(t *testing.T) {
	m := NewRoomManager(DefaultConfig())
	home := m.GetOrCreateHomeRoom("home_abc", "alice")
	if err := m.EnterHome(7, home.ID); err != nil {
		t.Fatalf("enter home: %v", err)
	}
	room, err := m.ExitHome(7)
	if err != nil || room != "beach" {
		t.Fatalf("expected beach, got room=%q err=%v", room, err)
	}
}

func TestOccupancySnapshotOrder(t *testing.T) {
	m := NewRoomManager(DefaultConfig())
	m.GetOrCreateHomeRoom("home_b", "bob")
	m.GetOrCreateHomeRoom("home_a", "alice")
	snap := m.OccupancySnapshot()
	want := []string{"football", "space", "beach", "park", "home_b", "home_a"}
	if len(snap) != len(want) {
		t.Fatalf("expected %d rooms, got %d", len(want), len(snap))
	}
	for i, id := range want {
		if snap[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, snap[i].ID)
		}
	}
}
