package server

import "strings"

// HomePrefix marks home room ids.
const HomePrefix = "home_"

// Room is a named zone with a capacity. Public rooms are fixed at startup;
// home rooms hold a single player and are created the first time they are used.
type Room struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Background     string `json:"background"`
	MaxCapacity    int    `json:"maxCapacity"`
	CurrentPlayers int    `json:"currentPlayers"`
	Owner          string `json:"owner,omitempty"`
}

// IsHomeRoom reports whether id names a per-user home.
func IsHomeRoom(id string) bool {
	return strings.HasPrefix(id, HomePrefix)
}

func (r *Room) full() bool {
	return r.CurrentPlayers >= r.MaxCapacity
}

func (r *Room) join() {
	r.CurrentPlayers++
}

func (r *Room) leave() {
	if r.CurrentPlayers > 0 {
		r.CurrentPlayers--
	}
}

func newHomeRoom(homeID, owner, background string) *Room {
	return &Room{
		ID:          homeID,
		Name:        owner + "'s Home",
		Background:  background,
		MaxCapacity: 1,
		Owner:       owner,
	}
}
