package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"jumpi/store"
)

// handleJoinRoom moves the player into a public room or an already known
// home. Joining a home remembers the room left, like enterHome.
func handleJoinRoom(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in roomPayload
	if !decode(payload, &in) {
		return
	}
	var err error
	if IsHomeRoom(in.RoomID) {
		err = w.rooms.EnterHome(p.ID, in.RoomID)
		if errors.Is(err, ErrHomeNotFound) {
			err = ErrRoomNotFound
		}
	} else {
		err = w.rooms.Assign(p.ID, in.RoomID)
	}
	if err != nil {
		fx.send(p.ID, "roomJoinResponse", roomResponse{Message: err.Error()})
		return
	}
	room, _ := w.rooms.Get(in.RoomID)
	fx.occupancy = true
	w.dirty = true
	fx.send(p.ID, "roomJoinResponse", roomResponse{
		Success:    true,
		RoomID:     room.ID,
		Message:    fmt.Sprintf("Successfully joined %s!", room.Name),
		Background: room.Background,
	})
}

func handleEnterHome(w *World, p *Player, _ json.RawMessage, fx *effects) {
	if p.HomeID == "" {
		fx.send(p.ID, "homeResponse", roomResponse{Message: ErrHomeNotFound.Error()})
		return
	}
	room := w.rooms.GetOrCreateHomeRoom(p.HomeID, p.Username)
	if err := w.rooms.EnterHome(p.ID, room.ID); err != nil {
		fx.send(p.ID, "homeResponse", roomResponse{Message: err.Error()})
		return
	}
	p.setPosition(w.cfg.HomeSpawnX, w.cfg.HomeSpawnY)
	fx.occupancy = true
	w.dirty = true
	fx.send(p.ID, "homeResponse", roomResponse{
		Success:    true,
		RoomID:     room.ID,
		Message:    "Welcome to your home!",
		Background: room.Background,
	})
}

func handleExitHome(w *World, p *Player, _ json.RawMessage, fx *effects) {
	roomID, err := w.rooms.ExitHome(p.ID)
	if err != nil {
		fx.send(p.ID, "homeResponse", roomResponse{Message: err.Error()})
		return
	}
	room, _ := w.rooms.Get(roomID)
	p.setPosition(w.cfg.SpawnX, w.cfg.SpawnY)
	fx.occupancy = true
	w.dirty = true
	fx.send(p.ID, "homeResponse", roomResponse{
		Success:    true,
		RoomID:     room.ID,
		Message:    fmt.Sprintf("Returned to %s!", room.Name),
		Background: room.Background,
	})
}

// handleVisitHome enters another player's home. An online owner is resolved
// from the registry; an offline one needs a store lookup, which runs on the
// persistence worker before the move is applied back on the loop.
func handleVisitHome(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in visitPayload
	if !decode(payload, &in) || in.TargetUsername == "" {
		fx.send(p.ID, "homeResponse", roomResponse{Message: ErrInvalidUsername.Error()})
		return
	}
	if owner, ok := w.registry.GetByUsername(in.TargetUsername); ok {
		w.visitHome(p.ID, owner.HomeID, owner.Username, fx)
		return
	}

	id := p.ID
	var homeID, ownerName string
	fx.persist(writeJob{
		name: "visit_lookup",
		run: func(ctx context.Context, s store.UserStore) error {
			u, err := s.FindByUsername(ctx, in.TargetUsername)
			if err != nil {
				return err
			}
			homeID, ownerName = u.HomeID, u.Username
			return nil
		},
		done: func(w *World, err error, fx *effects) {
			if err != nil {
				msg := "Target user or their home not found"
				if !errors.Is(err, store.ErrNotFound) {
					msg = ErrPersistence.Error()
				}
				fx.send(id, "homeResponse", roomResponse{Message: msg})
				return
			}
			w.visitHome(id, homeID, ownerName, fx)
		},
	})
}

func (w *World) visitHome(id ConnID, homeID, owner string, fx *effects) {
	p, ok := w.registry.Get(id)
	if !ok {
		return
	}
	if homeID == "" {
		fx.send(id, "homeResponse", roomResponse{Message: "Target user or their home not found"})
		return
	}
	room := w.rooms.GetOrCreateHomeRoom(homeID, owner)
	if err := w.rooms.EnterHome(id, room.ID); err != nil {
		fx.send(id, "homeResponse", roomResponse{Message: err.Error()})
		return
	}
	p.setPosition(w.cfg.HomeSpawnX, w.cfg.HomeSpawnY)
	fx.occupancy = true
	w.dirty = true
	fx.send(id, "homeResponse", roomResponse{
		Success:         true,
		RoomID:          room.ID,
		Message:         fmt.Sprintf("Visiting %s's home!", owner),
		Background:      room.Background,
		IsVisiting:      owner != p.Username,
		VisitedUsername: owner,
	})
}

func handleRoomOccupancy(w *World, p *Player, _ json.RawMessage, fx *effects) {
	fx.send(p.ID, "roomOccupancyUpdate", occupancyUpdate{Rooms: w.rooms.OccupancySnapshot()})
}
