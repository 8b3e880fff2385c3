package server

import (
	"encoding/json"
	"errors"
)

var emojis = map[string]bool{
	"happy": true, "sad": true, "angry": true, "laugh": true, "heart": true,
	"star": true, "diamond": true, "flower": true, "very-happy": true,
	"devil": true, "crying": true,
	"😀": true, "😭": true, "😡": true, "😂": true, "❤️": true,
}

func handleMove(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in movePayload
	if !decode(payload, &in) || in.X == nil || in.Y == nil {
		w.metrics.moves.WithLabelValues("malformed").Inc()
		return
	}
	if err := applyMove(p, *in.X, *in.Y, in.Direction, w.now(), w.cfg); err != nil {
		w.metrics.moves.WithLabelValues(moveResult(err)).Inc()
		w.log.Debugw("move rejected", "user", p.Username, "x", *in.X, "y", *in.Y, "err", err)
		return
	}
	w.metrics.moves.WithLabelValues("accepted").Inc()
	w.dirty = true
}

func moveResult(err error) string {
	switch {
	case errors.Is(err, ErrMoveTooFar):
		return "too_far"
	case errors.Is(err, ErrTooFast):
		return "too_fast"
	}
	return "out_of_bounds"
}

func handleAFK(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in afkPayload
	if !decode(payload, &in) {
		return
	}
	if p.AFK != in.IsAFK {
		p.AFK = in.IsAFK
		w.dirty = true
	}
}

// handleChat takes a bare JSON string. Filtered content is answered with
// chatFiltered; malformed or rate-limited messages are dropped.
func handleChat(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var text string
	if err := json.Unmarshal(payload, &text); err != nil {
		w.metrics.chats.WithLabelValues("malformed").Inc()
		return
	}
	err := applyChat(p, text, w.now(), w.cfg, w.filter)
	switch {
	case err == nil:
		w.metrics.chats.WithLabelValues("accepted").Inc()
		w.dirty = true
	case errors.Is(err, ErrMessageChars), errors.Is(err, ErrMessageProfanity):
		w.metrics.chats.WithLabelValues("filtered").Inc()
		w.log.Infow("chat filtered", "user", p.Username, "err", err)
		fx.send(p.ID, "chatFiltered", chatFiltered{Reason: err.Error()})
	case errors.Is(err, ErrTooFast):
		w.metrics.chats.WithLabelValues("too_fast").Inc()
	default:
		w.metrics.chats.WithLabelValues("invalid").Inc()
	}
}

type chatFiltered struct {
	Reason string `json:"reason"`
}

// handleEmoji shows an emoji to everyone in the sender's room.
func handleEmoji(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in emojiPayload
	if !decode(payload, &in) || !emojis[in.Emoji] {
		return
	}
	room := w.rooms.RoomOf(p.ID)
	if room == "" {
		return
	}
	fx.sendMany(w.rooms.Members(room), "showEmoji", emojiShown{Emoji: in.Emoji, Username: p.Username})
}

func handleEquip(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in equipPayload
	if !decode(payload, &in) {
		return
	}
	itemID := 0
	if in.ItemID != nil {
		itemID = *in.ItemID
	}
	if _, err := Equip(p, in.Category, itemID, w.cfg); err != nil {
		fx.send(p.ID, "actionFeedback", feedback{Success: false, Message: err.Error()})
		return
	}
	fx.send(p.ID, "updateEquipped", p.Equipped)
	w.dirty = true
	w.persistPlayer("equip", p, fx)
}

// handleRequestUserData re-sends the authoritative balances and items. The
// live copy is never behind the store, so nothing is re-read.
func handleRequestUserData(w *World, p *Player, _ json.RawMessage, fx *effects) {
	fx.send(p.ID, "updateInventory", p.Inventory)
	fx.send(p.ID, "updateEquipped", p.Equipped)
	fx.send(p.ID, "updateCoins", p.Coins)
	fx.send(p.ID, "updateDiamonds", p.Diamonds)
}
