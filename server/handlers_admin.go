package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"jumpi/store"
)

func handleAdminBroadcast(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var msg string
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	msg = strings.TrimSpace(msg)
	if msg == "" || utf8.RuneCountInString(msg) > w.cfg.MaxAdminBroadcast {
		fx.send(p.ID, "adminActionFeedback", feedback{Message: ErrInvalidMessage.Error()})
		return
	}
	w.log.Infow("admin broadcast", "admin", p.Username, "message", msg)
	fx.broadcast("adminMessage", adminMessage{Message: msg, Username: p.Username, IsAdmin: true})
}

// adminEdit is one privileged change to a player account. live applies it to an
// online player and stored to an offline record; both return the success text.
type adminEdit struct {
	job    string
	fail   string
	live   func(t *Player, fx *effects) string
	stored func(u *store.User) string
}

// applyAdminEdit mutates an online target in place and persists it, or edits an
// offline record through the persistence worker. The acting admin hears the
// outcome once the write has finished.
func (w *World) applyAdminEdit(admin ConnID, target string, e adminEdit, fx *effects) {
	if t, ok := w.registry.GetByUsername(target); ok {
		msg := e.live(t, fx)
		w.dirty = true
		fx.persist(saveJob(e.job, []*store.User{t.Record()}, func(w *World, err error, fx *effects) {
			w.adminResult(admin, target, msg, e.fail, err, fx)
		}))
		return
	}

	var msg string
	fx.persist(writeJob{
		name: e.job,
		run: func(ctx context.Context, s store.UserStore) error {
			u, err := s.FindByUsername(ctx, target)
			if err != nil {
				return err
			}
			msg = e.stored(u)
			return s.Save(ctx, u)
		},
		done: func(w *World, err error, fx *effects) {
			w.adminResult(admin, target, msg, e.fail, err, fx)
		},
	})
}

func (w *World) adminResult(admin ConnID, target, ok, fail string, err error, fx *effects) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fx.send(admin, "adminActionFeedback", feedback{Message: fmt.Sprintf("User %s not found.", target)})
	case err != nil:
		fx.send(admin, "adminActionFeedback", feedback{Message: fail})
	default:
		fx.send(admin, "adminActionFeedback", feedback{Success: true, Message: ok})
	}
}

func adminTarget(payload json.RawMessage, fx *effects, admin ConnID) (adminTargetPayload, bool) {
	var in adminTargetPayload
	if !decode(payload, &in) {
		return in, false
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		fx.send(admin, "adminActionFeedback", feedback{Message: ErrInvalidUsername.Error()})
		return in, false
	}
	return in, true
}

func handleAdminAddCoins(w *World, p *Player, payload json.RawMessage, fx *effects) {
	in, ok := adminTarget(payload, fx, p.ID)
	if !ok {
		return
	}
	if in.Amount < 1 || in.Amount > w.cfg.MaxCoinGrant {
		fx.send(p.ID, "adminActionFeedback", feedback{Message: fmt.Sprintf("Invalid amount (must be 1-%d)", w.cfg.MaxCoinGrant)})
		return
	}
	w.log.Infow("admin add coins", "admin", p.Username, "target", in.Username, "amount", in.Amount)
	w.applyAdminEdit(p.ID, in.Username, adminEdit{
		job:  "admin_coins",
		fail: fmt.Sprintf("DB error updating coins for %s.", in.Username),
		live: func(t *Player, fx *effects) string {
			t.Coins += in.Amount
			fx.send(t.ID, "updateCoins", t.Coins)
			return fmt.Sprintf("Added %d coins to %s. Total: %d", in.Amount, t.Username, t.Coins)
		},
		stored: func(u *store.User) string {
			u.Coins += in.Amount
			return fmt.Sprintf("Added %d coins to %s. Total: %d", in.Amount, u.Username, u.Coins)
		},
	}, fx)
}

func handleAdminAddDiamonds(w *World, p *Player, payload json.RawMessage, fx *effects) {
	in, ok := adminTarget(payload, fx, p.ID)
	if !ok {
		return
	}
	if in.Amount < 1 || in.Amount > w.cfg.MaxDiamondGrant {
		fx.send(p.ID, "adminActionFeedback", feedback{Message: fmt.Sprintf("Invalid amount (must be 1-%d)", w.cfg.MaxDiamondGrant)})
		return
	}
	w.log.Infow("admin add diamonds", "admin", p.Username, "target", in.Username, "amount", in.Amount)
	w.applyAdminEdit(p.ID, in.Username, adminEdit{
		job:  "admin_diamonds",
		fail: fmt.Sprintf("DB error updating diamonds for %s.", in.Username),
		live: func(t *Player, fx *effects) string {
			t.Diamonds += in.Amount
			fx.send(t.ID, "updateDiamonds", t.Diamonds)
			return fmt.Sprintf("Added %d diamonds to %s. Total: %d", in.Amount, t.Username, t.Diamonds)
		},
		stored: func(u *store.User) string {
			u.Diamonds += in.Amount
			return fmt.Sprintf("Added %d diamonds to %s. Total: %d", in.Amount, u.Username, u.Diamonds)
		},
	}, fx)
}

func handleAdminGiveItem(w *World, p *Player, payload json.RawMessage, fx *effects) {
	in, ok := adminTarget(payload, fx, p.ID)
	if !ok {
		return
	}
	c, valid := ParseCategory(in.Category)
	if !valid {
		fx.send(p.ID, "adminActionFeedback", feedback{Message: ErrInvalidCategory.Error()})
		return
	}
	if !w.cfg.validItemID(in.ItemID) {
		fx.send(p.ID, "adminActionFeedback", feedback{Message: fmt.Sprintf("Invalid item ID (must be 1-%d)", w.cfg.MaxItemID)})
		return
	}
	w.log.Infow("admin give item", "admin", p.Username, "target", in.Username, "category", c, "item", in.ItemID)
	done := fmt.Sprintf("Item %s:%d given to %s.", c, in.ItemID, in.Username)
	w.applyAdminEdit(p.ID, in.Username, adminEdit{
		job:  "admin_item",
		fail: fmt.Sprintf("DB error giving item to %s.", in.Username),
		live: func(t *Player, fx *effects) string {
			t.Inventory.Add(c, in.ItemID)
			fx.send(t.ID, "updateInventory", t.Inventory)
			return done
		},
		stored: func(u *store.User) string {
			if u.Inventory == nil {
				u.Inventory = make(map[string][]int)
			}
			u.Inventory[string(c)] = append(u.Inventory[string(c)], in.ItemID)
			return done
		},
	}, fx)
}

func handleAdminDisconnect(w *World, p *Player, payload json.RawMessage, fx *effects) {
	in, ok := adminTarget(payload, fx, p.ID)
	if !ok {
		return
	}
	t, online := w.registry.GetByUsername(in.Username)
	if !online {
		fx.send(p.ID, "adminActionFeedback", feedback{Message: fmt.Sprintf("User %s not found or not online", in.Username)})
		return
	}
	w.log.Infow("admin disconnect", "admin", p.Username, "target", t.Username)
	w.disconnect(t.ID, "adminDisconnected", "You have been disconnected by an admin", fx)
	fx.send(p.ID, "adminActionFeedback", feedback{Success: true, Message: fmt.Sprintf("User %s has been disconnected", in.Username)})
}

// handleAdminBan flags the account and, when the target is online, tells it
// why and drops the connection.
func handleAdminBan(w *World, p *Player, payload json.RawMessage, fx *effects) {
	in, ok := adminTarget(payload, fx, p.ID)
	if !ok {
		return
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "No reason provided"
	}
	at := w.now().UTC()
	ban := func(u *store.User) {
		u.Banned = true
		u.BanReason = reason
		u.BannedAt = &at
	}
	w.log.Infow("admin ban", "admin", p.Username, "target", in.Username, "reason", reason)
	done := fmt.Sprintf("User %s has been banned", in.Username)
	w.applyAdminEdit(p.ID, in.Username, adminEdit{
		job:  "admin_ban",
		fail: fmt.Sprintf("Failed to ban %s", in.Username),
		live: func(t *Player, fx *effects) string {
			ban(t.record)
			w.disconnect(t.ID, "adminBanned", "You have been banned by an admin. Reason: "+reason, fx)
			return done
		},
		stored: func(u *store.User) string {
			ban(u)
			return done
		},
	}, fx)
}
