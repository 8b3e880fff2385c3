package server

import (
	"encoding/json"
	"errors"

	"jumpi/store"
)

const (
	tradeDoneMessage    = "Trade completed successfully!"
	tradeUnsavedMessage = "Trade applied, but saving it failed. Your items may not be stored."
)

func handleTradeRequest(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in targetPayload
	if !decode(payload, &in) {
		return
	}
	if _, ok := w.registry.Get(in.TargetID); !ok {
		return
	}
	r, err := w.trades.Request(p.ID, p.Username, in.TargetID)
	switch {
	case errors.Is(err, ErrSelfBusy), errors.Is(err, ErrTargetBusy):
		fx.send(p.ID, "tradeBusy", notice{Message: err.Error()})
		return
	case err != nil:
		// duplicate or self-addressed requests are dropped quietly
		return
	}
	fx.send(r.To, "tradeRequestReceived", r)
}

func handleAcceptTrade(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in senderPayload
	if !decode(payload, &in) {
		return
	}
	sender, ok := w.registry.Get(in.SenderID)
	if !ok {
		return
	}
	t, dropped, err := w.trades.Accept(p.ID, sender.ID)
	switch {
	case errors.Is(err, ErrSelfBusy), errors.Is(err, ErrTargetBusy):
		fx.send(p.ID, "tradeBusy", notice{Message: err.Error()})
		return
	case err != nil:
		fx.send(p.ID, "tradeRequestCanceled", TradeRequest{From: sender.ID, FromName: sender.Username, To: p.ID})
		return
	}

	for _, r := range dropped {
		other := r.To
		if r.To == p.ID || r.To == sender.ID {
			other = r.From
		}
		fx.send(other, "tradeRequestCanceled", r)
	}
	fx.tradeSet = true
	w.metrics.trades.WithLabelValues("started").Inc()
	w.log.Infow("trade started", "trade", t.ID, "a", p.Username, "b", sender.Username)

	fx.send(p.ID, "tradeStarted", tradeStarted{TradeID: t.ID, YourName: p.Username, TheirName: sender.Username, TheirID: sender.ID, YourOffer: Offer{}, TheirOffer: Offer{}})
	fx.send(sender.ID, "tradeStarted", tradeStarted{TradeID: t.ID, YourName: sender.Username, TheirName: p.Username, TheirID: p.ID, YourOffer: Offer{}, TheirOffer: Offer{}})
}

func handleDeclineTrade(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in senderPayload
	if !decode(payload, &in) {
		return
	}
	r, err := w.trades.Decline(p.ID, in.SenderID)
	if err != nil {
		return
	}
	fx.send(r.From, "tradeRequestDeclined", r)
}

func handleCancelTradeRequest(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in targetPayload
	if !decode(payload, &in) {
		return
	}
	r, err := w.trades.CancelRequest(p.ID, in.TargetID)
	if err != nil {
		return
	}
	fx.send(r.To, "tradeRequestCanceled", r)
}

func bothSides(t *Trade) []ConnID {
	return []ConnID{t.Sides[0].Conn, t.Sides[1].Conn}
}

func handleUpdateOffer(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in offerPayload
	if !decode(payload, &in) {
		return
	}
	if _, ok := w.trades.TradeOf(p.ID); !ok {
		return
	}
	if err := validateOffer(p, in.Offer, w.cfg); err != nil {
		fx.send(p.ID, "actionFeedback", feedback{Message: err.Error()})
		return
	}
	t, err := w.trades.UpdateOffer(p.ID, in.Offer)
	if err != nil {
		fx.send(p.ID, "actionFeedback", feedback{Message: err.Error()})
		return
	}
	fx.sendMany(bothSides(t), "tradeOfferUpdated", tradeOfferUpdate{SenderID: p.ID, Offer: t.side(p.ID).Offer})
}

func handleLockOffer(w *World, p *Player, _ json.RawMessage, fx *effects) {
	t, err := w.trades.Lock(p.ID)
	if err != nil {
		return
	}
	fx.sendMany(bothSides(t), "tradeOfferLocked", tradeActor{SenderID: p.ID})
}

func handleUnlockOffer(w *World, p *Player, _ json.RawMessage, fx *effects) {
	t, err := w.trades.Unlock(p.ID)
	if err != nil {
		return
	}
	fx.sendMany(bothSides(t), "tradeOfferUnlocked", tradeActor{SenderID: p.ID})
}

func handleConfirmTrade(w *World, p *Player, _ json.RawMessage, fx *effects) {
	t, ready, err := w.trades.Confirm(p.ID)
	if errors.Is(err, ErrNotLocked) {
		fx.send(p.ID, "actionFeedback", feedback{Message: err.Error()})
		return
	}
	if err != nil {
		return
	}
	fx.sendMany(bothSides(t), "tradeOfferConfirmed", tradeActor{SenderID: p.ID})
	if ready {
		w.executeTrade(t, fx)
	}
}

// executeTrade applies a fully confirmed trade to live state, closes it and
// queues one transactional save of both players. tradeCompleted goes out once
// the save has finished, carrying whether it succeeded.
func (w *World) executeTrade(t *Trade, fx *effects) {
	w.trades.Close(t.ID)
	fx.tradeSet = true

	a, okA := w.registry.Get(t.Sides[0].Conn)
	b, okB := w.registry.Get(t.Sides[1].Conn)
	if !okA || !okB {
		w.log.Warnw("trade party missing at execution", "trade", t.ID)
		return
	}
	ExecuteTrade(t, a, b)
	w.dirty = true
	w.metrics.trades.WithLabelValues("completed").Inc()
	w.log.Infow("trade executed", "trade", t.ID, "a", a.Username, "b", b.Username)

	ids := []ConnID{a.ID, b.ID}
	fx.persist(saveJob("trade", []*store.User{a.Record(), b.Record()}, func(w *World, err error, fx *effects) {
		msg := tradeDoneMessage
		if err != nil {
			msg = tradeUnsavedMessage
			w.metrics.trades.WithLabelValues("unsaved").Inc()
		}
		for _, id := range ids {
			p, ok := w.registry.Get(id)
			if !ok {
				continue
			}
			fx.send(id, "tradeCompleted", tradeCompleted{
				Success:      err == nil,
				Message:      msg,
				NewInventory: p.Inventory,
				NewEquipped:  p.Equipped,
			})
		}
	}))
}

func handleCancelTrade(w *World, p *Player, _ json.RawMessage, fx *effects) {
	t, err := w.trades.Cancel(p.ID)
	if err != nil {
		return
	}
	fx.sendMany(bothSides(t), "tradeCanceled", tradeActor{SenderID: p.ID})
	fx.tradeSet = true
	w.metrics.trades.WithLabelValues("canceled").Inc()
}

// handleTradeChat relays a line to both trade parties, gated like room chat
// except for the cooldown.
func handleTradeChat(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in textPayload
	if !decode(payload, &in) {
		return
	}
	t, ok := w.trades.TradeOf(p.ID)
	if !ok {
		return
	}
	text, err := checkChatShape(in.Text, w.cfg)
	if err != nil {
		return
	}
	if err := w.filter.Check(text); err != nil {
		fx.send(p.ID, "chatFiltered", chatFiltered{Reason: err.Error()})
		return
	}
	fx.sendMany(bothSides(t), "tradeChatMessage", tradeChatMessage{SenderID: p.ID, SenderName: p.Username, Text: text})
}
