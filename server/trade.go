package server

import (
	"sort"

	"github.com/google/uuid"
)

// TradeItem references one unit of an item in the offering player's inventory.
type TradeItem struct {
	Category Category `json:"cat"`
	ID       int      `json:"id"`
}

// Offer is an ordered list of slots; nil slots are empty.
type Offer []*TradeItem

// TradeRequest is a pending invitation from one connection to another.
type TradeRequest struct {
	From     ConnID `json:"senderId"`
	FromName string `json:"senderName"`
	To       ConnID `json:"targetId"`
}

func (r TradeRequest) involves(id ConnID) bool {
	return r.From == id || r.To == id
}

// TradeSide is one participant's half of an active trade.
type TradeSide struct {
	Conn      ConnID
	Offer     Offer
	Locked    bool
	Confirmed bool
}

// Trade is an accepted two-party exchange.
type Trade struct {
	ID    string
	Sides [2]TradeSide
}

func (t *Trade) side(id ConnID) *TradeSide {
	for i := range t.Sides {
		if t.Sides[i].Conn == id {
			return &t.Sides[i]
		}
	}
	return nil
}

// Other returns the counterparty of id.
func (t *Trade) Other(id ConnID) ConnID {
	if t.Sides[0].Conn == id {
		return t.Sides[1].Conn
	}
	return t.Sides[0].Conn
}

func (t *Trade) bothConfirmed() bool {
	return t.Sides[0].Confirmed && t.Sides[1].Confirmed
}

// TradeBook owns pending requests and active trades. Every mutation names its
// actor, and an actor can only change its own side.
type TradeBook struct {
	requests []TradeRequest
	trades   map[string]*Trade
	byConn   map[ConnID]*Trade
}

func NewTradeBook() *TradeBook {
	return &TradeBook{
		trades: make(map[string]*Trade),
		byConn: make(map[ConnID]*Trade),
	}
}

// Busy reports whether id is inside an active trade.
func (b *TradeBook) Busy(id ConnID) bool {
	_, ok := b.byConn[id]
	return ok
}

// BusySet lists everyone inside an active trade, ascending.
func (b *TradeBook) BusySet() []ConnID {
	ids := make([]ConnID, 0, len(b.byConn))
	for id := range b.byConn {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *TradeBook) TradeOf(id ConnID) (*Trade, bool) {
	t, ok := b.byConn[id]
	return t, ok
}

func (b *TradeBook) Get(tradeID string) (*Trade, bool) {
	t, ok := b.trades[tradeID]
	return t, ok
}

// Pending returns a copy of the open requests.
func (b *TradeBook) Pending() []TradeRequest {
	return append([]TradeRequest(nil), b.requests...)
}

func (b *TradeBook) findRequest(from, to ConnID) int {
	for i, r := range b.requests {
		if r.From == from && r.To == to {
			return i
		}
	}
	return -1
}

func (b *TradeBook) removeRequest(i int) TradeRequest {
	r := b.requests[i]
	b.requests = append(b.requests[:i], b.requests[i+1:]...)
	return r
}

// Request records an invitation. A request already open between the pair, in
// either direction, is a duplicate.
func (b *TradeBook) Request(from ConnID, fromName string, to ConnID) (TradeRequest, error) {
	if from == to {
		return TradeRequest{}, ErrSelfTrade
	}
	if b.Busy(from) {
		return TradeRequest{}, ErrSelfBusy
	}
	if b.Busy(to) {
		return TradeRequest{}, ErrTargetBusy
	}
	if b.findRequest(from, to) >= 0 || b.findRequest(to, from) >= 0 {
		return TradeRequest{}, ErrDuplicateRequest
	}
	r := TradeRequest{From: from, FromName: fromName, To: to}
	b.requests = append(b.requests, r)
	return r, nil
}

// Decline removes the request from sender to target, acted on by target.
func (b *TradeBook) Decline(target, sender ConnID) (TradeRequest, error) {
	i := b.findRequest(sender, target)
	if i < 0 {
		return TradeRequest{}, ErrRequestNotFound
	}
	return b.removeRequest(i), nil
}

// CancelRequest withdraws the request from sender to target, acted on by sender.
func (b *TradeBook) CancelRequest(sender, target ConnID) (TradeRequest, error) {
	i := b.findRequest(sender, target)
	if i < 0 {
		return TradeRequest{}, ErrRequestNotFound
	}
	return b.removeRequest(i), nil
}

// Accept opens a trade between target and sender. Every other pending request
// involving either party is dropped and returned so the counterparties can be
// told.
func (b *TradeBook) Accept(target, sender ConnID) (*Trade, []TradeRequest, error) {
	if b.Busy(target) {
		return nil, nil, ErrSelfBusy
	}
	if b.Busy(sender) {
		return nil, nil, ErrTargetBusy
	}
	i := b.findRequest(sender, target)
	if i < 0 {
		return nil, nil, ErrRequestNotFound
	}
	b.removeRequest(i)

	var dropped []TradeRequest
	kept := b.requests[:0]
	for _, r := range b.requests {
		if r.involves(target) || r.involves(sender) {
			dropped = append(dropped, r)
			continue
		}
		kept = append(kept, r)
	}
	b.requests = kept

	t := &Trade{
		ID: uuid.NewString(),
		Sides: [2]TradeSide{
			{Conn: target, Offer: Offer{}},
			{Conn: sender, Offer: Offer{}},
		},
	}
	b.trades[t.ID] = t
	b.byConn[target] = t
	b.byConn[sender] = t
	return t, dropped, nil
}

// UpdateOffer replaces the caller's offer. Refused once the caller has locked,
// whatever the client UI allows.
func (b *TradeBook) UpdateOffer(id ConnID, offer Offer) (*Trade, error) {
	t, ok := b.byConn[id]
	if !ok {
		return nil, ErrNoTrade
	}
	s := t.side(id)
	if s.Locked {
		return t, ErrOfferLocked
	}
	s.Offer = append(Offer{}, offer...)
	return t, nil
}

func (b *TradeBook) Lock(id ConnID) (*Trade, error) {
	t, ok := b.byConn[id]
	if !ok {
		return nil, ErrNoTrade
	}
	t.side(id).Locked = true
	return t, nil
}

// Unlock also withdraws the caller's confirmation.
func (b *TradeBook) Unlock(id ConnID) (*Trade, error) {
	t, ok := b.byConn[id]
	if !ok {
		return nil, ErrNoTrade
	}
	s := t.side(id)
	s.Locked = false
	s.Confirmed = false
	return t, nil
}

// Confirm marks the caller confirmed. ready is true when both sides are
// confirmed, at which point the trade must execute.
func (b *TradeBook) Confirm(id ConnID) (t *Trade, ready bool, err error) {
	t, ok := b.byConn[id]
	if !ok {
		return nil, false, ErrNoTrade
	}
	s := t.side(id)
	if !s.Locked {
		return t, false, ErrNotLocked
	}
	s.Confirmed = true
	return t, t.bothConfirmed(), nil
}

// Cancel ends the caller's trade without transfer.
func (b *TradeBook) Cancel(id ConnID) (*Trade, error) {
	t, ok := b.byConn[id]
	if !ok {
		return nil, ErrNoTrade
	}
	b.Close(t.ID)
	return t, nil
}

// Close removes a trade from active storage and clears both busy marks.
func (b *TradeBook) Close(tradeID string) *Trade {
	t, ok := b.trades[tradeID]
	if !ok {
		return nil
	}
	delete(b.trades, tradeID)
	for _, s := range t.Sides {
		if b.byConn[s.Conn] == t {
			delete(b.byConn, s.Conn)
		}
	}
	return t
}

// DropConn is the implicit cancel for a disconnecting connection: its active
// trade is closed and every request it sent or received is removed.
func (b *TradeBook) DropConn(id ConnID) (*Trade, []TradeRequest) {
	var t *Trade
	if active, ok := b.byConn[id]; ok {
		t = b.Close(active.ID)
	}
	var dropped []TradeRequest
	kept := b.requests[:0]
	for _, r := range b.requests {
		if r.involves(id) {
			dropped = append(dropped, r)
			continue
		}
		kept = append(kept, r)
	}
	b.requests = kept
	return t, dropped
}
