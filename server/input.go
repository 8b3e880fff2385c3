package server

import "encoding/json"

// clientEnvelope is the JSON wrapper of an inbound websocket text message, e.g.
// {"type":"move","payload":{"x":320,"y":300,"direction":"left"}}
type clientEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// handlerFunc runs on the world loop for an authenticated, owning connection.
type handlerFunc func(w *World, p *Player, payload json.RawMessage, fx *effects)

type route struct {
	fn    handlerFunc
	admin bool
	// denied is the feedback event a non-admin gets for an admin route.
	denied string
}

func buildRoutes() map[string]route {
	player := func(fn handlerFunc) route { return route{fn: fn} }
	admin := func(fn handlerFunc, denied string) route { return route{fn: fn, admin: true, denied: denied} }
	return map[string]route{
		"move":            player(handleMove),
		"afkStatus":       player(handleAFK),
		"chat":            player(handleChat),
		"emojiUsed":       player(handleEmoji),
		"equipItem":       player(handleEquip),
		"requestUserData": player(handleRequestUserData),

		"joinRoom":             player(handleJoinRoom),
		"enterHome":            player(handleEnterHome),
		"exitHome":             player(handleExitHome),
		"visitHome":            player(handleVisitHome),
		"requestRoomOccupancy": player(handleRoomOccupancy),

		"sendTradeRequest":    player(handleTradeRequest),
		"acceptTradeRequest":  player(handleAcceptTrade),
		"declineTradeRequest": player(handleDeclineTrade),
		"cancelTradeRequest":  player(handleCancelTradeRequest),
		"updateTradeOffer":    player(handleUpdateOffer),
		"lockTradeOffer":      player(handleLockOffer),
		"unlockTradeOffer":    player(handleUnlockOffer),
		"confirmTrade":        player(handleConfirmTrade),
		"cancelTrade":         player(handleCancelTrade),
		"sendTradeChat":       player(handleTradeChat),

		"getStoreItems": player(handleGetStoreItems),
		"purchaseItem":  player(handlePurchase),

		"addStoreItem":     admin(handleAddStoreItem, "storeItemResult"),
		"removeStoreItem":  admin(handleRemoveStoreItem, "storeItemResult"),
		"adminBroadcast":   admin(handleAdminBroadcast, "adminActionFeedback"),
		"adminAddCoins":    admin(handleAdminAddCoins, "adminActionFeedback"),
		"adminAddDiamonds": admin(handleAdminAddDiamonds, "adminActionFeedback"),
		"adminGiveItem":    admin(handleAdminGiveItem, "adminActionFeedback"),
		"adminDisconnect":  admin(handleAdminDisconnect, "adminActionFeedback"),
		"adminBan":         admin(handleAdminBan, "adminActionFeedback"),
	}
}

// dispatch authorizes and routes one inbound message. Unknown types are
// ignored; a connection that no longer owns its player is disconnected.
func (w *World) dispatch(id ConnID, msgType string, payload json.RawMessage, fx *effects) {
	rt, ok := w.routes[msgType]
	if !ok {
		w.log.Debugw("unknown message type", "conn", id, "type", msgType)
		return
	}
	p, ok := w.registry.Get(id)
	if !ok || !w.registry.Owns(id) {
		w.log.Warnw("unauthorized event, disconnecting", "conn", id, "type", msgType)
		if _, live := w.conns[id]; live {
			fx.close(id)
			w.dropConn(id, fx)
		}
		return
	}
	if rt.admin && !p.IsAdmin {
		w.log.Warnw("admin event from non-admin", "user", p.Username, "type", msgType)
		fx.send(id, rt.denied, feedback{Success: false, Message: "Admin access required"})
		return
	}
	rt.fn(w, p, payload, fx)
}

// decode unmarshals an optional payload. A malformed payload is reported as
// false and the event is dropped.
func decode(payload json.RawMessage, v any) bool {
	if len(payload) == 0 {
		return true
	}
	return json.Unmarshal(payload, v) == nil
}

// Inbound payloads.

// movePayload coordinates are pointers so a missing or null value is told
// apart from 0.
type movePayload struct {
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Direction string   `json:"direction"`
}

type afkPayload struct {
	IsAFK bool `json:"isAFK"`
}

type emojiPayload struct {
	Emoji string `json:"emoji"`
}

type equipPayload struct {
	Category string `json:"category"`
	// ItemID is null to unequip.
	ItemID *int `json:"itemId"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type visitPayload struct {
	TargetUsername string `json:"targetUsername"`
}

type targetPayload struct {
	TargetID ConnID `json:"targetId"`
}

type senderPayload struct {
	SenderID ConnID `json:"senderId"`
}

type offerPayload struct {
	Offer Offer `json:"offer"`
}

type textPayload struct {
	Text string `json:"text"`
}

type shopItemPayload struct {
	ItemID   int      `json:"itemId"`
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Currency Currency `json:"currency"`
}

type adminTargetPayload struct {
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	Category string `json:"category"`
	ItemID   int    `json:"itemId"`
	Reason   string `json:"reason"`
}

// Outbound payloads.

type notice struct {
	Message string `json:"message"`
}

type feedback struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type userInfo struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	SocketID ConnID `json:"socketId"`
	HomeID   string `json:"homeId"`
	Diamonds int64  `json:"diamonds"`
	Room     string `json:"room"`
}

type occupancyUpdate struct {
	Rooms []Room `json:"rooms"`
}

type roomResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	RoomID          string `json:"roomId,omitempty"`
	Background      string `json:"background,omitempty"`
	IsVisiting      bool   `json:"isVisiting,omitempty"`
	VisitedUsername string `json:"visitedUsername,omitempty"`
}

type tradeActor struct {
	SenderID ConnID `json:"senderId"`
	Reason   string `json:"reason,omitempty"`
}

type tradeOfferUpdate struct {
	SenderID ConnID `json:"senderId"`
	Offer    Offer  `json:"offer"`
}

type tradeStarted struct {
	TradeID        string `json:"tradeId"`
	YourName       string `json:"yourName"`
	TheirName      string `json:"theirName"`
	TheirID        ConnID `json:"theirId"`
	YourOffer      Offer  `json:"yourOffer"`
	TheirOffer     Offer  `json:"theirOffer"`
	YourLocked     bool   `json:"yourLocked"`
	TheirLocked    bool   `json:"theirLocked"`
	YourConfirmed  bool   `json:"yourConfirmed"`
	TheirConfirmed bool   `json:"theirConfirmed"`
}

type tradeCompleted struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	NewInventory Inventory `json:"newInventory"`
	NewEquipped  Equipped  `json:"newEquipped"`
}

type tradeChatMessage struct {
	SenderID   ConnID `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
}

type emojiShown struct {
	Emoji    string `json:"emoji"`
	Username string `json:"username"`
}

type adminMessage struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

type purchaseResult struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	NewCoins    int64     `json:"newCoins,omitempty"`
	NewDiamonds int64     `json:"newDiamonds,omitempty"`
	Inventory   Inventory `json:"inventory,omitempty"`
}

type shopItemResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Item    *ShopItem `json:"item,omitempty"`
}
