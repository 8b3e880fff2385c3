package server

import "errors"

// ErrorKind classifies why a command was refused. It decides how the failure is
// surfaced: dropped, answered to the actor, or answered with a disconnect.
type ErrorKind int

const (
	KindUnauthorized ErrorKind = iota + 1
	KindInvalidInput
	KindNotFound
	KindConflict
	KindOwnership
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindOwnership:
		return "ownership_violation"
	case KindPersistence:
		return "persistence_failure"
	}
	return "unknown"
}

// Error carries a kind plus the short message shown to the acting player.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind ErrorKind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var (
	ErrUnauthorized = newError(KindUnauthorized, "Not signed in")

	ErrInvalidCategory  = newError(KindInvalidInput, "Invalid category")
	ErrInvalidItem      = newError(KindInvalidInput, "Invalid item ID")
	ErrInvalidPosition  = newError(KindInvalidInput, "Invalid position")
	ErrMoveTooFar       = newError(KindInvalidInput, "Move too far")
	ErrTooFast          = newError(KindConflict, "Too many updates")
	ErrInvalidMessage   = newError(KindInvalidInput, "Invalid message")
	ErrMessageChars     = newError(KindInvalidInput, "Only letters, digits and basic punctuation are allowed")
	ErrMessageProfanity = newError(KindInvalidInput, "Message contains inappropriate content")
	ErrOfferTooLarge    = newError(KindInvalidInput, "Too many items offered")
	ErrInvalidUsername  = newError(KindInvalidInput, "Invalid username")
	ErrInvalidAmount    = newError(KindInvalidInput, "Invalid amount")

	ErrRoomNotFound    = newError(KindNotFound, "Invalid room")
	ErrHomeNotFound    = newError(KindNotFound, "Home not found")
	ErrPlayerNotFound  = newError(KindNotFound, "Player not found")
	ErrNoTrade         = newError(KindNotFound, "No active trade")
	ErrRequestNotFound = newError(KindNotFound, "Trade request no longer exists")
	ErrShopItemMissing = newError(KindNotFound, "Item not found in store")

	ErrRoomFull         = newError(KindConflict, "This room is full.")
	ErrAlreadyInRoom    = newError(KindConflict, "You are already in this room.")
	ErrNotInHome        = newError(KindConflict, "You are not in a home")
	ErrSelfBusy         = newError(KindConflict, "You are already in a trade!")
	ErrTargetBusy       = newError(KindConflict, "That player is busy trading right now.")
	ErrDuplicateRequest = newError(KindConflict, "Trade request already pending")
	ErrSelfTrade        = newError(KindConflict, "You cannot trade with yourself")
	ErrOfferLocked      = newError(KindConflict, "Your offer is locked")
	ErrNotLocked        = newError(KindConflict, "Lock your offer before confirming")
	ErrInsufficientFund = newError(KindConflict, "Not enough currency for this purchase")
	ErrShopItemExists   = newError(KindConflict, "This item is already in the store")

	ErrNotOwned      = newError(KindOwnership, "Cannot equip item not in inventory.")
	ErrOfferNotOwned = newError(KindOwnership, "You do not own every offered item")

	ErrPersistence = newError(KindPersistence, "Saving failed; your progress may not be stored")
)
