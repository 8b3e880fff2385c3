package server

import (
	"errors"
	"testing"
)

func TestTradeRequestRejectedWhenTargetBusy(t *testing.T) {
	const alice, bob, carol ConnID = 1, 2, 3
	book := NewTradeBook()
	if _, err := book.Request(carol, "carol", bob); err != nil {
		t.Fatalf("carol request: %v", err)
	}
	if _, _, err := book.Accept(bob, carol); err != nil {
		t.Fatalf("bob accept: %v", err)
	}

	_, err := book.Request(alice, "alice", bob)
	if !errors.Is(err, ErrTargetBusy) {
		t.Fatalf("expected ErrTargetBusy, got %v", err)
	}
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict kind, got %v", KindOf(err))
	}
	if len(book.Pending()) != 0 {
		t.Fatalf("expected no pending request, have %+v", book.Pending())
	}
	if book.Busy(alice) {
		t.Fatal("alice must not be marked busy")
	}
	tr, _ := book.TradeOf(bob)
	if tr.Other(bob) != carol {
		t.Fatalf("bob's trade partner changed to %d", tr.Other(bob))
	}
}

func TestTradeRequestDuplicatesEitherDirection(t *testing.T) {
	book := NewTradeBook()
	if _, err := book.Request(1, "a", 2); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := book.Request(1, "a", 2); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := book.Request(2, "b", 1); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected reverse duplicate, got %v", err)
	}
	if _, err := book.Request(1, "a", 3); err != nil {
		t.Fatalf("request to a third player should be allowed: %v", err)
	}
	if _, err := book.Request(4, "d", 4); !errors.Is(err, ErrSelfTrade) {
		t.Fatalf("expected self trade refusal, got %v", err)
	}
}

func TestAcceptDropsOtherRequestsOfBothParties(t *testing.T) {
	book := NewTradeBook()
	mustRequest(t, book, 1, 2)
	mustRequest(t, book, 3, 2)
	mustRequest(t, book, 1, 4)
	mustRequest(t, book, 5, 6)

	tr, dropped, err := book.Accept(2, 1)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if tr.Sides[0].Conn != 2 || tr.Sides[1].Conn != 1 {
		t.Fatalf("unexpected sides %+v", tr.Sides)
	}
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped requests, got %+v", dropped)
	}
	pending := book.Pending()
	if len(pending) != 1 || pending[0].From != 5 {
		t.Fatalf("expected only the unrelated request to remain, have %+v", pending)
	}
	if got := book.BusySet(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected busy set %v", got)
	}
}

func TestAcceptWithoutRequestFails(t *testing.T) {
	book := NewTradeBook()
	if _, _, err := book.Accept(2, 1); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
	if book.Busy(1) || book.Busy(2) {
		t.Fatal("no one should be busy")
	}
}

func TestLockedOfferCannotChange(t *testing.T) {
	book := startedTrade(t, 1, 2)
	offer := Offer{{Category: CatHat, ID: 5}}
	if _, err := book.UpdateOffer(1, offer); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := book.Lock(1); err != nil {
		t.Fatalf("lock: %v", err)
	}

	_, err := book.UpdateOffer(1, Offer{{Category: CatHat, ID: 7}})
	if !errors.Is(err, ErrOfferLocked) {
		t.Fatalf("expected ErrOfferLocked, got %v", err)
	}
	tr, _ := book.TradeOf(1)
	got := tr.side(1).Offer
	if len(got) != 1 || got[0].ID != 5 {
		t.Fatalf("offer changed while locked: %+v", got)
	}
}

func TestUnlockWithdrawsConfirmation(t *testing.T) {
	book := startedTrade(t, 1, 2)
	if _, _, err := book.Confirm(1); !errors.Is(err, ErrNotLocked) {
		t.Fatalf("confirm before lock: expected ErrNotLocked, got %v", err)
	}
	mustLock(t, book, 1)
	mustLock(t, book, 2)
	if _, ready, err := book.Confirm(1); err != nil || ready {
		t.Fatalf("first confirm: ready=%v err=%v", ready, err)
	}
	if _, err := book.Unlock(1); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ready, _ := book.Confirm(2); ready {
		t.Fatal("trade must not be ready after the other side unlocked")
	}
	mustLock(t, book, 1)
	if _, ready, err := book.Confirm(1); err != nil || !ready {
		t.Fatalf("re-confirm: ready=%v err=%v", ready, err)
	}
}

func TestDropConnClosesTradeAndRequests(t *testing.T) {
	book := startedTrade(t, 1, 2)
	mustRequest(t, book, 3, 4)
	mustRequest(t, book, 5, 3)

	tr, dropped := book.DropConn(3)
	if tr != nil {
		t.Fatalf("3 had no trade, got %+v", tr)
	}
	if len(dropped) != 2 || len(book.Pending()) != 0 {
		t.Fatalf("expected both requests dropped, dropped=%+v pending=%+v", dropped, book.Pending())
	}

	tr, _ = book.DropConn(2)
	if tr == nil || tr.Other(2) != 1 {
		t.Fatalf("expected trade with 1 to be returned, got %+v", tr)
	}
	if book.Busy(1) || book.Busy(2) {
		t.Fatal("busy marks must be cleared")
	}
	if _, ok := book.Get(tr.ID); ok {
		t.Fatal("trade must be removed")
	}
}

func mustRequest(t *testing.T, b *TradeBook, from, to ConnID) {
	t.Helper()
	if _, err := b.Request(from, "", to); err != nil {
		t.Fatalf("request %d->%d: %v", from, to, err)
	}
}

func mustLock(t *testing.T, b *TradeBook, id ConnID) {
	t.Helper()
	if _, err := b.Lock(id); err != nil {
		t.Fatalf("lock %d: %v", id, err)
	}
}

func startedTrade(t *testing.T, target, sender ConnID) *TradeBook {
	t.Helper()
	b := NewTradeBook()
	mustRequest(t, b, sender, target)
	if _, _, err := b.Accept(target, sender); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return b
}
