package server

import (
	"errors"
	"testing"
)

func TestShopAddValidates(t *testing.T) {
	cfg := DefaultConfig()
	s := NewShop()
	good := ShopItem{ID: 12, Category: CatHat, Name: "Cap", Price: 50, Currency: CurrencyCoins}
	cases := []struct {
		name string
		item ShopItem
		want error
	}{
		{"bad category", ShopItem{ID: 12, Category: "zz", Name: "Cap", Price: 50, Currency: CurrencyCoins}, ErrInvalidCategory},
		{"bad id", ShopItem{ID: 0, Category: CatHat, Name: "Cap", Price: 50, Currency: CurrencyCoins}, ErrInvalidItem},
		{"no name", ShopItem{ID: 12, Category: CatHat, Price: 50, Currency: CurrencyCoins}, ErrInvalidAmount},
		{"free", ShopItem{ID: 12, Category: CatHat, Name: "Cap", Currency: CurrencyCoins}, ErrInvalidAmount},
		{"bad currency", ShopItem{ID: 12, Category: CatHat, Name: "Cap", Price: 50, Currency: "gold"}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		if err := s.Add(tc.item, cfg); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if err := s.Add(good, cfg); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(good, cfg); !errors.Is(err, ErrShopItemExists) {
		t.Fatalf("expected ErrShopItemExists, got %v", err)
	}
	if len(s.Items()) != 1 {
		t.Fatalf("expected one listing, have %d", len(s.Items()))
	}
}

func TestShopPurchase(t *testing.T) {
	cfg := DefaultConfig()
	s := NewShop()
	if err := s.Add(ShopItem{ID: 3, Category: CatGlasses, Name: "Shades", Price: 5, Currency: CurrencyDiamonds}, cfg); err != nil {
		t.Fatalf("add: %v", err)
	}
	p := newTestPlayer(1, "alice")
	p.Diamonds = 4

	if _, err := s.Purchase(p, CatGlasses, 3, 5, CurrencyDiamonds); !errors.Is(err, ErrInsufficientFund) {
		t.Fatalf("expected ErrInsufficientFund, got %v", err)
	}
	p.Diamonds = 7
	if _, err := s.Purchase(p, CatGlasses, 3, 4, CurrencyDiamonds); !errors.Is(err, ErrShopItemMissing) {
		t.Fatalf("stale price: expected ErrShopItemMissing, got %v", err)
	}
	if p.Diamonds != 7 || p.Inventory.Count(CatGlasses, 3) != 0 {
		t.Fatalf("refused purchase changed state: diamonds=%d", p.Diamonds)
	}
	if _, err := s.Purchase(p, CatGlasses, 3, 5, CurrencyDiamonds); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if p.Diamonds != 2 || p.Inventory.Count(CatGlasses, 3) != 1 || p.Coins != 0 {
		t.Fatalf("after purchase diamonds=%d coins=%d glasses=%v", p.Diamonds, p.Coins, p.Inventory[CatGlasses])
	}

	if _, err := s.Remove(CatGlasses, 3); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Remove(CatGlasses, 3); !errors.Is(err, ErrShopItemMissing) {
		t.Fatalf("expected ErrShopItemMissing, got %v", err)
	}
}
