package server

import (
	"encoding/json"
	"fmt"
)

// Currency names the balance a shop item is priced in.
type Currency string

const (
	CurrencyCoins    Currency = "coins"
	CurrencyDiamonds Currency = "diamonds"
)

// ShopItem is one listing. A (Category, ID) pair is listed at most once.
type ShopItem struct {
	ID       int      `json:"id"`
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Currency Currency `json:"currency"`
}

// Shop is the in-memory catalogue of purchasable items, managed by admins at
// runtime. Listings do not survive a restart.
type Shop struct {
	items []ShopItem
}

func NewShop() *Shop { return &Shop{items: []ShopItem{}} }

// Items returns a copy in listing order.
func (s *Shop) Items() []ShopItem {
	return append([]ShopItem{}, s.items...)
}

func (s *Shop) index(c Category, id int) int {
	for i, it := range s.items {
		if it.Category == c && it.ID == id {
			return i
		}
	}
	return -1
}

// Add lists a new item after validating every field.
func (s *Shop) Add(it ShopItem, cfg Config) error {
	if _, ok := ParseCategory(string(it.Category)); !ok {
		return ErrInvalidCategory
	}
	if !cfg.validItemID(it.ID) {
		return ErrInvalidItem
	}
	if it.Name == "" || it.Price <= 0 {
		return ErrInvalidAmount
	}
	if it.Currency != CurrencyCoins && it.Currency != CurrencyDiamonds {
		return ErrInvalidAmount
	}
	if s.index(it.Category, it.ID) >= 0 {
		return ErrShopItemExists
	}
	s.items = append(s.items, it)
	return nil
}

func (s *Shop) Remove(c Category, id int) (ShopItem, error) {
	i := s.index(c, id)
	if i < 0 {
		return ShopItem{}, ErrShopItemMissing
	}
	it := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return it, nil
}

// Purchase debits the listed price and appends one unit of the item. The
// client's quoted price and currency must match the listing, so a stale
// catalogue never charges an unexpected amount.
func (s *Shop) Purchase(p *Player, c Category, id int, price int64, cur Currency) (ShopItem, error) {
	i := s.index(c, id)
	if i < 0 || s.items[i].Price != price || s.items[i].Currency != cur {
		return ShopItem{}, ErrShopItemMissing
	}
	it := s.items[i]
	balance := &p.Coins
	if it.Currency == CurrencyDiamonds {
		balance = &p.Diamonds
	}
	if *balance < it.Price {
		return ShopItem{}, ErrInsufficientFund
	}
	*balance -= it.Price
	p.Inventory.Add(it.Category, it.ID)
	return it, nil
}

func handleGetStoreItems(w *World, p *Player, _ json.RawMessage, fx *effects) {
	fx.send(p.ID, "storeItems", w.shop.Items())
}

func handlePurchase(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in shopItemPayload
	if !decode(payload, &in) {
		return
	}
	it, err := w.shop.Purchase(p, in.Category, in.ItemID, in.Price, in.Currency)
	if err != nil {
		fx.send(p.ID, "purchaseResult", purchaseResult{Success: false, Message: err.Error()})
		return
	}
	w.log.Infow("shop purchase", "user", p.Username, "category", it.Category, "item", it.ID, "price", it.Price, "currency", it.Currency)
	fx.send(p.ID, "purchaseResult", purchaseResult{
		Success:     true,
		Message:     fmt.Sprintf("%s added to your inventory", it.Name),
		NewCoins:    p.Coins,
		NewDiamonds: p.Diamonds,
		Inventory:   p.Inventory,
	})
	fx.send(p.ID, "updateInventory", p.Inventory)
	fx.send(p.ID, "updateCoins", p.Coins)
	fx.send(p.ID, "updateDiamonds", p.Diamonds)
	w.dirty = true
	w.persistPlayer("purchase", p, fx)
}

func handleAddStoreItem(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in shopItemPayload
	if !decode(payload, &in) {
		return
	}
	it := ShopItem{ID: in.ItemID, Category: in.Category, Name: in.Name, Price: in.Price, Currency: in.Currency}
	if err := w.shop.Add(it, w.cfg); err != nil {
		fx.send(p.ID, "storeItemResult", shopItemResult{Success: false, Message: err.Error()})
		return
	}
	w.log.Infow("store item added", "admin", p.Username, "category", it.Category, "item", it.ID)
	fx.send(p.ID, "storeItemResult", shopItemResult{Success: true, Message: fmt.Sprintf("%s added to the store", it.Name), Item: &it})
	fx.broadcast("storeItemsUpdated", w.shop.Items())
}

func handleRemoveStoreItem(w *World, p *Player, payload json.RawMessage, fx *effects) {
	var in shopItemPayload
	if !decode(payload, &in) {
		return
	}
	it, err := w.shop.Remove(in.Category, in.ItemID)
	if err != nil {
		fx.send(p.ID, "storeItemResult", shopItemResult{Success: false, Message: err.Error()})
		return
	}
	w.log.Infow("store item removed", "admin", p.Username, "category", it.Category, "item", it.ID)
	fx.send(p.ID, "storeItemResult", shopItemResult{Success: true, Message: fmt.Sprintf("%s removed from the store", it.Name), Item: &it})
	fx.broadcast("storeItemsUpdated", w.shop.Items())
}
