package server

// Count returns how many units of id the category holds.
func (inv Inventory) Count(c Category, id int) int {
	n := 0
	for _, v := range inv[c] {
		if v == id {
			n++
		}
	}
	return n
}

// Remove takes out one unit of id, reporting whether one was present.
func (inv Inventory) Remove(c Category, id int) bool {
	ids := inv[c]
	for i, v := range ids {
		if v == id {
			inv[c] = append(ids[:i:i], ids[i+1:]...)
			return true
		}
	}
	return false
}

func (inv Inventory) Add(c Category, id int) {
	inv[c] = append(inv[c], id)
}

func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for c, ids := range inv {
		out[c] = append([]int{}, ids...)
	}
	return out
}

func (cfg Config) validItemID(id int) bool {
	return id > 0 && id <= cfg.MaxItemID
}

// Equip sets the equipped item of a category; itemID 0 unequips. An item the
// player does not hold is refused with ErrNotOwned and nothing changes.
func Equip(p *Player, category string, itemID int, cfg Config) (Category, error) {
	c, ok := ParseCategory(category)
	if !ok {
		return "", ErrInvalidCategory
	}
	if itemID != 0 && !cfg.validItemID(itemID) {
		return "", ErrInvalidItem
	}
	if itemID != 0 && p.Inventory.Count(c, itemID) == 0 {
		return "", ErrNotOwned
	}
	p.Equipped[c] = itemID
	return c, nil
}

// validateOffer checks slot count, item references and that the owner holds
// enough units to cover every slot.
func validateOffer(p *Player, offer Offer, cfg Config) error {
	if len(offer) > cfg.MaxOfferSlots {
		return ErrOfferTooLarge
	}
	want := make(map[TradeItem]int)
	for _, it := range offer {
		if it == nil {
			continue
		}
		if _, ok := ParseCategory(string(it.Category)); !ok {
			return ErrInvalidCategory
		}
		if !cfg.validItemID(it.ID) {
			return ErrInvalidItem
		}
		want[*it]++
	}
	for it, n := range want {
		if p.Inventory.Count(it.Category, it.ID) < n {
			return ErrOfferNotOwned
		}
	}
	return nil
}

// ExecuteTrade moves every offered unit from its owner to the counterparty,
// then unequips any traded-category item a party no longer holds. a and b are
// the players behind t.Sides[0] and t.Sides[1].
func ExecuteTrade(t *Trade, a, b *Player) {
	moveOffer(t.Sides[0].Offer, a, b)
	moveOffer(t.Sides[1].Offer, b, a)

	traded := make(map[Category]bool)
	for _, s := range t.Sides {
		for _, it := range s.Offer {
			if it != nil {
				traded[it.Category] = true
			}
		}
	}
	for _, p := range []*Player{a, b} {
		for c := range traded {
			if id := p.Equipped[c]; id != 0 && p.Inventory.Count(c, id) == 0 {
				p.Equipped[c] = 0
			}
		}
	}
}

func moveOffer(offer Offer, from, to *Player) {
	for _, it := range offer {
		if it == nil {
			continue
		}
		if from.Inventory.Remove(it.Category, it.ID) {
			to.Inventory.Add(it.Category, it.ID)
		}
	}
}
