package server

import (
	"encoding/json"
	"time"

	"golang.org/x/time/rate"

	"jumpi/store"
)

// ConnID addresses one live websocket connection. Never reused within a process.
type ConnID uint64

// Direction is the avatar facing. up/down are legacy aliases kept for old clients.
type Direction string

const (
	DirFront     Direction = "front"
	DirBack      Direction = "back"
	DirLeft      Direction = "left"
	DirRight     Direction = "right"
	DirUpLeft    Direction = "up_left"
	DirUpRight   Direction = "up_right"
	DirDownLeft  Direction = "down_left"
	DirDownRight Direction = "down_right"
	DirUp        Direction = "up"
	DirDown      Direction = "down"
)

// ParseDirection maps unknown input to DirFront.
func ParseDirection(s string) Direction {
	switch d := Direction(s); d {
	case DirFront, DirBack, DirLeft, DirRight, DirUpLeft, DirUpRight, DirDownLeft, DirDownRight, DirUp, DirDown:
		return d
	}
	return DirFront
}

// Category is a cosmetic slot.
type Category string

const (
	CatHat        Category = "ht"
	CatPants      Category = "ps"
	CatShirt      Category = "st"
	CatGlasses    Category = "gs"
	CatNecklace   Category = "nk"
	CatBody       Category = "hd"
	CatSkateboard Category = "sk"
	CatHair       Category = "hr"
)

var Categories = []Category{CatHat, CatPants, CatShirt, CatGlasses, CatNecklace, CatBody, CatSkateboard, CatHair}

func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

func categoryKeys() []string {
	keys := make([]string, len(Categories))
	for i, c := range Categories {
		keys[i] = string(c)
	}
	return keys
}

// Inventory holds a multiset of item ids per category; duplicates are separate units.
type Inventory map[Category][]int

// Equipped holds at most one item id per category; 0 means nothing equipped.
type Equipped map[Category]int

// MarshalJSON renders empty slots as null, which is what clients expect.
func (e Equipped) MarshalJSON() ([]byte, error) {
	out := make(map[Category]*int, len(e))
	for c, id := range e {
		if id == 0 {
			out[c] = nil
			continue
		}
		v := id
		out[c] = &v
	}
	return json.Marshal(out)
}

// Player is the live state of one connected user. Only the world loop touches it.
type Player struct {
	ID       ConnID
	Username string
	HomeID   string
	IsAdmin  bool
	AFK      bool

	X, Y             float64
	TargetX, TargetY float64
	Direction        Direction

	Message     string
	MessageTime time.Time

	Coins    int64
	Diamonds int64

	Inventory Inventory
	Equipped  Equipped

	moveGate *rate.Limiter
	chatGate *rate.Limiter

	// record is the durable copy this state was seeded from; fields the live
	// session does not own (email, level, ban data) flow back through it.
	record *store.User
}

func newPlayer(id ConnID, u *store.User, cfg Config) *Player {
	p := &Player{
		ID:        id,
		Username:  u.Username,
		HomeID:    u.HomeID,
		IsAdmin:   u.IsAdmin,
		X:         cfg.SpawnX,
		Y:         cfg.SpawnY,
		TargetX:   cfg.SpawnX,
		TargetY:   cfg.SpawnY,
		Direction: DirFront,
		Coins:     u.Coins,
		Diamonds:  u.Diamonds,
		Inventory: make(Inventory, len(Categories)),
		Equipped:  make(Equipped, len(Categories)),
		moveGate:  rate.NewLimiter(rate.Every(cfg.MinMoveInterval), 1),
		chatGate:  rate.NewLimiter(rate.Every(cfg.ChatCooldown), 1),
		record:    u.Clone(),
	}
	for _, c := range Categories {
		p.Inventory[c] = append([]int{}, u.Inventory[string(c)]...)
		if id := u.Equipped[string(c)]; id != nil {
			p.Equipped[c] = *id
		} else {
			p.Equipped[c] = 0
		}
	}
	return p
}

// Record merges live state into a copy of the durable record, ready to save.
func (p *Player) Record() *store.User {
	u := p.record.Clone()
	u.Username = p.Username
	u.HomeID = p.HomeID
	u.IsAdmin = p.IsAdmin
	u.Coins = p.Coins
	u.Diamonds = p.Diamonds
	u.Inventory = make(map[string][]int, len(p.Inventory))
	for c, ids := range p.Inventory {
		u.Inventory[string(c)] = append([]int{}, ids...)
	}
	u.Equipped = make(map[string]*int, len(p.Equipped))
	for c, id := range p.Equipped {
		if id == 0 {
			u.Equipped[string(c)] = nil
			continue
		}
		v := id
		u.Equipped[string(c)] = &v
	}
	return u
}

func (p *Player) setPosition(x, y float64) {
	p.X, p.Y = x, y
	p.TargetX, p.TargetY = x, y
}

// PlayerView is the broadcast shape of a player, merged with room membership.
type PlayerView struct {
	ID          ConnID    `json:"id"`
	Username    string    `json:"username"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	TargetX     float64   `json:"targetX"`
	TargetY     float64   `json:"targetY"`
	Direction   Direction `json:"direction"`
	Message     string    `json:"message"`
	MessageTime int64     `json:"messageTime"`
	Coins       int64     `json:"coins"`
	Diamonds    int64     `json:"diamonds"`
	Equipped    Equipped  `json:"equipped"`
	IsAdmin     bool      `json:"isAdmin"`
	IsAFK       bool      `json:"isAFK"`
	Room        string    `json:"room"`
	HomeOwner   string    `json:"homeOwner,omitempty"`
	HomeID      string    `json:"homeId,omitempty"`
}

func (p *Player) view() PlayerView {
	v := PlayerView{
		ID:        p.ID,
		Username:  p.Username,
		X:         p.X,
		Y:         p.Y,
		TargetX:   p.TargetX,
		TargetY:   p.TargetY,
		Direction: p.Direction,
		Message:   p.Message,
		Coins:     p.Coins,
		Diamonds:  p.Diamonds,
		Equipped:  make(Equipped, len(p.Equipped)),
		IsAdmin:   p.IsAdmin,
		IsAFK:     p.AFK,
		HomeID:    p.HomeID,
	}
	if !p.MessageTime.IsZero() {
		v.MessageTime = p.MessageTime.UnixMilli()
	}
	for c, id := range p.Equipped {
		v.Equipped[c] = id
	}
	return v
}
