package server

import "time"

// Config holds the anti-abuse thresholds, world geometry and room layout.
// Thresholds are server policy and never negotiated with clients.
type Config struct {
	MinX, MinY, MaxX, MaxY float64
	SpawnX, SpawnY         float64
	HomeSpawnX, HomeSpawnY float64

	MaxMoveDistance   float64
	MinMoveInterval   time.Duration
	BroadcastInterval time.Duration

	ChatMaxLength int
	ChatCooldown  time.Duration
	ChatDisplay   time.Duration

	MaxOfferSlots     int
	MaxItemID         int
	MaxCoinGrant      int64
	MaxDiamondGrant   int64
	MaxAdminBroadcast int

	DefaultRoom    string
	PublicRooms    []Room
	HomeBackground string

	// SendQueue is the per-connection outbound buffer; overflow is dropped.
	SendQueue int
}

func DefaultConfig() Config {
	return Config{
		MinX: -1000, MinY: -1000, MaxX: 3000, MaxY: 2000,
		SpawnX: 300, SpawnY: 300,
		HomeSpawnX: 600, HomeSpawnY: 340,

		MaxMoveDistance:   1000,
		MinMoveInterval:   16 * time.Millisecond,
		BroadcastInterval: 100 * time.Millisecond,

		ChatMaxLength: 50,
		ChatCooldown:  time.Second,
		ChatDisplay:   10 * time.Second,

		MaxOfferSlots:     9,
		MaxItemID:         9999,
		MaxCoinGrant:      1_000_000,
		MaxDiamondGrant:   100,
		MaxAdminBroadcast: 500,

		DefaultRoom: "beach",
		PublicRooms: []Room{
			{ID: "football", Name: "Football Field", Background: "rooms/football.png", MaxCapacity: 50},
			{ID: "space", Name: "Space", Background: "rooms/space.png", MaxCapacity: 50},
			{ID: "beach", Name: "Beach", Background: "rooms/sea.png", MaxCapacity: 50},
			{ID: "park", Name: "Park", Background: "rooms/park.png", MaxCapacity: 50},
		},
		HomeBackground: "rooms/house.png",

		SendQueue: 64,
	}
}

// Tunables is the hot-reloadable subset of Config exposed on /admin/config.
type Tunables struct {
	MaxMoveDistance     *float64 `json:"maxMoveDistance,omitempty"`
	MinMoveIntervalMs   *int     `json:"minMoveIntervalMs,omitempty"`
	BroadcastIntervalMs *int     `json:"broadcastIntervalMs,omitempty"`
	ChatMaxLength       *int     `json:"chatMaxLength,omitempty"`
	ChatCooldownMs      *int     `json:"chatCooldownMs,omitempty"`
	ChatDisplayMs       *int     `json:"chatDisplayMs,omitempty"`
}

func (c Config) tunables() Tunables {
	maxMove := c.MaxMoveDistance
	moveMs := int(c.MinMoveInterval / time.Millisecond)
	bcastMs := int(c.BroadcastInterval / time.Millisecond)
	chatLen := c.ChatMaxLength
	chatMs := int(c.ChatCooldown / time.Millisecond)
	displayMs := int(c.ChatDisplay / time.Millisecond)
	return Tunables{
		MaxMoveDistance:     &maxMove,
		MinMoveIntervalMs:   &moveMs,
		BroadcastIntervalMs: &bcastMs,
		ChatMaxLength:       &chatLen,
		ChatCooldownMs:      &chatMs,
		ChatDisplayMs:       &displayMs,
	}
}

// apply merges the non-nil, sane fields of t into c.
func (c *Config) apply(t Tunables) {
	if t.MaxMoveDistance != nil && *t.MaxMoveDistance > 0 {
		c.MaxMoveDistance = *t.MaxMoveDistance
	}
	if t.MinMoveIntervalMs != nil && *t.MinMoveIntervalMs >= 0 {
		c.MinMoveInterval = time.Duration(*t.MinMoveIntervalMs) * time.Millisecond
	}
	if t.BroadcastIntervalMs != nil && *t.BroadcastIntervalMs > 0 {
		c.BroadcastInterval = time.Duration(*t.BroadcastIntervalMs) * time.Millisecond
	}
	if t.ChatMaxLength != nil && *t.ChatMaxLength > 0 {
		c.ChatMaxLength = *t.ChatMaxLength
	}
	if t.ChatCooldownMs != nil && *t.ChatCooldownMs >= 0 {
		c.ChatCooldown = time.Duration(*t.ChatCooldownMs) * time.Millisecond
	}
	if t.ChatDisplayMs != nil && *t.ChatDisplayMs > 0 {
		c.ChatDisplay = time.Duration(*t.ChatDisplayMs) * time.Millisecond
	}
}
