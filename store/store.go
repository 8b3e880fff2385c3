// Package store persists player accounts: currency, inventory, equipped items,
// flags and the home room id. The real-time server reads a record once on connect
// and writes it back after every durable mutation.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when no user matches the requested username.
var ErrNotFound = errors.New("store: user not found")

// User is the durable copy of a player account.
type User struct {
	Username  string           `json:"username"`
	Email     string           `json:"email,omitempty"`
	Banned    bool             `json:"banned"`
	BanReason string           `json:"banReason,omitempty"`
	BannedAt  *time.Time       `json:"bannedAt,omitempty"`
	Coins     int64            `json:"coins"`
	Diamonds  int64            `json:"diamonds"`
	Level     int              `json:"level"`
	Inventory map[string][]int `json:"inventory"`
	Equipped  map[string]*int  `json:"equipped"`
	IsAdmin   bool             `json:"isAdmin"`
	HomeID    string           `json:"homeId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// UserStore is the persisted-user contract consumed by the server.
type UserStore interface {
	// FindByUsername matches case-insensitively. Returns ErrNotFound when absent.
	FindByUsername(ctx context.Context, username string) (*User, error)
	// Save inserts or replaces the record keyed by its username.
	Save(ctx context.Context, u *User) error
	// SaveMany writes every record or none of them.
	SaveMany(ctx context.Context, users ...*User) error
	Close() error
}

// NewUser builds the default record for a username seen for the first time.
func NewUser(username string, categories []string, now time.Time) *User {
	u := &User{
		Username:  username,
		Level:     1,
		Inventory: make(map[string][]int, len(categories)),
		Equipped:  make(map[string]*int, len(categories)),
		CreatedAt: now.UTC(),
	}
	for _, c := range categories {
		u.Inventory[c] = []int{}
		u.Equipped[c] = nil
	}
	return u
}

// Key normalises a username for case-insensitive lookups.
func Key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Clone returns a deep copy so callers can hand records across goroutines.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.BannedAt != nil {
		t := *u.BannedAt
		c.BannedAt = &t
	}
	c.Inventory = make(map[string][]int, len(u.Inventory))
	for k, v := range u.Inventory {
		c.Inventory[k] = append([]int(nil), v...)
	}
	c.Equipped = make(map[string]*int, len(u.Equipped))
	for k, v := range u.Equipped {
		if v == nil {
			c.Equipped[k] = nil
			continue
		}
		id := *v
		c.Equipped[k] = &id
	}
	return &c
}
