package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"jumpi/store"
)

// SessionResolver maps an inbound connection request to the signed-in
// username. Authentication itself happens elsewhere; a request without a
// session must be refused before any game state is created.
type SessionResolver interface {
	Resolve(r *http.Request) (string, error)
}

// ResolverFunc adapts a function to SessionResolver.
type ResolverFunc func(r *http.Request) (string, error)

func (f ResolverFunc) Resolve(r *http.Request) (string, error) { return f(r) }

// HeaderResolver trusts a username header set by the fronting auth proxy.
// AllowQuery additionally accepts ?user=, for local development only.
type HeaderResolver struct {
	Header     string
	AllowQuery bool
}

func (h HeaderResolver) Resolve(r *http.Request) (string, error) {
	name := strings.TrimSpace(r.Header.Get(h.Header))
	if name == "" && h.AllowQuery {
		name = strings.TrimSpace(r.URL.Query().Get("user"))
	}
	if name == "" {
		return "", ErrUnauthorized
	}
	if !validUsername(name) {
		return "", ErrInvalidUsername
	}
	return name, nil
}

const maxUsernameLen = 32

func validUsername(name string) bool {
	if name == "" || utf8.RuneCountInString(name) > maxUsernameLen {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}

var errShuttingDown = errors.New("server is shutting down")

// LoadUser returns the account for username, creating it on first sight and
// assigning a home id when it has none. The read is queued behind pending
// writes, so it never sees a record older than the live state last saved.
func (w *World) LoadUser(ctx context.Context, username string) (*store.User, error) {
	type result struct {
		u   *store.User
		err error
	}
	ch := make(chan result, 1)
	now := w.now()
	ok := w.writer.submit(writeJob{
		name: "load_user",
		run: func(ctx context.Context, s store.UserStore) error {
			u, err := loadOrCreate(ctx, s, username, now)
			ch <- result{u: u, err: err}
			return err
		},
	})
	if !ok {
		return nil, errShuttingDown
	}
	select {
	case r := <-ch:
		return r.u, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func loadOrCreate(ctx context.Context, s store.UserStore, username string, now time.Time) (*store.User, error) {
	dirty := false
	u, err := s.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u = store.NewUser(username, categoryKeys(), now)
		dirty = true
	case err != nil:
		return nil, fmt.Errorf("load user %q: %w", username, err)
	}
	if u.HomeID == "" {
		u.HomeID = HomePrefix + uuid.NewString()
		dirty = true
	}
	if dirty {
		if err := s.Save(ctx, u); err != nil {
			return nil, fmt.Errorf("save user %q: %w", username, err)
		}
	}
	return u, nil
}
