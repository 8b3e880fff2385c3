package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOptionsFromEnvErrors(t *testing.T) {
	t.Setenv("DB_SQLITE_PATH", "")
	t.Setenv("DB_POSTGRES_DSN", "")
	t.Setenv("DATABASE_URL", "")

	t.Setenv("DB_DIALECT", "postgres")
	if _, err := OptionsFromEnv(); err == nil || !strings.Contains(err.Error(), "requires DB_POSTGRES_DSN or DATABASE_URL") {
		t.Fatalf("expected postgres DSN error, got %v", err)
	}

	t.Setenv("DB_DIALECT", "bogus")
	if _, err := OptionsFromEnv(); err == nil || !strings.Contains(err.Error(), "unsupported DB_DIALECT") {
		t.Fatalf("expected unsupported dialect error, got %v", err)
	}
}

func TestOptionsFromEnvDefaultsToSQLite(t *testing.T) {
	t.Setenv("DB_DIALECT", "")
	t.Setenv("DB_SQLITE_PATH", "")
	opts, err := OptionsFromEnv()
	if err != nil {
		t.Fatalf("OptionsFromEnv error: %v", err)
	}
	if opts.Dialect != DialectSQLite || opts.SQLitePath == "" {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func openTestSQLite(t *testing.T) *SQL {
	t.Helper()
	s, err := Open(context.Background(), Options{
		Dialect:    DialectSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "users.sqlite"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteRoundTripIsCaseInsensitive(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	u := NewUser("Alice", []string{"ht", "ps"}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	u.Coins = 40
	u.Inventory["ht"] = []int{5, 5, 7}
	five := 5
	u.Equipped["ht"] = &five
	u.HomeID = "home_abc"
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.FindByUsername(ctx, "aLiCe")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Username != "Alice" || got.Coins != 40 || got.HomeID != "home_abc" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Inventory["ht"]) != 3 || got.Equipped["ht"] == nil || *got.Equipped["ht"] != 5 {
		t.Fatalf("inventory/equipped mismatch: %+v %+v", got.Inventory, got.Equipped)
	}
	if got.Equipped["ps"] != nil {
		t.Fatalf("expected empty ps slot, got %v", *got.Equipped["ps"])
	}
}

func TestSQLiteSaveOverwritesAndMissingUser(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	if _, err := s.FindByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	a := NewUser("bob", nil, time.Now())
	b := NewUser("carol", nil, time.Now())
	if err := s.SaveMany(ctx, a, b); err != nil {
		t.Fatalf("save many: %v", err)
	}
	a.Diamonds = 9
	a.Banned = true
	if err := s.Save(ctx, a); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err := s.FindByUsername(ctx, "BOB")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Diamonds != 9 || !got.Banned {
		t.Fatalf("update not persisted: %+v", got)
	}
	if _, err := s.FindByUsername(ctx, "carol"); err != nil {
		t.Fatalf("find carol: %v", err)
	}
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.sqlite")
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), Options{Dialect: DialectSQLite, SQLitePath: path})
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		_ = s.Close()
	}
}

func TestMemoryFailSaveLeavesRecordsUntouched(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := NewUser("alice", []string{"ht"}, time.Now())
	if err := m.Save(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}

	boom := errors.New("disk full")
	m.FailSave = func(u *User) error {
		if u.Username == "bob" {
			return boom
		}
		return nil
	}
	a.Coins = 100
	b := NewUser("bob", []string{"ht"}, time.Now())
	if err := m.SaveMany(ctx, a, b); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	got, _ := m.FindByUsername(ctx, "alice")
	if got.Coins != 0 {
		t.Fatalf("partial write leaked: coins=%d", got.Coins)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 user, got %d", m.Len())
	}
}

func TestCloneIsDeep(t *testing.T) {
	u := NewUser("alice", []string{"ht"}, time.Now())
	u.Inventory["ht"] = []int{1}
	one := 1
	u.Equipped["ht"] = &one

	c := u.Clone()
	c.Inventory["ht"][0] = 99
	*c.Equipped["ht"] = 99
	if u.Inventory["ht"][0] != 1 || *u.Equipped["ht"] != 1 {
		t.Fatalf("clone shares memory with original")
	}
}
