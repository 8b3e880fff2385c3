package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	// DialectMemory keeps users in process memory; nothing survives a restart.
	DialectMemory   Dialect = "memory"
)

// Options selects and locates the backing database.
type Options struct {
	Dialect     Dialect
	SQLitePath  string
	PostgresDSN string
}

// OptionsFromEnv reads DB_DIALECT, DB_SQLITE_PATH and DB_POSTGRES_DSN / DATABASE_URL.
func OptionsFromEnv() (Options, error) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv("DB_DIALECT")))
	if raw == "" {
		raw = string(DialectSQLite)
	}
	opts := Options{Dialect: Dialect(raw)}
	switch opts.Dialect {
	case DialectSQLite:
		opts.SQLitePath = strings.TrimSpace(os.Getenv("DB_SQLITE_PATH"))
		if opts.SQLitePath == "" {
			opts.SQLitePath = filepath.Join("tmp", "jumpi.sqlite")
		}
	case DialectPostgres:
		opts.PostgresDSN = strings.TrimSpace(os.Getenv("DB_POSTGRES_DSN"))
		if opts.PostgresDSN == "" {
			opts.PostgresDSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
		if opts.PostgresDSN == "" {
			return Options{}, oops.Errorf("DB_DIALECT=postgres requires DB_POSTGRES_DSN or DATABASE_URL")
		}
	case DialectMemory:
	default:
		return Options{}, oops.Errorf("unsupported DB_DIALECT %q", raw)
	}
	return opts, nil
}

// SQL stores users in sqlite (modernc) or postgres (pgx) through database/sql.
type SQL struct {
	dialect Dialect
	db      *sql.DB
}

// Open connects, pings and migrates the database described by opts.
func Open(ctx context.Context, opts Options) (*SQL, error) {
	var driver, dsn string
	switch opts.Dialect {
	case DialectSQLite:
		driver = "sqlite"
		if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0o755); err != nil {
			return nil, oops.Wrapf(err, "create sqlite directory")
		}
		dsn = opts.SQLitePath
	case DialectPostgres:
		driver = "pgx"
		dsn = opts.PostgresDSN
	default:
		return nil, oops.Errorf("unsupported dialect %q", opts.Dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, oops.Wrapf(err, "open %s database", opts.Dialect)
	}
	if opts.Dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, oops.Wrapf(err, "ping %s database", opts.Dialect)
	}

	s := &SQL{dialect: opts.Dialect, db: db}
	if err := s.migrate(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Connect opens the store opts describes, including the in-memory one.
func Connect(ctx context.Context, opts Options) (UserStore, error) {
	if opts.Dialect == DialectMemory {
		return NewMemory(), nil
	}
	return Open(ctx, opts)
}

func (s *SQL) Dialect() Dialect { return s.dialect }

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) bind(pos int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (s *SQL) migrate(ctx context.Context) error {
	create := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return oops.Wrapf(err, "create schema_migrations")
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return oops.Wrapf(err, "read schema_migrations")
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return oops.Wrapf(err, "scan schema migration")
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return oops.Wrapf(err, "iterate schema migrations")
	}
	rows.Close()

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", s.dialect))
	if err != nil {
		return oops.Wrapf(err, "glob migrations")
	}
	sort.Strings(files)
	for _, file := range files {
		version := filepath.Base(file)
		if applied[version] {
			continue
		}
		body, err := migrationFS.ReadFile(file)
		if err != nil {
			return oops.Wrapf(err, "read migration %s", file)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return oops.Wrapf(err, "begin migration %s", version)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return oops.Wrapf(err, "apply migration %s", version)
		}
		q := fmt.Sprintf("INSERT INTO schema_migrations (version, applied_at) VALUES (%s, %s)", s.bind(1), s.bind(2))
		if _, err := tx.ExecContext(ctx, q, version, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return oops.Wrapf(err, "record migration %s", version)
		}
		if err := tx.Commit(); err != nil {
			return oops.Wrapf(err, "commit migration %s", version)
		}
	}
	return nil
}

func (s *SQL) FindByUsername(ctx context.Context, username string) (*User, error) {
	q := "SELECT payload FROM users WHERE username_key = " + s.bind(1)
	var payload string
	err := s.db.QueryRowContext(ctx, q, Key(username)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oops.Wrapf(err, "find user %s", username)
	}
	var u User
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return nil, oops.Wrapf(err, "decode user %s", username)
	}
	return &u, nil
}

func (s *SQL) Save(ctx context.Context, u *User) error {
	return s.SaveMany(ctx, u)
}

func (s *SQL) SaveMany(ctx context.Context, users ...*User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oops.Wrapf(err, "begin save tx")
	}
	for _, u := range users {
		if err := s.upsert(ctx, tx, u); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return oops.Wrapf(err, "commit save tx")
	}
	return nil
}

func (s *SQL) upsert(ctx context.Context, tx *sql.Tx, u *User) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return oops.Wrapf(err, "encode user %s", u.Username)
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	q := fmt.Sprintf(`INSERT INTO users (username_key, username, banned, payload, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (username_key) DO UPDATE SET
			username = excluded.username,
			banned = excluded.banned,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		s.bind(1), s.bind(2), s.bind(3), s.bind(4), s.bind(5), s.bind(6))
	if _, err := tx.ExecContext(ctx, q, Key(u.Username), u.Username, u.Banned, string(payload), created, time.Now().UTC()); err != nil {
		return oops.Wrapf(err, "save user %s", u.Username)
	}
	return nil
}
