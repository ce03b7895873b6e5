package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/ceramicnetwork/go-pulse/common"
	"github.com/ceramicnetwork/go-pulse/models"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "pgx"
)

const sqlitePragmas = "PRAGMA busy_timeout = 5000"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kv_hash (
		k TEXT NOT NULL,
		f TEXT NOT NULL,
		v TEXT NOT NULL,
		PRIMARY KEY (k, f)
	)`,
	`CREATE TABLE IF NOT EXISTS kv_string (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL,
		expires_at BIGINT NOT NULL DEFAULT 0
	)`,
}

var _ models.KeyValueStore = &SqlStore{}

// SqlStore is a KeyValueStore over sqlite (single node) or postgres (shared). Hashes live one row per field, strings
// carry a unix-millisecond expiry where 0 means no expiry.
type SqlStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// OpenSqlite opens (or creates) the sqlite database at path. ":memory:" opens a private in-memory database.
func OpenSqlite(path string) (*SqlStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating data directory: %w", err)
		}
	}
	db, err := sql.Open(DriverSqlite, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and avoids "database is locked" errors
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(sqlitePragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}
	return newSqlStore(db, DriverSqlite)
}

// OpenPostgres connects through the pgx stdlib driver using a postgres URL or DSN.
func OpenPostgres(dsn string) (*SqlStore, error) {
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}
	return newSqlStore(db, DriverPostgres)
}

func newSqlStore(db *sql.DB, driver string) (*SqlStore, error) {
	s := &SqlStore{db: db, driver: driver, now: time.Now}
	ctx, cancel := context.WithTimeout(context.Background(), common.DefaultRpcWaitTime)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: pinging database: %w", driver, err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: creating schema: %w", driver, err)
		}
	}
	return s, nil
}

func (s *SqlStore) Close() error {
	return s.db.Close()
}

func (s *SqlStore) HSet(ctx context.Context, key, field, value string) error {
	return s.HSetAll(ctx, key, map[string]string{field: value})
}

func (s *SqlStore) HSetAll(ctx context.Context, key string, fields map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("hset: %s: %w", key, err)
	}
	defer tx.Rollback()

	query := s.rebind(`INSERT INTO kv_hash (k, f, v) VALUES (?, ?, ?)
		ON CONFLICT (k, f) DO UPDATE SET v = excluded.v`)
	for field, value := range fields {
		if _, err = tx.ExecContext(ctx, query, key, field, value); err != nil {
			return fmt.Errorf("hset: %s/%s: %w", key, field, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("hset: %s: %w", key, err)
	}
	return nil
}

func (s *SqlStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT v FROM kv_hash WHERE k = ? AND f = ?`), key, field).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("hget: %s/%s: %w", key, field, err)
	}
	return value, true, nil
}

func (s *SqlStore) HDel(ctx context.Context, key, field string) error {
	ctx, cancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM kv_hash WHERE k = ? AND f = ?`), key, field); err != nil {
		return fmt.Errorf("hdel: %s/%s: %w", key, field, err)
	}
	return nil
}

func (s *SqlStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT f, v FROM kv_hash WHERE k = ?`), key)
	if err != nil {
		return nil, fmt.Errorf("hgetall: %s: %w", key, err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err = rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("hgetall: %s: %w", key, err)
		}
		fields[field] = value
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("hgetall: %s: %w", key, err)
	}
	return fields, nil
}

func (s *SqlStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(
		ctx,
		s.rebind(`SELECT v FROM kv_string WHERE k = ? AND (expires_at = 0 OR expires_at > ?)`),
		key,
		s.now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("get: %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SqlStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer cancel()

	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixMilli()
	}
	_, err := s.db.ExecContext(
		ctx,
		s.rebind(`INSERT INTO kv_string (k, v, expires_at) VALUES (?, ?, ?)
			ON CONFLICT (k) DO UPDATE SET v = excluded.v, expires_at = excluded.expires_at`),
		key,
		value,
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("setex: %s: %w", key, err)
	}
	return nil
}

func (s *SqlStore) Del(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("del: %s: %w", key, err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM kv_string WHERE k = ?`), key); err != nil {
		return fmt.Errorf("del: %s: %w", key, err)
	}
	if _, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM kv_hash WHERE k = ?`), key); err != nil {
		return fmt.Errorf("del: %s: %w", key, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("del: %s: %w", key, err)
	}
	return nil
}

func (s *SqlStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer cancel()

	pattern := escapeLike(prefix) + "%"
	rows, err := s.db.QueryContext(
		ctx,
		s.rebind(`SELECT k FROM kv_hash WHERE k LIKE ? ESCAPE '\'
			UNION
			SELECT k FROM kv_string WHERE k LIKE ? ESCAPE '\' AND (expires_at = 0 OR expires_at > ?)
			ORDER BY 1`),
		pattern,
		pattern,
		s.now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("keys: %s: %w", prefix, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("keys: %s: %w", prefix, err)
		}
		// LIKE is case-insensitive for ASCII in sqlite
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("keys: %s: %w", prefix, err)
	}
	return keys, nil
}

// rebind rewrites "?" placeholders into "$n" for postgres.
func (s *SqlStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
