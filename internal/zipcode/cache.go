/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package zipcode

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"

	applog "movingcard/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultMaxAge bounds how long a cached address is served before refetching.
const DefaultMaxAge = 30 * 24 * time.Hour

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Cache stores resolved addresses in SQLite or PostgreSQL.
type Cache struct {
	db      *sql.DB
	dialect dialect
	maxAge  time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// IsPostgresDSN reports whether dsn names a PostgreSQL database.
func IsPostgresDSN(dsn string) bool {
	d := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://")
}

// OpenCache opens the cache named by dsn: a postgres:// URL or a SQLite file path.
// Schema migrations are applied before it returns.
func OpenCache(ctx context.Context, dsn string) (*Cache, error) {
	l := applog.WithOperation(applog.WithComponent("zipcode"), "cache_open")
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("cache dsn is required")
	}
	var (
		db  *sql.DB
		err error
		d   dialect
	)
	if IsPostgresDSN(dsn) {
		d = dialectPostgres
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
	} else {
		d = dialectSQLite
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		uri := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(dsn))
		db, err = sql.Open("sqlite", uri)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if err := applyMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		l.Error("migrations failed", slog.Any("err", err))
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.Info("cache ready", slog.Bool("postgres", d == dialectPostgres))
	return &Cache{db: db, dialect: d, maxAge: DefaultMaxAge, now: time.Now, log: l}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SetMaxAge changes the freshness window; d <= 0 disables expiry.
func (c *Cache) SetMaxAge(d time.Duration) { c.maxAge = d }

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (c *Cache) rebind(q string) string {
	if c.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get returns the cached location for zip. ok is false on a miss or a stale entry.
func (c *Cache) Get(ctx context.Context, zip string) (location string, ok bool, err error) {
	var fetched int64
	row := c.db.QueryRowContext(ctx, c.rebind(`SELECT location, fetched_at FROM zip_cache WHERE zip = ?`), zip)
	switch scanErr := row.Scan(&location, &fetched); {
	case errors.Is(scanErr, sql.ErrNoRows):
		return "", false, nil
	case scanErr != nil:
		return "", false, fmt.Errorf("cache get: %w", scanErr)
	}
	if c.maxAge > 0 && c.now().Sub(time.Unix(fetched, 0)) > c.maxAge {
		return "", false, nil
	}
	return location, true, nil
}

func (c *Cache) Put(ctx context.Context, zip, location string) error {
	q := `INSERT INTO zip_cache (zip, location, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT (zip) DO UPDATE SET location = excluded.location, fetched_at = excluded.fetched_at`
	if _, err := c.db.ExecContext(ctx, c.rebind(q), zip, location, c.now().Unix()); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Prune deletes entries older than the freshness window and returns how many went.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	if c.maxAge <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.maxAge).Unix()
	res, err := c.db.ExecContext(ctx, c.rebind(`DELETE FROM zip_cache WHERE fetched_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// applyMigrations applies embedded SQL migrations in filename order and records
// each version in schema_migrations.
func applyMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at BIGINT NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	insert := `INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`
	if d == dialectPostgres {
		insert = `INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`
	}
	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) != "" {
			if _, err := db.ExecContext(ctx, string(b)); err != nil {
				return fmt.Errorf("apply %s: %w", fname, err)
			}
		}
		if _, err := db.ExecContext(ctx, insert, version, fname, time.Now().Unix()); err != nil {
			return fmt.Errorf("record %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, _ := strings.Cut(base, "_")
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
