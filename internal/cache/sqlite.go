package cache

import (
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Store persisted in a SQLite database file
type SQLite struct {
	db       *sql.DB
	capacity int
	ttl      time.Duration
	hits     atomic.Int64
	misses   atomic.Int64

	now func() time.Time
}

// id increases with every insert, so ORDER BY id is insertion order
const createResponsesTable = `
CREATE TABLE IF NOT EXISTS responses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key_hash TEXT NOT NULL UNIQUE,
	response TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// NewSQLite opens (creating if needed) the cache database at dbPath
func NewSQLite(dbPath string, capacity int, ttl time.Duration) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createResponsesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &SQLite{
		db:       db,
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// HashKey computes the SHA-256 hex digest used as the row key
func HashKey(key string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}

// Get retrieves a cached response
func (c *SQLite) Get(key string) (string, bool, error) {
	var response string
	var createdAt int64

	err := c.db.QueryRow(
		`SELECT response, created_at FROM responses WHERE key_hash = ?`,
		HashKey(key),
	).Scan(&response, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return "", false, fmt.Errorf("cache get: %w", err)
	}

	if expired(time.Unix(0, createdAt), c.now(), c.ttl) {
		c.misses.Add(1)
		return "", false, nil
	}

	c.hits.Add(1)
	return response, true, nil
}

// Insert stores a response, evicting the oldest rows beyond capacity
func (c *SQLite) Insert(key, value string) error {
	if c.capacity <= 0 {
		return nil
	}

	now := c.now()
	hash := HashKey(key)

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("cache insert: %w", err)
	}
	defer tx.Rollback()

	// Overwrites take a fresh id so they count as the newest insert
	if _, err := tx.Exec(`DELETE FROM responses WHERE key_hash = ?`, hash); err != nil {
		return fmt.Errorf("cache insert: %w", err)
	}

	if c.ttl > 0 {
		if _, err := tx.Exec(`DELETE FROM responses WHERE created_at < ?`, now.Add(-c.ttl).UnixNano()); err != nil {
			return fmt.Errorf("cache purge: %w", err)
		}
	}

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM responses`).Scan(&count); err != nil {
		return fmt.Errorf("cache count: %w", err)
	}

	if excess := count - c.capacity + 1; excess > 0 {
		_, err := tx.Exec(
			`DELETE FROM responses WHERE id IN (SELECT id FROM responses ORDER BY id ASC LIMIT ?)`,
			excess,
		)
		if err != nil {
			return fmt.Errorf("cache evict: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO responses (key_hash, response, created_at) VALUES (?, ?, ?)`,
		hash, value, now.UnixNano(),
	); err != nil {
		return fmt.Errorf("cache insert: %w", err)
	}

	return tx.Commit()
}

// Clear removes all entries
func (c *SQLite) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM responses`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// ClearExpired removes only expired entries and returns how many were dropped
func (c *SQLite) ClearExpired() (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}

	res, err := c.db.Exec(`DELETE FROM responses WHERE created_at < ?`, c.now().Add(-c.ttl).UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cache clear expired: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of live entries
func (c *SQLite) Len() (int, error) {
	query := `SELECT COUNT(*) FROM responses`
	args := []any{}
	if c.ttl > 0 {
		query += ` WHERE created_at >= ?`
		args = append(args, c.now().Add(-c.ttl).UnixNano())
	}

	var count int
	if err := c.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("cache len: %w", err)
	}
	return count, nil
}

// IsEmpty reports whether the cache holds no live entries
func (c *SQLite) IsEmpty() (bool, error) {
	n, err := c.Len()
	return n == 0, err
}

// Stats returns cache performance metrics
func (c *SQLite) Stats() (Stats, error) {
	n, err := c.Len()
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return Stats{
		Backend:  "sqlite",
		Entries:  n,
		Capacity: c.capacity,
		TTL:      c.ttl,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}, nil
}

// Close releases the database connection
func (c *SQLite) Close() error {
	return c.db.Close()
}
