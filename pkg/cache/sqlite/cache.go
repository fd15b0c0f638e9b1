package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "modernc.org/sqlite"

	"github.com/centelha-ai/centelha/pkg/models"
)

// Cache is an offline cache store backed by SQLite.
type Cache struct {
	db *sql.DB
}

var createCacheTables = []string{`
CREATE TABLE IF NOT EXISTS offline_namespaces (
	name TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS offline_entries (
	namespace TEXT NOT NULL,
	request_key TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	status INTEGER NOT NULL,
	header TEXT NOT NULL,
	body BLOB NOT NULL,
	stored_at DATETIME NOT NULL,
	PRIMARY KEY (namespace, request_key)
)`,
}

// New opens (or creates) the cache database at dbPath.
func New(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// Background writes from the offline manager serialize on one connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range createCacheTables {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate cache db: %w", err)
		}
	}

	return &Cache{db: db}, nil
}

// Open registers namespace.
func (c *Cache) Open(ctx context.Context, namespace string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO offline_namespaces (name, created_at) VALUES (?, ?)`,
		namespace, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache open: %w", err)
	}
	return nil
}

// Match retrieves the entry stored under key in namespace.
func (c *Cache) Match(ctx context.Context, namespace, key string) (models.CacheEntry, bool, error) {
	var (
		entry  models.CacheEntry
		header string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT request_key, method, url, status, header, body, stored_at
		 FROM offline_entries WHERE namespace = ? AND request_key = ?`,
		namespace, key,
	).Scan(&entry.Key, &entry.Method, &entry.URL, &entry.Status, &header, &entry.Body, &entry.StoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("cache match: %w", err)
	}
	entry.Header = make(http.Header)
	if err := json.Unmarshal([]byte(header), &entry.Header); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("cache match: decode header: %w", err)
	}
	return entry, true, nil
}

// Put stores an entry in an opened namespace.
func (c *Cache) Put(ctx context.Context, namespace string, entry models.CacheEntry) error {
	header, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("cache put: encode header: %w", err)
	}
	body := entry.Body
	if body == nil {
		body = []byte{}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM offline_namespaces WHERE name = ?`, namespace,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cache put %s: %w", namespace, models.ErrNamespaceNotFound)
	}
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO offline_entries
		 (namespace, request_key, method, url, status, header, body, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		namespace, entry.Key, entry.Method, entry.URL, entry.Status, string(header), body, entry.StoredAt.UTC(),
	); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return tx.Commit()
}

// Namespaces lists every registered namespace in name order.
func (c *Cache) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM offline_namespaces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("cache namespaces: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteNamespace removes namespace and its entries.
func (c *Cache) DeleteNamespace(ctx context.Context, namespace string) (bool, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("cache delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM offline_entries WHERE namespace = ?`, namespace); err != nil {
		return false, fmt.Errorf("cache delete entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM offline_namespaces WHERE name = ?`, namespace)
	if err != nil {
		return false, fmt.Errorf("cache delete namespace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cache delete namespace: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("cache delete: %w", err)
	}
	return n > 0, nil
}

// Len counts the entries in namespace.
func (c *Cache) Len(ctx context.Context, namespace string) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_entries WHERE namespace = ?`, namespace).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("cache len: %w", err)
	}
	return count, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
