package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/structura/structurer"
)

// Cache is a structurer.Cache kept in the ai_cache table, so results
// survive restarts and are shared by the server and the worker.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

var _ structurer.Cache = (*Cache)(nil)

// NewCache returns the cache stored in db (Schema applied).
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db, now: time.Now}
}

// Cache returns the AI cache sharing the store's database.
func (s *Store) Cache() *Cache {
	return &Cache{db: s.DB, now: s.now}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM ai_cache WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: cache get: %w", err)
	}
	return v, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO ai_cache (key, value, created_at) VALUES (?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: cache put: %w", err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM ai_cache`); err != nil {
		return fmt.Errorf("store: cache clear: %w", err)
	}
	return nil
}

// Stats lists keys in insertion order.
func (c *Cache) Stats(ctx context.Context) (structurer.CacheStats, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key FROM ai_cache ORDER BY created_at, rowid`)
	if err != nil {
		return structurer.CacheStats{}, fmt.Errorf("store: cache stats: %w", err)
	}
	defer rows.Close()
	st := structurer.CacheStats{Keys: []string{}}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return structurer.CacheStats{}, err
		}
		st.Keys = append(st.Keys, k)
	}
	st.Size = len(st.Keys)
	return st, rows.Err()
}

// Prune drops entries older than maxAge and reports how many went.
func (c *Cache) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM ai_cache WHERE created_at < ?`, c.now().Add(-maxAge).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: cache prune: %w", err)
	}
	return res.RowsAffected()
}
