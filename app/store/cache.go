package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// Cache hands out one *sql.DB per DSN for the life of the process.
type Cache struct {
	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewCache() *Cache {
	return &Cache{dbs: make(map[string]*sql.DB)}
}

// Get returns the pool for dsn, opening and pinging it on first use.
func (c *Cache) Get(ctx context.Context, dsn string) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if db, ok := c.dbs[dsn]; ok {
		return db, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}

	c.dbs[dsn] = db
	return db, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for dsn, db := range c.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.dbs, dsn)
	}
	return first
}
