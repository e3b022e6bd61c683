// Package store is the Postgres gateway. Store methods run with service
// privileges; UserClient methods are scoped to one owner in every statement.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open fetches the pool for dsn from cache and wraps it.
func Open(ctx context.Context, cache *Cache, dsn string) (*Store, error) {
	db, err := cache.Get(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Ping runs a trivial read against profiles. An empty table is healthy.
func (s *Store) Ping(ctx context.Context) error {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM profiles LIMIT 1;`).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ForUser returns a client whose queries are restricted to userID's rows.
func (s *Store) ForUser(userID string) *UserClient {
	return &UserClient{db: s.db, userID: userID}
}

type UserClient struct {
	db     *sql.DB
	userID string
}

func (u *UserClient) UserID() string { return u.userID }

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
