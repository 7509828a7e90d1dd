// Package repository provides SQL-backed durable slots for the account
// collection, using PostgreSQL or SQLite tables.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Dialect holds the statements a SQL engine needs to serve a slot.
type Dialect struct {
	// Name identifies the engine in error messages.
	Name string
	// SelectQuery reads the value for one key.
	SelectQuery string
	// UpsertQuery inserts a value or replaces the existing one.
	UpsertQuery string
}

// Postgres targets PostgreSQL through lib/pq.
var Postgres = Dialect{
	Name:        "postgres",
	SelectQuery: `SELECT value FROM kv_slots WHERE key = $1`,
	UpsertQuery: `INSERT INTO kv_slots (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
}

// SQLite targets SQLite through mattn/go-sqlite3.
var SQLite = Dialect{
	Name:        "sqlite",
	SelectQuery: `SELECT value FROM kv_slots WHERE key = ?`,
	UpsertQuery: `INSERT INTO kv_slots (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
}

// SQLSlot implements a durable slot on top of a kv_slots table.
type SQLSlot struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// Dialect supplies engine-specific statements.
	Dialect Dialect
}

// NewPostgresSlot creates a slot backed by a PostgreSQL connection.
// db must be a valid connection whose schema was created by db.InitPostgres.
func NewPostgresSlot(db *sql.DB) *SQLSlot {
	return &SQLSlot{DB: db, Dialect: Postgres}
}

// NewSQLiteSlot creates a slot backed by a SQLite connection.
func NewSQLiteSlot(db *sql.DB) *SQLSlot {
	return &SQLSlot{DB: db, Dialect: SQLite}
}

// Get returns the value stored under key.
// A missing row is reported as ok=false without an error.
func (s *SQLSlot) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, s.Dialect.SelectQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s slot get failed: %w", s.Dialect.Name, err)
	}
	return value, true, nil
}

// Set replaces the value under key in a single statement.
func (s *SQLSlot) Set(ctx context.Context, key, value string) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.UpsertQuery, key, value); err != nil {
		return fmt.Errorf("%s slot set failed: %w", s.Dialect.Name, err)
	}
	return nil
}
