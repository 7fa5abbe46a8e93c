package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"recinto/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrNotAvailable      = errors.New("resource is not available for the requested range")
	ErrVersionConflict   = errors.New("reservation was modified concurrently")
	ErrDuplicateMovement = errors.New("treasury movement already exists for this reservation")
)

type DB struct {
	db     *sql.DB
	logger zerolog.Logger

	mu        sync.RWMutex
	resources map[int64]*models.Resource
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "database").Logger()
	}
	l.Info().Str("path", path).Msg("database initialized")

	return &DB{db: db, logger: l, resources: make(map[int64]*models.Resource)}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            resource_id INTEGER NOT NULL,
            resource_name TEXT NOT NULL,
            requester_id INTEGER NOT NULL,
            requester_name TEXT NOT NULL,
            role TEXT NOT NULL,
            usage TEXT NOT NULL,
            responsible_name TEXT,
            start_date TEXT NOT NULL,
            end_date TEXT NOT NULL,
            occupants INTEGER NOT NULL,
            payment_proof_ref TEXT,
            total_amount INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending_payment',
            status_reason TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_resource_dates
            ON reservations(resource_id, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE TABLE IF NOT EXISTS treasury_movements (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reservation_id INTEGER NOT NULL UNIQUE,
            amount INTEGER NOT NULL,
            reference TEXT NOT NULL,
            created_by INTEGER NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS audit_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reservation_id INTEGER NOT NULL,
            action TEXT NOT NULL,
            actor_id INTEGER NOT NULL,
            actor_role TEXT NOT NULL,
            reason TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetResources replaces the in-memory resource catalog loaded from YAML at
// startup.
func (db *DB) SetResources(resources []models.Resource) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.resources = make(map[int64]*models.Resource, len(resources))
	for i := range resources {
		r := resources[i]
		db.resources[r.ID] = &r
	}
}

func (db *DB) GetResourceByID(id int64) (*models.Resource, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.resources[id]
	return r, ok
}

func (db *DB) GetResources() []*models.Resource {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*models.Resource, 0, len(db.resources))
	for _, r := range db.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder == out[j].SortOrder {
			return out[i].ID < out[j].ID
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

func (db *DB) Close() error {
	return db.db.Close()
}

// ExecContext and QueryContext are exposed for tests.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}
