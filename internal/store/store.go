// Package store persists rule sets. Three backends share one interface:
// postgres for deployments, sqlite for the CLI's local mode, and an
// in-memory map for tests and ephemeral runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a rule set does not exist.
var ErrNotFound = errors.New("rule set not found")

// ErrDuplicate is returned when a rule set name is already taken.
var ErrDuplicate = errors.New("rule set name already exists")

// RuleSet is a stored rule tree with its metadata. Document holds the raw
// tree JSON exactly as submitted; the store never interprets it.
type RuleSet struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Document    json.RawMessage `json:"document"`
	Disabled    bool            `json:"disabled"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ListOptions controls List pagination and filtering.
type ListOptions struct {
	// Limit caps the page size; values <= 0 fall back to 100.
	Limit int

	// Offset skips that many rule sets in creation order (newest first).
	Offset int

	// IncludeDisabled also returns soft-disabled rule sets.
	IncludeDisabled bool
}

const defaultListLimit = 100

// Store is the persistence interface for rule sets.
type Store interface {
	Create(ctx context.Context, rs *RuleSet) error
	Get(ctx context.Context, id uuid.UUID) (*RuleSet, error)
	GetByName(ctx context.Context, name string) (*RuleSet, error)
	List(ctx context.Context, opts ListOptions) ([]*RuleSet, error)
	Update(ctx context.Context, rs *RuleSet) error
	Delete(ctx context.Context, id uuid.UUID) error

	// PurgeDisabled deletes soft-disabled rule sets not touched since
	// the cutoff and reports how many went away.
	PurgeDisabled(ctx context.Context, cutoff time.Time) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// Config holds store configuration.
type Config struct {
	// Driver selects the backend: "postgres", "sqlite", or "memory"
	Driver string

	// DSN is the connection string (ignored by the memory backend)
	DSN string

	// Connection pool settings for the SQL backends
	MaxOpenConns int
	MaxIdleConns int
}

// Open creates a store for the configured driver. SQL backends run the
// schema bootstrap before returning.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return OpenPostgres(cfg)
	case "sqlite":
		return OpenSQLite(cfg)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}

// prepareForCreate fills defaults shared by all backends.
func prepareForCreate(rs *RuleSet) {
	if rs.ID == uuid.Nil {
		rs.ID = uuid.New()
	}
	now := time.Now().UTC()
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = now
	}
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = rs.CreatedAt
	}
}
