package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens a SQLite database and bootstraps the schema. The pure-Go
// driver keeps the CLI's local mode free of cgo.
func OpenSQLite(cfg Config) (Store, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}

	// Every pooled connection to a :memory: DSN would otherwise see its
	// own empty database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &sqlStore{
		db:     db,
		mapErr: mapSQLiteError,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.bootstrap(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping sqlite store: %w", err)
	}

	return s, nil
}

func mapSQLiteError(err error) error {
	// The driver exposes constraint failures only through the message text.
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}
