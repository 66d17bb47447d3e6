package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the postgres error code for unique constraint breaks.
const uniqueViolation = "23505"

// OpenPostgres connects to PostgreSQL and bootstraps the schema.
func OpenPostgres(cfg Config) (Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres store: %w", err)
	}

	configurePool(db, cfg)

	s := &sqlStore{
		db:         db,
		usesDollar: true,
		mapErr:     mapPostgresError,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.bootstrap(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping postgres store: %w", err)
	}

	return s, nil
}

func configurePool(db *sql.DB, cfg Config) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
}

func mapPostgresError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
