package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// bootstrapDDL runs on open; IF NOT EXISTS keeps it idempotent. The column
// types are the portable subset both drivers treat the same way, with
// timestamps always written in UTC.
var bootstrapDDL = []string{
	`CREATE TABLE IF NOT EXISTS rule_sets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS rule_sets_name_key ON rule_sets (name)`,
}

// sqlStore implements Store on database/sql. Queries are written with `?`
// placeholders; the postgres variant rewrites them to `$N` through rebind.
type sqlStore struct {
	db         *sql.DB
	usesDollar bool
	mapErr     func(error) error
}

func (s *sqlStore) bootstrap(ctx context.Context) error {
	for _, stmt := range bootstrapDDL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites `?` placeholders to `$1..$N`. None of the store's queries
// embed a literal question mark, so a plain scan is enough.
func (s *sqlStore) rebind(query string) string {
	if !s.usesDollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Create(ctx context.Context, rs *RuleSet) error {
	prepareForCreate(rs)

	query := s.rebind(`
		INSERT INTO rule_sets (id, name, description, document, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		rs.ID.String(), rs.Name, rs.Description, string(rs.Document),
		rs.Disabled, rs.CreatedAt, rs.UpdatedAt,
	)
	if err != nil {
		return s.mapErr(err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, id uuid.UUID) (*RuleSet, error) {
	query := s.rebind(`
		SELECT id, name, description, document, disabled, created_at, updated_at
		FROM rule_sets
		WHERE id = ?
	`)
	return s.scanRuleSet(s.db.QueryRowContext(ctx, query, id.String()))
}

func (s *sqlStore) GetByName(ctx context.Context, name string) (*RuleSet, error) {
	query := s.rebind(`
		SELECT id, name, description, document, disabled, created_at, updated_at
		FROM rule_sets
		WHERE name = ?
	`)
	return s.scanRuleSet(s.db.QueryRowContext(ctx, query, name))
}

func (s *sqlStore) List(ctx context.Context, opts ListOptions) ([]*RuleSet, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}

	query := `
		SELECT id, name, description, document, disabled, created_at, updated_at
		FROM rule_sets
	`
	if !opts.IncludeDisabled {
		query += ` WHERE NOT disabled`
	}
	query += `
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), opts.Limit, opts.Offset)
	if err != nil {
		return nil, s.mapErr(err)
	}
	defer rows.Close()

	var sets []*RuleSet
	for rows.Next() {
		rs, err := scanRuleSetRow(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, rs)
	}
	return sets, rows.Err()
}

func (s *sqlStore) Update(ctx context.Context, rs *RuleSet) error {
	rs.UpdatedAt = time.Now().UTC()

	query := s.rebind(`
		UPDATE rule_sets
		SET name = ?, description = ?, document = ?, disabled = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := s.db.ExecContext(ctx, query,
		rs.Name, rs.Description, string(rs.Document), rs.Disabled,
		rs.UpdatedAt, rs.ID.String(),
	)
	if err != nil {
		return s.mapErr(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := s.rebind(`DELETE FROM rule_sets WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return s.mapErr(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) PurgeDisabled(ctx context.Context, cutoff time.Time) (int, error) {
	query := s.rebind(`DELETE FROM rule_sets WHERE disabled AND updated_at < ?`)
	result, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, s.mapErr(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *sqlStore) scanRuleSet(row *sql.Row) (*RuleSet, error) {
	rs, err := scanRuleSetRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func scanRuleSetRow(row rowScanner) (*RuleSet, error) {
	var (
		rs       RuleSet
		id       string
		document string
	)
	err := row.Scan(&id, &rs.Name, &rs.Description, &document, &rs.Disabled, &rs.CreatedAt, &rs.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rs.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	rs.Document = []byte(document)
	rs.CreatedAt = rs.CreatedAt.UTC()
	rs.UpdatedAt = rs.UpdatedAt.UTC()

	return &rs, nil
}
