package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"callcenter/pkg/utils"
)

// PostgresStore keeps every collection in one JSONB table:
//
//	documents(collection TEXT, id TEXT, body JSONB, updated_at TIMESTAMPTZ)
//
// The db handle is expected to come from utils.OpenPostgres with the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table and its lookup index.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  body JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, id)
)`); err != nil {
			return fmt.Errorf("create documents table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS documents_body_gin ON documents USING GIN (body)`); err != nil {
			return fmt.Errorf("create documents index: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string, dst any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(body, dst)
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	fields, err := toFields(doc)
	if err != nil {
		return err
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (collection, id, body, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		collection, id, string(body),
	)
	if err != nil {
		return fmt.Errorf("store: set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	patch, err := toFields(fields)
	if err != nil {
		return err
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET body = body || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, string(body),
	)
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Find(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	if err := validateQuery(collection, q); err != nil {
		return nil, err
	}
	query, args := buildFindSQL(collection, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find %s: %w", collection, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(body))
	}
	return out, rows.Err()
}

// buildFindSQL keeps field names out of the SQL text. Equality filters
// are JSONB containment documents so the GIN index on body serves them;
// the ordering field is bound as a parameter to ->>.
func buildFindSQL(collection string, q Query) (string, []any) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT body FROM documents WHERE collection = $1`)
	for _, f := range q.Where {
		args = append(args, containment(f))
		fmt.Fprintf(&b, ` AND body @> $%d::jsonb`, len(args))
	}
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		fmt.Fprintf(&b, ` ORDER BY body ->> $%d`, len(args))
		if q.Desc {
			b.WriteString(` DESC`)
		}
		b.WriteString(`, id`)
	} else {
		b.WriteString(` ORDER BY id`)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return b.String(), args
}

func containment(f Filter) string {
	return canonical(map[string]any{f.Field: normalize(f.Value)})
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
