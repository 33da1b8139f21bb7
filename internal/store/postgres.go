package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per document. The conditional set rides on
// INSERT ... ON CONFLICT DO NOTHING, which is the single atomic primitive
// everything above relies on.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Read(ctx context.Context, path string) (json.RawMessage, bool, error) {
	var value json.RawMessage
	err := s.pool.QueryRow(ctx, `SELECT value FROM documents WHERE path = $1`, path).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Write(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	parent, key := Split(path)

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (path, parent, key, value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		path, parent, key, data,
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, path string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal update fields: %w", err)
	}
	parent, key := Split(path)

	// JSONB || is a shallow merge, matching the Update contract.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (path, parent, key, value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (path) DO UPDATE
		 SET value = documents.value || EXCLUDED.value, updated_at = NOW()`,
		path, parent, key, data,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) RangeQuery(ctx context.Context, parent, orderField string, opts RangeOptions) ([]Document, error) {
	query := `SELECT key, value FROM documents WHERE parent = $1`
	args := []any{parent, orderField}
	idx := 3

	if opts.Start != nil {
		query += fmt.Sprintf(` AND value->>$2 >= $%d`, idx)
		args = append(args, *opts.Start)
		idx++
	}
	if opts.End != nil {
		query += fmt.Sprintf(` AND value->>$2 <= $%d`, idx)
		args = append(args, *opts.End)
		idx++
	}

	direction := "ASC"
	if opts.FromEnd {
		direction = "DESC"
	}
	query += fmt.Sprintf(` ORDER BY value->>$2 %s, key %s`, direction, direction)

	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, idx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range query %s: %w", parent, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.Key, &doc.Value); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	if opts.FromEnd {
		for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
			docs[i], docs[j] = docs[j], docs[i]
		}
	}
	return docs, nil
}

func (s *PostgresStore) ConditionalSet(ctx context.Context, path string, value any) (bool, json.RawMessage, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, nil, fmt.Errorf("marshal document: %w", err)
	}
	parent, key := Split(path)

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO documents (path, parent, key, value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (path) DO NOTHING`,
		path, parent, key, data,
	)
	if err != nil {
		return false, nil, fmt.Errorf("conditional set %s: %w", path, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil, nil
	}

	current, _, err := s.Read(ctx, path)
	if err != nil {
		return false, nil, err
	}
	return false, current, nil
}
