package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps every collection in the JSONB documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`

	var data []byte
	err := s.pool.QueryRow(ctx, query, collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filter Filter, opts ...QueryOption) ([]json.RawMessage, error) {
	query, args := buildDocumentQuery(collection, filter, collectOptions(opts))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		docs = append(docs, data)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := encodePatch(fields)
	if err != nil {
		return err
	}
	return execUpdate(ctx, s.pool, collection, id, patch, nil)
}

func (s *PostgresStore) AtomicBatch(ctx context.Context, ops []WriteOp) error {
	for _, op := range ops {
		if err := op.validate(); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, op := range ops {
		switch op.Kind {
		case WriteSet:
			doc, err := encodeDoc(op.ID, op.Doc)
			if err != nil {
				return fmt.Errorf("failed to encode %s/%s: %w", op.Collection, op.ID, err)
			}
			query := `
				INSERT INTO documents (collection, id, data)
				VALUES ($1, $2, $3::jsonb)
				ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
			`
			if _, err := tx.Exec(ctx, query, op.Collection, op.ID, string(doc)); err != nil {
				return fmt.Errorf("failed to write %s/%s: %w", op.Collection, op.ID, err)
			}
		case WriteUpdate:
			patch, err := encodePatch(op.Fields)
			if err != nil {
				return err
			}
			if err := execUpdate(ctx, tx, op.Collection, op.ID, patch, op.Guard); err != nil {
				return err
			}
		case WriteDelete:
			query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
			if _, err := tx.Exec(ctx, query, op.Collection, op.ID); err != nil {
				return fmt.Errorf("failed to delete %s/%s: %w", op.Collection, op.ID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func execUpdate(ctx context.Context, db execer, collection, id, patch string, guard *Condition) error {
	query := `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`
	args := []any{collection, id, patch}
	if guard != nil {
		query += ` AND COALESCE(data->>($4::text), '') = $5::text`
		args = append(args, guard.Field, guard.Value)
	}

	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if guard == nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}

	var exists bool
	err = db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`, collection, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if !exists {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	return fmt.Errorf("update %s/%s: %w", collection, id, ErrConflict)
}

func encodePatch(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", ErrInvalidWrite
	}
	normalized, err := normalizeFields(fields)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func buildDocumentQuery(collection string, filter Filter, opts QueryOptions) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT data FROM documents WHERE collection = $1`)
	args := []any{collection}

	for _, c := range filter {
		field := "$" + strconv.Itoa(len(args)+1)
		value := "$" + strconv.Itoa(len(args)+2)
		switch c.Op {
		case OpEq:
			sb.WriteString(" AND data->>(" + field + "::text) = " + value + "::text")
		case OpContains:
			sb.WriteString(" AND data->(" + field + "::text) @> jsonb_build_array(" + value + "::text)")
		default:
			sb.WriteString(" AND FALSE")
			continue
		}
		args = append(args, c.Field, c.Value)
	}
	// jsonb ordering compares numbers numerically and strings lexically.
	if opts.SortField != "" {
		args = append(args, opts.SortField)
		sb.WriteString(" ORDER BY data->($" + strconv.Itoa(len(args)) + "::text)")
		if opts.Descending {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", id")
	} else {
		sb.WriteString(" ORDER BY id")
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return sb.String(), args
}
